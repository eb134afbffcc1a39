package chain

import (
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"

	"github.com/shopspring/decimal"
)

func amount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func depositTx(id string, v int64) *common.Transaction {
	return &common.Transaction{ID: id, DepositAmount: amount(v)}
}

func withdrawalTx(id string, v int64) *common.Transaction {
	return &common.Transaction{ID: id, WithdrawalAmount: amount(v)}
}

func transferTx(id string, v int64) *common.Transaction {
	return &common.Transaction{ID: id, DepositAmount: amount(v), WithdrawalAmount: amount(v)}
}

func collateralTx(id string) *common.Transaction {
	return &common.Transaction{ID: id, ImportantTransactionType: "COLLATERAL"}
}

func rel(src, dst *common.Transaction, confidence any) common.Relation {
	r := common.Relation{Confidence: confidence, SourceTx: src, TargetTx: dst}
	if src != nil {
		r.SourceTxID = src.ID
	}
	if dst != nil {
		r.TargetTxID = dst.ID
	}
	return r
}

func chainByPair(chains []common.Chain, start, end string) *common.Chain {
	for i := range chains {
		if chains[i].StartTxID == start && chains[i].EndTxID == end {
			return &chains[i]
		}
	}
	return nil
}
