package chain

import (
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"
)

// collateralMarker is the importantTransactionType value that flags a pledge.
const collateralMarker = "COLLATERAL"

// ClassifyTransaction derives the coarse type of a transaction. Rules are
// evaluated in order; a nil projection is UNKNOWN.
func ClassifyTransaction(tx *common.Transaction) common.TypeTag {
	if tx == nil {
		return common.TypeUnknown
	}
	if tx.ImportantTransactionType == collateralMarker {
		return common.TypeCollateral
	}

	deposit, withdrawal := tx.HasDeposit(), tx.HasWithdrawal()
	switch {
	case deposit && !withdrawal:
		return common.TypeDeposit
	case withdrawal && !deposit:
		return common.TypeWithdrawal
	case deposit && withdrawal:
		return common.TypeTransfer
	default:
		return common.TypeUnknown
	}
}
