package common

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxChainDepth is the maximum number of transactions on a chain path.
const MaxChainDepth = 5

// DefaultMinConfidence is the traversal threshold used when a caller does not
// supply one. Callers reporting "low confidence" chains must use the same value.
const DefaultMinConfidence = 0.6

var ErrUnknownChainType = errors.New("unknown chain type")

// Transaction is the read-only projection of a bank-statement transaction that
// the chain engine needs. It is owned by the ingestion side of the system and
// never written by this module.
type Transaction struct {
	ID                       string           `json:"id"`
	DepositAmount            *decimal.Decimal `json:"depositAmount"`
	WithdrawalAmount         *decimal.Decimal `json:"withdrawalAmount"`
	Category                 string           `json:"category"`
	ImportantTransactionType string           `json:"importantTransactionType"`
	TransactionDate          time.Time        `json:"transactionDate"`
	Memo                     string           `json:"memo"`
	CreditorName             string           `json:"creditorName,omitempty"`
}

// HasDeposit reports whether the transaction carries a non-zero deposit.
func (t *Transaction) HasDeposit() bool {
	return t != nil && t.DepositAmount != nil && !t.DepositAmount.IsZero()
}

// HasWithdrawal reports whether the transaction carries a non-zero withdrawal.
func (t *Transaction) HasWithdrawal() bool {
	return t != nil && t.WithdrawalAmount != nil && !t.WithdrawalAmount.IsZero()
}

// Amount returns the deposit amount if present, otherwise the withdrawal
// amount, otherwise zero.
func (t *Transaction) Amount() decimal.Decimal {
	switch {
	case t.HasDeposit():
		return *t.DepositAmount
	case t.HasWithdrawal():
		return *t.WithdrawalAmount
	default:
		return decimal.Zero
	}
}

// Relation is a directed, confidence-scored edge asserting that the source
// transaction plausibly feeds the target transaction.
//
// Confidence is kept as the raw value handed over by the storage layer
// (float64, decimal.Decimal, pgtype.Numeric, numeric string, ...). It is
// normalized exactly once when the relation graph is built.
type Relation struct {
	ID         string       `json:"id"`
	SourceTxID string       `json:"sourceTxId"`
	TargetTxID string       `json:"targetTxId"`
	Confidence any          `json:"confidence"`
	SourceTx   *Transaction `json:"sourceTx,omitempty"`
	TargetTx   *Transaction `json:"targetTx,omitempty"`
}

// TypeTag is the coarse transaction type derived from amounts and markers.
type TypeTag string

const (
	TypeDeposit    TypeTag = "DEPOSIT"
	TypeWithdrawal TypeTag = "WITHDRAWAL"
	TypeTransfer   TypeTag = "TRANSFER"
	TypeCollateral TypeTag = "COLLATERAL"
	TypeUnknown    TypeTag = "UNKNOWN"
)

// ChainType classifies a chain into a named money-flow shape.
type ChainType string

const (
	ChainLoanExecution   ChainType = "LOAN_EXECUTION"
	ChainDebtSettlement  ChainType = "DEBT_SETTLEMENT"
	ChainCollateralRight ChainType = "COLLATERAL_RIGHT"
	ChainUpstream        ChainType = "UPSTREAM"
	ChainDownstream      ChainType = "DOWNSTREAM"
)

// ChainTypes lists every valid chain type.
var ChainTypes = []ChainType{
	ChainLoanExecution,
	ChainDebtSettlement,
	ChainCollateralRight,
	ChainUpstream,
	ChainDownstream,
}

// ParseChainType converts s into a ChainType, rejecting values outside the
// closed set.
func ParseChainType(s string) (ChainType, error) {
	ct := ChainType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range ChainTypes {
		if ct == known {
			return ct, nil
		}
	}
	return "", ErrUnknownChainType
}

// Chain is a validated multi-hop path of relations that met the confidence
// threshold, classified into a domain pattern.
//
// ChainDepth is always len(Path)-1 and ConfidenceScore is the arithmetic mean
// of the edge confidences traversed to build Path.
type Chain struct {
	StartTxID       string          `json:"startTxId"`
	EndTxID         string          `json:"endTxId"`
	ChainType       ChainType       `json:"chainType"`
	ChainDepth      int             `json:"chainDepth"`
	Path            []string        `json:"path"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ConfidenceScore float64         `json:"confidenceScore"`
}

// ChainKey identifies a stored chain for duplicate detection.
type ChainKey struct {
	StartTxID string    `json:"startTxId"`
	EndTxID   string    `json:"endTxId"`
	ChainType ChainType `json:"chainType"`
}

// Key returns the duplicate-detection key of the chain.
func (c Chain) Key() ChainKey {
	return ChainKey{StartTxID: c.StartTxID, EndTxID: c.EndTxID, ChainType: c.ChainType}
}

// ChainRecord is the persisted form of a chain.
type ChainRecord struct {
	ID              string          `json:"id"`
	CaseID          string          `json:"caseId"`
	StartTxID       string          `json:"startTxId"`
	EndTxID         string          `json:"endTxId"`
	ChainType       ChainType       `json:"chainType"`
	ChainDepth      int             `json:"chainDepth"`
	Path            string          `json:"path"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ConfidenceScore float64         `json:"confidenceScore"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Key returns the duplicate-detection key of the record.
func (r ChainRecord) Key() ChainKey {
	return ChainKey{StartTxID: r.StartTxID, EndTxID: r.EndTxID, ChainType: r.ChainType}
}

// PathIDs splits the stored comma-joined path back into transaction ids.
func (r ChainRecord) PathIDs() []string {
	return SplitPath(r.Path)
}

// JoinPath encodes a path the way it is stored.
func JoinPath(path []string) string {
	return strings.Join(path, ",")
}

// SplitPath decodes a stored path, dropping empty segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
