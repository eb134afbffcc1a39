package chain

import (
	"slices"

	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"
)

// pathShape is what a pattern rule looks at: the type of every node on the
// candidate path, in traversal order.
type pathShape struct {
	types []common.TypeTag
}

type patternRule struct {
	name      string
	chainType common.ChainType
	matches   func(p pathShape) bool
}

// patternRules is evaluated top-down; the first match wins.
var patternRules = []patternRule{
	{
		// loan disbursed, moved on, pledged as collateral
		name:      "loan execution",
		chainType: common.ChainLoanExecution,
		matches: func(p pathShape) bool {
			return len(p.types) >= 2 &&
				p.types[0] == common.TypeDeposit &&
				slices.Contains(p.types[1:], common.TypeCollateral)
		},
	},
	{
		// repayment, then its funding sources, then the settlement; a single
		// hop withdrawal to deposit stays a fallback chain
		name:      "debt settlement",
		chainType: common.ChainDebtSettlement,
		matches: func(p pathShape) bool {
			if len(p.types) < 3 || p.types[0] != common.TypeWithdrawal {
				return false
			}
			for _, t := range p.types[1:] {
				if t != common.TypeDeposit {
					return false
				}
			}
			return true
		},
	},
	{
		// collateral set, funds flow in, collateral released
		name:      "collateral right",
		chainType: common.ChainCollateralRight,
		matches: func(p pathShape) bool {
			return len(p.types) >= 3 &&
				p.types[0] == common.TypeCollateral &&
				p.types[len(p.types)-1] == common.TypeCollateral
		},
	},
}

// MatchPattern classifies a path from the types of its nodes. When no named
// pattern applies the chain is UPSTREAM if the start transaction has a
// deposit, DOWNSTREAM otherwise (including an unresolvable start).
func MatchPattern(types []common.TypeTag, start *common.Transaction) common.ChainType {
	p := pathShape{types: types}
	for _, rule := range patternRules {
		if rule.matches(p) {
			return rule.chainType
		}
	}
	return fallbackChainType(start)
}

func fallbackChainType(start *common.Transaction) common.ChainType {
	if start.HasDeposit() {
		return common.ChainUpstream
	}
	return common.ChainDownstream
}
