package pgx

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// numericToDecimal converts a scanned NUMERIC. NULL, NaN and infinities
// come back as nil.
func numericToDecimal(n pgtype.Numeric) *decimal.Decimal {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return nil
	}
	d := decimal.NewFromBigInt(n.Int, n.Exp)
	return &d
}

func numericToDecimalOrZero(n pgtype.Numeric) decimal.Decimal {
	if d := numericToDecimal(n); d != nil {
		return *d
	}
	return decimal.Zero
}
