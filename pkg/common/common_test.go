package common

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseChainType(t *testing.T) {
	tests := []struct {
		in      string
		want    ChainType
		wantErr bool
	}{
		{in: "LOAN_EXECUTION", want: ChainLoanExecution},
		{in: "debt_settlement", want: ChainDebtSettlement},
		{in: " UPSTREAM ", want: ChainUpstream},
		{in: "SIDEWAYS", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseChainType(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownChainType) {
				t.Fatalf("ParseChainType(%q) expected ErrUnknownChainType, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseChainType(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseChainType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitPath(t *testing.T) {
	if got := SplitPath(""); got != nil {
		t.Fatalf("expected nil for empty path, got %#v", got)
	}
	got := SplitPath("tx-1, tx-2,,tx-3")
	want := []string{"tx-1", "tx-2", "tx-3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitPath() = %#v, want %#v", got, want)
	}
	if JoinPath(want) != "tx-1,tx-2,tx-3" {
		t.Fatalf("JoinPath() = %q", JoinPath(want))
	}
}

func TestTransactionAmount(t *testing.T) {
	dep := decimal.NewFromInt(1000)
	wd := decimal.NewFromInt(250)
	zero := decimal.Zero

	tests := []struct {
		name string
		tx   *Transaction
		want decimal.Decimal
	}{
		{name: "nil transaction", tx: nil, want: decimal.Zero},
		{name: "deposit wins", tx: &Transaction{DepositAmount: &dep, WithdrawalAmount: &wd}, want: dep},
		{name: "withdrawal only", tx: &Transaction{WithdrawalAmount: &wd}, want: wd},
		{name: "zero deposit falls through", tx: &Transaction{DepositAmount: &zero, WithdrawalAmount: &wd}, want: wd},
		{name: "neither", tx: &Transaction{}, want: decimal.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tx.Amount(); !got.Equal(tt.want) {
				t.Fatalf("Amount() = %s, want %s", got, tt.want)
			}
		})
	}
}
