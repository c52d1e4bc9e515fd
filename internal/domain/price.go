package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

var lamportsPerSOL = decimal.NewFromInt(LamportsPerSOL)

// ParseSOL converts a decimal SOL amount such as "2.5" into lamports.
// The amount must be positive with at most nine fractional digits.
func ParseSOL(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse SOL amount %q: %w", s, err)
	}
	return SOLToLamports(d)
}

// SOLToLamports converts d SOL into lamports.
func SOLToLamports(d decimal.Decimal) (uint64, error) {
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount %s must be positive", d)
	}
	lamports := d.Mul(lamportsPerSOL)
	if !lamports.Equal(lamports.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than 9 decimal places", d)
	}
	if lamports.GreaterThan(decimal.NewFromUint64(^uint64(0))) {
		return 0, fmt.Errorf("amount %s overflows lamports", d)
	}
	return lamports.BigInt().Uint64(), nil
}

// LamportsToSOL converts lamports into SOL.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Div(lamportsPerSOL)
}
