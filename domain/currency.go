package domain

import "github.com/shopspring/decimal"

// LamportsPerSOL is the native currency's smallest-unit scale.
const LamportsPerSOL = 1_000_000_000

// LamportsToSOL converts a lamport amount to its decimal SOL value for
// human-facing output (logs, published events). Settlement arithmetic stays
// in uint64 lamports end to end.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Shift(-9)
}
