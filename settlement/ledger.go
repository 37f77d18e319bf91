package settlement

import (
	"context"

	"github.com/liquidityos/service-marketplace-go/domain"
)

// CurrencyLedger is the port to the native currency ledger. Amounts are
// lamports (uint64) end to end.
type CurrencyLedger interface {
	// Balance returns the freshest committed balance of an account.
	Balance(ctx context.Context, id domain.AccountID) (uint64, error)

	// Transfer moves lamports between accounts. Fails with
	// domain.ErrInsufficientFunds when the payer cannot cover the amount.
	Transfer(ctx context.Context, from, to domain.AccountID, lamports uint64) error
}
