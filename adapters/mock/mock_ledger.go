package mock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/liquidityos/service-marketplace-go/domain"
)

// MockLedger implements settlement.CurrencyLedger as an in-memory balance
// map for testing and demos.
type MockLedger struct {
	mu       sync.RWMutex
	balances map[domain.AccountID]uint64
}

// NewMockLedger creates an empty ledger.
func NewMockLedger() *MockLedger {
	return &MockLedger{balances: make(map[domain.AccountID]uint64)}
}

// Credit funds an account out of thin air. Test and demo setup only.
func (m *MockLedger) Credit(id domain.AccountID, lamports uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[id] += lamports
	slog.Info("💰 [MockLedger] Credited account", "account", id, "lamports", lamports)
}

// Balance returns the committed balance; unknown accounts hold zero.
func (m *MockLedger) Balance(ctx context.Context, id domain.AccountID) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[id], nil
}

// Transfer moves lamports between accounts.
func (m *MockLedger) Transfer(ctx context.Context, from, to domain.AccountID, lamports uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[from] < lamports {
		return fmt.Errorf("transfer %d lamports from %s: %w", lamports, from, domain.ErrInsufficientFunds)
	}
	m.balances[from] -= lamports
	m.balances[to] += lamports
	return nil
}
