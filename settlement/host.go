package settlement

import (
	"context"
	"sync"
	"time"
)

// Host executes settlement units against the real collaborators. It provides
// the two guarantees the core relies on: units touching the same records are
// applied strictly one after the other, and a unit's writes land together or
// not at all. The core itself never locks anything; a unit that fails can
// always be resubmitted from scratch against refreshed state.
type Host struct {
	mu      sync.Mutex
	custody CustodyClient
	ledger  CurrencyLedger
	records RecordStore
	outbox  Outbox
	clock   func() time.Time
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithOutbox attaches an event outbox; every committed unit's events are
// appended during flush.
func WithOutbox(o Outbox) HostOption {
	return func(h *Host) { h.outbox = o }
}

// WithClock overrides the host time source. Tests use this to drive expiry.
func WithClock(clock func() time.Time) HostOption {
	return func(h *Host) { h.clock = clock }
}

// NewHost builds an execution host over the given collaborators.
func NewHost(custody CustodyClient, ledger CurrencyLedger, records RecordStore, opts ...HostOption) *Host {
	h := &Host{
		custody: custody,
		ledger:  ledger,
		records: records,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Execute runs fn as one settlement unit. If fn returns an error the staged
// buffer is discarded whole; otherwise every staged write is flushed while
// the host lock is still held, so no other unit can interleave between
// validation and commit.
func (h *Host) Execute(ctx context.Context, fn func(u *Unit) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	u := newUnit(h.clock(), h.custody, h.ledger, h.records)
	if err := fn(u); err != nil {
		return err
	}
	return u.flush(ctx, h.outbox)
}
