package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/liquidityos/service-marketplace-go/domain"
	"github.com/liquidityos/service-marketplace-go/settlement"
)

type listingKey struct {
	asset  domain.AccountID
	seller domain.AccountID
}

type offeringKey struct {
	vendor domain.AccountID
	name   string
}

// MockStore implements settlement.RecordStore and settlement.Outbox in
// memory for testing and demos.
type MockStore struct {
	mu        sync.RWMutex
	listings  map[listingKey]*domain.Listing
	offerings map[offeringKey]*domain.ServiceOffering
	events    []settlement.Event
}

// NewMockStore creates an empty store.
func NewMockStore() *MockStore {
	return &MockStore{
		listings:  make(map[listingKey]*domain.Listing),
		offerings: make(map[offeringKey]*domain.ServiceOffering),
	}
}

func copyListing(l *domain.Listing) *domain.Listing {
	c := *l
	if l.ExpiresAt != nil {
		e := *l.ExpiresAt
		c.ExpiresAt = &e
	}
	return &c
}

func copyOffering(o *domain.ServiceOffering) *domain.ServiceOffering {
	c := *o
	if o.ExpiresAt != nil {
		e := *o.ExpiresAt
		c.ExpiresAt = &e
	}
	return &c
}

func (m *MockStore) Listing(ctx context.Context, asset, seller domain.AccountID) (*domain.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[listingKey{asset, seller}]
	if !ok {
		return nil, fmt.Errorf("asset %s seller %s: %w", asset, seller, domain.ErrListingNotFound)
	}
	return copyListing(l), nil
}

func (m *MockStore) PutListing(ctx context.Context, l *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[listingKey{l.AssetID, l.Seller}] = copyListing(l)
	return nil
}

func (m *MockStore) DeleteListing(ctx context.Context, asset, seller domain.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listings, listingKey{asset, seller})
	return nil
}

func (m *MockStore) Offering(ctx context.Context, vendor domain.AccountID, name string) (*domain.ServiceOffering, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.offerings[offeringKey{vendor, name}]
	if !ok {
		return nil, fmt.Errorf("vendor %s offering %q: %w", vendor, name, domain.ErrOfferingNotFound)
	}
	return copyOffering(o), nil
}

func (m *MockStore) PutOffering(ctx context.Context, o *domain.ServiceOffering) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offerings[offeringKey{o.Vendor, o.Name}] = copyOffering(o)
	return nil
}

// Append records a committed settlement event.
func (m *MockStore) Append(ctx context.Context, ev settlement.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns the committed settlement events, for assertions.
func (m *MockStore) Events() []settlement.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]settlement.Event, len(m.events))
	copy(out, m.events)
	return out
}
