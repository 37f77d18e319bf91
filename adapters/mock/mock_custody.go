package mock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/liquidityos/service-marketplace-go/domain"
	"github.com/liquidityos/service-marketplace-go/settlement"
)

// MockCustody implements settlement.CustodyClient as an in-memory asset
// registry for testing and demos. It enforces the same authorization rules
// as a real custody collaborator: owners approve delegates, delegates
// present capability tokens, tokens are verified by equality.
type MockCustody struct {
	mu         sync.RWMutex
	assets     map[domain.AccountID]*domain.Asset
	extensions map[domain.AccountID][]domain.Extension
}

// NewMockCustody creates an empty registry.
func NewMockCustody() *MockCustody {
	return &MockCustody{
		assets:     make(map[domain.AccountID]*domain.Asset),
		extensions: make(map[domain.AccountID][]domain.Extension),
	}
}

// SeedAsset registers a pre-existing asset, bypassing authorization. Test
// and demo setup only.
func (m *MockCustody) SeedAsset(a *domain.Asset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[a.ID] = clone(a)
	slog.Info("🗄️  [MockCustody] Seeded asset", "asset", a.ID, "owner", a.Owner)
}

// Extensions returns the extensions written to an asset, for assertions.
func (m *MockCustody) Extensions(id domain.AccountID) []domain.Extension {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Extension, len(m.extensions[id]))
	copy(out, m.extensions[id])
	return out
}

func clone(a *domain.Asset) *domain.Asset {
	c := *a
	if a.Group != nil {
		g := *a.Group
		c.Group = &g
	}
	if a.Delegate != nil {
		d := *a.Delegate
		c.Delegate = &d
	}
	return &c
}

func (m *MockCustody) get(id domain.AccountID) (*domain.Asset, error) {
	a, ok := m.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, domain.ErrAssetNotFound)
	}
	return a, nil
}

// Asset returns a defensive copy of the committed asset record.
func (m *MockCustody) Asset(ctx context.Context, id domain.AccountID) (*domain.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return clone(a), nil
}

// Create mints a new asset record.
func (m *MockCustody) Create(ctx context.Context, req settlement.CreateAssetRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[req.Asset]; ok {
		return fmt.Errorf("asset %s: %w", req.Asset, domain.ErrAssetExists)
	}
	if req.Group != nil {
		g, err := m.get(*req.Group)
		if err != nil {
			return fmt.Errorf("group asset: %w", err)
		}
		if !g.Authority.Matches(req.Authority) {
			return fmt.Errorf("mint into group %s: %w", g.ID, domain.ErrUnauthorized)
		}
	}
	a := &domain.Asset{
		ID:        req.Asset,
		Owner:     req.Owner,
		Name:      req.Name,
		Standard:  req.Standard,
		State:     domain.StateUnlocked,
		Mutable:   req.Mutable,
		Authority: req.Authority,
	}
	if req.Group != nil {
		g := *req.Group
		a.Group = &g
	}
	m.assets[req.Asset] = a
	slog.Info("🗄️  [MockCustody] Asset created", "asset", req.Asset, "owner", req.Owner, "standard", req.Standard)
	return nil
}

// Approve records a delegate grant, authorized by the current owner.
func (m *MockCustody) Approve(ctx context.Context, asset, owner domain.AccountID, delegate domain.Capability, roles domain.DelegateRoles) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(asset)
	if err != nil {
		return err
	}
	if a.Owner != owner {
		return fmt.Errorf("approve on asset %s: %w", asset, domain.ErrNotAssetOwner)
	}
	a.Delegate = &domain.Delegate{Token: delegate, Roles: roles}
	return nil
}

func (m *MockCustody) authorize(a *domain.Asset, auth domain.Capability, role domain.DelegateRoles) error {
	if a.Delegate != nil && a.Delegate.Token.Matches(auth) && a.Delegate.Roles.Has(role) {
		return nil
	}
	return fmt.Errorf("asset %s: %w", a.ID, domain.ErrUnauthorized)
}

// Lock freezes the asset under the presented delegate capability.
func (m *MockCustody) Lock(ctx context.Context, asset domain.AccountID, auth domain.Capability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(asset)
	if err != nil {
		return err
	}
	if err := m.authorize(a, auth, domain.RoleLock); err != nil {
		return err
	}
	a.State = domain.StateLocked
	return nil
}

// Unlock releases the lock under the presented delegate capability.
func (m *MockCustody) Unlock(ctx context.Context, asset domain.AccountID, auth domain.Capability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(asset)
	if err != nil {
		return err
	}
	if err := m.authorize(a, auth, domain.RoleLock); err != nil {
		return err
	}
	a.State = domain.StateUnlocked
	return nil
}

// Transfer moves ownership and clears the delegate grant.
func (m *MockCustody) Transfer(ctx context.Context, asset domain.AccountID, auth domain.Capability, recipient domain.AccountID, group *domain.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(asset)
	if err != nil {
		return err
	}
	if err := m.authorize(a, auth, domain.RoleTransfer); err != nil {
		return err
	}
	if a.Standard == domain.StandardSoulbound {
		return fmt.Errorf("transfer asset %s: %w", asset, domain.ErrAssetSoulbound)
	}
	if a.State == domain.StateLocked {
		return fmt.Errorf("transfer asset %s: %w", asset, domain.ErrAssetLocked)
	}
	if group != nil && !a.InGroup(*group) {
		return fmt.Errorf("transfer asset %s: %w", asset, domain.ErrInvalidGroup)
	}
	a.Owner = recipient
	a.Delegate = nil
	slog.Info("🗄️  [MockCustody] Asset transferred", "asset", asset, "new_owner", recipient)
	return nil
}

// WriteExtension appends an extension record, authorized by the asset's
// authority capability.
func (m *MockCustody) WriteExtension(ctx context.Context, asset domain.AccountID, auth domain.Capability, ext domain.Extension) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(asset)
	if err != nil {
		return err
	}
	if !a.Authority.Matches(auth) || !a.Mutable {
		return fmt.Errorf("write extension on asset %s: %w", asset, domain.ErrUnauthorized)
	}
	m.extensions[asset] = append(m.extensions[asset], ext)
	return nil
}
