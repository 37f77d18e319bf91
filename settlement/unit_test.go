package settlement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/liquidityos/service-marketplace-go/domain"
)

// Minimal in-process collaborators. The adapters/mock package cannot be used
// here without an import cycle.

type fakeLedger struct {
	balances map[domain.AccountID]uint64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[domain.AccountID]uint64)}
}

func (f *fakeLedger) Balance(ctx context.Context, id domain.AccountID) (uint64, error) {
	return f.balances[id], nil
}

func (f *fakeLedger) Transfer(ctx context.Context, from, to domain.AccountID, lamports uint64) error {
	if f.balances[from] < lamports {
		return fmt.Errorf("transfer from %s: %w", from, domain.ErrInsufficientFunds)
	}
	f.balances[from] -= lamports
	f.balances[to] += lamports
	return nil
}

type fakeCustody struct {
	assets map[domain.AccountID]*domain.Asset
}

func newFakeCustody() *fakeCustody {
	return &fakeCustody{assets: make(map[domain.AccountID]*domain.Asset)}
}

func (f *fakeCustody) Asset(ctx context.Context, id domain.AccountID) (*domain.Asset, error) {
	a, ok := f.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, domain.ErrAssetNotFound)
	}
	return cloneAsset(a), nil
}

func (f *fakeCustody) Create(ctx context.Context, req CreateAssetRequest) error {
	if _, ok := f.assets[req.Asset]; ok {
		return fmt.Errorf("asset %s: %w", req.Asset, domain.ErrAssetExists)
	}
	a := &domain.Asset{
		ID: req.Asset, Owner: req.Owner, Name: req.Name,
		Standard: req.Standard, State: domain.StateUnlocked,
		Mutable: req.Mutable, Authority: req.Authority,
	}
	if req.Group != nil {
		g := *req.Group
		a.Group = &g
	}
	f.assets[req.Asset] = a
	return nil
}

func (f *fakeCustody) Approve(ctx context.Context, asset, owner domain.AccountID, delegate domain.Capability, roles domain.DelegateRoles) error {
	f.assets[asset].Delegate = &domain.Delegate{Token: delegate, Roles: roles}
	return nil
}

func (f *fakeCustody) Lock(ctx context.Context, asset domain.AccountID, auth domain.Capability) error {
	f.assets[asset].State = domain.StateLocked
	return nil
}

func (f *fakeCustody) Unlock(ctx context.Context, asset domain.AccountID, auth domain.Capability) error {
	f.assets[asset].State = domain.StateUnlocked
	return nil
}

func (f *fakeCustody) Transfer(ctx context.Context, asset domain.AccountID, auth domain.Capability, recipient domain.AccountID, group *domain.AccountID) error {
	a := f.assets[asset]
	a.Owner = recipient
	a.Delegate = nil
	return nil
}

func (f *fakeCustody) WriteExtension(ctx context.Context, asset domain.AccountID, auth domain.Capability, ext domain.Extension) error {
	return nil
}

type fakeStore struct {
	listings  map[listingKey]*domain.Listing
	offerings map[offeringKey]*domain.ServiceOffering
	events    []Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		listings:  make(map[listingKey]*domain.Listing),
		offerings: make(map[offeringKey]*domain.ServiceOffering),
	}
}

func (f *fakeStore) Listing(ctx context.Context, asset, seller domain.AccountID) (*domain.Listing, error) {
	l, ok := f.listings[listingKey{asset, seller}]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	return cloneListing(l), nil
}

func (f *fakeStore) PutListing(ctx context.Context, l *domain.Listing) error {
	f.listings[listingKey{l.AssetID, l.Seller}] = cloneListing(l)
	return nil
}

func (f *fakeStore) DeleteListing(ctx context.Context, asset, seller domain.AccountID) error {
	delete(f.listings, listingKey{asset, seller})
	return nil
}

func (f *fakeStore) Offering(ctx context.Context, vendor domain.AccountID, name string) (*domain.ServiceOffering, error) {
	o, ok := f.offerings[offeringKey{vendor, name}]
	if !ok {
		return nil, domain.ErrOfferingNotFound
	}
	return cloneOffering(o), nil
}

func (f *fakeStore) PutOffering(ctx context.Context, o *domain.ServiceOffering) error {
	f.offerings[offeringKey{o.Vendor, o.Name}] = cloneOffering(o)
	return nil
}

func (f *fakeStore) Append(ctx context.Context, ev Event) error {
	f.events = append(f.events, ev)
	return nil
}

// -------------------- staged ledger --------------------

func TestStagedLedgerBuffersWrites(t *testing.T) {
	ctx := context.Background()
	base := newFakeLedger()
	a, b := domain.NewAccountID(), domain.NewAccountID()
	base.balances[a] = 100

	l := newStagedLedger(base)
	if err := l.Transfer(ctx, a, b, 60); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	// Staged view reflects the transfer, the base does not.
	if got, _ := l.Balance(ctx, a); got != 40 {
		t.Errorf("staged balance = %d, want 40", got)
	}
	if base.balances[a] != 100 || base.balances[b] != 0 {
		t.Error("base ledger must be untouched before flush")
	}

	for _, op := range l.ops {
		if err := op(ctx); err != nil {
			t.Fatalf("replay: %v", err)
		}
	}
	if base.balances[a] != 40 || base.balances[b] != 60 {
		t.Errorf("base after flush = %d/%d, want 40/60", base.balances[a], base.balances[b])
	}
}

func TestStagedLedgerDeltasGateSpending(t *testing.T) {
	ctx := context.Background()
	base := newFakeLedger()
	a, b, c := domain.NewAccountID(), domain.NewAccountID(), domain.NewAccountID()
	base.balances[a] = 100

	l := newStagedLedger(base)
	if err := l.Transfer(ctx, a, b, 80); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	// Only 20 remains in the staged view.
	if err := l.Transfer(ctx, a, c, 30); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	// A staged credit is spendable within the same unit.
	if err := l.Transfer(ctx, b, c, 50); err != nil {
		t.Fatalf("spend of staged credit: %v", err)
	}
}

// -------------------- staged custody --------------------

func TestStagedCustodyReadYourWrites(t *testing.T) {
	ctx := context.Background()
	base := newFakeCustody()
	owner := domain.NewAccountID()
	id := domain.NewAccountID()
	base.assets[id] = &domain.Asset{
		ID: id, Owner: owner, Standard: domain.StandardNonFungible, State: domain.StateUnlocked,
	}

	token, _, err := domain.DeriveCapability(id[:])
	if err != nil {
		t.Fatalf("DeriveCapability: %v", err)
	}
	c := newStagedCustody(base)
	if err := c.Approve(ctx, id, owner, token, domain.RoleLock); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := c.Lock(ctx, id, token); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	a, err := c.Asset(ctx, id)
	if err != nil {
		t.Fatalf("Asset: %v", err)
	}
	if a.State != domain.StateLocked {
		t.Error("unit must see its own staged lock")
	}
	if base.assets[id].State != domain.StateUnlocked {
		t.Error("base custody must be untouched before flush")
	}
}

func TestStagedCustodyLockNeedsGrant(t *testing.T) {
	ctx := context.Background()
	base := newFakeCustody()
	id := domain.NewAccountID()
	base.assets[id] = &domain.Asset{ID: id, Owner: domain.NewAccountID()}

	token, _, err := domain.DeriveCapability(id[:])
	if err != nil {
		t.Fatalf("DeriveCapability: %v", err)
	}
	c := newStagedCustody(base)
	if err := c.Lock(ctx, id, token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestStagedCustodyCreateThenTransferSoulbound(t *testing.T) {
	ctx := context.Background()
	c := newStagedCustody(newFakeCustody())
	id := domain.NewAccountID()
	token, _, err := domain.DeriveCapability(id[:])
	if err != nil {
		t.Fatalf("DeriveCapability: %v", err)
	}
	if err := c.Create(ctx, CreateAssetRequest{
		Asset: id, Owner: domain.NewAccountID(),
		Standard: domain.StandardSoulbound, Authority: token,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Even the minting unit cannot transfer a soulbound asset.
	err = c.Transfer(ctx, id, token, domain.NewAccountID(), nil)
	if !errors.Is(err, domain.ErrUnauthorized) && !errors.Is(err, domain.ErrAssetSoulbound) {
		t.Fatalf("err = %v, want authorization or soulbound failure", err)
	}
}

// -------------------- staged records --------------------

func TestStagedRecordsTombstone(t *testing.T) {
	ctx := context.Background()
	base := newFakeStore()
	now := time.Unix(1_700_000_000, 0)
	l, err := domain.NewListing(domain.NewAccountID(), domain.NewAccountID(), 1, nil, now)
	if err != nil {
		t.Fatalf("NewListing: %v", err)
	}
	if err := base.PutListing(ctx, l); err != nil {
		t.Fatalf("PutListing: %v", err)
	}

	r := newStagedRecords(base)
	if err := r.DeleteListing(ctx, l.AssetID, l.Seller); err != nil {
		t.Fatalf("DeleteListing: %v", err)
	}
	if _, err := r.Listing(ctx, l.AssetID, l.Seller); !errors.Is(err, domain.ErrListingNotFound) {
		t.Fatalf("err = %v, want ErrListingNotFound after staged delete", err)
	}
	// Base keeps the record until flush.
	if _, err := base.Listing(ctx, l.AssetID, l.Seller); err != nil {
		t.Error("base must keep the record before flush")
	}
}

func TestStagedRecordsPutIsolation(t *testing.T) {
	ctx := context.Background()
	base := newFakeStore()
	now := time.Unix(1_700_000_000, 0)
	o, err := domain.NewServiceOffering(domain.NewAccountID(), "svc", 5, 10, nil, true, now)
	if err != nil {
		t.Fatalf("NewServiceOffering: %v", err)
	}

	r := newStagedRecords(base)
	if err := r.PutOffering(ctx, o); err != nil {
		t.Fatalf("PutOffering: %v", err)
	}
	got, err := r.Offering(ctx, o.Vendor, o.Name)
	if err != nil {
		t.Fatalf("Offering: %v", err)
	}
	if got.Price != 10 {
		t.Errorf("staged price = %d, want 10", got.Price)
	}
	if _, err := base.Offering(ctx, o.Vendor, o.Name); !errors.Is(err, domain.ErrOfferingNotFound) {
		t.Error("base must not see the staged write before flush")
	}

	// Mutating the caller's copy after Put must not leak into the stage.
	o.UpdatePrice(999)
	got, _ = r.Offering(ctx, o.Vendor, o.Name)
	if got.Price != 10 {
		t.Errorf("staged price = %d after caller mutation, want 10", got.Price)
	}
}

// -------------------- host --------------------

func TestHostDiscardsFailedUnit(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	custody := newFakeCustody()
	store := newFakeStore()
	a, b := domain.NewAccountID(), domain.NewAccountID()
	ledger.balances[a] = 100

	h := NewHost(custody, ledger, store, WithOutbox(store))
	boom := errors.New("boom")
	err := h.Execute(ctx, func(u *Unit) error {
		if err := u.Ledger().Transfer(ctx, a, b, 50); err != nil {
			return err
		}
		u.Emit(Event{Kind: EventListingSold})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if ledger.balances[a] != 100 || ledger.balances[b] != 0 {
		t.Error("failed unit must leave the ledger untouched")
	}
	if len(store.events) != 0 {
		t.Error("failed unit must publish nothing")
	}
}

func TestHostFlushesCommittedUnit(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	custody := newFakeCustody()
	store := newFakeStore()
	a, b := domain.NewAccountID(), domain.NewAccountID()
	ledger.balances[a] = 100

	fixed := time.Unix(1_700_000_000, 0)
	h := NewHost(custody, ledger, store,
		WithOutbox(store),
		WithClock(func() time.Time { return fixed }),
	)
	err := h.Execute(ctx, func(u *Unit) error {
		if !u.Now().Equal(fixed) {
			t.Errorf("unit time = %v, want %v", u.Now(), fixed)
		}
		if err := u.Ledger().Transfer(ctx, a, b, 50); err != nil {
			return err
		}
		u.Emit(newEvent(EventListingSold, 50, u.Now().Unix()))
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ledger.balances[a] != 50 || ledger.balances[b] != 50 {
		t.Errorf("ledger = %d/%d, want 50/50", ledger.balances[a], ledger.balances[b])
	}
	if len(store.events) != 1 || store.events[0].Kind != EventListingSold {
		t.Errorf("events = %+v", store.events)
	}
}
