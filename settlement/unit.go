package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liquidityos/service-marketplace-go/domain"
)

// Unit is one atomic settlement: a staged bundle of currency transfers,
// custody mutations and record writes. Every mutation is validated against
// the freshest committed state (merged with the unit's own staged writes)
// and buffered; the Host flushes the buffer only if the whole unit succeeds,
// otherwise the buffer is dropped and no collaborator ever sees a partial
// settlement.
type Unit struct {
	now     time.Time
	custody *stagedCustody
	ledger  *stagedLedger
	records *stagedRecords
	events  []Event
}

func newUnit(now time.Time, custody CustodyClient, ledger CurrencyLedger, records RecordStore) *Unit {
	return &Unit{
		now:     now,
		custody: newStagedCustody(custody),
		ledger:  newStagedLedger(ledger),
		records: newStagedRecords(records),
	}
}

// Now is the host time the unit executes at. All expiry checks inside one
// unit see the same instant.
func (u *Unit) Now() time.Time { return u.now }

// Custody is the unit's staged view of the custody collaborator.
func (u *Unit) Custody() CustodyClient { return u.custody }

// Ledger is the unit's staged view of the currency ledger.
func (u *Unit) Ledger() CurrencyLedger { return u.ledger }

// Records is the unit's staged view of the protocol record store.
func (u *Unit) Records() RecordStore { return u.records }

// Emit queues an event for the outbox. Events are appended only on commit.
func (u *Unit) Emit(ev Event) {
	u.events = append(u.events, ev)
}

// flush applies every staged write to the underlying collaborators. Each op
// was validated against the same committed state under the host's lock, so a
// replay failure indicates a collaborator bug, not a race.
func (u *Unit) flush(ctx context.Context, outbox Outbox) error {
	for _, op := range u.ledger.ops {
		if err := op(ctx); err != nil {
			return fmt.Errorf("flush ledger op: %w", err)
		}
	}
	for _, op := range u.custody.ops {
		if err := op(ctx); err != nil {
			return fmt.Errorf("flush custody op: %w", err)
		}
	}
	for _, op := range u.records.ops {
		if err := op(ctx); err != nil {
			return fmt.Errorf("flush record op: %w", err)
		}
	}
	if outbox != nil {
		for _, ev := range u.events {
			if err := outbox.Append(ctx, ev); err != nil {
				return fmt.Errorf("append outbox event: %w", err)
			}
		}
	}
	return nil
}

// -------------------- staged ledger --------------------

type stagedLedger struct {
	base   CurrencyLedger
	deltas map[domain.AccountID]int64
	ops    []func(ctx context.Context) error
}

func newStagedLedger(base CurrencyLedger) *stagedLedger {
	return &stagedLedger{
		base:   base,
		deltas: make(map[domain.AccountID]int64),
	}
}

// available merges the committed balance with the unit's staged deltas.
func (l *stagedLedger) available(ctx context.Context, id domain.AccountID) (int64, error) {
	b, err := l.base.Balance(ctx, id)
	if err != nil {
		return 0, err
	}
	return int64(b) + l.deltas[id], nil
}

func (l *stagedLedger) Balance(ctx context.Context, id domain.AccountID) (uint64, error) {
	avail, err := l.available(ctx, id)
	if err != nil {
		return 0, err
	}
	if avail < 0 {
		return 0, nil
	}
	return uint64(avail), nil
}

func (l *stagedLedger) Transfer(ctx context.Context, from, to domain.AccountID, lamports uint64) error {
	avail, err := l.available(ctx, from)
	if err != nil {
		return err
	}
	if avail < int64(lamports) {
		return fmt.Errorf("transfer %d lamports from %s: %w", lamports, from, domain.ErrInsufficientFunds)
	}
	l.deltas[from] -= int64(lamports)
	l.deltas[to] += int64(lamports)
	l.ops = append(l.ops, func(ctx context.Context) error {
		return l.base.Transfer(ctx, from, to, lamports)
	})
	return nil
}

// -------------------- staged custody --------------------

type stagedCustody struct {
	base CustodyClient
	// staged holds cloned asset views carrying this unit's mutations.
	// Plain reads are never cached here: an asset appears only once a
	// mutation touched it.
	staged map[domain.AccountID]*domain.Asset
	ops    []func(ctx context.Context) error
}

func newStagedCustody(base CustodyClient) *stagedCustody {
	return &stagedCustody{
		base:   base,
		staged: make(map[domain.AccountID]*domain.Asset),
	}
}

func cloneAsset(a *domain.Asset) *domain.Asset {
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

// view returns a mutable clone of the asset as this unit sees it: staged
// state if the unit already touched it, otherwise the freshest committed
// state.
func (c *stagedCustody) view(ctx context.Context, id domain.AccountID) (*domain.Asset, error) {
	if a, ok := c.staged[id]; ok {
		return cloneAsset(a), nil
	}
	a, err := c.base.Asset(ctx, id)
	if err != nil {
		return nil, err
	}
	return cloneAsset(a), nil
}

func (c *stagedCustody) Asset(ctx context.Context, id domain.AccountID) (*domain.Asset, error) {
	return c.view(ctx, id)
}

// authorize checks a presented capability against the delegate grant
// recorded on the asset.
func authorize(a *domain.Asset, auth domain.Capability, role domain.DelegateRoles) error {
	if a.Delegate != nil && a.Delegate.Token.Matches(auth) && a.Delegate.Roles.Has(role) {
		return nil
	}
	return fmt.Errorf("asset %s: %w", a.ID, domain.ErrUnauthorized)
}

func (c *stagedCustody) Create(ctx context.Context, req CreateAssetRequest) error {
	if _, ok := c.staged[req.Asset]; ok {
		return fmt.Errorf("create asset %s: %w", req.Asset, domain.ErrAssetExists)
	}
	if _, err := c.base.Asset(ctx, req.Asset); err == nil {
		return fmt.Errorf("create asset %s: %w", req.Asset, domain.ErrAssetExists)
	} else if !errors.Is(err, domain.ErrAssetNotFound) {
		return err
	}
	if req.Group != nil {
		g, err := c.view(ctx, *req.Group)
		if err != nil {
			return fmt.Errorf("load group asset: %w", err)
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
	c.staged[req.Asset] = a
	c.ops = append(c.ops, func(ctx context.Context) error {
		return c.base.Create(ctx, req)
	})
	return nil
}

func (c *stagedCustody) Approve(ctx context.Context, asset, owner domain.AccountID, delegate domain.Capability, roles domain.DelegateRoles) error {
	a, err := c.view(ctx, asset)
	if err != nil {
		return err
	}
	if a.Owner != owner {
		return fmt.Errorf("approve on asset %s: %w", asset, domain.ErrNotAssetOwner)
	}
	a.Delegate = &domain.Delegate{Token: delegate, Roles: roles}
	c.staged[asset] = a
	c.ops = append(c.ops, func(ctx context.Context) error {
		return c.base.Approve(ctx, asset, owner, delegate, roles)
	})
	return nil
}

func (c *stagedCustody) Lock(ctx context.Context, asset domain.AccountID, auth domain.Capability) error {
	a, err := c.view(ctx, asset)
	if err != nil {
		return err
	}
	if err := authorize(a, auth, domain.RoleLock); err != nil {
		return err
	}
	a.State = domain.StateLocked
	c.staged[asset] = a
	c.ops = append(c.ops, func(ctx context.Context) error {
		return c.base.Lock(ctx, asset, auth)
	})
	return nil
}

func (c *stagedCustody) Unlock(ctx context.Context, asset domain.AccountID, auth domain.Capability) error {
	a, err := c.view(ctx, asset)
	if err != nil {
		return err
	}
	if err := authorize(a, auth, domain.RoleLock); err != nil {
		return err
	}
	a.State = domain.StateUnlocked
	c.staged[asset] = a
	c.ops = append(c.ops, func(ctx context.Context) error {
		return c.base.Unlock(ctx, asset, auth)
	})
	return nil
}

func (c *stagedCustody) Transfer(ctx context.Context, asset domain.AccountID, auth domain.Capability, recipient domain.AccountID, group *domain.AccountID) error {
	a, err := c.view(ctx, asset)
	if err != nil {
		return err
	}
	if err := authorize(a, auth, domain.RoleTransfer); err != nil {
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
	c.staged[asset] = a
	c.ops = append(c.ops, func(ctx context.Context) error {
		return c.base.Transfer(ctx, asset, auth, recipient, group)
	})
	return nil
}

func (c *stagedCustody) WriteExtension(ctx context.Context, asset domain.AccountID, auth domain.Capability, ext domain.Extension) error {
	a, err := c.view(ctx, asset)
	if err != nil {
		return err
	}
	if !a.Authority.Matches(auth) || !a.Mutable {
		return fmt.Errorf("write extension on asset %s: %w", asset, domain.ErrUnauthorized)
	}
	c.ops = append(c.ops, func(ctx context.Context) error {
		return c.base.WriteExtension(ctx, asset, auth, ext)
	})
	return nil
}

// -------------------- staged records --------------------

type listingKey struct {
	asset  domain.AccountID
	seller domain.AccountID
}

type offeringKey struct {
	vendor domain.AccountID
	name   string
}

type stagedRecords struct {
	base RecordStore
	// nil values are tombstones for deleted listings.
	listings  map[listingKey]*domain.Listing
	offerings map[offeringKey]*domain.ServiceOffering
	ops       []func(ctx context.Context) error
}

func newStagedRecords(base RecordStore) *stagedRecords {
	return &stagedRecords{
		base:      base,
		listings:  make(map[listingKey]*domain.Listing),
		offerings: make(map[offeringKey]*domain.ServiceOffering),
	}
}

func cloneListing(l *domain.Listing) *domain.Listing {
	c := *l
	if l.ExpiresAt != nil {
		e := *l.ExpiresAt
		c.ExpiresAt = &e
	}
	return &c
}

func cloneOffering(o *domain.ServiceOffering) *domain.ServiceOffering {
	c := *o
	if o.ExpiresAt != nil {
		e := *o.ExpiresAt
		c.ExpiresAt = &e
	}
	return &c
}

func (r *stagedRecords) Listing(ctx context.Context, asset, seller domain.AccountID) (*domain.Listing, error) {
	if l, ok := r.listings[listingKey{asset, seller}]; ok {
		if l == nil {
			return nil, domain.ErrListingNotFound
		}
		return cloneListing(l), nil
	}
	return r.base.Listing(ctx, asset, seller)
}

func (r *stagedRecords) PutListing(ctx context.Context, l *domain.Listing) error {
	staged := cloneListing(l)
	r.listings[listingKey{l.AssetID, l.Seller}] = staged
	r.ops = append(r.ops, func(ctx context.Context) error {
		return r.base.PutListing(ctx, staged)
	})
	return nil
}

func (r *stagedRecords) DeleteListing(ctx context.Context, asset, seller domain.AccountID) error {
	r.listings[listingKey{asset, seller}] = nil
	r.ops = append(r.ops, func(ctx context.Context) error {
		return r.base.DeleteListing(ctx, asset, seller)
	})
	return nil
}

func (r *stagedRecords) Offering(ctx context.Context, vendor domain.AccountID, name string) (*domain.ServiceOffering, error) {
	if o, ok := r.offerings[offeringKey{vendor, name}]; ok {
		return cloneOffering(o), nil
	}
	return r.base.Offering(ctx, vendor, name)
}

func (r *stagedRecords) PutOffering(ctx context.Context, o *domain.ServiceOffering) error {
	staged := cloneOffering(o)
	r.offerings[offeringKey{o.Vendor, o.Name}] = staged
	r.ops = append(r.ops, func(ctx context.Context) error {
		return r.base.PutOffering(ctx, staged)
	})
	return nil
}
