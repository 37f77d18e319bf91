package domain

import (
	"fmt"
	"time"
)

// Listing is the escrow record for one asset offered for sale. There is at
// most one listing per (asset, seller) pair; the record holds the
// transfer/lock capability over the asset for its whole lifetime and is
// closed only by a successful purchase, never by expiry.
type Listing struct {
	Seller    AccountID
	AssetID   AccountID
	Price     uint64 // lamports, fixed at creation, changed only via UpdatePrice
	CreatedAt int64  // unix seconds
	ExpiresAt *int64 // nil = never expires
	Index     byte   // capability derivation index
}

// NewListing builds the escrow record for (asset, seller), deriving the
// record's capability index from the protocol seeds.
func NewListing(seller, asset AccountID, price uint64, expiresAt *int64, now time.Time) (*Listing, error) {
	_, index, err := DeriveCapability([]byte(seedListing), asset[:], seller[:])
	if err != nil {
		return nil, fmt.Errorf("derive listing capability: %w", err)
	}
	return &Listing{
		Seller:    seller,
		AssetID:   asset,
		Price:     price,
		CreatedAt: now.Unix(),
		ExpiresAt: expiresAt,
		Index:     index,
	}, nil
}

// Capability recomputes the record's authorization token.
func (l *Listing) Capability() Capability {
	return deriveAt(l.Index, []byte(seedListing), l.AssetID[:], l.Seller[:])
}

// Address is the derived account the listing record lives at.
func (l *Listing) Address() AccountID {
	return l.Capability().AccountID()
}

func (l *Listing) expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.Unix() >= *l.ExpiresAt
}

// Active reports whether the listing can still be bought. A listing's only
// binary state is exists vs closed; expiry blocks purchase without closing
// the record.
func (l *Listing) Active(now time.Time) bool {
	return !l.expired(now)
}

// UpdatePrice overwrites the asking price. No bounds beyond uint64; callers
// are responsible for sane values.
func (l *Listing) UpdatePrice(newPrice uint64) {
	l.Price = newPrice
}
