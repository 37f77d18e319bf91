package domain

import (
	"fmt"
	"time"
)

// ServiceKind is the sale model of an offering.
type ServiceKind uint16

const (
	// ServiceOneTime is the single supported kind: each sale mints one
	// redeemable asset.
	ServiceOneTime ServiceKind = iota
)

// ServiceOffering is a repeatable, quantity-limited sale definition, one per
// (vendor, offering name). Offerings are never deleted; NumSold only moves
// forward and only by a successful purchase.
type ServiceOffering struct {
	Vendor       AccountID
	AssetID      AccountID // the offering's group asset
	Kind         ServiceKind
	NumSold      uint64
	MaxQuantity  uint64 // 0 = unlimited
	Active       bool
	Price        uint64 // lamports
	CreatedAt    int64  // unix seconds
	ExpiresAt    *int64 // nil = never expires
	Index        byte   // capability derivation index
	Transferable bool   // false mints soulbound assets

	// Name is the offering's key component. It lives in the storage key,
	// not in the fixed record layout, and seeds the capability derivation.
	Name string
}

// NewServiceOffering builds an offering record for (vendor, name), deriving
// the record capability and the address of its group asset.
func NewServiceOffering(vendor AccountID, name string, maxQuantity, price uint64, expiresAt *int64, transferable bool, now time.Time) (*ServiceOffering, error) {
	token, index, err := DeriveCapability([]byte(seedOffering), vendor[:], []byte(name))
	if err != nil {
		return nil, fmt.Errorf("derive offering capability: %w", err)
	}
	addr := token.AccountID()
	groupCap, _, err := DeriveCapability([]byte(seedOfferingGroup), addr[:])
	if err != nil {
		return nil, fmt.Errorf("derive offering group: %w", err)
	}
	return &ServiceOffering{
		Vendor:       vendor,
		AssetID:      groupCap.AccountID(),
		Kind:         ServiceOneTime,
		NumSold:      0,
		MaxQuantity:  maxQuantity,
		Active:       true,
		Price:        price,
		CreatedAt:    now.Unix(),
		ExpiresAt:    expiresAt,
		Index:        index,
		Transferable: transferable,
		Name:         name,
	}, nil
}

// Capability recomputes the record's authorization token.
func (o *ServiceOffering) Capability() Capability {
	return deriveAt(o.Index, []byte(seedOffering), o.Vendor[:], []byte(o.Name))
}

// Address is the derived account the offering record lives at.
func (o *ServiceOffering) Address() AccountID {
	return o.Capability().AccountID()
}

// Expired reports whether the offering's expiry has passed.
func (o *ServiceOffering) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && now.Unix() >= *o.ExpiresAt
}

// SoldOut reports whether a nonzero maximum quantity is exhausted.
func (o *ServiceOffering) SoldOut() bool {
	return o.MaxQuantity > 0 && o.NumSold >= o.MaxQuantity
}

// ActiveForPurchase reports whether a buy can currently succeed.
func (o *ServiceOffering) ActiveForPurchase(now time.Time) bool {
	return o.Active && !o.Expired(now) && !o.SoldOut()
}

// IncrementSold records one sale. It is the single serialization point
// against overselling: callers stage mint and payment first and rely on this
// final check to roll the whole unit back. NumSold is untouched on failure.
func (o *ServiceOffering) IncrementSold(now time.Time) error {
	if !o.Active || o.Expired(now) {
		return ErrServiceNotActive
	}
	if o.SoldOut() {
		return ErrSoldOut
	}
	o.NumSold++
	return nil
}

// Deactivate takes the offering off sale. Vendor authorization is the
// caller's responsibility.
func (o *ServiceOffering) Deactivate() {
	o.Active = false
}

// Activate puts the offering back on sale.
func (o *ServiceOffering) Activate() {
	o.Active = true
}

// UpdatePrice overwrites the sale price.
func (o *ServiceOffering) UpdatePrice(newPrice uint64) {
	o.Price = newPrice
}

// UpdateMaxQuantity overwrites the quantity cap (0 = unlimited).
func (o *ServiceOffering) UpdateMaxQuantity(newQuantity uint64) {
	o.MaxQuantity = newQuantity
}
