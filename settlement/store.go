package settlement

import (
	"context"

	"github.com/liquidityos/service-marketplace-go/domain"
)

// RecordStore persists the protocol's own records. Listings are keyed by
// (asset, seller); offerings by (vendor, name). Lookups on missing records
// fail with domain.ErrListingNotFound / domain.ErrOfferingNotFound.
type RecordStore interface {
	Listing(ctx context.Context, asset, seller domain.AccountID) (*domain.Listing, error)
	PutListing(ctx context.Context, l *domain.Listing) error
	DeleteListing(ctx context.Context, asset, seller domain.AccountID) error

	Offering(ctx context.Context, vendor domain.AccountID, name string) (*domain.ServiceOffering, error)
	PutOffering(ctx context.Context, o *domain.ServiceOffering) error
}

// Outbox receives one event per committed settlement unit. Appends happen
// inside the unit's flush, so an event exists iff its settlement committed.
type Outbox interface {
	Append(ctx context.Context, ev Event) error
}
