package settlement

import (
	"github.com/liquidityos/service-marketplace-go/domain"
	"github.com/shopspring/decimal"
)

// EventKind names the settlement that committed.
type EventKind string

const (
	EventAssetListed     EventKind = "ASSET_LISTED"
	EventListingSold     EventKind = "LISTING_SOLD"
	EventOfferingCreated EventKind = "OFFERING_CREATED"
	EventServiceSold     EventKind = "SERVICE_SOLD"
)

// Event is the record published for every committed settlement unit. It is
// what downstream consumers (via the Kafka broadcaster) see; nothing is ever
// published for an aborted unit.
type Event struct {
	Kind     EventKind       `json:"kind"`
	Buyer    string          `json:"buyer,omitempty"`
	Seller   string          `json:"seller,omitempty"`
	Vendor   string          `json:"vendor,omitempty"`
	Asset    string          `json:"asset,omitempty"`
	Offering string          `json:"offering,omitempty"`
	Lamports uint64          `json:"lamports"`
	SOL      decimal.Decimal `json:"sol"`
	At       int64           `json:"at"` // unix seconds
}

// newEvent stamps the common amount fields.
func newEvent(kind EventKind, lamports uint64, at int64) Event {
	return Event{
		Kind:     kind,
		Lamports: lamports,
		SOL:      domain.LamportsToSOL(lamports),
		At:       at,
	}
}
