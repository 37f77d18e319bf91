package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/liquidityos/service-marketplace-go/domain"
	"github.com/liquidityos/service-marketplace-go/metrics"
)

// Operation labels used for metrics and logging.
const (
	OpListAsset      = "list_asset"
	OpBuyListing     = "buy_listing"
	OpCreateOffering = "create_offering"
	OpBuyService     = "buy_service"
	OpUpdateListing  = "update_listing"
	OpUpdateOffering = "update_offering"
)

// Engine implements the marketplace settlement protocol: listing an asset
// under escrow, buying a listing, publishing a service offering and buying a
// service. Each operation executes as exactly one settlement unit on the
// Host.
type Engine struct {
	host           *Host
	custodyProgram domain.AccountID
	deposit        uint64           // storage deposit per listing, 0 disables
	escrow         domain.AccountID // protocol account holding deposits
	metrics        *metrics.Settlements
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithStorageDeposit makes sellers escrow a fixed deposit when listing,
// refunded when the listing closes on a successful sale.
func WithStorageDeposit(lamports uint64, escrow domain.AccountID) EngineOption {
	return func(e *Engine) {
		e.deposit = lamports
		e.escrow = escrow
	}
}

// WithMetrics attaches settlement counters.
func WithMetrics(m *metrics.Settlements) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine builds an engine settling against the custody collaborator
// identified by custodyProgram. Requests naming any other collaborator are
// rejected before any state is read.
func NewEngine(host *Host, custodyProgram domain.AccountID, opts ...EngineOption) *Engine {
	e := &Engine{
		host:           host,
		custodyProgram: custodyProgram,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// execute wraps Host.Execute with metrics and abort logging.
func (e *Engine) execute(ctx context.Context, op string, fn func(u *Unit) error) error {
	err := e.host.Execute(ctx, fn)
	if err != nil {
		slog.Warn("🏪 [Settlement] Unit aborted, no effects applied", "op", op, "err", err)
		if e.metrics != nil {
			e.metrics.Aborted.WithLabelValues(op).Inc()
		}
		return err
	}
	if e.metrics != nil {
		e.metrics.Committed.WithLabelValues(op).Inc()
	}
	return nil
}

// checkProgram defends against a caller substituting a look-alike custody
// collaborator.
func (e *Engine) checkProgram(program domain.AccountID) error {
	if program != e.custodyProgram {
		return fmt.Errorf("custody program %s: %w", program, domain.ErrInvalidCustodyProgram)
	}
	return nil
}

// ListAssetRequest lists an owned asset for sale under escrow.
type ListAssetRequest struct {
	Seller         domain.AccountID
	Asset          domain.AccountID
	Price          uint64
	ExpiresAt      *int64
	CustodyProgram domain.AccountID
}

// ListAsset escrows an asset: the new listing record is granted transfer and
// lock capability over the asset, the asset is locked under that capability,
// and the record is initialized, all in one atomic unit. The seller keeps nominal
// ownership until the sale.
func (e *Engine) ListAsset(ctx context.Context, req ListAssetRequest) (*domain.Listing, error) {
	var listing *domain.Listing
	err := e.execute(ctx, OpListAsset, func(u *Unit) error {
		if err := e.checkProgram(req.CustodyProgram); err != nil {
			return err
		}
		if _, err := u.Records().Listing(ctx, req.Asset, req.Seller); err == nil {
			return fmt.Errorf("asset %s seller %s: %w", req.Asset, req.Seller, domain.ErrListingExists)
		} else if !errors.Is(err, domain.ErrListingNotFound) {
			return err
		}

		asset, err := u.Custody().Asset(ctx, req.Asset)
		if err != nil {
			return err
		}
		if asset.Standard == domain.StandardSoulbound {
			return fmt.Errorf("list asset %s: %w", req.Asset, domain.ErrAssetSoulbound)
		}
		if asset.State != domain.StateUnlocked {
			return fmt.Errorf("list asset %s: %w", req.Asset, domain.ErrAssetLocked)
		}
		if asset.Owner != req.Seller {
			return fmt.Errorf("list asset %s: %w", req.Asset, domain.ErrNotAssetOwner)
		}

		l, err := domain.NewListing(req.Seller, req.Asset, req.Price, req.ExpiresAt, u.Now())
		if err != nil {
			return err
		}
		token := l.Capability()

		// Approve is authorized by the owner; lock by the listing record's
		// own derived capability.
		if err := u.Custody().Approve(ctx, req.Asset, req.Seller, token, domain.RoleTransfer|domain.RoleLock); err != nil {
			return err
		}
		if err := u.Custody().Lock(ctx, req.Asset, token); err != nil {
			return err
		}
		if e.deposit > 0 {
			if err := u.Ledger().Transfer(ctx, req.Seller, e.escrow, e.deposit); err != nil {
				return err
			}
		}
		if err := u.Records().PutListing(ctx, l); err != nil {
			return err
		}

		ev := newEvent(EventAssetListed, l.Price, u.Now().Unix())
		ev.Seller = req.Seller.String()
		ev.Asset = req.Asset.String()
		u.Emit(ev)
		listing = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("🏪 [Settlement] Asset listed",
		"asset", req.Asset,
		"seller", req.Seller,
		"price_sol", domain.LamportsToSOL(req.Price),
	)
	return listing, nil
}

// BuyListingRequest purchases a listed asset.
type BuyListingRequest struct {
	Buyer          domain.AccountID
	Seller         domain.AccountID
	Asset          domain.AccountID
	GroupAsset     domain.AccountID
	CustodyProgram domain.AccountID
}

// BuyListing settles a listed sale: payment buyer→seller, unlock, transfer
// to the buyer with the group revalidated, and the listing closed with its
// deposit reclaimed, all in one atomic unit. Any failure leaves the listing open
// exactly as it was.
func (e *Engine) BuyListing(ctx context.Context, req BuyListingRequest) error {
	err := e.execute(ctx, OpBuyListing, func(u *Unit) error {
		if err := e.checkProgram(req.CustodyProgram); err != nil {
			return err
		}
		l, err := u.Records().Listing(ctx, req.Asset, req.Seller)
		if err != nil {
			return err
		}
		if !l.Active(u.Now()) {
			return fmt.Errorf("asset %s: %w", req.Asset, domain.ErrListingNotActive)
		}
		asset, err := u.Custody().Asset(ctx, req.Asset)
		if err != nil {
			return err
		}
		if !asset.InGroup(req.GroupAsset) {
			return fmt.Errorf("asset %s group %s: %w", req.Asset, req.GroupAsset, domain.ErrInvalidGroup)
		}

		if err := u.Ledger().Transfer(ctx, req.Buyer, req.Seller, l.Price); err != nil {
			return err
		}
		token := l.Capability()
		if err := u.Custody().Unlock(ctx, req.Asset, token); err != nil {
			return err
		}
		if err := u.Custody().Transfer(ctx, req.Asset, token, req.Buyer, &req.GroupAsset); err != nil {
			return err
		}
		if err := u.Records().DeleteListing(ctx, req.Asset, req.Seller); err != nil {
			return err
		}
		if e.deposit > 0 {
			if err := u.Ledger().Transfer(ctx, e.escrow, req.Seller, e.deposit); err != nil {
				return err
			}
		}

		ev := newEvent(EventListingSold, l.Price, u.Now().Unix())
		ev.Buyer = req.Buyer.String()
		ev.Seller = req.Seller.String()
		ev.Asset = req.Asset.String()
		u.Emit(ev)
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("🏪 [Settlement] Listing sold",
		"asset", req.Asset,
		"buyer", req.Buyer,
		"seller", req.Seller,
	)
	return nil
}

// CreateOfferingRequest publishes a service offering.
type CreateOfferingRequest struct {
	Vendor       domain.AccountID
	Name         string
	MaxQuantity  uint64 // 0 = unlimited
	Price        uint64
	ExpiresAt    *int64
	Transferable bool

	// Optional group-asset extensions, written after group creation.
	Symbol             string
	Description        string
	URI                string
	ImageURI           string
	RoyaltyBasisPoints uint64
	Creators           []domain.CreatorShare
	TermsOfServiceURI  string

	CustodyProgram domain.AccountID
}

// CreateServiceOffering initializes the offering record and its group asset,
// then attaches the optional extensions in order, all authorized by the
// offering's derived capability over the vendor's payer role.
func (e *Engine) CreateServiceOffering(ctx context.Context, req CreateOfferingRequest) (*domain.ServiceOffering, error) {
	var offering *domain.ServiceOffering
	err := e.execute(ctx, OpCreateOffering, func(u *Unit) error {
		if err := e.checkProgram(req.CustodyProgram); err != nil {
			return err
		}
		if _, err := u.Records().Offering(ctx, req.Vendor, req.Name); err == nil {
			return fmt.Errorf("vendor %s offering %q: %w", req.Vendor, req.Name, domain.ErrOfferingExists)
		} else if !errors.Is(err, domain.ErrOfferingNotFound) {
			return err
		}

		o, err := domain.NewServiceOffering(req.Vendor, req.Name, req.MaxQuantity, req.Price, req.ExpiresAt, req.Transferable, u.Now())
		if err != nil {
			return err
		}
		if err := u.Records().PutOffering(ctx, o); err != nil {
			return err
		}

		// Group creation must precede the dependent extension writes.
		token := o.Capability()
		if err := u.Custody().Create(ctx, CreateAssetRequest{
			Asset:     o.AssetID,
			Owner:     req.Vendor,
			Name:      req.Name,
			Standard:  domain.StandardNonFungible,
			Mutable:   true,
			Authority: token,
		}); err != nil {
			return err
		}
		if err := u.Custody().WriteExtension(ctx, o.AssetID, token, domain.Extension{
			Kind:     domain.ExtensionGrouping,
			Grouping: &domain.Grouping{MaxSize: req.MaxQuantity},
		}); err != nil {
			return err
		}
		if req.Symbol != "" || req.Description != "" || req.URI != "" || req.ImageURI != "" {
			if err := u.Custody().WriteExtension(ctx, o.AssetID, token, domain.Extension{
				Kind: domain.ExtensionMetadata,
				Metadata: &domain.Metadata{
					Symbol:      req.Symbol,
					Description: req.Description,
					URI:         req.URI,
					ImageURI:    req.ImageURI,
				},
			}); err != nil {
				return err
			}
		}
		if req.RoyaltyBasisPoints > 0 || len(req.Creators) > 0 {
			if err := u.Custody().WriteExtension(ctx, o.AssetID, token, domain.Extension{
				Kind: domain.ExtensionRoyalties,
				Royalties: &domain.RoyaltyTerms{
					BasisPoints: req.RoyaltyBasisPoints,
					Creators:    req.Creators,
				},
			}); err != nil {
				return err
			}
		}
		if req.TermsOfServiceURI != "" {
			if err := u.Custody().WriteExtension(ctx, o.AssetID, token, domain.Extension{
				Kind: domain.ExtensionLink,
				Link: &domain.Link{Name: "terms_of_service", URI: req.TermsOfServiceURI},
			}); err != nil {
				return err
			}
		}

		ev := newEvent(EventOfferingCreated, o.Price, u.Now().Unix())
		ev.Vendor = req.Vendor.String()
		ev.Offering = req.Name
		ev.Asset = o.AssetID.String()
		u.Emit(ev)
		offering = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("🏪 [Settlement] Service offering created",
		"vendor", req.Vendor,
		"offering", req.Name,
		"max_quantity", req.MaxQuantity,
		"price_sol", domain.LamportsToSOL(req.Price),
	)
	return offering, nil
}

// BuyServiceRequest purchases one unit of a service offering.
type BuyServiceRequest struct {
	Buyer          domain.AccountID
	Vendor         domain.AccountID
	OfferingName   string
	NewAsset       domain.AccountID // address for the freshly minted asset
	CustodyProgram domain.AccountID
}

// BuyService settles a service sale: mint a new asset to the buyer under the
// offering's group, pay the vendor, then IncrementSold as the final
// authoritative gate. Mint and payment are staged, so a gate failure
// discards them whole: a mint exceeding the configured quantity can never
// survive.
func (e *Engine) BuyService(ctx context.Context, req BuyServiceRequest) error {
	err := e.execute(ctx, OpBuyService, func(u *Unit) error {
		if err := e.checkProgram(req.CustodyProgram); err != nil {
			return err
		}
		o, err := u.Records().Offering(ctx, req.Vendor, req.OfferingName)
		if err != nil {
			return err
		}

		standard := domain.StandardNonFungible
		if !o.Transferable {
			standard = domain.StandardSoulbound
		}
		token := o.Capability()
		if err := u.Custody().Create(ctx, CreateAssetRequest{
			Asset:     req.NewAsset,
			Owner:     req.Buyer,
			Group:     &o.AssetID,
			Name:      o.Name,
			Standard:  standard,
			Mutable:   true,
			Authority: token,
		}); err != nil {
			return err
		}
		if err := u.Ledger().Transfer(ctx, req.Buyer, req.Vendor, o.Price); err != nil {
			return err
		}
		if err := o.IncrementSold(u.Now()); err != nil {
			return err
		}
		if err := u.Records().PutOffering(ctx, o); err != nil {
			return err
		}

		ev := newEvent(EventServiceSold, o.Price, u.Now().Unix())
		ev.Buyer = req.Buyer.String()
		ev.Vendor = req.Vendor.String()
		ev.Offering = o.Name
		ev.Asset = req.NewAsset.String()
		u.Emit(ev)
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("🏪 [Settlement] Service sold",
		"vendor", req.Vendor,
		"offering", req.OfferingName,
		"buyer", req.Buyer,
		"minted_asset", req.NewAsset,
	)
	return nil
}

// UpdateListingPrice overwrites a listing's price. Only the seller may call.
func (e *Engine) UpdateListingPrice(ctx context.Context, caller, seller, asset domain.AccountID, newPrice uint64) error {
	return e.execute(ctx, OpUpdateListing, func(u *Unit) error {
		if caller != seller {
			return fmt.Errorf("caller %s: %w", caller, domain.ErrNotAssetOwner)
		}
		l, err := u.Records().Listing(ctx, asset, seller)
		if err != nil {
			return err
		}
		l.UpdatePrice(newPrice)
		return u.Records().PutListing(ctx, l)
	})
}

// SetOfferingActive toggles an offering on or off sale. Only the vendor may
// call.
func (e *Engine) SetOfferingActive(ctx context.Context, caller, vendor domain.AccountID, name string, active bool) error {
	return e.updateOffering(ctx, caller, vendor, name, func(o *domain.ServiceOffering) {
		if active {
			o.Activate()
		} else {
			o.Deactivate()
		}
	})
}

// UpdateOfferingPrice overwrites an offering's price. Only the vendor may
// call.
func (e *Engine) UpdateOfferingPrice(ctx context.Context, caller, vendor domain.AccountID, name string, newPrice uint64) error {
	return e.updateOffering(ctx, caller, vendor, name, func(o *domain.ServiceOffering) {
		o.UpdatePrice(newPrice)
	})
}

// UpdateOfferingMaxQuantity overwrites an offering's quantity cap. Only the
// vendor may call.
func (e *Engine) UpdateOfferingMaxQuantity(ctx context.Context, caller, vendor domain.AccountID, name string, newQuantity uint64) error {
	return e.updateOffering(ctx, caller, vendor, name, func(o *domain.ServiceOffering) {
		o.UpdateMaxQuantity(newQuantity)
	})
}

func (e *Engine) updateOffering(ctx context.Context, caller, vendor domain.AccountID, name string, mutate func(*domain.ServiceOffering)) error {
	return e.execute(ctx, OpUpdateOffering, func(u *Unit) error {
		if caller != vendor {
			return fmt.Errorf("caller %s: %w", caller, domain.ErrNotVendor)
		}
		o, err := u.Records().Offering(ctx, vendor, name)
		if err != nil {
			return err
		}
		mutate(o)
		return u.Records().PutOffering(ctx, o)
	})
}
