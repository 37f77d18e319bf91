package settlement

import (
	"context"

	"github.com/liquidityos/service-marketplace-go/domain"
)

// CreateAssetRequest asks the custody collaborator to mint a new asset.
type CreateAssetRequest struct {
	Asset     domain.AccountID  // address of the new asset
	Owner     domain.AccountID  // initial owner
	Group     *domain.AccountID // group membership, nil for group assets
	Name      string
	Standard  domain.Standard
	Mutable   bool
	Authority domain.Capability // capability allowed to mutate the asset
}

// CustodyClient is the port to the external asset custody collaborator. It
// owns every asset record; the settlement core holds no copy of custody
// state and re-reads it through this interface at each decision point.
// Mutating calls present a capability token which the collaborator verifies
// against the token it holds for the asset's delegate or authority.
type CustodyClient interface {
	// Asset returns the freshest committed view of an asset record.
	Asset(ctx context.Context, id domain.AccountID) (*domain.Asset, error)

	// Create mints a new asset. Minting into a group requires the group
	// asset's authority capability.
	Create(ctx context.Context, req CreateAssetRequest) error

	// Approve records a delegate capability on the asset, authorized by the
	// current owner.
	Approve(ctx context.Context, asset, owner domain.AccountID, delegate domain.Capability, roles domain.DelegateRoles) error

	// Lock freezes the asset against transfer. Requires a delegate token
	// holding RoleLock.
	Lock(ctx context.Context, asset domain.AccountID, auth domain.Capability) error

	// Unlock releases the lock. Same authorization as Lock.
	Unlock(ctx context.Context, asset domain.AccountID, auth domain.Capability) error

	// Transfer moves ownership to recipient, revalidating group membership
	// when a group is given. Requires a delegate token holding RoleTransfer;
	// clears the delegate on success.
	Transfer(ctx context.Context, asset domain.AccountID, auth domain.Capability, recipient domain.AccountID, group *domain.AccountID) error

	// WriteExtension attaches metadata, royalty terms, links or grouping to
	// an asset, authorized by the asset's authority capability.
	WriteExtension(ctx context.Context, asset domain.AccountID, auth domain.Capability, ext domain.Extension) error
}
