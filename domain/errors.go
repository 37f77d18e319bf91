package domain

import "errors"

// Settlement error taxonomy. Every precondition failure aborts the whole
// settlement unit; callers match with errors.Is.
var (
	// ErrServiceNotActive: the offering's active flag is false or the
	// offering has expired.
	ErrServiceNotActive = errors.New("service is not active")

	// ErrSoldOut: the offering's configured quantity is exhausted.
	ErrSoldOut = errors.New("sold out")

	// ErrListingNotActive: the listing has expired.
	ErrListingNotActive = errors.New("listing is not active")

	// ErrInvalidCustodyProgram: the caller addressed a custody collaborator
	// other than the one this engine settles against.
	ErrInvalidCustodyProgram = errors.New("invalid custody program")

	// ErrAssetSoulbound: soulbound assets cannot be listed or transferred.
	ErrAssetSoulbound = errors.New("asset is soulbound")

	// ErrAssetLocked: the asset's custody lock forbids the operation.
	ErrAssetLocked = errors.New("asset is locked")

	// ErrInvalidGroup: the asset's group does not match the expected group
	// asset.
	ErrInvalidGroup = errors.New("invalid group")

	// ErrNotAssetOwner: the caller is not the recorded owner of the asset.
	ErrNotAssetOwner = errors.New("caller is not the asset owner")

	// ErrNotVendor: the caller is not the vendor of the offering.
	ErrNotVendor = errors.New("caller is not the offering vendor")

	ErrListingExists   = errors.New("listing already exists")
	ErrListingNotFound = errors.New("listing not found")

	ErrOfferingExists   = errors.New("service offering already exists")
	ErrOfferingNotFound = errors.New("service offering not found")

	ErrAssetExists   = errors.New("asset already exists")
	ErrAssetNotFound = errors.New("asset not found")

	// ErrInsufficientFunds: the payer's balance cannot cover the transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnauthorized: the presented capability token does not match the
	// token held by the record being acted upon.
	ErrUnauthorized = errors.New("capability token mismatch")
)
