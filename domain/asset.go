package domain

// Standard classifies the transferability of an asset.
type Standard uint8

const (
	// StandardNonFungible assets can change hands freely.
	StandardNonFungible Standard = iota
	// StandardSoulbound assets are permanently bound to their first owner
	// and can never be listed or transferred.
	StandardSoulbound
)

func (s Standard) String() string {
	switch s {
	case StandardNonFungible:
		return "NON_FUNGIBLE"
	case StandardSoulbound:
		return "SOULBOUND"
	default:
		return "UNKNOWN"
	}
}

// LockState is the custody lock on an asset. A locked asset cannot be
// transferred until its lock holder unlocks it.
type LockState uint8

const (
	StateUnlocked LockState = iota
	StateLocked
)

// DelegateRoles is the set of custody operations a delegate may authorize.
type DelegateRoles uint8

const (
	RoleTransfer DelegateRoles = 1 << iota
	RoleLock
	RoleBurn
)

// Has reports whether every role in want is present.
func (r DelegateRoles) Has(want DelegateRoles) bool {
	return r&want == want
}

// Delegate is a capability grant recorded on an asset by its owner.
type Delegate struct {
	Token Capability
	Roles DelegateRoles
}

// Asset is a read-only view of a custody-owned asset record. The settlement
// core never persists these fields; it re-reads them from the custody
// collaborator at every decision point.
type Asset struct {
	ID        AccountID
	Owner     AccountID
	Group     *AccountID // nil for group assets themselves
	Name      string
	Standard  Standard
	State     LockState
	Mutable   bool
	Authority Capability // capability that may mutate the asset and mint into it
	Delegate  *Delegate  // capability grant, cleared on transfer
}

// InGroup reports whether the asset belongs to the given group asset.
func (a *Asset) InGroup(group AccountID) bool {
	return a.Group != nil && *a.Group == group
}

// ExtensionKind identifies an optional custody-side extension record.
type ExtensionKind uint8

const (
	ExtensionMetadata ExtensionKind = iota + 1
	ExtensionRoyalties
	ExtensionLink
	ExtensionGrouping
)

// Metadata carries the descriptive fields attached to a group asset.
type Metadata struct {
	Symbol      string
	Description string
	URI         string
	ImageURI    string
}

// CreatorShare is one creator's slice of the royalty split.
type CreatorShare struct {
	Address AccountID
	Share   uint8 // percentage, creators must sum to 100
}

// RoyaltyTerms records a secondary-sale royalty. The marketplace records the
// terms; it does not enforce them.
type RoyaltyTerms struct {
	BasisPoints uint64
	Creators    []CreatorShare
}

// Link is a named external reference, e.g. a terms-of-service document.
type Link struct {
	Name string
	URI  string
}

// Grouping marks a group asset and caps its membership (0 = unlimited).
type Grouping struct {
	MaxSize uint64
}

// Extension is one extension write consumed by the custody collaborator.
// Exactly one payload field matching Kind is set.
type Extension struct {
	Kind      ExtensionKind
	Metadata  *Metadata
	Royalties *RoyaltyTerms
	Link      *Link
	Grouping  *Grouping
}
