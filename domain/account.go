package domain

import (
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// AccountID is the 32-byte identity of every participant and record in the
// marketplace: buyers, sellers, vendors, assets, group assets and the
// protocol's own derived record accounts.
type AccountID [32]byte

// NewAccountID returns a fresh random identity. Used by demos and tests to
// stand in for externally generated keys.
func NewAccountID() AccountID {
	var id AccountID
	if _, err := rand.Read(id[:]); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	return id
}

// AccountIDFromBase58 parses the canonical base58 rendering of an identity.
func AccountIDFromBase58(s string) (AccountID, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return AccountID{}, fmt.Errorf("decode account id: %w", err)
	}
	if len(raw) != len(AccountID{}) {
		return AccountID{}, fmt.Errorf("account id must be 32 bytes, got %d", len(raw))
	}
	var id AccountID
	copy(id[:], raw)
	return id, nil
}

// String renders the identity in base58, the form used in logs and config.
func (id AccountID) String() string {
	return base58.Encode(id[:])
}

// IsZero reports whether the identity is the all-zero placeholder.
func (id AccountID) IsZero() bool {
	return id == AccountID{}
}
