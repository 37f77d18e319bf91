package domain

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"

	"filippo.io/edwards25519"
)

// Seed tags for the protocol's derived record accounts. Changing a tag
// changes every derived address, so these are part of the wire contract.
const (
	seedListing       = "listing"
	seedOffering      = "service_offering"
	seedOfferingGroup = "service_offering_group"
)

// capabilityDomain separates this protocol's derivations from any other
// sha256 use of the same seed material.
const capabilityDomain = "svc-marketplace:capability:v1"

// ErrNoCapabilityIndex is returned when no derivation index in 0..255 yields
// an off-curve token. With 256 candidates this is vanishingly rare.
var ErrNoCapabilityIndex = errors.New("no usable capability derivation index")

// Capability is an opaque 32-byte authorization token held by a protocol
// record. A record "signs" custody operations by presenting its token; the
// custody registry verifies the presented token against the one it stored at
// Approve time (or at asset creation, for authorities). Tokens are
// recomputable from fixed seed material plus the record's derivation index,
// and the index is chosen so the token can never coincide with a holder
// keypair's public key.
type Capability [32]byte

// AccountID reinterprets the token as the derived record's address. Derived
// record accounts are addressed by their capability, which is what makes the
// address reproducible without any stored key material.
func (c Capability) AccountID() AccountID {
	return AccountID(c)
}

// Matches reports whether a presented token equals c, in constant time.
func (c Capability) Matches(other Capability) bool {
	return subtle.ConstantTimeCompare(c[:], other[:]) == 1
}

// deriveAt computes the candidate token for a fixed derivation index.
func deriveAt(index byte, seeds ...[]byte) Capability {
	h := sha256.New()
	h.Write([]byte(capabilityDomain))
	for _, s := range seeds {
		h.Write(s)
	}
	h.Write([]byte{index})
	var c Capability
	h.Sum(c[:0])
	return c
}

// DeriveCapability scans derivation indices from 255 downward and returns the
// first candidate that does not decode as a valid edwards25519 point. Holder
// accounts are ed25519 public keys, so an off-curve token is guaranteed to
// have no matching private key: only code that knows the seed material can
// reproduce the authorization.
func DeriveCapability(seeds ...[]byte) (Capability, byte, error) {
	for i := 255; i >= 0; i-- {
		c := deriveAt(byte(i), seeds...)
		if _, err := new(edwards25519.Point).SetBytes(c[:]); err != nil {
			return c, byte(i), nil
		}
	}
	return Capability{}, 0, ErrNoCapabilityIndex
}
