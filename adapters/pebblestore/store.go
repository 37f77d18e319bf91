// Package pebblestore persists marketplace records and the settlement event
// outbox in a pebble key-value store.
package pebblestore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"github.com/liquidityos/service-marketplace-go/domain"
	"github.com/liquidityos/service-marketplace-go/settlement"
)

// Outbox event states.
type eventState uint8

const (
	stateNew eventState = iota
	stateSent
	stateAcked
)

// Store implements settlement.RecordStore and settlement.Outbox on a single
// pebble database. Key spaces: listing/<asset><seller>, offering/<vendor><name>,
// outbox/<seq>.
type Store struct {
	db   *pebble.DB
	next atomic.Uint64 // next outbox sequence
}

// Open opens (or creates) the store under dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble store: %w", err)
	}
	s := &Store{db: db}
	if err := s.recoverSeq(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// -------------------- keys --------------------

func listingKey(asset, seller domain.AccountID) []byte {
	k := make([]byte, 0, 8+64)
	k = append(k, "listing/"...)
	k = append(k, asset[:]...)
	k = append(k, seller[:]...)
	return k
}

func offeringKey(vendor domain.AccountID, name string) []byte {
	k := make([]byte, 0, 9+32+len(name))
	k = append(k, "offering/"...)
	k = append(k, vendor[:]...)
	k = append(k, name...)
	return k
}

func outboxKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("outbox/%020d", seq))
}

// -------------------- records --------------------

func (s *Store) Listing(ctx context.Context, asset, seller domain.AccountID) (*domain.Listing, error) {
	val, closer, err := s.db.Get(listingKey(asset, seller))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("asset %s seller %s: %w", asset, seller, domain.ErrListingNotFound)
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return decodeListing(val)
}

func (s *Store) PutListing(ctx context.Context, l *domain.Listing) error {
	return s.db.Set(listingKey(l.AssetID, l.Seller), encodeListing(l), pebble.Sync)
}

func (s *Store) DeleteListing(ctx context.Context, asset, seller domain.AccountID) error {
	return s.db.Delete(listingKey(asset, seller), pebble.Sync)
}

func (s *Store) Offering(ctx context.Context, vendor domain.AccountID, name string) (*domain.ServiceOffering, error) {
	val, closer, err := s.db.Get(offeringKey(vendor, name))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("vendor %s offering %q: %w", vendor, name, domain.ErrOfferingNotFound)
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return decodeOffering(val, name)
}

func (s *Store) PutOffering(ctx context.Context, o *domain.ServiceOffering) error {
	return s.db.Set(offeringKey(o.Vendor, o.Name), encodeOffering(o), pebble.Sync)
}

// -------------------- outbox --------------------

// outbox value: [state:1][seq:8][json payload]
func encodeOutbox(state eventState, seq uint64, payload []byte) []byte {
	buf := make([]byte, 9+len(payload))
	buf[0] = byte(state)
	binary.BigEndian.PutUint64(buf[1:9], seq)
	copy(buf[9:], payload)
	return buf
}

func decodeOutbox(b []byte) (eventState, uint64, []byte, error) {
	if len(b) < 9 {
		return 0, 0, nil, errors.New("invalid outbox record length")
	}
	return eventState(b[0]), binary.BigEndian.Uint64(b[1:9]), b[9:], nil
}

// recoverSeq scans the outbox to resume the sequence counter after restart.
func (s *Store) recoverSeq() error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("outbox/"),
		UpperBound: []byte("outbox/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	if iter.Last() && iter.Valid() {
		_, seq, _, err := decodeOutbox(iter.Value())
		if err != nil {
			return err
		}
		s.next.Store(seq + 1)
	}
	return iter.Error()
}

// Append persists a committed settlement event in NEW state.
func (s *Store) Append(ctx context.Context, ev settlement.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	seq := s.next.Add(1) - 1
	return s.db.Set(outboxKey(seq), encodeOutbox(stateNew, seq, payload), pebble.Sync)
}

// ScanPending iterates unacked events in sequence order. Used by the
// broadcaster's replay loop.
func (s *Store) ScanPending(fn func(seq uint64, payload []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("outbox/"),
		UpperBound: []byte("outbox/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		state, seq, payload, err := decodeOutbox(iter.Value())
		if err != nil {
			return err
		}
		if state == stateAcked {
			continue
		}
		// Copy: the payload aliases iterator memory.
		p := make([]byte, len(payload))
		copy(p, payload)
		if err := fn(seq, p); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *Store) setState(seq uint64, state eventState) error {
	val, closer, err := s.db.Get(outboxKey(seq))
	if err != nil {
		return err
	}
	_, _, payload, err := decodeOutbox(val)
	if err != nil {
		closer.Close()
		return err
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	closer.Close()
	return s.db.Set(outboxKey(seq), encodeOutbox(state, seq, p), pebble.Sync)
}

// MarkSent records that publication of an event has been attempted.
func (s *Store) MarkSent(seq uint64) error {
	return s.setState(seq, stateSent)
}

// MarkAcked records that the broker acknowledged the event.
func (s *Store) MarkAcked(seq uint64) error {
	return s.setState(seq, stateAcked)
}
