package pebblestore

import (
	"encoding/binary"
	"fmt"

	"github.com/liquidityos/service-marketplace-go/domain"
)

// Record-kind tags. The tag leads every persisted record so layouts can be
// versioned independently.
const (
	tagListing  byte = 0x01
	tagOffering byte = 0x02
)

const (
	listingRecordSize  = 1 + 32 + 32 + 8 + 8 + 1 + 8 + 1
	offeringRecordSize = 1 + 32 + 32 + 2 + 8 + 8 + 1 + 8 + 8 + 1 + 8 + 1 + 1
)

// listing layout: tag, seller 32, asset 32, price 8, created_at 8,
// expiry presence 1, expiry 8, index 1. Big-endian throughout.
func encodeListing(l *domain.Listing) []byte {
	buf := make([]byte, listingRecordSize)
	buf[0] = tagListing
	copy(buf[1:33], l.Seller[:])
	copy(buf[33:65], l.AssetID[:])
	binary.BigEndian.PutUint64(buf[65:73], l.Price)
	binary.BigEndian.PutUint64(buf[73:81], uint64(l.CreatedAt))
	if l.ExpiresAt != nil {
		buf[81] = 1
		binary.BigEndian.PutUint64(buf[82:90], uint64(*l.ExpiresAt))
	}
	buf[90] = l.Index
	return buf
}

func decodeListing(b []byte) (*domain.Listing, error) {
	if len(b) != listingRecordSize || b[0] != tagListing {
		return nil, fmt.Errorf("invalid listing record (len=%d)", len(b))
	}
	l := &domain.Listing{
		Price:     binary.BigEndian.Uint64(b[65:73]),
		CreatedAt: int64(binary.BigEndian.Uint64(b[73:81])),
		Index:     b[90],
	}
	copy(l.Seller[:], b[1:33])
	copy(l.AssetID[:], b[33:65])
	if b[81] == 1 {
		e := int64(binary.BigEndian.Uint64(b[82:90]))
		l.ExpiresAt = &e
	}
	return l, nil
}

// offering layout: tag, vendor 32, group asset 32, kind 2, num_sold 8,
// max_quantity 8, active 1, price 8, created_at 8, expiry presence 1,
// expiry 8, index 1, transferable 1. The offering name lives in the key.
func encodeOffering(o *domain.ServiceOffering) []byte {
	buf := make([]byte, offeringRecordSize)
	buf[0] = tagOffering
	copy(buf[1:33], o.Vendor[:])
	copy(buf[33:65], o.AssetID[:])
	binary.BigEndian.PutUint16(buf[65:67], uint16(o.Kind))
	binary.BigEndian.PutUint64(buf[67:75], o.NumSold)
	binary.BigEndian.PutUint64(buf[75:83], o.MaxQuantity)
	if o.Active {
		buf[83] = 1
	}
	binary.BigEndian.PutUint64(buf[84:92], o.Price)
	binary.BigEndian.PutUint64(buf[92:100], uint64(o.CreatedAt))
	if o.ExpiresAt != nil {
		buf[100] = 1
		binary.BigEndian.PutUint64(buf[101:109], uint64(*o.ExpiresAt))
	}
	buf[109] = o.Index
	if o.Transferable {
		buf[110] = 1
	}
	return buf
}

func decodeOffering(b []byte, name string) (*domain.ServiceOffering, error) {
	if len(b) != offeringRecordSize || b[0] != tagOffering {
		return nil, fmt.Errorf("invalid offering record (len=%d)", len(b))
	}
	o := &domain.ServiceOffering{
		Kind:         domain.ServiceKind(binary.BigEndian.Uint16(b[65:67])),
		NumSold:      binary.BigEndian.Uint64(b[67:75]),
		MaxQuantity:  binary.BigEndian.Uint64(b[75:83]),
		Active:       b[83] == 1,
		Price:        binary.BigEndian.Uint64(b[84:92]),
		CreatedAt:    int64(binary.BigEndian.Uint64(b[92:100])),
		Index:        b[109],
		Transferable: b[110] == 1,
		Name:         name,
	}
	copy(o.Vendor[:], b[1:33])
	copy(o.AssetID[:], b[33:65])
	if b[100] == 1 {
		e := int64(binary.BigEndian.Uint64(b[101:109]))
		o.ExpiresAt = &e
	}
	return o, nil
}
