package domain

import (
	"errors"
	"testing"
	"time"
)

func newTestOffering(t *testing.T, maxQuantity uint64, expiresAt *int64, now time.Time) *ServiceOffering {
	t.Helper()
	o, err := NewServiceOffering(NewAccountID(), "test-offering", maxQuantity, 1_000_000_000, expiresAt, true, now)
	if err != nil {
		t.Fatalf("NewServiceOffering: %v", err)
	}
	return o
}

func TestNewServiceOfferingDefaults(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	o := newTestOffering(t, 5, nil, now)

	if o.Kind != ServiceOneTime {
		t.Errorf("kind = %v, want ServiceOneTime", o.Kind)
	}
	if o.NumSold != 0 {
		t.Errorf("num_sold = %d, want 0", o.NumSold)
	}
	if !o.Active {
		t.Error("new offering must start active")
	}
	if o.CreatedAt != now.Unix() {
		t.Errorf("created_at = %d, want %d", o.CreatedAt, now.Unix())
	}
	if o.AssetID.IsZero() {
		t.Error("group asset address must be derived")
	}
}

// ActiveForPurchase must equal active ∧ ¬expired ∧ ¬soldOut after every
// mutating operation.
func checkPredicateAlgebra(t *testing.T, o *ServiceOffering, now time.Time) {
	t.Helper()
	want := o.Active && !o.Expired(now) && !o.SoldOut()
	if got := o.ActiveForPurchase(now); got != want {
		t.Errorf("ActiveForPurchase = %v, want %v (active=%v expired=%v soldOut=%v)",
			got, want, o.Active, o.Expired(now), o.SoldOut())
	}
}

func TestOfferingPredicateAlgebra(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	expiry := now.Add(time.Hour).Unix()
	o := newTestOffering(t, 2, &expiry, now)

	checkPredicateAlgebra(t, o, now)

	if err := o.IncrementSold(now); err != nil {
		t.Fatalf("IncrementSold: %v", err)
	}
	checkPredicateAlgebra(t, o, now)

	o.Deactivate()
	checkPredicateAlgebra(t, o, now)
	o.Activate()
	checkPredicateAlgebra(t, o, now)

	o.UpdatePrice(42)
	checkPredicateAlgebra(t, o, now)

	o.UpdateMaxQuantity(1)
	checkPredicateAlgebra(t, o, now) // now sold out

	// Past expiry.
	checkPredicateAlgebra(t, o, now.Add(2*time.Hour))
}

func TestOfferingExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	expiry := now.Add(time.Minute).Unix()
	o := newTestOffering(t, 0, &expiry, now)

	if o.Expired(now) {
		t.Error("not yet expired")
	}
	// Expiry is inclusive: now == expires_at means expired.
	if !o.Expired(time.Unix(expiry, 0)) {
		t.Error("offering must be expired at the expiry instant")
	}

	unlimited := newTestOffering(t, 0, nil, now)
	if unlimited.Expired(now.Add(1000 * time.Hour)) {
		t.Error("offering without expiry never expires")
	}
}

func TestOfferingSoldOut(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	unlimited := newTestOffering(t, 0, nil, now)
	unlimited.NumSold = 1 << 40
	if unlimited.SoldOut() {
		t.Error("max_quantity=0 can never sell out")
	}

	limited := newTestOffering(t, 3, nil, now)
	limited.NumSold = 2
	if limited.SoldOut() {
		t.Error("not sold out below max")
	}
	limited.NumSold = 3
	if !limited.SoldOut() {
		t.Error("sold out at max")
	}
}

func TestIncrementSoldInactive(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	o := newTestOffering(t, 5, nil, now)
	o.Deactivate()

	err := o.IncrementSold(now)
	if !errors.Is(err, ErrServiceNotActive) {
		t.Fatalf("err = %v, want ErrServiceNotActive", err)
	}
	if o.NumSold != 0 {
		t.Errorf("num_sold = %d, must be unchanged on failure", o.NumSold)
	}
}

func TestIncrementSoldExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	expiry := now.Add(time.Minute).Unix()
	o := newTestOffering(t, 5, &expiry, now)

	err := o.IncrementSold(now.Add(time.Hour))
	if !errors.Is(err, ErrServiceNotActive) {
		t.Fatalf("err = %v, want ErrServiceNotActive", err)
	}
	if o.NumSold != 0 {
		t.Errorf("num_sold = %d, must be unchanged on failure", o.NumSold)
	}
}

func TestIncrementSoldSoldOut(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	o := newTestOffering(t, 2, nil, now)
	o.NumSold = 2

	err := o.IncrementSold(now)
	if !errors.Is(err, ErrSoldOut) {
		t.Fatalf("err = %v, want ErrSoldOut", err)
	}
	if o.NumSold != 2 {
		t.Errorf("num_sold = %d, must be unchanged on failure", o.NumSold)
	}
}

func TestIncrementSoldRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	o := newTestOffering(t, 3, nil, now)

	for i := uint64(1); i <= 3; i++ {
		if err := o.IncrementSold(now); err != nil {
			t.Fatalf("sale %d: %v", i, err)
		}
		if o.NumSold != i {
			t.Fatalf("num_sold = %d after sale %d", o.NumSold, i)
		}
	}
	if o.ActiveForPurchase(now) {
		t.Error("offering must be inactive once sold out")
	}
	if err := o.IncrementSold(now); !errors.Is(err, ErrSoldOut) {
		t.Fatalf("fourth sale err = %v, want ErrSoldOut", err)
	}
	if o.NumSold != 3 {
		t.Errorf("num_sold = %d after failed fourth sale, want 3", o.NumSold)
	}
}

func TestOfferingCapabilityRecompute(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	o := newTestOffering(t, 0, nil, now)

	token := o.Capability()
	if !token.Matches(o.Capability()) {
		t.Error("capability must be recomputable from stored fields")
	}

	other := newTestOffering(t, 0, nil, now)
	if token.Matches(other.Capability()) {
		t.Error("different vendors must derive different capabilities")
	}
}
