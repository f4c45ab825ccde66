package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/omaralj/propwatch/internal/domain"
	"github.com/omaralj/propwatch/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sample(ext string, price int64, title string) domain.Listing {
	return domain.Listing{
		ExternalID: ext,
		SourceID:   "bayut",
		Title:      title,
		Area:       "Dubai Marina",
		Price:      price,
	}
}

func TestObserveInsertsNewListing(t *testing.T) {
	store := memory.New()
	d := NewDetector(store.Listings, testLogger())
	ctx := context.Background()
	seen := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	out, err := d.Observe(ctx, sample("L1", 1000000, "2BR Marina"), seen)
	if err != nil {
		t.Fatal(err)
	}
	if out != OutcomeInserted {
		t.Fatalf("outcome = %v, want inserted", out)
	}

	stored, err := store.Listings.GetByKey(ctx, "L1", "bayut")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != domain.ListingActive {
		t.Errorf("status = %s, want ACTIVE", stored.Status)
	}
	if !stored.FirstSeen.Equal(seen) || !stored.LastSeen.Equal(seen) {
		t.Errorf("first/last seen = %v/%v, want %v", stored.FirstSeen, stored.LastSeen, seen)
	}
	if stored.ContentHash != Fingerprint("L1", 1000000, "2BR Marina") {
		t.Errorf("content hash not set from tracked fields")
	}
	if stored.ID == "" {
		t.Error("listing was not assigned an id")
	}
}

func TestObserveIdempotentSighting(t *testing.T) {
	store := memory.New()
	d := NewDetector(store.Listings, testLogger())
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(6 * time.Hour)

	if _, err := d.Observe(ctx, sample("L1", 1000000, "2BR Marina"), t0); err != nil {
		t.Fatal(err)
	}
	out, err := d.Observe(ctx, sample("L1", 1000000, "2BR Marina"), t1)
	if err != nil {
		t.Fatal(err)
	}
	if out != OutcomeTouched {
		t.Fatalf("outcome = %v, want touched", out)
	}

	stored, _ := store.Listings.GetByKey(ctx, "L1", "bayut")
	if !stored.LastSeen.Equal(t1) {
		t.Errorf("last_seen = %v, want %v", stored.LastSeen, t1)
	}
	if !stored.FirstSeen.Equal(t0) {
		t.Errorf("first_seen moved to %v", stored.FirstSeen)
	}
	if hist, _ := store.History.ListByListing(ctx, stored.ID, domain.ListOpts{}); len(hist) != 0 {
		t.Errorf("idempotent sighting produced %d history entries", len(hist))
	}
}

func TestObserveLastSeenMonotonic(t *testing.T) {
	store := memory.New()
	d := NewDetector(store.Listings, testLogger())
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if _, err := d.Observe(ctx, sample("L1", 1000000, "2BR Marina"), t0); err != nil {
		t.Fatal(err)
	}
	// Out-of-order sighting must not move last_seen backwards.
	if _, err := d.Observe(ctx, sample("L1", 1000000, "2BR Marina"), t0.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	stored, _ := store.Listings.GetByKey(ctx, "L1", "bayut")
	if !stored.LastSeen.Equal(t0) {
		t.Errorf("last_seen = %v, want %v", stored.LastSeen, t0)
	}
}

func TestObservePriceChange(t *testing.T) {
	store := memory.New()
	d := NewDetector(store.Listings, testLogger())
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	if _, err := d.Observe(ctx, sample("L1", 1000000, "2BR Marina"), t0); err != nil {
		t.Fatal(err)
	}
	out, err := d.Observe(ctx, sample("L1", 1100000, "2BR Marina"), t1)
	if err != nil {
		t.Fatal(err)
	}
	if out != OutcomeUpdated {
		t.Fatalf("outcome = %v, want updated", out)
	}

	stored, _ := store.Listings.GetByKey(ctx, "L1", "bayut")
	if stored.Price != 1100000 {
		t.Errorf("price = %d, want 1100000", stored.Price)
	}
	if stored.ContentHash != Fingerprint("L1", 1100000, "2BR Marina") {
		t.Error("content hash not refreshed after update")
	}

	hist, _ := store.History.ListByListing(ctx, stored.ID, domain.ListOpts{})
	if len(hist) != 1 {
		t.Fatalf("history entries = %d, want 1", len(hist))
	}
	e := hist[0]
	if e.OldPrice != 1000000 || e.NewPrice != 1100000 {
		t.Errorf("history prices = %d -> %d", e.OldPrice, e.NewPrice)
	}
	if e.ChangePct == nil || *e.ChangePct != 10 {
		t.Errorf("change pct = %v, want 10", e.ChangePct)
	}
}

func TestObserveTitleOnlyChangeNoHistory(t *testing.T) {
	store := memory.New()
	d := NewDetector(store.Listings, testLogger())
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if _, err := d.Observe(ctx, sample("L1", 1000000, "2BR Marina"), t0); err != nil {
		t.Fatal(err)
	}
	out, err := d.Observe(ctx, sample("L1", 1000000, "2BR Marina Gate, upgraded"), t0.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if out != OutcomeUpdated {
		t.Fatalf("outcome = %v, want updated", out)
	}
	stored, _ := store.Listings.GetByKey(ctx, "L1", "bayut")
	if hist, _ := store.History.ListByListing(ctx, stored.ID, domain.ListOpts{}); len(hist) != 0 {
		t.Errorf("title-only change produced %d history entries", len(hist))
	}
}

func TestObserveUntrackedFieldsDoNotChangeFingerprint(t *testing.T) {
	store := memory.New()
	d := NewDetector(store.Listings, testLogger())
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	first := sample("L1", 1000000, "2BR Marina")
	two := 2
	first.Bathrooms = &two
	if _, err := d.Observe(ctx, first, t0); err != nil {
		t.Fatal(err)
	}

	second := sample("L1", 1000000, "2BR Marina")
	three := 3
	second.Bathrooms = &three
	out, err := d.Observe(ctx, second, t0.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if out != OutcomeTouched {
		t.Errorf("outcome = %v, want touched for change outside tracked fields", out)
	}
}

func TestObserveReactivatesRemovedListing(t *testing.T) {
	store := memory.New()
	d := NewDetector(store.Listings, testLogger())
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if _, err := d.Observe(ctx, sample("L1", 1000000, "2BR Marina"), t0); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Listings.MarkStale(ctx, t0.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if l, _ := store.Listings.GetByKey(ctx, "L1", "bayut"); l.Status != domain.ListingRemoved {
		t.Fatalf("precondition: listing not REMOVED")
	}

	// Identical content: a fresh sighting still reactivates.
	if _, err := d.Observe(ctx, sample("L1", 1000000, "2BR Marina"), t0.Add(20*24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	l, _ := store.Listings.GetByKey(ctx, "L1", "bayut")
	if l.Status != domain.ListingActive {
		t.Errorf("status after resighting = %s, want ACTIVE", l.Status)
	}
	if !l.FirstSeen.Equal(t0) {
		t.Errorf("first_seen = %v, reactivation must preserve it", l.FirstSeen)
	}
}

func TestObserveNilChangePctForNonPositiveOldPrice(t *testing.T) {
	store := memory.New()
	d := NewDetector(store.Listings, testLogger())
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	seeded := sample("L1", 0, "2BR Marina")
	seeded.ID = "seeded"
	seeded.Status = domain.ListingActive
	seeded.ContentHash = Fingerprint("L1", 0, "2BR Marina")
	seeded.FirstSeen = t0
	seeded.LastSeen = t0
	if err := store.Listings.Insert(ctx, seeded); err != nil {
		t.Fatal(err)
	}

	if _, err := d.Observe(ctx, sample("L1", 900000, "2BR Marina"), t0.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	hist, _ := store.History.ListByListing(ctx, "seeded", domain.ListOpts{})
	if len(hist) != 1 {
		t.Fatalf("history entries = %d, want 1", len(hist))
	}
	if hist[0].ChangePct != nil {
		t.Errorf("change pct = %v, want nil for old price 0", *hist[0].ChangePct)
	}
}

// conflictingStore forces ErrConflict on the first n Touch calls to
// exercise the retry loop.
type conflictingStore struct {
	domain.ListingStore
	remaining int
}

func (c *conflictingStore) Touch(ctx context.Context, externalID, sourceID, expectHash string, seenAt time.Time) error {
	if c.remaining > 0 {
		c.remaining--
		return domain.ErrConflict
	}
	return c.ListingStore.Touch(ctx, externalID, sourceID, expectHash, seenAt)
}

func TestObserveRetriesOnConflict(t *testing.T) {
	store := memory.New()
	flaky := &conflictingStore{ListingStore: store.Listings, remaining: 1}
	d := NewDetector(flaky, testLogger())
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if _, err := d.Observe(ctx, sample("L1", 1000000, "2BR Marina"), t0); err != nil {
		t.Fatal(err)
	}
	out, err := d.Observe(ctx, sample("L1", 1000000, "2BR Marina"), t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("retry did not recover: %v", err)
	}
	if out != OutcomeTouched {
		t.Errorf("outcome = %v, want touched", out)
	}
}

func TestObserveGivesUpAfterBoundedRetries(t *testing.T) {
	store := memory.New()
	flaky := &conflictingStore{ListingStore: store.Listings, remaining: 1 << 30}
	d := NewDetector(flaky, testLogger())
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if _, err := d.Observe(ctx, sample("L1", 1000000, "2BR Marina"), t0); err != nil {
		t.Fatal(err)
	}
	_, err := d.Observe(ctx, sample("L1", 1000000, "2BR Marina"), t0.Add(time.Hour))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict after exhausted retries", err)
	}
}
