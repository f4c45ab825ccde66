package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/omaralj/propwatch/internal/domain"
	"github.com/omaralj/propwatch/internal/store/memory"
)

func rawItem(ext, price, title string) domain.RawListing {
	return domain.RawListing{
		ExternalID: ext,
		Title:      title,
		Price:      price,
		Area:       "marina",
	}
}

func TestSubmitRawCounts(t *testing.T) {
	store := memory.New()
	ing := NewIngestor(NewDetector(store.Listings, testLogger()), store.Jobs, 4, testLogger())
	ctx := context.Background()

	// Seed one listing so the batch exercises all three outcomes.
	if _, err := ing.SubmitRaw(ctx, "bayut", "Dubai Marina", []domain.RawListing{
		rawItem("L1", "1,000,000", "2BR Marina"),
		rawItem("L2", "2,000,000", "3BR Marina"),
	}); err != nil {
		t.Fatal(err)
	}

	res, err := ing.SubmitRaw(ctx, "bayut", "Dubai Marina", []domain.RawListing{
		rawItem("L1", "1,000,000", "2BR Marina"),  // unchanged
		rawItem("L2", "2,200,000", "3BR Marina"),  // price change
		rawItem("L3", "3,000,000", "Penthouse"),   // new
		rawItem("", "1,000,000", "missing id"),    // rejected
		rawItem("L4", "price on request", "4BR"),  // rejected
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Found != 5 {
		t.Errorf("found = %d, want 5", res.Found)
	}
	if res.Inserted != 1 || res.Updated != 1 || res.Touched != 1 || res.Rejected != 2 {
		t.Errorf("counts = inserted %d / updated %d / touched %d / rejected %d, want 1/1/1/2",
			res.Inserted, res.Updated, res.Touched, res.Rejected)
	}
	if len(res.Failures) != 2 {
		t.Errorf("failures = %d, want 2", len(res.Failures))
	}
}

func TestSubmitRawRecordsScrapeJob(t *testing.T) {
	store := memory.New()
	ing := NewIngestor(NewDetector(store.Listings, testLogger()), store.Jobs, 2, testLogger())
	ctx := context.Background()

	res, err := ing.SubmitRaw(ctx, "propertyfinder", "Business Bay", []domain.RawListing{
		rawItem("P1", "5,000,000", "Bay villa"),
		rawItem("", "1", "broken"),
	})
	if err != nil {
		t.Fatal(err)
	}

	job, err := store.Jobs.GetByID(ctx, res.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != domain.JobSuccess {
		t.Errorf("job status = %s, want SUCCESS", job.Status)
	}
	if job.Found != 2 || job.New != 1 || job.Rejected != 1 {
		t.Errorf("job counters = found %d / new %d / rejected %d, want 2/1/1", job.Found, job.New, job.Rejected)
	}
	if job.CompletedAt == nil {
		t.Error("job has no completion time")
	}
}

func TestSubmitRawInvalidItemsDoNotFailBatch(t *testing.T) {
	store := memory.New()
	ing := NewIngestor(NewDetector(store.Listings, testLogger()), store.Jobs, 2, testLogger())
	ctx := context.Background()

	res, err := ing.SubmitRaw(ctx, "bayut", "JVC", []domain.RawListing{
		rawItem("", "", ""),
		rawItem("ok", "700,000", "Studio JVC"),
	})
	if err != nil {
		t.Fatalf("batch with invalid items must not fail: %v", err)
	}
	if res.Inserted != 1 || res.Rejected != 1 {
		t.Errorf("inserted %d / rejected %d, want 1/1", res.Inserted, res.Rejected)
	}
	if n, _ := store.Listings.CountActive(ctx); n != 1 {
		t.Errorf("active listings = %d, want 1", n)
	}
}

func TestSubmitRawDuplicateKeyWithinBatch(t *testing.T) {
	store := memory.New()
	ing := NewIngestor(NewDetector(store.Listings, testLogger()), store.Jobs, 8, testLogger())
	ctx := context.Background()

	// The same key twice in one concurrent batch: the insert race resolves
	// through the retry loop, one inserts and one touches or updates.
	res, err := ing.SubmitRaw(ctx, "bayut", "Dubai Marina", []domain.RawListing{
		rawItem("DUP", "1,000,000", "2BR Marina"),
		rawItem("DUP", "1,000,000", "2BR Marina"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 1 {
		t.Errorf("inserted = %d, want exactly 1", res.Inserted)
	}
	if res.Inserted+res.Updated+res.Touched != 2 {
		t.Errorf("outcomes = %d, want both items applied", res.Inserted+res.Updated+res.Touched)
	}
	if n, _ := store.Listings.CountActive(ctx); n != 1 {
		t.Errorf("active listings = %d, want 1", n)
	}
}

func TestReaperMarksStaleAndIsIdempotent(t *testing.T) {
	store := memory.New()
	d := NewDetector(store.Listings, testLogger())
	r := NewReaper(store.Listings, 14*24*time.Hour, testLogger())
	ctx := context.Background()
	now := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	if _, err := d.Observe(ctx, sample("old", 1000000, "old one"), now.Add(-20*24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Observe(ctx, sample("fresh", 2000000, "fresh one"), now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	n, err := r.Run(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("removed = %d, want 1", n)
	}
	if l, _ := store.Listings.GetByKey(ctx, "old", "bayut"); l.Status != domain.ListingRemoved {
		t.Errorf("stale listing status = %s, want REMOVED", l.Status)
	}
	if l, _ := store.Listings.GetByKey(ctx, "fresh", "bayut"); l.Status != domain.ListingActive {
		t.Errorf("fresh listing status = %s, want ACTIVE", l.Status)
	}

	n, err = r.Run(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second run removed %d, want 0", n)
	}
}

func TestFingerprintStability(t *testing.T) {
	a := Fingerprint("L1", 1000000, "2BR Marina")
	b := Fingerprint("L1", 1000000, "2BR Marina")
	if a != b {
		t.Error("fingerprint is not deterministic")
	}
	if Fingerprint("L1", 1000001, "2BR Marina") == a {
		t.Error("price change did not alter fingerprint")
	}
	if Fingerprint("L1", 1000000, "2br marina") == a {
		t.Error("title change did not alter fingerprint")
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}
