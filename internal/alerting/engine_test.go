package alerting

import (
	"context"
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

func newEngine(store *memory.Store, opts Options) *Engine {
	return NewEngine(store.Metrics, store.Alerts, store.Listings, opts, testLogger())
}

func surgeSnapshot(area string, at time.Time, pct float64) domain.MarketMetricSnapshot {
	return domain.MarketMetricSnapshot{
		ID:                "snap-" + at.Format(time.RFC3339),
		Area:              area,
		ActiveCount:       50,
		PriceChange14dPct: &pct,
		ComputedAt:        at,
	}
}

func TestEvaluateCreatesAlert(t *testing.T) {
	store := memory.New()
	eng := newEngine(store, Options{})
	ctx := context.Background()
	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	created, err := eng.Evaluate(ctx, surgeSnapshot("Dubai Marina", at, 6))
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 1 {
		t.Fatalf("created = %d alerts, want 1", len(created))
	}
	a := created[0]
	if a.Type != domain.AlertPriceSurge || a.Severity != domain.SeverityWarning {
		t.Errorf("alert = %s/%s, want PRICE_SURGE/WARNING", a.Type, a.Severity)
	}
	if a.MetricValue != 6 || a.ThresholdValue != 5 {
		t.Errorf("value/threshold = %v/%v, want 6/5", a.MetricValue, a.ThresholdValue)
	}
	if !a.TriggeredAt.Equal(at) {
		t.Errorf("triggered_at = %v, want snapshot time", a.TriggeredAt)
	}
}

func TestEvaluateSuppressesOpenAlert(t *testing.T) {
	store := memory.New()
	eng := newEngine(store, Options{})
	ctx := context.Background()
	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	if _, err := eng.Evaluate(ctx, surgeSnapshot("Dubai Marina", at, 6)); err != nil {
		t.Fatal(err)
	}
	created, err := eng.Evaluate(ctx, surgeSnapshot("Dubai Marina", at.Add(6*time.Hour), 7))
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 0 {
		t.Fatalf("re-trigger inside window created %d alerts, want 0", len(created))
	}

	alerts, _ := store.Alerts.List(ctx, domain.AlertFilter{Area: "Dubai Marina"})
	if len(alerts) != 1 {
		t.Fatalf("stored alerts = %d, want 1", len(alerts))
	}
	if alerts[0].MetricValue != 7 {
		t.Errorf("open alert value = %v, want refreshed to 7", alerts[0].MetricValue)
	}
	if alerts[0].RefreshedAt == nil {
		t.Error("open alert was not marked refreshed")
	}
}

func TestEvaluateAcknowledgedDoesNotSuppress(t *testing.T) {
	store := memory.New()
	eng := newEngine(store, Options{})
	ctx := context.Background()
	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	created, err := eng.Evaluate(ctx, surgeSnapshot("Dubai Marina", at, 6))
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.Acknowledge(ctx, created[0].ID, at.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	created, err = eng.Evaluate(ctx, surgeSnapshot("Dubai Marina", at.Add(2*time.Hour), 6.5))
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 1 {
		t.Fatalf("created = %d after acknowledgment, want 1", len(created))
	}
}

func TestEvaluateWindowExpiry(t *testing.T) {
	store := memory.New()
	eng := newEngine(store, Options{Suppression: 24 * time.Hour})
	ctx := context.Background()
	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	if _, err := eng.Evaluate(ctx, surgeSnapshot("Dubai Marina", at, 6)); err != nil {
		t.Fatal(err)
	}
	// 25 hours later the open alert has aged out of the window.
	created, err := eng.Evaluate(ctx, surgeSnapshot("Dubai Marina", at.Add(25*time.Hour), 6))
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 1 {
		t.Fatalf("created = %d after window expiry, want 1", len(created))
	}
	alerts, _ := store.Alerts.List(ctx, domain.AlertFilter{Area: "Dubai Marina"})
	if len(alerts) != 2 {
		t.Errorf("stored alerts = %d, want 2", len(alerts))
	}
}

func TestEvaluateSkipsStaleSnapshot(t *testing.T) {
	store := memory.New()
	eng := newEngine(store, Options{})
	ctx := context.Background()
	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	// A newer snapshot already exists for the area.
	if err := store.Metrics.Insert(ctx, surgeSnapshot("Dubai Marina", at.Add(time.Hour), 0)); err != nil {
		t.Fatal(err)
	}

	created, err := eng.Evaluate(ctx, surgeSnapshot("Dubai Marina", at, 9))
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 0 {
		t.Errorf("stale snapshot created %d alerts, want 0", len(created))
	}
}

func TestEvaluateIndependentAreas(t *testing.T) {
	store := memory.New()
	eng := newEngine(store, Options{})
	ctx := context.Background()
	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	if _, err := eng.Evaluate(ctx, surgeSnapshot("Dubai Marina", at, 6)); err != nil {
		t.Fatal(err)
	}
	created, err := eng.Evaluate(ctx, surgeSnapshot("Business Bay", at, 6))
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 1 {
		t.Errorf("suppression leaked across areas: created = %d, want 1", len(created))
	}
}

// recordingNotifier captures notified alerts.
type recordingNotifier struct{ got []domain.Alert }

func (r *recordingNotifier) Notify(_ context.Context, a domain.Alert) error {
	r.got = append(r.got, a)
	return nil
}

func TestEvaluateNotifies(t *testing.T) {
	store := memory.New()
	rec := &recordingNotifier{}
	eng := newEngine(store, Options{Notifier: rec})
	ctx := context.Background()
	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	if _, err := eng.Evaluate(ctx, surgeSnapshot("Dubai Marina", at, 6)); err != nil {
		t.Fatal(err)
	}
	if len(rec.got) != 1 {
		t.Fatalf("notified = %d, want 1", len(rec.got))
	}
	// Suppressed re-trigger must not notify again.
	if _, err := eng.Evaluate(ctx, surgeSnapshot("Dubai Marina", at.Add(time.Hour), 6)); err != nil {
		t.Fatal(err)
	}
	if len(rec.got) != 1 {
		t.Errorf("notified = %d after suppression, want still 1", len(rec.got))
	}
}
