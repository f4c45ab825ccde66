// Package memory provides in-memory implementations of the domain store
// interfaces with the same compare-and-set semantics as the Postgres
// stores. It backs the test suites.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/omaralj/propwatch/internal/domain"
)

// Store owns the tables. A single mutex guards all of them, which makes
// multi-table writes (listing update plus price history append) atomic,
// matching the transactional behavior of the SQL stores. The per-table
// views expose the domain store interfaces.
type Store struct {
	mu        sync.Mutex
	listings  map[string]domain.Listing // keyed by external_id + "\x00" + source_id
	idToKey   map[string]string
	history   []domain.PriceHistoryEntry
	snapshots []domain.MarketMetricSnapshot
	alerts    map[string]domain.Alert
	jobs      map[string]domain.ScrapeJob

	// Now is swappable so tests can pin the clock used by relative-window
	// queries such as SourceStats.
	Now func() time.Time

	Listings *ListingStore
	History  *PriceHistoryStore
	Metrics  *MetricStore
	Alerts   *AlertStore
	Jobs     *ScrapeJobStore
}

func New() *Store {
	s := &Store{
		listings: make(map[string]domain.Listing),
		idToKey:  make(map[string]string),
		alerts:   make(map[string]domain.Alert),
		jobs:     make(map[string]domain.ScrapeJob),
		Now:      func() time.Time { return time.Now().UTC() },
	}
	s.Listings = &ListingStore{s}
	s.History = &PriceHistoryStore{s}
	s.Metrics = &MetricStore{s}
	s.Alerts = &AlertStore{s}
	s.Jobs = &ScrapeJobStore{s}
	return s
}

func listingKey(externalID, sourceID string) string {
	return externalID + "\x00" + sourceID
}

func (s *Store) listingByIDLocked(id string) (domain.Listing, bool) {
	key, ok := s.idToKey[id]
	if !ok {
		return domain.Listing{}, false
	}
	return s.listings[key], true
}

// ListingStore implements domain.ListingStore.
type ListingStore struct{ s *Store }

func (ls *ListingStore) GetByKey(_ context.Context, externalID, sourceID string) (domain.Listing, error) {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[listingKey(externalID, sourceID)]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

func (ls *ListingStore) GetByID(_ context.Context, id string) (domain.Listing, error) {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listingByIDLocked(id)
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

func (ls *ListingStore) Insert(_ context.Context, l domain.Listing) error {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()
	key := listingKey(l.ExternalID, l.SourceID)
	if _, ok := s.listings[key]; ok {
		return domain.ErrAlreadyExists
	}
	now := s.Now()
	l.CreatedAt = now
	l.UpdatedAt = now
	s.listings[key] = l
	s.idToKey[l.ID] = key
	return nil
}

func (ls *ListingStore) Touch(_ context.Context, externalID, sourceID, expectHash string, seenAt time.Time) error {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()
	key := listingKey(externalID, sourceID)
	l, ok := s.listings[key]
	if !ok {
		return domain.ErrNotFound
	}
	if l.ContentHash != expectHash {
		return domain.ErrConflict
	}
	if seenAt.After(l.LastSeen) {
		l.LastSeen = seenAt
	}
	l.Status = domain.ListingActive
	l.UpdatedAt = s.Now()
	s.listings[key] = l
	return nil
}

func (ls *ListingStore) UpdateObserved(_ context.Context, l domain.Listing, expectHash string, entry *domain.PriceHistoryEntry) error {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()
	key := listingKey(l.ExternalID, l.SourceID)
	stored, ok := s.listings[key]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.ContentHash != expectHash {
		return domain.ErrConflict
	}
	if !l.LastSeen.After(stored.LastSeen) {
		l.LastSeen = stored.LastSeen
	}
	l.Status = domain.ListingActive
	l.CreatedAt = stored.CreatedAt
	l.UpdatedAt = s.Now()
	s.listings[key] = l
	if entry != nil {
		s.history = append(s.history, *entry)
	}
	return nil
}

func (ls *ListingStore) MarkStale(_ context.Context, cutoff time.Time) (int64, error) {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, l := range s.listings {
		if l.Status == domain.ListingActive && l.LastSeen.Before(cutoff) {
			l.Status = domain.ListingRemoved
			l.UpdatedAt = s.Now()
			s.listings[key] = l
			n++
		}
	}
	return n, nil
}

func (ls *ListingStore) ListActiveByArea(_ context.Context, area string) ([]domain.Listing, error) {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Listing
	for _, l := range s.listings {
		if l.Status == domain.ListingActive && l.Area == area {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (ls *ListingStore) DistinctActiveAreas(_ context.Context) ([]string, error) {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	for _, l := range s.listings {
		if l.Status == domain.ListingActive {
			seen[l.Area] = true
		}
	}
	areas := make([]string, 0, len(seen))
	for a := range seen {
		areas = append(areas, a)
	}
	sort.Strings(areas)
	return areas, nil
}

func (ls *ListingStore) CountActive(_ context.Context) (int64, error) {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, l := range s.listings {
		if l.Status == domain.ListingActive {
			n++
		}
	}
	return n, nil
}

func (ls *ListingStore) CountNewInArea(_ context.Context, area string, since time.Time) (int64, error) {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, l := range s.listings {
		if l.Area == area && !l.FirstSeen.Before(since) {
			n++
		}
	}
	return n, nil
}

func (ls *ListingStore) CountNewBySource(_ context.Context, area string, since time.Time) (map[string]int64, error) {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64)
	for _, l := range s.listings {
		if l.Area == area && !l.FirstSeen.Before(since) {
			counts[l.SourceID]++
		}
	}
	return counts, nil
}

func (ls *ListingStore) SourceStats(_ context.Context, area string) ([]domain.SourceStat, error) {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()
	dayAgo := s.Now().Add(-24 * time.Hour)
	type agg struct {
		count int64
		sum   int64
		fresh int64
	}
	bySource := make(map[string]*agg)
	for _, l := range s.listings {
		if l.Status != domain.ListingActive || l.Area != area {
			continue
		}
		a := bySource[l.SourceID]
		if a == nil {
			a = &agg{}
			bySource[l.SourceID] = a
		}
		a.count++
		a.sum += l.Price
		if !l.FirstSeen.Before(dayAgo) {
			a.fresh++
		}
	}
	stats := make([]domain.SourceStat, 0, len(bySource))
	for src, a := range bySource {
		st := domain.SourceStat{SourceID: src, ActiveCount: a.count, NewLast24h: a.fresh}
		if a.count > 0 {
			avg := float64(a.sum) / float64(a.count)
			st.AvgPrice = &avg
		}
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].SourceID < stats[j].SourceID })
	return stats, nil
}

// PriceHistoryStore implements domain.PriceHistoryStore.
type PriceHistoryStore struct{ s *Store }

func (ph *PriceHistoryStore) ListByListing(_ context.Context, listingID string, opts domain.ListOpts) ([]domain.PriceHistoryEntry, error) {
	s := ph.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PriceHistoryEntry
	for _, e := range s.history {
		if e.ListingID == listingID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return paginate(out, opts), nil
}

func (ph *PriceHistoryStore) AvgChangePctInArea(_ context.Context, area string, since time.Time) (*float64, error) {
	s := ph.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum float64
	var n int
	for _, e := range s.history {
		if e.RecordedAt.Before(since) || e.ChangePct == nil {
			continue
		}
		if l, ok := s.listingByIDLocked(e.ListingID); ok && l.Area == area {
			sum += *e.ChangePct
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}
	avg := sum / float64(n)
	return &avg, nil
}

func (ph *PriceHistoryStore) ListRecentInArea(_ context.Context, area string, since time.Time, opts domain.ListOpts) ([]domain.PriceHistoryEntry, error) {
	s := ph.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PriceHistoryEntry
	for _, e := range s.history {
		if e.RecordedAt.Before(since) {
			continue
		}
		if l, ok := s.listingByIDLocked(e.ListingID); ok && l.Area == area {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return paginate(out, opts), nil
}

func (ph *PriceHistoryStore) ListBefore(_ context.Context, before time.Time) ([]domain.PriceHistoryEntry, error) {
	s := ph.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PriceHistoryEntry
	for _, e := range s.history {
		if e.RecordedAt.Before(before) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func (ph *PriceHistoryStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s := ph.s
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.history[:0]
	var n int64
	for _, e := range s.history {
		if e.RecordedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.history = kept
	return n, nil
}

// MetricStore implements domain.MetricStore.
type MetricStore struct{ s *Store }

func (ms *MetricStore) Insert(_ context.Context, snap domain.MarketMetricSnapshot) error {
	s := ms.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func (ms *MetricStore) Latest(_ context.Context, area string) (domain.MarketMetricSnapshot, error) {
	s := ms.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *domain.MarketMetricSnapshot
	for i := range s.snapshots {
		snap := &s.snapshots[i]
		if snap.Area != area {
			continue
		}
		if best == nil || snap.ComputedAt.After(best.ComputedAt) {
			best = snap
		}
	}
	if best == nil {
		return domain.MarketMetricSnapshot{}, domain.ErrNotFound
	}
	return *best, nil
}

func (ms *MetricStore) LatestBefore(_ context.Context, area string, before time.Time) (domain.MarketMetricSnapshot, error) {
	s := ms.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *domain.MarketMetricSnapshot
	for i := range s.snapshots {
		snap := &s.snapshots[i]
		if snap.Area != area || !snap.ComputedAt.Before(before) {
			continue
		}
		if best == nil || snap.ComputedAt.After(best.ComputedAt) {
			best = snap
		}
	}
	if best == nil {
		return domain.MarketMetricSnapshot{}, domain.ErrNotFound
	}
	return *best, nil
}

func (ms *MetricStore) SeriesSince(_ context.Context, area string, since time.Time) ([]domain.MarketMetricSnapshot, error) {
	s := ms.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MarketMetricSnapshot
	for _, snap := range s.snapshots {
		if snap.Area == area && !snap.ComputedAt.Before(since) {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ComputedAt.Before(out[j].ComputedAt) })
	return out, nil
}

func (ms *MetricStore) LatestPerArea(_ context.Context) ([]domain.MarketMetricSnapshot, error) {
	s := ms.s
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := make(map[string]domain.MarketMetricSnapshot)
	for _, snap := range s.snapshots {
		if cur, ok := latest[snap.Area]; !ok || snap.ComputedAt.After(cur.ComputedAt) {
			latest[snap.Area] = snap
		}
	}
	out := make([]domain.MarketMetricSnapshot, 0, len(latest))
	for _, snap := range latest {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Area < out[j].Area })
	return out, nil
}

// AlertStore implements domain.AlertStore.
type AlertStore struct{ s *Store }

func (as *AlertStore) Insert(_ context.Context, a domain.Alert) error {
	s := as.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.alerts[a.ID] = a
	return nil
}

func (as *AlertStore) GetByID(_ context.Context, id string) (domain.Alert, error) {
	s := as.s
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return domain.Alert{}, domain.ErrNotFound
	}
	return a, nil
}

func (as *AlertStore) FindOpen(_ context.Context, typ domain.AlertType, area string, since time.Time) (domain.Alert, error) {
	s := as.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *domain.Alert
	for id := range s.alerts {
		a := s.alerts[id]
		if a.Type != typ || a.Area != area || a.Acknowledged || a.TriggeredAt.Before(since) {
			continue
		}
		if best == nil || a.TriggeredAt.After(best.TriggeredAt) {
			best = &a
		}
	}
	if best == nil {
		return domain.Alert{}, domain.ErrNotFound
	}
	return *best, nil
}

func (as *AlertStore) Refresh(_ context.Context, id string, metricValue float64, at time.Time) error {
	s := as.s
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.MetricValue = metricValue
	a.RefreshedAt = &at
	s.alerts[id] = a
	return nil
}

func (as *AlertStore) Acknowledge(_ context.Context, id string, at time.Time) error {
	s := as.s
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !a.Acknowledged {
		a.Acknowledged = true
		a.AcknowledgedAt = &at
		s.alerts[id] = a
	}
	return nil
}

func (as *AlertStore) List(_ context.Context, f domain.AlertFilter) ([]domain.Alert, error) {
	s := as.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Alert
	for _, a := range s.alerts {
		if f.Area != "" && a.Area != f.Area {
			continue
		}
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		if f.Unacknowledged && a.Acknowledged {
			continue
		}
		if !f.Since.IsZero() && a.TriggeredAt.Before(f.Since) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	return paginate(out, domain.ListOpts{Limit: f.Limit, Offset: f.Offset}), nil
}

func (as *AlertStore) CountUnacknowledged(_ context.Context) (int64, error) {
	s := as.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.alerts {
		if !a.Acknowledged {
			n++
		}
	}
	return n, nil
}

// ScrapeJobStore implements domain.ScrapeJobStore.
type ScrapeJobStore struct{ s *Store }

func (js *ScrapeJobStore) Start(_ context.Context, job domain.ScrapeJob) error {
	s := js.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.jobs[job.ID] = job
	return nil
}

func (js *ScrapeJobStore) Finish(_ context.Context, job domain.ScrapeJob) error {
	s := js.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return domain.ErrNotFound
	}
	s.jobs[job.ID] = job
	return nil
}

func (js *ScrapeJobStore) GetByID(_ context.Context, id string) (domain.ScrapeJob, error) {
	s := js.s
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.ScrapeJob{}, domain.ErrNotFound
	}
	return j, nil
}

func (js *ScrapeJobStore) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.ScrapeJob, error) {
	s := js.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ScrapeJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return paginate(out, opts), nil
}

func (js *ScrapeJobStore) ListBefore(_ context.Context, before time.Time) ([]domain.ScrapeJob, error) {
	s := js.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ScrapeJob
	for _, j := range s.jobs {
		if j.StartedAt.Before(before) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (js *ScrapeJobStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s := js.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, j := range s.jobs {
		if j.StartedAt.Before(before) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// Compile-time interface checks.
var (
	_ domain.ListingStore      = (*ListingStore)(nil)
	_ domain.PriceHistoryStore = (*PriceHistoryStore)(nil)
	_ domain.MetricStore       = (*MetricStore)(nil)
	_ domain.AlertStore        = (*AlertStore)(nil)
	_ domain.ScrapeJobStore    = (*ScrapeJobStore)(nil)
)
