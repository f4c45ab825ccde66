package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewDispatchesByName(t *testing.T) {
	for _, name := range []string{"bayut", "propertyfinder", "dubizzle"} {
		p, err := New(name, "http://feed.local")
		if err != nil {
			t.Fatalf("New(%q) error: %v", name, err)
		}
		if got := p.Name(); got != name {
			t.Errorf("Name() = %q, want %q", got, name)
		}
	}

	if _, err := New("zillow", "http://feed.local"); err == nil {
		t.Error("New with unknown provider: expected error, got nil")
	}
}

func TestBayutFetchDecodesHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("purpose"); got != "for-sale" {
			t.Errorf("purpose = %q, want for-sale", got)
		}
		w.Write([]byte(`{"hits":[{
			"externalID":"bay-991",
			"title":"2BR in Marina Gate",
			"price":2400000,
			"location":[{"level":1,"name":"Dubai"},{"level":2,"name":"Dubai Marina"},{"level":3,"name":"Marina Gate"}],
			"category":[{"slug":"residential"},{"slug":"apartments"}],
			"rooms":2,"baths":3,"area":1280.5,
			"slug":"marina-gate-2br-991",
			"createdAt":"2026-07-01T09:30:00Z"
		}]}`))
	}))
	defer srv.Close()

	raws, err := NewBayut(srv.URL).Fetch(context.Background(), "dubai-marina")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raws) != 1 {
		t.Fatalf("got %d raw listings, want 1", len(raws))
	}

	raw := raws[0]
	if raw.ExternalID != "bay-991" {
		t.Errorf("ExternalID = %q, want bay-991", raw.ExternalID)
	}
	if raw.Price != "2400000" {
		t.Errorf("Price = %q, want 2400000", raw.Price)
	}
	if raw.SubArea != "Marina Gate" {
		t.Errorf("SubArea = %q, want Marina Gate", raw.SubArea)
	}
	if raw.PropertyType != "apartments" {
		t.Errorf("PropertyType = %q, want apartments", raw.PropertyType)
	}
	if raw.Bedrooms != "2" || raw.Bathrooms != "3" {
		t.Errorf("Bedrooms/Bathrooms = %q/%q, want 2/3", raw.Bedrooms, raw.Bathrooms)
	}
	if raw.SizeSqft != "1280.5" {
		t.Errorf("SizeSqft = %q, want 1280.5", raw.SizeSqft)
	}
	if raw.Area != "dubai-marina" {
		t.Errorf("Area = %q, want dubai-marina", raw.Area)
	}
}

func TestPropertyFinderFetchDecodesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{
			"reference":"PF-1187",
			"title":"Townhouse in Springs",
			"price":{"value":"3,150,000 AED"},
			"location":{"community":"The Springs","sub_community":"Springs 7"},
			"property_type":"townhouse",
			"bedrooms":"3","bathrooms":"4","size":"2210",
			"share_url":"https://pf.example/1187",
			"listed_date":"2026-06-12"
		}]}`))
	}))
	defer srv.Close()

	raws, err := NewPropertyFinder(srv.URL).Fetch(context.Background(), "springs")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raws) != 1 {
		t.Fatalf("got %d raw listings, want 1", len(raws))
	}

	raw := raws[0]
	if raw.ExternalID != "PF-1187" {
		t.Errorf("ExternalID = %q, want PF-1187", raw.ExternalID)
	}
	if raw.Price != "3,150,000 AED" {
		t.Errorf("Price = %q, want raw feed text", raw.Price)
	}
	if raw.Area != "The Springs" {
		t.Errorf("Area = %q, want feed community over query area", raw.Area)
	}
	if raw.SubArea != "Springs 7" {
		t.Errorf("SubArea = %q, want Springs 7", raw.SubArea)
	}
}

func TestDubizzleFetchDecodesListings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"listings":[{
			"id":70442,
			"name":"Studio in JVC",
			"price":650000,
			"neighbourhood":"",
			"building":"Bloom Towers",
			"category":"apartment",
			"bedrooms":0,"bathrooms":1,"size":410,
			"permalink":"https://dz.example/70442",
			"added":"2026-07-20T14:00:00Z"
		}]}`))
	}))
	defer srv.Close()

	raws, err := NewDubizzle(srv.URL).Fetch(context.Background(), "jvc")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raws) != 1 {
		t.Fatalf("got %d raw listings, want 1", len(raws))
	}

	raw := raws[0]
	if raw.ExternalID != "70442" {
		t.Errorf("ExternalID = %q, want 70442", raw.ExternalID)
	}
	// Empty feed neighbourhood falls back to the queried area.
	if raw.Area != "jvc" {
		t.Errorf("Area = %q, want jvc", raw.Area)
	}
	if raw.Bedrooms != "0" {
		t.Errorf("Bedrooms = %q, want 0", raw.Bedrooms)
	}
	if raw.SizeSqft != "410" {
		t.Errorf("SizeSqft = %q, want 410", raw.SizeSqft)
	}
}

func TestFetchPropagatesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := NewBayut(srv.URL).Fetch(context.Background(), "jvc"); err == nil {
		t.Error("expected error on 429 response, got nil")
	}
}
