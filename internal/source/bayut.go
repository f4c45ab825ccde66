package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/omaralj/propwatch/internal/domain"
)

// Bayut is the feed client for the Bayut search API.
type Bayut struct {
	baseURL    string
	httpClient *http.Client
}

// NewBayut creates a Bayut provider.
//
// baseURL is the search endpoint root, e.g. "https://api.bayut.example/v1".
func NewBayut(baseURL string) *Bayut {
	return &Bayut{
		baseURL:    baseURL,
		httpClient: newHTTPClient(),
	}
}

// Name implements Provider.
func (b *Bayut) Name() string { return "bayut" }

// bayutHit is a single search hit in the Bayut envelope. Numeric fields
// arrive as numbers; they are stringified for the raw layer.
type bayutHit struct {
	ExternalID string  `json:"externalID"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Location   []struct {
		Level int    `json:"level"`
		Name  string `json:"name"`
	} `json:"location"`
	Category []struct {
		Slug string `json:"slug"`
	} `json:"category"`
	Rooms     *int     `json:"rooms"`
	Baths     *int     `json:"baths"`
	Area      *float64 `json:"area"`
	Slug      string   `json:"slug"`
	CreatedAt string   `json:"createdAt"`
}

// Fetch implements Provider. Bayut wraps results in a "hits" array.
func (b *Bayut) Fetch(ctx context.Context, area string) ([]domain.RawListing, error) {
	params := url.Values{}
	params.Set("locationExternalIDs", area)
	params.Set("purpose", "for-sale")

	body, err := doGet(ctx, b.httpClient, b.baseURL+"/properties?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("source/bayut: fetch %s: %w", area, err)
	}

	var envelope struct {
		Hits []bayutHit `json:"hits"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("source/bayut: decode feed: %w", err)
	}

	raws := make([]domain.RawListing, 0, len(envelope.Hits))
	for i := range envelope.Hits {
		raws = append(raws, envelope.Hits[i].toRaw(area))
	}
	return raws, nil
}

func (h *bayutHit) toRaw(area string) domain.RawListing {
	raw := domain.RawListing{
		ExternalID: h.ExternalID,
		Title:      h.Title,
		Price:      strconv.FormatFloat(h.Price, 'f', -1, 64),
		Area:       area,
		URL:        "https://www.bayut.com/property/" + h.Slug,
		ListedAt:   h.CreatedAt,
	}
	// Location levels: higher levels are more specific. The deepest named
	// level beyond the area itself becomes the sub-area.
	for _, loc := range h.Location {
		if loc.Level >= 3 && loc.Name != "" {
			raw.SubArea = loc.Name
		}
	}
	if len(h.Category) > 0 {
		raw.PropertyType = h.Category[len(h.Category)-1].Slug
	}
	if h.Rooms != nil {
		raw.Bedrooms = strconv.Itoa(*h.Rooms)
	}
	if h.Baths != nil {
		raw.Bathrooms = strconv.Itoa(*h.Baths)
	}
	if h.Area != nil {
		raw.SizeSqft = strconv.FormatFloat(*h.Area, 'f', -1, 64)
	}
	return raw
}

// Compile-time interface check.
var _ Provider = (*Bayut)(nil)
