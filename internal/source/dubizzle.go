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

// Dubizzle is the feed client for the Dubizzle property search API.
type Dubizzle struct {
	baseURL    string
	httpClient *http.Client
}

// NewDubizzle creates a Dubizzle provider.
func NewDubizzle(baseURL string) *Dubizzle {
	return &Dubizzle{
		baseURL:    baseURL,
		httpClient: newHTTPClient(),
	}
}

// Name implements Provider.
func (d *Dubizzle) Name() string { return "dubizzle" }

// dzListing is a single entry in the Dubizzle envelope. Numeric fields
// arrive as numbers and are stringified for the raw layer.
type dzListing struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Price        int64    `json:"price"`
	Neighborhood string   `json:"neighbourhood"`
	Building     string   `json:"building"`
	Category     string   `json:"category"`
	Bedrooms     *int     `json:"bedrooms"`
	Bathrooms    *int     `json:"bathrooms"`
	SizeSqft     *float64 `json:"size"`
	Permalink    string   `json:"permalink"`
	AddedISO     string   `json:"added"`
}

// Fetch implements Provider. Dubizzle wraps results in a "listings" array.
func (d *Dubizzle) Fetch(ctx context.Context, area string) ([]domain.RawListing, error) {
	params := url.Values{}
	params.Set("neighbourhood", area)
	params.Set("purpose", "sale")

	body, err := doGet(ctx, d.httpClient, d.baseURL+"/listings?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("source/dubizzle: fetch %s: %w", area, err)
	}

	var envelope struct {
		Listings []dzListing `json:"listings"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("source/dubizzle: decode feed: %w", err)
	}

	raws := make([]domain.RawListing, 0, len(envelope.Listings))
	for i := range envelope.Listings {
		raws = append(raws, envelope.Listings[i].toRaw(area))
	}
	return raws, nil
}

func (l *dzListing) toRaw(area string) domain.RawListing {
	raw := domain.RawListing{
		ExternalID:   strconv.FormatInt(l.ID, 10),
		Title:        l.Name,
		Price:        strconv.FormatInt(l.Price, 10),
		Area:         firstNonEmpty(l.Neighborhood, area),
		SubArea:      l.Building,
		PropertyType: l.Category,
		URL:          l.Permalink,
		ListedAt:     l.AddedISO,
	}
	if l.Bedrooms != nil {
		raw.Bedrooms = strconv.Itoa(*l.Bedrooms)
	}
	if l.Bathrooms != nil {
		raw.Bathrooms = strconv.Itoa(*l.Bathrooms)
	}
	if l.SizeSqft != nil {
		raw.SizeSqft = strconv.FormatFloat(*l.SizeSqft, 'f', -1, 64)
	}
	return raw
}

// Compile-time interface check.
var _ Provider = (*Dubizzle)(nil)
