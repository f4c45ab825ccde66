package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/omaralj/propwatch/internal/domain"
)

// PropertyFinder is the feed client for the Property Finder search API.
type PropertyFinder struct {
	baseURL    string
	httpClient *http.Client
}

// NewPropertyFinder creates a PropertyFinder provider.
func NewPropertyFinder(baseURL string) *PropertyFinder {
	return &PropertyFinder{
		baseURL:    baseURL,
		httpClient: newHTTPClient(),
	}
}

// Name implements Provider.
func (p *PropertyFinder) Name() string { return "propertyfinder" }

// pfResult is a single result in the Property Finder envelope. The feed
// delivers everything as strings already.
type pfResult struct {
	Reference string `json:"reference"`
	Title     string `json:"title"`
	Price     struct {
		Value string `json:"value"`
	} `json:"price"`
	Location struct {
		Community    string `json:"community"`
		SubCommunity string `json:"sub_community"`
	} `json:"location"`
	Type      string `json:"property_type"`
	Bedrooms  string `json:"bedrooms"`
	Bathrooms string `json:"bathrooms"`
	Size      string `json:"size"`
	ShareURL  string `json:"share_url"`
	ListedOn  string `json:"listed_date"`
}

// Fetch implements Provider. Property Finder wraps results in a "results"
// array.
func (p *PropertyFinder) Fetch(ctx context.Context, area string) ([]domain.RawListing, error) {
	params := url.Values{}
	params.Set("location", area)
	params.Set("category", "buy")

	body, err := doGet(ctx, p.httpClient, p.baseURL+"/search?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("source/propertyfinder: fetch %s: %w", area, err)
	}

	var envelope struct {
		Results []pfResult `json:"results"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("source/propertyfinder: decode feed: %w", err)
	}

	raws := make([]domain.RawListing, 0, len(envelope.Results))
	for i := range envelope.Results {
		r := &envelope.Results[i]
		raws = append(raws, domain.RawListing{
			ExternalID:   r.Reference,
			Title:        r.Title,
			Price:        r.Price.Value,
			Area:         firstNonEmpty(r.Location.Community, area),
			SubArea:      r.Location.SubCommunity,
			PropertyType: r.Type,
			Bedrooms:     r.Bedrooms,
			Bathrooms:    r.Bathrooms,
			SizeSqft:     r.Size,
			URL:          r.ShareURL,
			ListedAt:     r.ListedOn,
		})
	}
	return raws, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// Compile-time interface check.
var _ Provider = (*PropertyFinder)(nil)
