package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/omaralj/propwatch/internal/domain"
)

// Provider fetches raw listings for one area from a single portal feed.
// Implementations own the portal-specific envelope decoding; field-level
// normalization happens downstream.
type Provider interface {
	// Name returns the portal identifier, e.g. "bayut". It doubles as the
	// source_id on everything the provider produces.
	Name() string

	// Fetch returns the raw listings currently published for the area.
	Fetch(ctx context.Context, area string) ([]domain.RawListing, error)
}

// New constructs a Provider for a known portal name. The feedURL is the
// portal's search endpoint root.
func New(name, feedURL string) (Provider, error) {
	switch name {
	case "bayut":
		return NewBayut(feedURL), nil
	case "propertyfinder":
		return NewPropertyFinder(feedURL), nil
	case "dubizzle":
		return NewDubizzle(feedURL), nil
	default:
		return nil, fmt.Errorf("source: unknown provider %q", name)
	}
}

// newHTTPClient returns the http.Client shared by all portal providers.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// doGet sends an unauthenticated GET request and returns the response body.
func doGet(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet := body
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}

	return body, nil
}
