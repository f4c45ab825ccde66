package domain

import "time"

// ListingStatus tracks the lifecycle of a listing within the tracker.
type ListingStatus string

const (
	// ListingActive means the listing appeared in a recent collection run.
	ListingActive ListingStatus = "ACTIVE"
	// ListingRemoved means the listing has not been seen for longer than
	// the staleness window and is presumed withdrawn or sold.
	ListingRemoved ListingStatus = "REMOVED"
)

// Canonical property types. Normalization maps portal categories and title
// keywords onto this closed set; anything unrecognized is PropertyUnknown.
const (
	PropertyVilla     = "VILLA"
	PropertyApartment = "APARTMENT"
	PropertyTownhouse = "TOWNHOUSE"
	PropertyPenthouse = "PENTHOUSE"
	PropertyDuplex    = "DUPLEX"
	PropertyUnknown   = "UNKNOWN"
)

// Listing is a normalized property listing observed on an external portal.
// A listing is uniquely identified by (ExternalID, SourceID); the same
// property published on two portals is two distinct listings.
type Listing struct {
	ID           string         `json:"id"`
	ExternalID   string         `json:"external_id"`
	SourceID     string         `json:"source_id"`
	Title        string         `json:"title"`
	Area         string         `json:"area"`
	Unmapped     bool           `json:"unmapped,omitempty"`
	SubArea      string         `json:"sub_area,omitempty"`
	PropertyType string         `json:"property_type,omitempty"`
	Price        int64          `json:"price"`
	PricePerSqft *float64       `json:"price_per_sqft,omitempty"`
	Bedrooms     *int           `json:"bedrooms,omitempty"`
	Bathrooms    *int           `json:"bathrooms,omitempty"`
	SizeSqft     *float64       `json:"size_sqft,omitempty"`
	URL          string         `json:"url,omitempty"`
	Status       ListingStatus  `json:"status"`
	ContentHash  string         `json:"content_hash"`
	FirstSeen    time.Time      `json:"first_seen"`
	LastSeen     time.Time      `json:"last_seen"`
	ListedAt     *time.Time     `json:"listed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// RawListing is a listing exactly as a source feed delivered it, before
// validation and normalization. All fields are raw text; the normalizer
// is responsible for parsing them.
type RawListing struct {
	ExternalID   string `json:"external_id"`
	Title        string `json:"title"`
	Price        string `json:"price"`
	Area         string `json:"area"`
	SubArea      string `json:"sub_area"`
	PropertyType string `json:"property_type"`
	Bedrooms     string `json:"bedrooms"`
	Bathrooms    string `json:"bathrooms"`
	SizeSqft     string `json:"size_sqft"`
	URL          string `json:"url"`
	ListedAt     string `json:"listed_at"`
}

// Source is a configured listing portal the tracker collects from.
type Source struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	FeedURL string `json:"feed_url,omitempty"`
	Enabled bool   `json:"enabled"`
}

// SourceStat summarizes one source's footprint within an area.
type SourceStat struct {
	SourceID    string   `json:"source_id"`
	ActiveCount int64    `json:"active_count"`
	AvgPrice    *float64 `json:"avg_price,omitempty"`
	NewLast24h  int64    `json:"new_last_24h"`
}

// PriceHistoryEntry records a single observed price transition for a
// listing. ChangePct is nil when the previous price was not positive.
type PriceHistoryEntry struct {
	ID         string    `json:"id"`
	ListingID  string    `json:"listing_id"`
	OldPrice   int64     `json:"old_price"`
	NewPrice   int64     `json:"new_price"`
	ChangePct  *float64  `json:"change_pct,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}
