package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/omaralj/propwatch/internal/domain"
)

// areaAliases maps the lowercase spellings the portals use to canonical
// area names, so "downtown", "Downtown Dubai" and "DOWNTOWN DUBAI" all
// aggregate into the same bucket.
var areaAliases = map[string]string{
	"downtown":                  "Downtown Dubai",
	"downtown dubai":            "Downtown Dubai",
	"marina":                    "Dubai Marina",
	"dubai marina":              "Dubai Marina",
	"jvc":                       "Jumeirah Village Circle",
	"jumeirah village circle":   "Jumeirah Village Circle",
	"palm":                      "Palm Jumeirah",
	"palm jumeirah":             "Palm Jumeirah",
	"business bay":              "Business Bay",
	"jbr":                       "Jumeirah Beach Residence",
	"jumeirah beach residence":  "Jumeirah Beach Residence",
	"difc":                      "DIFC",
	"dubai hills":               "Dubai Hills Estate",
	"dubai hills estate":        "Dubai Hills Estate",
	"creek harbour":             "Dubai Creek Harbour",
	"dubai creek harbour":       "Dubai Creek Harbour",
	"arabian ranches":           "Arabian Ranches",
}

// Listing validates and parses a raw feed item into a normalized listing.
// Required fields are external id, title, area and a positive price; a
// missing or unparsable required field returns a *domain.ValidationError.
// Optional fields parse leniently: garbage becomes nil, never a rejection.
func Listing(raw domain.RawListing, sourceID string) (domain.Listing, error) {
	externalID := strings.TrimSpace(raw.ExternalID)
	if externalID == "" {
		return domain.Listing{}, &domain.ValidationError{Field: "external_id", Reason: "empty"}
	}

	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return domain.Listing{}, &domain.ValidationError{Field: "title", Reason: "empty"}
	}

	area, unmapped := Area(raw.Area)
	if area == "" {
		return domain.Listing{}, &domain.ValidationError{Field: "area", Reason: "empty"}
	}

	price, err := ParsePrice(raw.Price)
	if err != nil {
		return domain.Listing{}, &domain.ValidationError{Field: "price", Reason: err.Error()}
	}

	l := domain.Listing{
		ExternalID:   externalID,
		SourceID:     sourceID,
		Title:        title,
		Area:         area,
		Unmapped:     unmapped,
		SubArea:      strings.TrimSpace(raw.SubArea),
		PropertyType: PropertyType(raw.PropertyType, title),
		Price:        price,
		Bedrooms:     parseIntPtr(raw.Bedrooms),
		Bathrooms:    parseIntPtr(raw.Bathrooms),
		SizeSqft:     parseFloatPtr(raw.SizeSqft),
		URL:          strings.TrimSpace(raw.URL),
		ListedAt:     parseTimePtr(raw.ListedAt),
	}

	if l.SizeSqft != nil && *l.SizeSqft > 0 {
		psf := float64(price) / *l.SizeSqft
		l.PricePerSqft = &psf
	}

	return l, nil
}

// ParsePrice extracts an integer AED amount from raw price text such as
// "AED 2,500,000" or "2500000". It fails on text without digits and on
// non-positive amounts.
func ParsePrice(s string) (int64, error) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, strconv.ErrSyntax
	}
	v, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, strconv.ErrRange
	}
	return v, nil
}

// Area canonicalizes an area name: known aliases map to their canonical
// spelling, anything else is title-cased and reported unmapped so readers
// can filter it out. Returns "" for blank input.
func Area(s string) (name string, unmapped bool) {
	key := strings.ToLower(strings.Join(strings.Fields(s), " "))
	if key == "" {
		return "", false
	}
	if canonical, ok := areaAliases[key]; ok {
		return canonical, false
	}
	return titleCase(key), true
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// propertyTypeKeywords is checked in order: the more specific types come
// first so "Penthouse Apartment" maps to PENTHOUSE, not APARTMENT.
var propertyTypeKeywords = []struct {
	keyword   string
	canonical string
}{
	{"penthouse", domain.PropertyPenthouse},
	{"duplex", domain.PropertyDuplex},
	{"townhouse", domain.PropertyTownhouse},
	{"town house", domain.PropertyTownhouse},
	{"villa", domain.PropertyVilla},
	{"apartment", domain.PropertyApartment},
	{"flat", domain.PropertyApartment},
	{"studio", domain.PropertyApartment},
}

// PropertyType maps a portal's category hint onto the canonical property
// type, falling back to keywords in the listing title. No match is UNKNOWN.
func PropertyType(hint, title string) string {
	for _, text := range []string{hint, title} {
		t := strings.ToLower(text)
		for _, kw := range propertyTypeKeywords {
			if strings.Contains(t, kw.keyword) {
				return kw.canonical
			}
		}
	}
	return domain.PropertyUnknown
}

func parseIntPtr(s string) *int {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	// "studio" is a common bedrooms value on the portals.
	if strings.EqualFold(t, "studio") {
		zero := 0
		return &zero
	}
	v, err := strconv.Atoi(t)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

func parseFloatPtr(s string) *float64 {
	t := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if t == "" {
		return nil
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

func parseTimePtr(s string) *time.Time {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, t); err == nil {
			return &ts
		}
	}
	return nil
}
