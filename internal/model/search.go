package model

// DefaultSearchLimit is the local result cap applied when a caller gives none.
const DefaultSearchLimit = 30

// Point is a WGS84 coordinate pair.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SearchQuery describes a hybrid place search.
type SearchQuery struct {
	Text      string   `json:"query,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Limit     int      `json:"limit"` // 0 means unlimited
	Geo       bool     `json:"geo"`
}

// HasText reports whether a free-text query was given.
func (q SearchQuery) HasText() bool {
	return q.Text != ""
}

// Point returns the reference point when both coordinates are set.
func (q SearchQuery) Point() (Point, bool) {
	if q.Latitude == nil || q.Longitude == nil {
		return Point{}, false
	}
	return Point{Latitude: *q.Latitude, Longitude: *q.Longitude}, true
}

// Record sources.
const (
	SourceLocal    = "local"
	SourceGeocoder = "geocoder"
)

// DisplayRecord is the shape shared by stored places and geocoding candidates.
// Geocoded entries have no UUID and are never persisted by a search.
type DisplayRecord struct {
	UUID       string  `json:"uuid,omitempty"`
	PublicID   string  `json:"public_id,omitempty"`
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	Street1    string  `json:"street1,omitempty"`
	City       string  `json:"city,omitempty"`
	Province   string  `json:"province,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
	Country    string  `json:"country,omitempty"`
	Phone      string  `json:"phone,omitempty"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Source     string  `json:"source"`
	Provider   string  `json:"provider,omitempty"`
}
