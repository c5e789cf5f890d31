package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/fleetops/fleetops/internal/model"
	"github.com/fleetops/fleetops/internal/resilience"
)

// DefaultNominatimURL is the public OpenStreetMap instance.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Address     struct {
		HouseNumber string `json:"house_number"`
		Road        string `json:"road"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
		Postcode    string `json:"postcode"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
	Error string `json:"error"`
}

// Nominatim geocodes with an OpenStreetMap Nominatim server. The public
// instance allows one request per second and requires a User-Agent.
type Nominatim struct {
	*options
}

// NewNominatim returns a Nominatim client, rate limited to 1 req/s by default.
func NewNominatim(opts ...Option) *Nominatim {
	o := newOptions(1, opts)
	if o.baseURL == "" {
		o.baseURL = DefaultNominatimURL
	}
	return &Nominatim{options: o}
}

// Name implements Client.
func (n *Nominatim) Name() string { return ProviderNominatim }

// Forward implements Client. A near point sets an unbounded viewbox so
// nearby matches rank first.
func (n *Nominatim) Forward(ctx context.Context, text string, near *model.Point) ([]model.DisplayRecord, error) {
	if strings.TrimSpace(text) == "" {
		return []model.DisplayRecord{}, nil
	}
	params := url.Values{
		"q":              {text},
		"format":         {"jsonv2"},
		"addressdetails": {"1"},
		"limit":          {strconv.Itoa(n.maxResults)},
	}
	if near != nil {
		const d = 0.25
		params.Set("viewbox", strings.Join([]string{
			formatCoord(near.Longitude - d), formatCoord(near.Latitude + d),
			formatCoord(near.Longitude + d), formatCoord(near.Latitude - d),
		}, ","))
	}

	var places []nominatimPlace
	if err := n.get(ctx, "/search", params, &places); err != nil {
		return nil, err
	}
	out := make([]model.DisplayRecord, 0, len(places))
	for _, p := range places {
		rec, err := p.toDisplay("")
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Reverse implements Client. Nominatim returns at most one place.
func (n *Nominatim) Reverse(ctx context.Context, at model.Point, text string) ([]model.DisplayRecord, error) {
	params := url.Values{
		"lat":            {formatCoord(at.Latitude)},
		"lon":            {formatCoord(at.Longitude)},
		"format":         {"jsonv2"},
		"addressdetails": {"1"},
	}

	var place nominatimPlace
	if err := n.get(ctx, "/reverse", params, &place); err != nil {
		return nil, err
	}
	// "Unable to geocode" is how Nominatim reports an empty reverse result.
	if place.Error != "" {
		return []model.DisplayRecord{}, nil
	}
	rec, err := place.toDisplay(text)
	if err != nil {
		return nil, err
	}
	return []model.DisplayRecord{rec}, nil
}

func (n *Nominatim) get(ctx context.Context, path string, params url.Values, dst any) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "geocode: nominatim rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("Accept", "application/json")
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return &resilience.StatusError{Service: ProviderNominatim, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return eris.Wrap(err, "geocode: nominatim parse response")
	}
	return nil
}

func (p nominatimPlace) toDisplay(fallbackName string) (model.DisplayRecord, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return model.DisplayRecord{}, eris.Wrapf(err, "geocode: nominatim latitude %q", p.Lat)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return model.DisplayRecord{}, eris.Wrapf(err, "geocode: nominatim longitude %q", p.Lon)
	}

	a := p.Address
	rec := model.DisplayRecord{
		Address:    p.DisplayName,
		Street1:    strings.TrimSpace(a.HouseNumber + " " + a.Road),
		Province:   a.State,
		PostalCode: a.Postcode,
		Country:    strings.ToUpper(a.CountryCode),
		Latitude:   lat,
		Longitude:  lon,
		Source:     model.SourceGeocoder,
		Provider:   ProviderNominatim,
	}
	for _, c := range []string{a.City, a.Town, a.Village} {
		if c != "" {
			rec.City = c
			break
		}
	}

	switch {
	case p.Name != "":
		rec.Name = p.Name
	case fallbackName != "":
		rec.Name = fallbackName
	default:
		rec.Name = firstSegment(p.DisplayName)
	}
	return rec, nil
}
