package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/fleetops/fleetops/internal/model"
	"github.com/fleetops/fleetops/internal/resilience"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

type googleGeocodeResponse struct {
	Results      []googleResult `json:"results"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
}

type googleResult struct {
	AddressComponents []struct {
		LongName  string   `json:"long_name"`
		ShortName string   `json:"short_name"`
		Types     []string `json:"types"`
	} `json:"address_components"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// Google geocodes with the Google Geocoding API.
type Google struct {
	*options
	endpoint string
}

// NewGoogle returns a Google client. WithAPIKey is required.
func NewGoogle(opts ...Option) (*Google, error) {
	o := newOptions(50, opts)
	if o.apiKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}
	endpoint := googleGeocodeURL
	if o.baseURL != "" {
		endpoint = o.baseURL
	}
	return &Google{options: o, endpoint: endpoint}, nil
}

// Name implements Client.
func (g *Google) Name() string { return ProviderGoogle }

// Forward implements Client. A near point adds a small viewport bias.
func (g *Google) Forward(ctx context.Context, text string, near *model.Point) ([]model.DisplayRecord, error) {
	if strings.TrimSpace(text) == "" {
		return []model.DisplayRecord{}, nil
	}
	params := url.Values{"address": {text}}
	if near != nil {
		params.Set("bounds", boundsAround(*near, 0.25))
	}
	return g.do(ctx, params, "")
}

// Reverse implements Client.
func (g *Google) Reverse(ctx context.Context, at model.Point, text string) ([]model.DisplayRecord, error) {
	params := url.Values{"latlng": {formatCoord(at.Latitude) + "," + formatCoord(at.Longitude)}}
	return g.do(ctx, params, text)
}

func (g *Google) do(ctx context.Context, params url.Values, fallbackName string) ([]model.DisplayRecord, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: google rate limit")
	}

	params.Set("key", g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.StatusError{Service: ProviderGoogle, StatusCode: resp.StatusCode}
	}

	var gr googleGeocodeResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	switch gr.Status {
	case "OK":
	case "ZERO_RESULTS":
		return []model.DisplayRecord{}, nil
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return nil, &resilience.StatusError{Service: ProviderGoogle, StatusCode: http.StatusTooManyRequests, Body: googleMessage(gr)}
	default:
		return nil, eris.Errorf("geocode: google %s", googleMessage(gr))
	}

	results := gr.Results
	if len(results) > g.maxResults {
		results = results[:g.maxResults]
	}
	out := make([]model.DisplayRecord, 0, len(results))
	for _, r := range results {
		out = append(out, r.toDisplay(fallbackName))
	}
	return out, nil
}

func googleMessage(gr googleGeocodeResponse) string {
	if gr.ErrorMessage != "" {
		return gr.Status + ": " + gr.ErrorMessage
	}
	return gr.Status
}

func (r googleResult) toDisplay(fallbackName string) model.DisplayRecord {
	rec := model.DisplayRecord{
		Address:   r.FormattedAddress,
		Latitude:  r.Geometry.Location.Lat,
		Longitude: r.Geometry.Location.Lng,
		Source:    model.SourceGeocoder,
		Provider:  ProviderGoogle,
	}

	var number, route, name string
	for _, c := range r.AddressComponents {
		for _, typ := range c.Types {
			switch typ {
			case "street_number":
				number = c.LongName
			case "route":
				route = c.LongName
			case "locality", "postal_town":
				if rec.City == "" {
					rec.City = c.LongName
				}
			case "administrative_area_level_1":
				rec.Province = c.ShortName
			case "postal_code":
				rec.PostalCode = c.LongName
			case "country":
				rec.Country = strings.ToUpper(c.ShortName)
			case "premise", "point_of_interest", "establishment":
				if name == "" {
					name = c.LongName
				}
			}
		}
	}
	rec.Street1 = strings.TrimSpace(number + " " + route)

	switch {
	case name != "":
		rec.Name = name
	case fallbackName != "":
		rec.Name = fallbackName
	default:
		rec.Name = firstSegment(r.FormattedAddress)
	}
	return rec
}

// boundsAround returns a "south,west|north,east" box of delta degrees.
func boundsAround(p model.Point, delta float64) string {
	return formatCoord(p.Latitude-delta) + "," + formatCoord(p.Longitude-delta) + "|" +
		formatCoord(p.Latitude+delta) + "," + formatCoord(p.Longitude+delta)
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
