package geocode

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/fleetops/internal/model"
	"github.com/fleetops/fleetops/internal/resilience"
)

const whiteHouseResponse = `{
	"status": "OK",
	"results": [{
		"address_components": [
			{"long_name": "1600", "short_name": "1600", "types": ["street_number"]},
			{"long_name": "Pennsylvania Avenue Northwest", "short_name": "Pennsylvania Ave NW", "types": ["route"]},
			{"long_name": "Washington", "short_name": "Washington", "types": ["locality", "political"]},
			{"long_name": "District of Columbia", "short_name": "DC", "types": ["administrative_area_level_1", "political"]},
			{"long_name": "United States", "short_name": "us", "types": ["country", "political"]},
			{"long_name": "20500", "short_name": "20500", "types": ["postal_code"]}
		],
		"geometry": {"location": {"lat": 38.8977, "lng": -77.0365}},
		"formatted_address": "1600 Pennsylvania Avenue NW, Washington, DC 20500, USA"
	}, {
		"geometry": {"location": {"lat": 38.9, "lng": -77.0}},
		"formatted_address": "Washington, DC, USA"
	}]
}`

func newTestGoogle(t *testing.T, srv *httptest.Server, opts ...Option) *Google {
	t.Helper()
	opts = append([]Option{WithAPIKey("test-key"), WithHTTPClient(newRewriteClient(srv.URL, googleGeocodeURL))}, opts...)
	g, err := NewGoogle(opts...)
	require.NoError(t, err)
	g.limiter = newTestLimiter()
	return g
}

func TestGoogle_Forward(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, whiteHouseResponse)
	}))
	defer srv.Close()

	g := newTestGoogle(t, srv)
	got, err := g.Forward(context.Background(), "1600 Pennsylvania Ave", nil)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, []string{"1600 Pennsylvania Ave"}, gotQuery["address"])
	assert.Equal(t, []string{"test-key"}, gotQuery["key"])
	assert.NotContains(t, gotQuery, "bounds")

	first := got[0]
	assert.Equal(t, "1600 Pennsylvania Avenue NW", first.Name)
	assert.Equal(t, "1600 Pennsylvania Avenue Northwest", first.Street1)
	assert.Equal(t, "Washington", first.City)
	assert.Equal(t, "DC", first.Province)
	assert.Equal(t, "20500", first.PostalCode)
	assert.Equal(t, "US", first.Country)
	assert.InDelta(t, 38.8977, first.Latitude, 0.0001)
	assert.Equal(t, model.SourceGeocoder, first.Source)
	assert.Equal(t, ProviderGoogle, first.Provider)
	assert.Empty(t, first.UUID)
	assert.Equal(t, "Washington", got[1].Name)
}

func TestGoogle_ForwardNearAddsBounds(t *testing.T) {
	var bounds string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bounds = r.URL.Query().Get("bounds")
		_, _ = io.WriteString(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer srv.Close()

	g := newTestGoogle(t, srv)
	got, err := g.Forward(context.Background(), "depot", &model.Point{Latitude: 1, Longitude: 2})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, "0.75,1.75|1.25,2.25", bounds)
}

func TestGoogle_MaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, whiteHouseResponse)
	}))
	defer srv.Close()

	g := newTestGoogle(t, srv, WithMaxResults(1))
	got, err := g.Forward(context.Background(), "white house", nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestGoogle_Reverse(t *testing.T) {
	var latlng string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		latlng = r.URL.Query().Get("latlng")
		_, _ = io.WriteString(w, `{"status":"OK","results":[{"geometry":{"location":{"lat":1.5,"lng":2.5}},"formatted_address":"Main St, Town"}]}`)
	}))
	defer srv.Close()

	g := newTestGoogle(t, srv)
	got, err := g.Reverse(context.Background(), model.Point{Latitude: 1.5, Longitude: 2.5}, "Drop-off")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1.5,2.5", latlng)
	assert.Equal(t, "Drop-off", got[0].Name)
	assert.Equal(t, "Main St, Town", got[0].Address)
}

func TestGoogle_EmptyTextSkipsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	got, err := newTestGoogle(t, srv).Forward(context.Background(), "  ", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGoogle_RequestDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid.","results":[]}`)
	}))
	defer srv.Close()

	_, err := newTestGoogle(t, srv).Forward(context.Background(), "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "The provided API key is invalid.")
	assert.False(t, resilience.IsTransient(err))
}

func TestGoogle_OverQueryLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"OVER_QUERY_LIMIT","results":[]}`)
	}))
	defer srv.Close()

	_, err := newTestGoogle(t, srv).Forward(context.Background(), "x", nil)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestGoogle_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestGoogle(t, srv).Forward(context.Background(), "x", nil)
	var se *resilience.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
}

func TestGoogle_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	}))
	defer srv.Close()

	_, err := newTestGoogle(t, srv).Forward(context.Background(), "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "google parse response")
}

func TestNewGoogle_RequiresKey(t *testing.T) {
	_, err := NewGoogle()
	require.Error(t, err)
}
