// Package geocode turns free text into place candidates and coordinates into
// addresses using Google or Nominatim.
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/fleetops/fleetops/internal/model"
)

// Provider names.
const (
	ProviderGoogle    = "google"
	ProviderNominatim = "nominatim"
	ProviderNone      = "none"
)

// Client geocodes in both directions. Results carry Source "geocoder", no
// storage id, and keep the provider's order.
type Client interface {
	// Name identifies the provider in logs and error messages.
	Name() string

	// Forward resolves free text, biased towards near when it is set.
	Forward(ctx context.Context, text string, near *model.Point) ([]model.DisplayRecord, error)

	// Reverse resolves a coordinate. text labels unnamed results.
	Reverse(ctx context.Context, at model.Point, text string) ([]model.DisplayRecord, error)
}

// Option configures a provider client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	baseURL    string
	apiKey     string
	maxResults int
}

// WithHTTPClient sets the HTTP client used for provider requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		if hc != nil {
			o.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero or less disables it.
func WithRateLimit(rps float64) Option {
	return func(o *options) {
		if rps <= 0 {
			o.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
}

// WithUserAgent sets the User-Agent header. Nominatim requires one.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithBaseURL points the client at a different endpoint, e.g. a self-hosted
// Nominatim.
func WithBaseURL(u string) Option {
	return func(o *options) {
		if strings.TrimSpace(u) != "" {
			o.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithAPIKey sets the Google API key.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithMaxResults caps forward results per call.
func WithMaxResults(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxResults = n
		}
	}
}

func newOptions(defaultRPS float64, opts []Option) *options {
	o := &options{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		userAgent:  "fleetops/1.0",
		maxResults: 5,
	}
	WithRateLimit(defaultRPS)(o)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// New builds the client for the named provider. ProviderNone and "" return a
// client that never yields results.
func New(provider string, opts ...Option) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderGoogle:
		return NewGoogle(opts...)
	case ProviderNominatim:
		return NewNominatim(opts...), nil
	case ProviderNone, "":
		return Disabled{}, nil
	default:
		return nil, eris.Errorf("geocode: unknown provider %q", provider)
	}
}

// Disabled is a Client that returns no candidates.
type Disabled struct{}

// Name implements Client.
func (Disabled) Name() string { return ProviderNone }

// Forward implements Client.
func (Disabled) Forward(context.Context, string, *model.Point) ([]model.DisplayRecord, error) {
	return []model.DisplayRecord{}, nil
}

// Reverse implements Client.
func (Disabled) Reverse(context.Context, model.Point, string) ([]model.DisplayRecord, error) {
	return []model.DisplayRecord{}, nil
}

// firstSegment returns the text before the first comma of a formatted address.
func firstSegment(s string) string {
	if i := strings.IndexByte(s, ','); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
