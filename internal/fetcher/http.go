package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/fleetops/fleetops/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// Retries is the number of extra attempts after a transient failure.
	Retries   int
	RateLimit rate.Limit // requests per second; 0 = 20
	Client    *http.Client
}

// HTTPFetcher downloads files from an HTTP disk with retries and rate limiting.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
	policy  resilience.Policy
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retries == 0 {
		opts.Retries = 2
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "fleetops/1.0"
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 20
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	burst := 1
	if opts.RateLimit > 1 && opts.RateLimit != rate.Inf {
		burst = int(opts.RateLimit)
	}

	policy := resilience.PolicyFor(opts.Retries)
	policy.OnRetry = resilience.LogRetry("disk")
	return &HTTPFetcher{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(opts.RateLimit, burst),
		policy:  policy,
	}
}

// Download fetches the URL and returns the response body. Throttling and
// 5xx responses are retried; any other non-200 status fails at once.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	body, err := resilience.Retry(ctx, f.policy, func(ctx context.Context) (io.ReadCloser, error) {
		return f.get(ctx, rawURL)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "download %s", rawURL)
	}
	return body, nil
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &resilience.StatusError{Service: "disk", StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}
