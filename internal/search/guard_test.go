package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/fleetops/internal/model"
	"github.com/fleetops/fleetops/internal/resilience"
	"github.com/fleetops/fleetops/pkg/geocode"
)

type flakyGeocoder struct {
	fakeGeocoder
	failures int
	failWith error
}

func (f *flakyGeocoder) Forward(ctx context.Context, text string, near *model.Point) ([]model.DisplayRecord, error) {
	res, _ := f.fakeGeocoder.Forward(ctx, text, near)
	if len(f.calls) <= f.failures {
		return nil, f.failWith
	}
	return res, nil
}

func fastGuard(c geocode.Client, retries, threshold int) geocode.Client {
	g := Guard(c, GuardConfig{Retries: retries, BreakerThreshold: threshold, BreakerReset: time.Minute}).(*guarded)
	g.policy.Backoff = time.Millisecond
	g.policy.Jitter = 0
	return g
}

func TestGuard_RetriesTransient(t *testing.T) {
	inner := &flakyGeocoder{
		fakeGeocoder: fakeGeocoder{results: geocoded("G")},
		failures:     2,
		failWith:     &resilience.StatusError{Service: "fake", StatusCode: 503},
	}
	got, err := fastGuard(inner, 2, 5).Forward(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"G"}, recordNames(got))
	assert.Len(t, inner.calls, 3)
}

func TestGuard_PermanentNotRetried(t *testing.T) {
	inner := &flakyGeocoder{failures: 10, failWith: errors.New("REQUEST_DENIED")}
	_, err := fastGuard(inner, 3, 5).Forward(context.Background(), "x", nil)
	require.Error(t, err)
	assert.Len(t, inner.calls, 1)
}

func TestGuard_BreakerOpensIntoProviderError(t *testing.T) {
	inner := &fakeGeocoder{err: errors.New("boom")}
	guarded := fastGuard(inner, 0, 2)
	e := NewEngine(&fakePlaces{}, guarded)

	for range 2 {
		_, err := e.Search(context.Background(), scope, model.SearchQuery{Latitude: ptr(1), Longitude: ptr(1), Geo: true})
		require.Error(t, err)
	}
	_, err := e.Search(context.Background(), scope, model.SearchQuery{Latitude: ptr(1), Longitude: ptr(1), Geo: true})
	require.Error(t, err)
	assert.Equal(t, model.ErrProvider, model.KindOf(err))
	assert.ErrorIs(t, err, resilience.ErrOpen)
	assert.Len(t, inner.calls, 2, "open breaker skips the provider")
}

func TestGuard_DisabledPassThrough(t *testing.T) {
	c := Guard(geocode.Disabled{}, GuardConfig{})
	_, ok := c.(geocode.Disabled)
	assert.True(t, ok)
}
