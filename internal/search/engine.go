// Package search merges stored places with geocoding candidates.
package search

import (
	"context"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fleetops/fleetops/internal/model"
	"github.com/fleetops/fleetops/internal/store"
	"github.com/fleetops/fleetops/pkg/geocode"
)

var tracer = otel.Tracer("fleetops/search")

// PlaceSearcher runs the local half of a search.
type PlaceSearcher interface {
	SearchPlaces(ctx context.Context, scope model.Scope, q store.LocalQuery) ([]model.DisplayRecord, error)
}

// Engine answers hybrid place searches.
//
// Local results are ordered by distance when the query has both coordinates
// and by name descending otherwise. With Geo set, geocoding candidates are
// placed ahead of the local results in provider order. Candidates are never
// truncated by the limit and never persisted.
type Engine struct {
	places   PlaceSearcher
	geocoder geocode.Client
}

// NewEngine creates an Engine. A nil geocoder disables geocoding.
func NewEngine(places PlaceSearcher, geocoder geocode.Client) *Engine {
	if geocoder == nil {
		geocoder = geocode.Disabled{}
	}
	return &Engine{places: places, geocoder: geocoder}
}

// Search runs the local query and, when q.Geo is set, the matching geocoder
// call. A geocoder failure fails the whole search with a ProviderError.
func (e *Engine) Search(ctx context.Context, scope model.Scope, q model.SearchQuery) ([]model.DisplayRecord, error) {
	m, point := modeFor(q)
	ctx, span := tracer.Start(ctx, "search.places", trace.WithAttributes(
		attribute.String("search.mode", m.name),
		attribute.Bool("search.geo", q.Geo),
		attribute.Int("search.limit", q.Limit),
	))
	defer span.End()

	local := store.LocalQuery{Text: q.Text, Limit: max(q.Limit, 0)}
	if _, hasPoint := q.Point(); hasPoint {
		local.Near = &point
	}
	results, err := e.places.SearchPlaces(ctx, scope, local)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "local search failed")
		return nil, eris.Wrap(err, "search: local places")
	}

	if !q.Geo || m.geocode == nil {
		span.SetAttributes(attribute.Int("search.results", len(results)))
		return nonNil(results), nil
	}

	geocoded, err := m.geocode(ctx, e.geocoder, q, point)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocoding failed")
		return nil, providerError(e.geocoder.Name(), err)
	}
	merged := m.merge(geocoded, results)

	span.SetAttributes(
		attribute.Int("search.results", len(merged)),
		attribute.Int("search.geocoded", len(geocoded)),
	)
	zap.L().Debug("search: merged results",
		zap.String("company", scope.CompanyUUID),
		zap.String("mode", m.name),
		zap.Int("local", len(results)),
		zap.Int("geocoded", len(geocoded)),
	)
	return merged, nil
}

// Geocode runs only the geocoder: forward when text is given, reverse when
// only coordinates are, otherwise nothing.
func (e *Engine) Geocode(ctx context.Context, q model.SearchQuery) ([]model.DisplayRecord, error) {
	m, point := modeFor(q)
	ctx, span := tracer.Start(ctx, "search.geocode", trace.WithAttributes(
		attribute.String("search.mode", m.name),
	))
	defer span.End()

	if m.geocode == nil {
		return []model.DisplayRecord{}, nil
	}
	out, err := m.geocode(ctx, e.geocoder, q, point)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocoding failed")
		return nil, providerError(e.geocoder.Name(), err)
	}
	return m.merge(out, nil), nil
}

func providerError(provider string, err error) error {
	zap.L().Warn("search: geocoder failed", zap.String("provider", provider), zap.Error(err))
	return model.NewError(model.ErrProvider, err.Error(), err)
}

func nonNil(recs []model.DisplayRecord) []model.DisplayRecord {
	if recs == nil {
		return []model.DisplayRecord{}
	}
	return recs
}
