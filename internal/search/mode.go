package search

import (
	"context"

	"github.com/fleetops/fleetops/internal/model"
	"github.com/fleetops/fleetops/pkg/geocode"
)

// geoCall asks the geocoder for the candidates of one search mode.
type geoCall func(ctx context.Context, g geocode.Client, q model.SearchQuery, at model.Point) ([]model.DisplayRecord, error)

// mode is one row of the search decision table.
type mode struct {
	name    string
	geocode geoCall // nil means local results only
	prepend bool    // candidates go ahead of the local results
}

// modeKey is the (text present, coordinates present) pair a query maps to.
type modeKey struct {
	text  bool
	point bool
}

var modes = map[modeKey]mode{
	{text: true, point: false}:  {name: "text", geocode: forward, prepend: true},
	{text: true, point: true}:   {name: "text_near", geocode: forwardNear, prepend: true},
	{text: false, point: true}:  {name: "point", geocode: reverse, prepend: true},
	{text: false, point: false}: {name: "none"},
}

// modeFor looks up the row for q and returns it with q's reference point.
func modeFor(q model.SearchQuery) (mode, model.Point) {
	point, hasPoint := q.Point()
	return modes[modeKey{text: q.HasText(), point: hasPoint}], point
}

func forward(ctx context.Context, g geocode.Client, q model.SearchQuery, _ model.Point) ([]model.DisplayRecord, error) {
	return g.Forward(ctx, q.Text, nil)
}

func forwardNear(ctx context.Context, g geocode.Client, q model.SearchQuery, at model.Point) ([]model.DisplayRecord, error) {
	return g.Forward(ctx, q.Text, &at)
}

func reverse(ctx context.Context, g geocode.Client, _ model.SearchQuery, at model.Point) ([]model.DisplayRecord, error) {
	return g.Reverse(ctx, at, "")
}

// merge combines candidates and local results in the row's order.
func (m mode) merge(candidates, local []model.DisplayRecord) []model.DisplayRecord {
	out := make([]model.DisplayRecord, 0, len(candidates)+len(local))
	if m.prepend {
		out = append(out, candidates...)
		return append(out, local...)
	}
	out = append(out, local...)
	return append(out, candidates...)
}
