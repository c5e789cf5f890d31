// Package store persists places, vehicles and uploaded file metadata.
package store

import (
	"context"

	"github.com/fleetops/fleetops/internal/model"
)

// LocalQuery selects stored places for a search. Near switches the ordering
// from name descending to distance ascending. Limit 0 means unlimited.
type LocalQuery struct {
	Text  string
	Near  *model.Point
	Limit int
}

// Store defines the persistence interface. Every call is scoped to one
// company and ignores soft-deleted rows.
type Store interface {
	// Places search
	SearchPlaces(ctx context.Context, scope model.Scope, q LocalQuery) ([]model.DisplayRecord, error)

	// Records; an empty id list selects every record of the kind.
	FindRecords(ctx context.Context, scope model.Scope, kind model.EntityKind, ids []string) ([]model.Record, error)
	CountRecords(ctx context.Context, scope model.Scope, kind model.EntityKind, ids []string) (int64, error)
	DeleteRecords(ctx context.Context, scope model.Scope, kind model.EntityKind, ids []string) (int64, error)
	InsertRecords(ctx context.Context, scope model.Scope, kind model.EntityKind, records []model.Record) (int64, error)
	VehicleStatuses(ctx context.Context, scope model.Scope) ([]string, error)

	// Uploaded files
	FindFiles(ctx context.Context, scope model.Scope, ids []string) ([]model.FileMeta, error)
	RegisterFile(ctx context.Context, meta model.FileMeta) (*model.FileMeta, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// orderFiles returns metas in the order of ids, failing with NotFound on the
// first id that did not resolve. An id matches a file's uuid or public id.
// A file named more than once, by either id, is returned once at its first
// position.
func orderFiles(ids []string, found []model.FileMeta) ([]model.FileMeta, error) {
	byID := make(map[string]model.FileMeta, len(found)*2)
	for _, f := range found {
		byID[f.UUID] = f
		if f.PublicID != "" {
			byID[f.PublicID] = f
		}
	}
	out := make([]model.FileMeta, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		f, ok := byID[id]
		if !ok {
			return nil, model.NewError(model.ErrNotFound, "file not found: "+id, nil)
		}
		if seen[f.UUID] {
			continue
		}
		seen[f.UUID] = true
		out = append(out, f)
	}
	return out, nil
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
