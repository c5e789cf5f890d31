// Package fleet is the application layer shared by the HTTP API and the CLI.
package fleet

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fleetops/fleetops/internal/export"
	"github.com/fleetops/fleetops/internal/importer"
	"github.com/fleetops/fleetops/internal/model"
	"github.com/fleetops/fleetops/internal/search"
	"github.com/fleetops/fleetops/internal/store"
)

// MsgNothingToDelete is returned for a bulk delete without ids.
const MsgNothingToDelete = "Nothing to delete."

// Importer runs spreadsheet imports.
type Importer interface {
	Import(ctx context.Context, scope model.Scope, req importer.Request) (model.ImportSummary, error)
}

// Searcher answers place searches and geocode-only lookups.
type Searcher interface {
	Search(ctx context.Context, scope model.Scope, q model.SearchQuery) ([]model.DisplayRecord, error)
	Geocode(ctx context.Context, q model.SearchQuery) ([]model.DisplayRecord, error)
}

var _ Searcher = (*search.Engine)(nil)

// Service exposes the fleet operations.
type Service struct {
	store    store.Store
	importer Importer
	searcher Searcher
	now      func() time.Time
}

// NewService wires a Service.
func NewService(st store.Store, imp Importer, s Searcher) *Service {
	return &Service{
		store:    st,
		importer: imp,
		searcher: s,
		now:      time.Now,
	}
}

// Import imports the given files as kind.
func (s *Service) Import(ctx context.Context, scope model.Scope, req importer.Request) (model.ImportSummary, error) {
	return s.importer.Import(ctx, scope, req)
}

// Search runs a hybrid place search.
func (s *Service) Search(ctx context.Context, scope model.Scope, q model.SearchQuery) ([]model.DisplayRecord, error) {
	return s.searcher.Search(ctx, scope, q)
}

// Geocode runs a geocode-only lookup.
func (s *Service) Geocode(ctx context.Context, q model.SearchQuery) ([]model.DisplayRecord, error) {
	return s.searcher.Geocode(ctx, q)
}

// DeleteResult reports a successful bulk delete.
type DeleteResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Count   int64  `json:"count"`
}

// BulkDelete soft deletes the records of kind matching ids. The reported
// count is the number of matching records before the delete.
func (s *Service) BulkDelete(ctx context.Context, scope model.Scope, kind model.EntityKind, ids []string) (*DeleteResult, error) {
	ids = compact(ids)
	if len(ids) == 0 {
		return nil, model.NewError(model.ErrEmptyInput, MsgNothingToDelete, nil)
	}

	count, err := s.store.CountRecords(ctx, scope, kind, ids)
	if err != nil {
		return nil, eris.Wrapf(err, "fleet: count %s", kind.Plural())
	}
	deleted, err := s.store.DeleteRecords(ctx, scope, kind, ids)
	if err != nil {
		return nil, model.NewError(model.ErrNotDeleted, failedDeleteMessage(kind), err)
	}
	if deleted == 0 {
		return nil, model.NewError(model.ErrNotDeleted, failedDeleteMessage(kind), nil)
	}

	zap.L().Info("fleet: bulk delete",
		zap.String("company", scope.CompanyUUID),
		zap.String("kind", string(kind)),
		zap.Int64("matched", count),
		zap.Int64("deleted", deleted),
	)
	return &DeleteResult{
		Status:  "OK",
		Message: fmt.Sprintf("Deleted %d %s", count, kind.Plural()),
		Count:   count,
	}, nil
}

func failedDeleteMessage(kind model.EntityKind) string {
	return "Failed to bulk delete " + kind.Plural() + "."
}

// ExportFile is a rendered export.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Export renders the records of kind matching ids, or all of them when ids
// is empty, in the requested format.
func (s *Service) Export(ctx context.Context, scope model.Scope, kind model.EntityKind, format string, ids []string) (*ExportFile, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	records, err := s.store.FindRecords(ctx, scope, kind, compact(ids))
	if err != nil {
		return nil, eris.Wrapf(err, "fleet: load %s", kind.Plural())
	}

	var buf bytes.Buffer
	sheet := strings.ToUpper(kind.Plural()[:1]) + kind.Plural()[1:]
	if err := export.Write(&buf, f, sheet, store.ExportColumns(kind), records); err != nil {
		return nil, err
	}
	return &ExportFile{
		Name:        export.Filename(kind, s.now(), f),
		ContentType: f.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

// VehicleStatuses lists the distinct statuses in use by the company's vehicles.
func (s *Service) VehicleStatuses(ctx context.Context, scope model.Scope) ([]string, error) {
	return s.store.VehicleStatuses(ctx, scope)
}

// RegisterFile records an uploaded file so imports can reference it.
func (s *Service) RegisterFile(ctx context.Context, meta model.FileMeta) (*model.FileMeta, error) {
	if meta.Path == "" {
		return nil, eris.New("fleet: file path is required")
	}
	return s.store.RegisterFile(ctx, meta)
}

// compact drops blank ids.
func compact(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
