// Package importer turns uploaded spreadsheets into normalized place and
// vehicle records.
package importer

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fleetops/fleetops/internal/events"
	"github.com/fleetops/fleetops/internal/fetcher"
	"github.com/fleetops/fleetops/internal/model"
)

// Caller-facing messages for file level failures.
var (
	MsgUnsupportedFormat = "Invalid file uploaded, must be one of the following: " +
		strings.Join(model.AllowedImportExtensions, ", ")
	MsgDecodeFailed = "Invalid file, unable to process."
)

var tracer = otel.Tracer("fleetops/importer")

// FileFinder resolves upload ids to file metadata, in request order.
type FileFinder interface {
	FindFiles(ctx context.Context, scope model.Scope, ids []string) ([]model.FileMeta, error)
}

// FileReader reads a stored file from a named disk.
type FileReader interface {
	Read(ctx context.Context, diskName, filePath string) ([]byte, error)
}

// SheetDecoder decodes file bytes of the given format into sheets.
type SheetDecoder interface {
	Read(ctx context.Context, data []byte, format string) ([]fetcher.Sheet, error)
}

// RowNormalizer maps one raw row onto the canonical record shape.
type RowNormalizer interface {
	Normalize(raw any, kind model.EntityKind) (model.Record, []model.Warning, error)
}

// BulkInserter persists a batch of records in one call.
type BulkInserter interface {
	InsertRecords(ctx context.Context, scope model.Scope, kind model.EntityKind, records []model.Record) (int64, error)
}

// Request names the files to import and what they contain.
type Request struct {
	Files []string
	// Disk selects the storage disk; empty means the pipeline default.
	Disk string
	Kind model.EntityKind
}

// FileReport describes what one file contributed.
type FileReport struct {
	File     model.FileMeta `json:"file"`
	Sheets   int            `json:"sheets"`
	Rows     int            `json:"rows"`
	Skipped  bool           `json:"skipped"`
	Warnings int            `json:"warnings"`
}

// Batch is the result of Run.
type Batch struct {
	Kind      model.EntityKind
	Records   []model.Record
	Warnings  []model.Warning
	Files     []FileReport
	Persisted int64
}

// Pipeline runs imports.
type Pipeline struct {
	files      FileFinder
	disks      FileReader
	sheets     SheetDecoder
	normalizer RowNormalizer
	inserter   BulkInserter
	publisher  events.Publisher

	workers       int
	persistPlaces bool
	defaultDisk   string
	now           func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers bounds concurrent row normalization.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithPersistPlaces makes place imports persist like vehicle imports.
func WithPersistPlaces(on bool) Option {
	return func(p *Pipeline) { p.persistPlaces = on }
}

// WithPublisher sets where ImportCompleted events go.
func WithPublisher(pub events.Publisher) Option {
	return func(p *Pipeline) {
		if pub != nil {
			p.publisher = pub
		}
	}
}

// WithDefaultDisk names the disk used when a request has none.
func WithDefaultDisk(name string) Option {
	return func(p *Pipeline) { p.defaultDisk = name }
}

// New creates a Pipeline.
func New(files FileFinder, disks FileReader, sheets SheetDecoder, normalizer RowNormalizer, inserter BulkInserter, opts ...Option) *Pipeline {
	p := &Pipeline{
		files:      files,
		disks:      disks,
		sheets:     sheets,
		normalizer: normalizer,
		inserter:   inserter,
		publisher:  events.Nop{},
		workers:    4,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Import runs the pipeline and reports the summary callers see.
func (p *Pipeline) Import(ctx context.Context, scope model.Scope, req Request) (model.ImportSummary, error) {
	batch, err := p.Run(ctx, scope, req)
	if err != nil {
		return model.ImportSummary{Status: model.ImportStatusError, Message: model.MessageOf(err)}, err
	}

	warnings := len(batch.Warnings)
	ev := events.ImportCompleted{
		CompanyUUID: scope.CompanyUUID,
		Kind:        batch.Kind,
		Files:       req.Files,
		Count:       len(batch.Records),
		Persisted:   batch.Persisted,
		Warnings:    warnings,
		CompletedAt: p.now(),
	}
	if err := p.publisher.PublishImport(ctx, ev); err != nil {
		zap.L().Warn("importer: publish event failed", zap.Error(err))
	}

	return model.ImportSummary{
		Status:  model.ImportStatusOK,
		Message: model.ImportCompleted,
		Count:   len(batch.Records),
	}, nil
}

// Run reads, decodes and normalizes every requested file in order, then
// persists the batch when the kind calls for it. The first file level
// failure aborts the whole import.
func (p *Pipeline) Run(ctx context.Context, scope model.Scope, req Request) (*Batch, error) {
	if !req.Kind.Valid() {
		return nil, eris.Errorf("importer: unknown entity kind %q", req.Kind)
	}
	disk := req.Disk
	if disk == "" {
		disk = p.defaultDisk
	}

	ctx, span := tracer.Start(ctx, "importer.run", trace.WithAttributes(
		attribute.String("import.kind", string(req.Kind)),
		attribute.Int("import.files", len(req.Files)),
		attribute.String("import.disk", disk),
	))
	defer span.End()

	batch, err := p.run(ctx, scope, req, disk)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, model.MessageOf(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("import.records", len(batch.Records)),
		attribute.Int64("import.persisted", batch.Persisted),
	)
	return batch, nil
}

func (p *Pipeline) run(ctx context.Context, scope model.Scope, req Request, disk string) (*Batch, error) {
	log := zap.L().With(
		zap.String("company", scope.CompanyUUID),
		zap.String("kind", string(req.Kind)),
	)

	metas, err := p.files.FindFiles(ctx, scope, req.Files)
	if err != nil {
		return nil, err
	}

	batch := &Batch{Kind: req.Kind, Files: make([]FileReport, len(metas))}
	var (
		rows   []model.RawRow
		origin []int // file index per row
	)
	for i, meta := range metas {
		report, fileRows, err := p.readFile(ctx, disk, meta)
		if err != nil {
			return nil, err
		}
		if report.Skipped {
			log.Warn("importer: skipping workbook with multiple sheets",
				zap.String("file", meta.UUID),
				zap.String("path", meta.Path),
				zap.Int("sheets", report.Sheets),
			)
		}
		batch.Files[i] = report
		for range fileRows {
			origin = append(origin, i)
		}
		rows = append(rows, fileRows...)
	}

	records, warnings, err := p.normalizeAll(ctx, rows, req.Kind)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		batch.Files[origin[w.Row]].Warnings++
	}
	batch.Records = records
	batch.Warnings = warnings

	if req.Kind == model.KindVehicle || p.persistPlaces {
		n, err := p.inserter.InsertRecords(ctx, scope, req.Kind, records)
		if err != nil {
			return nil, eris.Wrapf(err, "importer: insert %s", req.Kind.Plural())
		}
		batch.Persisted = n
	}

	log.Info("importer: batch ready",
		zap.Int("files", len(metas)),
		zap.Int("records", len(records)),
		zap.Int("warnings", len(warnings)),
		zap.Int64("persisted", batch.Persisted),
	)
	return batch, nil
}

// readFile checks, reads and decodes one file. A workbook with more than
// one sheet contributes nothing.
func (p *Pipeline) readFile(ctx context.Context, disk string, meta model.FileMeta) (FileReport, []model.RawRow, error) {
	report := FileReport{File: meta}
	if !meta.Allowed() {
		return report, nil, model.NewError(model.ErrUnsupportedFormat, MsgUnsupportedFormat, nil)
	}

	data, err := p.disks.Read(ctx, disk, meta.Path)
	if err != nil {
		return report, nil, model.NewError(model.ErrDecode, MsgDecodeFailed, err)
	}
	sheets, err := p.sheets.Read(ctx, data, meta.Extension())
	if err != nil {
		return report, nil, model.NewError(model.ErrDecode, MsgDecodeFailed, err)
	}

	report.Sheets = len(sheets)
	if len(sheets) != 1 {
		report.Skipped = true
		return report, nil, nil
	}
	report.Rows = len(sheets[0].Rows)
	return report, sheets[0].Rows, nil
}

// normalizeAll normalizes rows concurrently. Output order matches input and
// every warning carries the index of its row in the batch.
func (p *Pipeline) normalizeAll(ctx context.Context, rows []model.RawRow, kind model.EntityKind) ([]model.Record, []model.Warning, error) {
	records := make([]model.Record, len(rows))
	perRow := make([][]model.Warning, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, row := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, warns, err := p.normalizer.Normalize(row, kind)
			if err != nil {
				return eris.Wrapf(err, "importer: row %d", i+1)
			}
			for j := range warns {
				warns[j].Row = i
			}
			records[i] = rec
			perRow[i] = warns
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var warnings []model.Warning
	for _, w := range perRow {
		warnings = append(warnings, w...)
	}
	return records, warnings, nil
}
