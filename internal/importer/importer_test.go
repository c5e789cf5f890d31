package importer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/fleetops/internal/events"
	"github.com/fleetops/fleetops/internal/fetcher"
	"github.com/fleetops/fleetops/internal/model"
	"github.com/fleetops/fleetops/internal/normalize"
)

var scope = model.Scope{CompanyUUID: "co-1"}

type fakeFiles map[string]model.FileMeta

func (f fakeFiles) FindFiles(_ context.Context, _ model.Scope, ids []string) ([]model.FileMeta, error) {
	out := make([]model.FileMeta, 0, len(ids))
	for _, id := range ids {
		m, ok := f[id]
		if !ok {
			return nil, model.NewError(model.ErrNotFound, "file not found: "+id, nil)
		}
		out = append(out, m)
	}
	return out, nil
}

type fakeDisk struct {
	files map[string][]byte
	disks []string
}

func (d *fakeDisk) Read(_ context.Context, diskName, filePath string) ([]byte, error) {
	d.disks = append(d.disks, diskName)
	data, ok := d.files[filePath]
	if !ok {
		return nil, errors.New("open " + filePath + ": no such file or directory")
	}
	return data, nil
}

type fakeSheets struct {
	sheets []fetcher.Sheet
}

func (f fakeSheets) Read(context.Context, []byte, string) ([]fetcher.Sheet, error) {
	return f.sheets, nil
}

type fakeInserter struct {
	mu    sync.Mutex
	calls int
	kind  model.EntityKind
	recs  []model.Record
	err   error
}

func (f *fakeInserter) InsertRecords(_ context.Context, _ model.Scope, kind model.EntityKind, recs []model.Record) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.kind, f.recs = kind, recs
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(recs)), nil
}

type fakePublisher struct {
	events []events.ImportCompleted
	err    error
}

func (f *fakePublisher) PublishImport(_ context.Context, ev events.ImportCompleted) error {
	f.events = append(f.events, ev)
	return f.err
}

func testFiles() fakeFiles {
	return fakeFiles{
		"f1":  {UUID: "f1", Path: "uploads/vehicles.csv"},
		"f2":  {UUID: "f2", Path: "uploads/MORE.TSV"},
		"pdf": {UUID: "pdf", Path: "uploads/manual.pdf"},
		"bad": {UUID: "bad", Path: "uploads/missing.csv"},
	}
}

func testDisk() *fakeDisk {
	return &fakeDisk{files: map[string][]byte{
		"uploads/vehicles.csv": []byte("ID,Name,Phone,Country,Created At\nv1,Truck 1,(555) 123-4567,United States,2024-01-02\nv2,Truck 2,,Atlantis,\n"),
		"uploads/MORE.TSV":     []byte("name\tstatus\nVan\tretired\n"),
	}}
}

func newTestPipeline(t *testing.T, ins BulkInserter, opts ...Option) *Pipeline {
	t.Helper()
	n, err := normalize.New()
	require.NoError(t, err)
	return New(testFiles(), testDisk(), fetcher.NewSheetReader(), n, ins, opts...)
}

func TestImport_Vehicles(t *testing.T) {
	ins := &fakeInserter{}
	pub := &fakePublisher{}
	p := newTestPipeline(t, ins, WithPublisher(pub), WithWorkers(2))

	summary, err := p.Import(context.Background(), scope, Request{Files: []string{"f1", "f2"}, Kind: model.KindVehicle})
	require.NoError(t, err)
	assert.Equal(t, model.ImportSummary{Status: "ok", Message: "Import completed", Count: 3}, summary)

	require.Equal(t, 1, ins.calls)
	assert.Equal(t, model.KindVehicle, ins.kind)
	require.Len(t, ins.recs, 3)

	first := ins.recs[0]
	assert.Equal(t, "v1", first["public_id"])
	assert.NotContains(t, first, "id")
	assert.Equal(t, "+15551234567", first["phone"])
	assert.Equal(t, "US", first["country"])
	assert.Equal(t, "2024-01-02", first["created_at"])
	assert.Equal(t, "active", first["status"])
	assert.Equal(t, false, first["online"])

	assert.Equal(t, "Atlantis", ins.recs[1]["country"])
	assert.Equal(t, "Van", ins.recs[2]["name"])
	assert.Equal(t, "active", ins.recs[2]["status"], "vehicle status is always reset")

	require.Len(t, pub.events, 1)
	assert.Equal(t, 3, pub.events[0].Count)
	assert.Equal(t, int64(3), pub.events[0].Persisted)
	assert.Equal(t, 1, pub.events[0].Warnings)
	assert.Equal(t, []string{"f1", "f2"}, pub.events[0].Files)
}

func TestRun_PlacesNotPersisted(t *testing.T) {
	ins := &fakeInserter{}
	p := newTestPipeline(t, ins)

	batch, err := p.Run(context.Background(), scope, Request{Files: []string{"f1"}, Kind: model.KindPlace})
	require.NoError(t, err)
	assert.Len(t, batch.Records, 2)
	assert.Zero(t, ins.calls)
	assert.Zero(t, batch.Persisted)
	assert.NotContains(t, batch.Records[0], "status")
}

func TestRun_PlacesPersistedWhenEnabled(t *testing.T) {
	ins := &fakeInserter{}
	p := newTestPipeline(t, ins, WithPersistPlaces(true))

	batch, err := p.Run(context.Background(), scope, Request{Files: []string{"f1"}, Kind: model.KindPlace})
	require.NoError(t, err)
	assert.Equal(t, 1, ins.calls)
	assert.Equal(t, int64(2), batch.Persisted)
}

func TestRun_WarningsPerFile(t *testing.T) {
	p := newTestPipeline(t, &fakeInserter{})

	batch, err := p.Run(context.Background(), scope, Request{Files: []string{"f2", "f1"}, Kind: model.KindPlace})
	require.NoError(t, err)
	require.Len(t, batch.Warnings, 1)
	assert.Equal(t, 2, batch.Warnings[0].Row)
	assert.Equal(t, "country", batch.Warnings[0].Field)
	assert.Equal(t, 0, batch.Files[0].Warnings)
	assert.Equal(t, 1, batch.Files[1].Warnings)
	assert.Equal(t, 1, batch.Files[0].Rows)
	assert.Equal(t, 2, batch.Files[1].Rows)
}

func TestRun_DiskSelection(t *testing.T) {
	disk := testDisk()
	n, err := normalize.New()
	require.NoError(t, err)
	p := New(testFiles(), disk, fetcher.NewSheetReader(), n, &fakeInserter{}, WithDefaultDisk("local"))

	_, err = p.Run(context.Background(), scope, Request{Files: []string{"f1"}, Kind: model.KindPlace})
	require.NoError(t, err)
	_, err = p.Run(context.Background(), scope, Request{Files: []string{"f1"}, Kind: model.KindPlace, Disk: "s3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"local", "s3"}, disk.disks)
}

func TestImport_UnsupportedFormat(t *testing.T) {
	ins := &fakeInserter{}
	pub := &fakePublisher{}
	p := newTestPipeline(t, ins, WithPublisher(pub))

	summary, err := p.Import(context.Background(), scope, Request{Files: []string{"f1", "pdf"}, Kind: model.KindVehicle})
	require.Error(t, err)
	assert.Equal(t, model.ErrUnsupportedFormat, model.KindOf(err))
	assert.Equal(t, "Invalid file uploaded, must be one of the following: csv, tsv, xls, xlsx", model.MessageOf(err))
	assert.Equal(t, "error", summary.Status)
	assert.Zero(t, ins.calls, "nothing persisted on abort")
	assert.Empty(t, pub.events)
}

func TestImport_DecodeError(t *testing.T) {
	p := newTestPipeline(t, &fakeInserter{})

	_, err := p.Import(context.Background(), scope, Request{Files: []string{"bad"}, Kind: model.KindVehicle})
	require.Error(t, err)
	assert.Equal(t, model.ErrDecode, model.KindOf(err))
	assert.Equal(t, "Invalid file, unable to process.", model.MessageOf(err))
}

func TestImport_NotFound(t *testing.T) {
	p := newTestPipeline(t, &fakeInserter{})

	_, err := p.Import(context.Background(), scope, Request{Files: []string{"f1", "nope"}, Kind: model.KindVehicle})
	require.Error(t, err)
	assert.Equal(t, model.ErrNotFound, model.KindOf(err))
	assert.Contains(t, model.MessageOf(err), "nope")
}

func TestRun_MultiSheetSkipped(t *testing.T) {
	n, err := normalize.New()
	require.NoError(t, err)
	sheets := fakeSheets{sheets: []fetcher.Sheet{
		{Name: "A", Rows: []model.RawRow{{"name": "a"}}},
		{Name: "B", Rows: []model.RawRow{{"name": "b"}}},
	}}
	p := New(testFiles(), testDisk(), sheets, n, &fakeInserter{})

	batch, err := p.Run(context.Background(), scope, Request{Files: []string{"f1"}, Kind: model.KindPlace})
	require.NoError(t, err)
	assert.Empty(t, batch.Records)
	assert.True(t, batch.Files[0].Skipped)
	assert.Equal(t, 2, batch.Files[0].Sheets)
}

func TestRun_InsertError(t *testing.T) {
	p := newTestPipeline(t, &fakeInserter{err: errors.New("copy failed")})

	_, err := p.Run(context.Background(), scope, Request{Files: []string{"f1"}, Kind: model.KindVehicle})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "importer: insert vehicles")
}

func TestRun_UnknownKind(t *testing.T) {
	p := newTestPipeline(t, &fakeInserter{})
	_, err := p.Run(context.Background(), scope, Request{Kind: "driver"})
	assert.Error(t, err)
}

func TestImport_PublishFailureIgnored(t *testing.T) {
	p := newTestPipeline(t, &fakeInserter{}, WithPublisher(&fakePublisher{err: errors.New("nats down")}))
	summary, err := p.Import(context.Background(), scope, Request{Files: []string{"f2"}, Kind: model.KindVehicle})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count)
}

func TestImport_NoFiles(t *testing.T) {
	p := newTestPipeline(t, &fakeInserter{})
	summary, err := p.Import(context.Background(), scope, Request{Kind: model.KindPlace})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Count)
	assert.Equal(t, "Import completed", summary.Message)
}

func TestNormalizeAll_PreservesOrder(t *testing.T) {
	n, err := normalize.New()
	require.NoError(t, err)
	p := New(nil, nil, nil, n, nil, WithWorkers(8))

	rows := make([]model.RawRow, 200)
	for i := range rows {
		rows[i] = model.RawRow{"id": i}
	}
	recs, _, err := p.normalizeAll(context.Background(), rows, model.KindPlace)
	require.NoError(t, err)
	for i, r := range recs {
		assert.Equal(t, i, r["public_id"])
	}
}
