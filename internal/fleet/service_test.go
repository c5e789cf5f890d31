package fleet

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/fleetops/internal/importer"
	"github.com/fleetops/fleetops/internal/model"
	"github.com/fleetops/fleetops/internal/store"
)

var scope = model.Scope{CompanyUUID: "co-1"}

type stubImporter struct {
	req importer.Request
}

func (s *stubImporter) Import(_ context.Context, _ model.Scope, req importer.Request) (model.ImportSummary, error) {
	s.req = req
	return model.ImportSummary{Status: "ok", Message: "Import completed", Count: 2}, nil
}

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, model.Scope, model.SearchQuery) ([]model.DisplayRecord, error) {
	return []model.DisplayRecord{{Name: "local"}}, nil
}

func (stubSearcher) Geocode(context.Context, model.SearchQuery) ([]model.DisplayRecord, error) {
	return []model.DisplayRecord{{Name: "geo"}}, nil
}

func newTestService(t *testing.T) (*Service, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	_, err = st.InsertRecords(context.Background(), scope, model.KindPlace, []model.Record{
		{"public_id": "p1", "name": "Depot"},
		{"public_id": "p2", "name": "Yard"},
		{"public_id": "p3", "name": "Dock"},
	})
	require.NoError(t, err)

	svc := NewService(st, &stubImporter{}, stubSearcher{})
	svc.now = func() time.Time { return time.Date(2026, 10, 16, 14, 30, 0, 0, time.UTC) }
	return svc, st
}

func TestBulkDelete(t *testing.T) {
	svc, st := newTestService(t)

	res, err := svc.BulkDelete(context.Background(), scope, model.KindPlace, []string{"p1", "p2", "missing"})
	require.NoError(t, err)
	assert.Equal(t, &DeleteResult{Status: "OK", Message: "Deleted 2 places", Count: 2}, res)

	n, err := st.CountRecords(context.Background(), scope, model.KindPlace, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestBulkDelete_Empty(t *testing.T) {
	svc, st := newTestService(t)

	_, err := svc.BulkDelete(context.Background(), scope, model.KindPlace, []string{" ", ""})
	require.Error(t, err)
	assert.Equal(t, model.ErrEmptyInput, model.KindOf(err))
	assert.Equal(t, "Nothing to delete.", model.MessageOf(err))

	n, err := st.CountRecords(context.Background(), scope, model.KindPlace, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "no mutation")
}

func TestBulkDelete_NothingMatched(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.BulkDelete(context.Background(), scope, model.KindPlace, []string{"nope"})
	require.Error(t, err)
	assert.Equal(t, model.ErrNotDeleted, model.KindOf(err))
	assert.Equal(t, "Failed to bulk delete places.", model.MessageOf(err))
}

func TestBulkDelete_Vehicles(t *testing.T) {
	svc, st := newTestService(t)
	_, err := st.InsertRecords(context.Background(), scope, model.KindVehicle, []model.Record{{"public_id": "v1"}})
	require.NoError(t, err)

	res, err := svc.BulkDelete(context.Background(), scope, model.KindVehicle, []string{"v1"})
	require.NoError(t, err)
	assert.Equal(t, "Deleted 1 vehicles", res.Message)
}

func TestBulkDelete_OtherCompany(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.BulkDelete(context.Background(), model.Scope{CompanyUUID: "other"}, model.KindPlace, []string{"p1"})
	assert.Equal(t, model.ErrNotDeleted, model.KindOf(err))
}

func TestExport_CSVSelection(t *testing.T) {
	svc, _ := newTestService(t)

	f, err := svc.Export(context.Background(), scope, model.KindPlace, "csv", []string{"p3"})
	require.NoError(t, err)
	assert.Equal(t, "places-2026-10-16-1430.csv", f.Name)
	assert.Equal(t, "text/csv; charset=utf-8", f.ContentType)

	lines := strings.Split(strings.TrimSpace(string(f.Data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "public_id,name,street1,street2,city,province,postal_code,country,phone,latitude,longitude,created_at", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "p3,Dock,"))
}

func TestExport_DefaultsToAllXLSX(t *testing.T) {
	svc, _ := newTestService(t)

	f, err := svc.Export(context.Background(), scope, model.KindPlace, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "places-2026-10-16-1430.xlsx", f.Name)
	assert.NotEmpty(t, f.Data)
	assert.Equal(t, []byte("PK"), f.Data[:2])
}

func TestExport_BadFormat(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Export(context.Background(), scope, model.KindPlace, "pdf", nil)
	assert.Equal(t, model.ErrUnsupportedFormat, model.KindOf(err))
}

func TestVehicleStatuses(t *testing.T) {
	svc, st := newTestService(t)
	_, err := st.InsertRecords(context.Background(), scope, model.KindVehicle, []model.Record{{"status": "active"}, {"status": "inactive"}})
	require.NoError(t, err)

	got, err := svc.VehicleStatuses(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"active", "inactive"}, got)
}

func TestRegisterFile(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RegisterFile(context.Background(), model.FileMeta{CompanyUUID: "co-1"})
	require.Error(t, err)

	meta, err := svc.RegisterFile(context.Background(), model.FileMeta{CompanyUUID: "co-1", Path: "a.csv", Disk: "local"})
	require.NoError(t, err)
	assert.NotEmpty(t, meta.UUID)
}

func TestDelegates(t *testing.T) {
	svc, _ := newTestService(t)
	imp := svc.importer.(*stubImporter)

	summary, err := svc.Import(context.Background(), scope, importer.Request{Files: []string{"f"}, Kind: model.KindVehicle})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, []string{"f"}, imp.req.Files)

	got, err := svc.Search(context.Background(), scope, model.SearchQuery{})
	require.NoError(t, err)
	assert.Equal(t, "local", got[0].Name)

	got, err = svc.Geocode(context.Background(), model.SearchQuery{})
	require.NoError(t, err)
	assert.Equal(t, "geo", got[0].Name)
}

func TestCompact(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, compact([]string{" a ", "", "b"}))
	assert.Empty(t, compact(nil))
}
