package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/fleetops/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	st.now = func() time.Time { return fixedNow }
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedPlaces(t *testing.T, st *SQLiteStore, scope model.Scope, recs ...model.Record) {
	t.Helper()
	n, err := st.InsertRecords(context.Background(), scope, model.KindPlace, recs)
	require.NoError(t, err)
	require.Equal(t, int64(len(recs)), n)
}

func names(recs []model.DisplayRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Name
	}
	return out
}

func TestSQLite_SearchPlaces_NameDescending(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedPlaces(t, st, testScope,
		model.Record{"name": "Alpha Depot", "street1": "1 Main St", "city": "Austin"},
		model.Record{"name": "Charlie Yard", "city": "Dallas"},
		model.Record{"name": "Bravo Hub", "street1": "5 Main St"},
	)
	seedPlaces(t, st, model.Scope{CompanyUUID: "other"}, model.Record{"name": "Zulu"})

	got, err := st.SearchPlaces(ctx, testScope, LocalQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Charlie Yard", "Bravo Hub", "Alpha Depot"}, names(got))
	assert.Equal(t, "1 Main St, Austin", got[2].Address)

	got, err = st.SearchPlaces(ctx, testScope, LocalQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Charlie Yard", "Bravo Hub"}, names(got))
}

func TestSQLite_SearchPlaces_TextFilter(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedPlaces(t, st, testScope,
		model.Record{"name": "Alpha Depot", "street1": "1 Main St"},
		model.Record{"name": "Charlie Yard", "street1": "9 Elm St"},
		model.Record{"name": "100% Fuel", "street1": "2 Oak Rd"},
	)

	got, err := st.SearchPlaces(context.Background(), testScope, LocalQuery{Text: "main st"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha Depot"}, names(got))

	got, err = st.SearchPlaces(context.Background(), testScope, LocalQuery{Text: "100%"})
	require.NoError(t, err)
	assert.Equal(t, []string{"100% Fuel"}, names(got), "wildcards in input are literal")
}

func TestSQLite_SearchPlaces_DistanceOrder(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedPlaces(t, st, testScope,
		model.Record{"name": "Far", "latitude": 40.0, "longitude": -100.0},
		model.Record{"name": "Near", "latitude": 30.27, "longitude": -97.74},
		model.Record{"name": "Nowhere"},
		model.Record{"name": "Middle", "latitude": "32.7", "longitude": "-96.8"},
	)

	got, err := st.SearchPlaces(context.Background(), testScope, LocalQuery{
		Near: &model.Point{Latitude: 30.2672, Longitude: -97.7431},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Near", "Middle", "Far", "Nowhere"}, names(got))
}

func TestSQLite_SearchPlaces_ExcludesDeleted(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedPlaces(t, st, testScope, model.Record{"name": "Keep", "public_id": "p1"}, model.Record{"name": "Drop", "public_id": "p2"})

	n, err := st.DeleteRecords(ctx, testScope, model.KindPlace, []string{"p2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := st.SearchPlaces(ctx, testScope, LocalQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Keep"}, names(got))

	n, err = st.DeleteRecords(ctx, testScope, model.KindPlace, []string{"p2"})
	require.NoError(t, err)
	assert.Zero(t, n, "already deleted")
}

func TestSQLite_CountAndDelete_Scoped(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	other := model.Scope{CompanyUUID: "other"}
	seedPlaces(t, st, testScope, model.Record{"name": "A", "public_id": "p1"})
	seedPlaces(t, st, other, model.Record{"name": "B", "public_id": "p1"})

	n, err := st.CountRecords(ctx, testScope, model.KindPlace, []string{"p1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = st.CountRecords(ctx, testScope, model.KindPlace, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = st.DeleteRecords(ctx, testScope, model.KindPlace, []string{"p1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = st.CountRecords(ctx, other, model.KindPlace, []string{"p1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "other company untouched")
}

func TestSQLite_InsertAndFindVehicles(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.InsertRecords(ctx, testScope, model.KindVehicle, []model.Record{
		{"public_id": "veh_1", "name": "Truck 1", "status": "active", "online": false, "created_at": "2024-01-02 10:00:00", "color": "red"},
		{"public_id": "veh_2", "name": "Truck 2", "status": "maintenance", "online": true},
	})
	require.NoError(t, err)

	recs, err := st.FindRecords(ctx, testScope, model.KindVehicle, nil)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "veh_1", recs[0]["public_id"])
	assert.Equal(t, false, recs[0]["online"])
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), recs[0]["created_at"])
	assert.Equal(t, true, recs[1]["online"])
	assert.Equal(t, fixedNow, recs[1]["created_at"])

	recs, err = st.FindRecords(ctx, testScope, model.KindVehicle, []string{"veh_2"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Truck 2", recs[0]["name"])

	var meta string
	require.NoError(t, st.db.QueryRow(`SELECT meta FROM vehicles WHERE public_id = 'veh_1'`).Scan(&meta))
	assert.JSONEq(t, `{"color":"red"}`, meta)
}

func TestSQLite_VehicleStatuses(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.InsertRecords(ctx, testScope, model.KindVehicle, []model.Record{
		{"status": "active"}, {"status": "retired"}, {"status": "active"}, {"status": ""},
	})
	require.NoError(t, err)

	got, err := st.VehicleStatuses(ctx, testScope)
	require.NoError(t, err)
	assert.Equal(t, []string{"active", "retired"}, got)

	got, err = st.VehicleStatuses(ctx, model.Scope{CompanyUUID: "empty"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLite_Files(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.RegisterFile(ctx, model.FileMeta{CompanyUUID: "co-1", Path: "uploads/a.csv", Disk: "local"})
	require.NoError(t, err)
	require.NotEmpty(t, a.UUID)
	_, err = st.RegisterFile(ctx, model.FileMeta{UUID: "b", PublicID: "file_b", CompanyUUID: "co-1", Path: "uploads/b.xlsx"})
	require.NoError(t, err)
	_, err = st.RegisterFile(ctx, model.FileMeta{UUID: "c", CompanyUUID: "other", Path: "uploads/c.csv"})
	require.NoError(t, err)

	got, err := st.FindFiles(ctx, testScope, []string{"file_b", a.UUID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "uploads/b.xlsx", got[0].Path)
	assert.Equal(t, "uploads/a.csv", got[1].Path)

	got, err = st.FindFiles(ctx, testScope, []string{"b", a.UUID, "file_b", "b"})
	require.NoError(t, err)
	require.Len(t, got, 2, "a file named twice is returned once")
	assert.Equal(t, "b", got[0].UUID)
	assert.Equal(t, a.UUID, got[1].UUID)

	_, err = st.FindFiles(ctx, testScope, []string{"c"})
	require.Error(t, err)
	assert.Equal(t, model.ErrNotFound, model.KindOf(err))
}

func TestSQLite_InMemory(t *testing.T) {
	st, err := NewSQLite(":memory:")
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	_, err = st.InsertRecords(context.Background(), testScope, model.KindPlace, []model.Record{{"name": "Depot"}})
	require.NoError(t, err)
}
