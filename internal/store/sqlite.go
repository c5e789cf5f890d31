package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/fleetops/fleetops/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It has no spatial
// index; distance ordering uses an equirectangular approximation.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if dsn == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS files (
	uuid              TEXT PRIMARY KEY,
	public_id         TEXT,
	company_uuid      TEXT NOT NULL,
	path              TEXT NOT NULL,
	disk              TEXT NOT NULL DEFAULT '',
	original_filename TEXT,
	content_type      TEXT,
	created_at        TEXT NOT NULL,
	deleted_at        TEXT
);

CREATE TABLE IF NOT EXISTS places (
	uuid         TEXT PRIMARY KEY,
	public_id    TEXT,
	company_uuid TEXT NOT NULL,
	name         TEXT,
	street1      TEXT,
	street2      TEXT,
	city         TEXT,
	province     TEXT,
	postal_code  TEXT,
	country      TEXT,
	phone        TEXT,
	latitude     REAL,
	longitude    REAL,
	meta         TEXT NOT NULL DEFAULT '{}',
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL,
	deleted_at   TEXT
);

CREATE TABLE IF NOT EXISTS vehicles (
	uuid         TEXT PRIMARY KEY,
	public_id    TEXT,
	company_uuid TEXT NOT NULL,
	name         TEXT,
	make         TEXT,
	model        TEXT,
	year         TEXT,
	plate_number TEXT,
	vin          TEXT,
	phone        TEXT,
	country      TEXT,
	status       TEXT,
	online       INTEGER NOT NULL DEFAULT 0,
	meta         TEXT NOT NULL DEFAULT '{}',
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL,
	deleted_at   TEXT
);

CREATE INDEX IF NOT EXISTS idx_files_company ON files(company_uuid);
CREATE INDEX IF NOT EXISTS idx_places_company ON places(company_uuid);
CREATE INDEX IF NOT EXISTS idx_vehicles_company ON vehicles(company_uuid);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqliteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// placeholders returns "?, ?, ..." for n values.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func sqliteIDFilter(ids []string, args *[]any) string {
	if len(ids) == 0 {
		return ""
	}
	for range 2 {
		for _, id := range ids {
			*args = append(*args, id)
		}
	}
	ph := placeholders(len(ids))
	return ` AND (uuid IN (` + ph + `) OR public_id IN (` + ph + `))`
}

// SearchPlaces implements Store.
func (s *SQLiteStore) SearchPlaces(ctx context.Context, scope model.Scope, q LocalQuery) ([]model.DisplayRecord, error) {
	var b strings.Builder
	b.WriteString(`SELECT uuid, COALESCE(public_id, ''), COALESCE(name, ''), COALESCE(street1, ''),
		COALESCE(city, ''), COALESCE(province, ''), COALESCE(postal_code, ''), COALESCE(country, ''),
		COALESCE(phone, ''), COALESCE(latitude, 0), COALESCE(longitude, 0)
		FROM places WHERE company_uuid = ? AND deleted_at IS NULL`)
	args := []any{scope.CompanyUUID}

	if strings.TrimSpace(q.Text) != "" {
		pattern := likePattern(q.Text)
		fields := []string{"name", "street1", "city", "postal_code", "country", "public_id"}
		clauses := make([]string, len(fields))
		for i, f := range fields {
			clauses[i] = f + ` LIKE ? ESCAPE '\'`
			args = append(args, pattern)
		}
		b.WriteString(` AND (` + strings.Join(clauses, " OR ") + `)`)
	}

	if q.Near != nil {
		// Scale longitude by cos(latitude) so degrees are comparable on both axes.
		k := math.Cos(q.Near.Latitude * math.Pi / 180)
		b.WriteString(` ORDER BY ((latitude - ?) * (latitude - ?) + ((longitude - ?) * ?) * ((longitude - ?) * ?)) ASC NULLS LAST, name DESC`)
		args = append(args, q.Near.Latitude, q.Near.Latitude, q.Near.Longitude, k, q.Near.Longitude, k)
	} else {
		b.WriteString(` ORDER BY name DESC NULLS LAST`)
	}

	if q.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search places")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.DisplayRecord
	for rows.Next() {
		var r model.DisplayRecord
		if err := rows.Scan(&r.UUID, &r.PublicID, &r.Name, &r.Street1, &r.City, &r.Province,
			&r.PostalCode, &r.Country, &r.Phone, &r.Latitude, &r.Longitude); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan place")
		}
		r.Address = composeAddress(r.Street1, r.City, r.Province, r.PostalCode, r.Country)
		r.Source = model.SourceLocal
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: search places iterate")
}

// FindRecords implements Store.
func (s *SQLiteStore) FindRecords(ctx context.Context, scope model.Scope, kind model.EntityKind, ids []string) ([]model.Record, error) {
	cols := ExportColumns(kind)
	args := []any{scope.CompanyUUID}
	query := `SELECT ` + strings.Join(cols, ", ") + ` FROM ` + kind.Table() +
		` WHERE company_uuid = ? AND deleted_at IS NULL` + sqliteIDFilter(ids, &args) + ` ORDER BY created_at, uuid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find %s", kind.Plural())
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", kind)
		}
		rec := make(model.Record, len(cols))
		for i, c := range cols {
			rec[c] = sqliteValue(c, values[i])
		}
		out = append(out, rec)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: find %s iterate", kind.Plural())
}

// sqliteValue maps storage classes back to the types Postgres returns.
func sqliteValue(col string, v any) any {
	switch col {
	case model.FieldOnline:
		if n, ok := v.(int64); ok {
			return n != 0
		}
	case model.FieldCreatedAt:
		if t, ok := timeValue(v); ok {
			return t
		}
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// CountRecords implements Store.
func (s *SQLiteStore) CountRecords(ctx context.Context, scope model.Scope, kind model.EntityKind, ids []string) (int64, error) {
	args := []any{scope.CompanyUUID}
	query := `SELECT COUNT(*) FROM ` + kind.Table() + ` WHERE company_uuid = ? AND deleted_at IS NULL` + sqliteIDFilter(ids, &args)

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "sqlite: count %s", kind.Plural())
	}
	return n, nil
}

// DeleteRecords implements Store. Rows are soft deleted.
func (s *SQLiteStore) DeleteRecords(ctx context.Context, scope model.Scope, kind model.EntityKind, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	now := sqliteTime(s.now())
	args := []any{now, now, scope.CompanyUUID}
	query := `UPDATE ` + kind.Table() + ` SET deleted_at = ?, updated_at = ? WHERE company_uuid = ? AND deleted_at IS NULL` +
		sqliteIDFilter(ids, &args)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete %s", kind.Plural())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return n, nil
}

// InsertRecords implements Store in a single transaction.
func (s *SQLiteStore) InsertRecords(ctx context.Context, scope model.Scope, kind model.EntityKind, records []model.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	cols := columnsFor(kind)
	names := []string{"uuid", "company_uuid"}
	for _, c := range cols {
		names = append(names, c.name)
	}
	names = append(names, "meta", "created_at", "updated_at")
	query := `INSERT INTO ` + kind.Table() + ` (` + strings.Join(names, ", ") + `) VALUES (` + placeholders(len(names)) + `)`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: prepare insert %s", kind.Plural())
	}
	defer stmt.Close() //nolint:errcheck

	now := s.now()
	var total int64
	for i, rec := range records {
		p := prepareRow(kind, rec, now)
		meta, err := json.Marshal(p.meta)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal meta for row %d", i)
		}
		args := make([]any, 0, len(names))
		args = append(args, uuid.New().String(), scope.CompanyUUID)
		args = append(args, p.values...)
		args = append(args, string(meta), sqliteTime(p.createdAt), sqliteTime(now))
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert %s row %d", kind, i)
		}
		total++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return total, nil
}

// VehicleStatuses implements Store.
func (s *SQLiteStore) VehicleStatuses(ctx context.Context, scope model.Scope) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT status FROM vehicles WHERE company_uuid = ? AND deleted_at IS NULL AND status IS NOT NULL AND status <> '' ORDER BY status`,
		scope.CompanyUUID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: vehicle statuses")
	}
	defer rows.Close() //nolint:errcheck

	statuses := []string{}
	for rows.Next() {
		var st string
		if err := rows.Scan(&st); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vehicle status")
		}
		statuses = append(statuses, st)
	}
	return statuses, eris.Wrap(rows.Err(), "sqlite: vehicle statuses iterate")
}

// FindFiles implements Store.
func (s *SQLiteStore) FindFiles(ctx context.Context, scope model.Scope, ids []string) ([]model.FileMeta, error) {
	if len(ids) == 0 {
		return []model.FileMeta{}, nil
	}
	args := []any{scope.CompanyUUID}
	query := `SELECT uuid, COALESCE(public_id, ''), company_uuid, path, disk, COALESCE(original_filename, ''), COALESCE(content_type, '')
		FROM files WHERE company_uuid = ? AND deleted_at IS NULL` + sqliteIDFilter(ids, &args)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find files")
	}
	defer rows.Close() //nolint:errcheck

	var found []model.FileMeta
	for rows.Next() {
		var f model.FileMeta
		if err := rows.Scan(&f.UUID, &f.PublicID, &f.CompanyUUID, &f.Path, &f.Disk, &f.OriginalFilename, &f.ContentType); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan file")
		}
		found = append(found, f)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: find files iterate")
	}
	return orderFiles(ids, found)
}

// RegisterFile implements Store.
func (s *SQLiteStore) RegisterFile(ctx context.Context, meta model.FileMeta) (*model.FileMeta, error) {
	if meta.UUID == "" {
		meta.UUID = uuid.New().String()
	}
	var publicID any
	if meta.PublicID != "" {
		publicID = meta.PublicID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (uuid, public_id, company_uuid, path, disk, original_filename, content_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.UUID, publicID, meta.CompanyUUID, meta.Path, meta.Disk, meta.OriginalFilename, meta.ContentType, sqliteTime(s.now()),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: register file")
	}
	return &meta, nil
}
