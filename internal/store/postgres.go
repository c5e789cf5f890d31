package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fleetops/fleetops/internal/db"
	"github.com/fleetops/fleetops/internal/model"
)

const insertBatchSize = 5000

// PostgresStore implements Store on PostgreSQL with PostGIS.
type PostgresStore struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgres connects a PostgresStore.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return NewPostgresFromPool(pool), nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS files (
	uuid              TEXT PRIMARY KEY,
	public_id         TEXT,
	company_uuid      TEXT NOT NULL,
	path              TEXT NOT NULL,
	disk              TEXT NOT NULL DEFAULT '',
	original_filename TEXT,
	content_type      TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at        TIMESTAMPTZ
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
	latitude     DOUBLE PRECISION,
	longitude    DOUBLE PRECISION,
	location     geometry(Point, 4326),
	meta         JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at   TIMESTAMPTZ
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
	online       BOOLEAN NOT NULL DEFAULT false,
	meta         JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_files_company ON files(company_uuid);
CREATE INDEX IF NOT EXISTS idx_places_company ON places(company_uuid) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_places_public_id ON places(public_id);
CREATE INDEX IF NOT EXISTS idx_places_location ON places USING GIST(location);
CREATE INDEX IF NOT EXISTS idx_vehicles_company ON vehicles(company_uuid) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_vehicles_public_id ON vehicles(public_id);
`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// SearchPlaces implements Store.
func (s *PostgresStore) SearchPlaces(ctx context.Context, scope model.Scope, q LocalQuery) ([]model.DisplayRecord, error) {
	var b strings.Builder
	b.WriteString(`SELECT uuid, COALESCE(public_id, ''), COALESCE(name, ''), COALESCE(street1, ''),
		COALESCE(city, ''), COALESCE(province, ''), COALESCE(postal_code, ''), COALESCE(country, ''),
		COALESCE(phone, ''), COALESCE(latitude, 0), COALESCE(longitude, 0)
		FROM places WHERE company_uuid = $1 AND deleted_at IS NULL`)
	args := []any{scope.CompanyUUID}

	if strings.TrimSpace(q.Text) != "" {
		args = append(args, likePattern(q.Text))
		n := len(args)
		fmt.Fprintf(&b, ` AND (name ILIKE $%[1]d ESCAPE '\' OR street1 ILIKE $%[1]d ESCAPE '\' OR city ILIKE $%[1]d ESCAPE '\'`+
			` OR postal_code ILIKE $%[1]d ESCAPE '\' OR country ILIKE $%[1]d ESCAPE '\' OR public_id ILIKE $%[1]d ESCAPE '\')`, n)
	}

	if q.Near != nil {
		args = append(args, q.Near.Longitude, q.Near.Latitude)
		n := len(args)
		fmt.Fprintf(&b, ` ORDER BY ST_DistanceSphere(location, ST_SetSRID(ST_MakePoint($%d, $%d), 4326)) ASC NULLS LAST, name DESC`, n-1, n)
	} else {
		b.WriteString(` ORDER BY name DESC NULLS LAST`)
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search places")
	}
	defer rows.Close()

	var out []model.DisplayRecord
	for rows.Next() {
		var r model.DisplayRecord
		if err := rows.Scan(&r.UUID, &r.PublicID, &r.Name, &r.Street1, &r.City, &r.Province,
			&r.PostalCode, &r.Country, &r.Phone, &r.Latitude, &r.Longitude); err != nil {
			return nil, eris.Wrap(err, "postgres: scan place")
		}
		r.Address = composeAddress(r.Street1, r.City, r.Province, r.PostalCode, r.Country)
		r.Source = model.SourceLocal
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: search places iterate")
}

// idFilter appends a uuid/public_id match on args and returns the clause.
func idFilter(ids []string, args *[]any) string {
	if len(ids) == 0 {
		return ""
	}
	*args = append(*args, ids)
	n := len(*args)
	return fmt.Sprintf(` AND (uuid = ANY($%d) OR public_id = ANY($%d))`, n, n)
}

// FindRecords implements Store.
func (s *PostgresStore) FindRecords(ctx context.Context, scope model.Scope, kind model.EntityKind, ids []string) ([]model.Record, error) {
	cols := ExportColumns(kind)
	args := []any{scope.CompanyUUID}
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE company_uuid = $1 AND deleted_at IS NULL%s ORDER BY created_at, uuid`,
		strings.Join(cols, ", "), pgx.Identifier{kind.Table()}.Sanitize(), idFilter(ids, &args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find %s", kind.Plural())
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: read %s row", kind)
		}
		rec := make(model.Record, len(cols))
		for i, c := range cols {
			if i < len(values) {
				rec[c] = values[i]
			}
		}
		out = append(out, rec)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: find %s iterate", kind.Plural())
}

// CountRecords implements Store.
func (s *PostgresStore) CountRecords(ctx context.Context, scope model.Scope, kind model.EntityKind, ids []string) (int64, error) {
	args := []any{scope.CompanyUUID}
	sql := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE company_uuid = $1 AND deleted_at IS NULL%s`,
		pgx.Identifier{kind.Table()}.Sanitize(), idFilter(ids, &args))

	var n int64
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "postgres: count %s", kind.Plural())
	}
	return n, nil
}

// DeleteRecords implements Store. Rows are soft deleted.
func (s *PostgresStore) DeleteRecords(ctx context.Context, scope model.Scope, kind model.EntityKind, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := []any{s.now(), scope.CompanyUUID}
	sql := fmt.Sprintf(`UPDATE %s SET deleted_at = $1, updated_at = $1 WHERE company_uuid = $2 AND deleted_at IS NULL%s`,
		pgx.Identifier{kind.Table()}.Sanitize(), idFilter(ids, &args))

	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete %s", kind.Plural())
	}
	return tag.RowsAffected(), nil
}

// InsertRecords implements Store using COPY in batches inside one transaction.
func (s *PostgresStore) InsertRecords(ctx context.Context, scope model.Scope, kind model.EntityKind, records []model.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	cols := columnsFor(kind)
	columns := []string{"uuid", "company_uuid"}
	for _, c := range cols {
		columns = append(columns, c.name)
	}
	if kind == model.KindPlace {
		columns = append(columns, "location")
	}
	columns = append(columns, "meta", "created_at", "updated_at")

	now := s.now()
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		p := prepareRow(kind, rec, now)
		row := make([]any, 0, len(columns))
		row = append(row, uuid.New().String(), scope.CompanyUUID)
		row = append(row, p.values...)
		if kind == model.KindPlace {
			loc, err := EncodePoint(p.lat, p.lon)
			if err != nil {
				return 0, err
			}
			if loc == nil {
				row = append(row, nil)
			} else {
				row = append(row, loc)
			}
		}
		row = append(row, p.meta, p.createdAt, now)
		rows = append(rows, row)
	}

	var total int64
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		for i := 0; i < len(rows); i += insertBatchSize {
			end := min(i+insertBatchSize, len(rows))
			n, err := db.CopyFrom(ctx, tx, kind.Table(), columns, rows[i:end])
			if err != nil {
				return eris.Wrapf(err, "postgres: insert %s (batch %d-%d)", kind.Plural(), i, end)
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	zap.L().Debug("postgres: inserted records",
		zap.String("kind", string(kind)),
		zap.String("company_uuid", scope.CompanyUUID),
		zap.Int64("rows", total),
	)
	return total, nil
}

// VehicleStatuses implements Store.
func (s *PostgresStore) VehicleStatuses(ctx context.Context, scope model.Scope) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT status FROM vehicles WHERE company_uuid = $1 AND deleted_at IS NULL AND status IS NOT NULL AND status <> '' ORDER BY status`,
		scope.CompanyUUID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: vehicle statuses")
	}
	defer rows.Close()

	statuses := []string{}
	for rows.Next() {
		var st string
		if err := rows.Scan(&st); err != nil {
			return nil, eris.Wrap(err, "postgres: scan vehicle status")
		}
		statuses = append(statuses, st)
	}
	return statuses, eris.Wrap(rows.Err(), "postgres: vehicle statuses iterate")
}

// FindFiles implements Store.
func (s *PostgresStore) FindFiles(ctx context.Context, scope model.Scope, ids []string) ([]model.FileMeta, error) {
	if len(ids) == 0 {
		return []model.FileMeta{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT uuid, COALESCE(public_id, ''), company_uuid, path, disk, COALESCE(original_filename, ''), COALESCE(content_type, '')
		FROM files WHERE company_uuid = $1 AND deleted_at IS NULL AND (uuid = ANY($2) OR public_id = ANY($2))`,
		scope.CompanyUUID, ids,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find files")
	}
	defer rows.Close()

	var found []model.FileMeta
	for rows.Next() {
		var f model.FileMeta
		if err := rows.Scan(&f.UUID, &f.PublicID, &f.CompanyUUID, &f.Path, &f.Disk, &f.OriginalFilename, &f.ContentType); err != nil {
			return nil, eris.Wrap(err, "postgres: scan file")
		}
		found = append(found, f)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: find files iterate")
	}
	return orderFiles(ids, found)
}

// RegisterFile implements Store.
func (s *PostgresStore) RegisterFile(ctx context.Context, meta model.FileMeta) (*model.FileMeta, error) {
	if meta.UUID == "" {
		meta.UUID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO files (uuid, public_id, company_uuid, path, disk, original_filename, content_type, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8)`,
		meta.UUID, meta.PublicID, meta.CompanyUUID, meta.Path, meta.Disk, meta.OriginalFilename, meta.ContentType, s.now(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: register file")
	}
	return &meta, nil
}
