package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/verdantiq/esg-cli/internal/db"
	"github.com/verdantiq/esg-cli/internal/model"
)

// PostgresStore implements Store using pgxpool. Metrics and validation
// findings live in JSONB columns; a partial unique index on
// (entity_id) WHERE is_active backs the single-active-record invariant even
// if a future code path bypasses the row lock.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS metric_records (
	id                 TEXT PRIMARY KEY,
	entity_id          TEXT NOT NULL,
	entity_type        TEXT NOT NULL DEFAULT 'general',
	version            INTEGER NOT NULL,
	previous_version   TEXT,
	restored_from      TEXT,
	is_active          BOOLEAN NOT NULL DEFAULT false,
	metrics            JSONB NOT NULL DEFAULT '[]',
	import_source      TEXT NOT NULL DEFAULT '',
	source_file_name   TEXT NOT NULL DEFAULT '',
	import_batch_id    TEXT NOT NULL DEFAULT '',
	import_date        TIMESTAMPTZ,
	validation_status  TEXT NOT NULL DEFAULT 'not_validated',
	data_quality_score DOUBLE PRECISION,
	validation_errors  JSONB,
	deleted_at         TIMESTAMPTZ,
	deleted_by         TEXT NOT NULL DEFAULT '',
	created_by         TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_updated_by    TEXT NOT NULL DEFAULT '',
	last_updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (entity_id, version)
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_metric_records_active
	ON metric_records(entity_id) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_metric_records_entity_version
	ON metric_records(entity_id, version DESC);
`

const recordColumns = `id, entity_id, entity_type, version, previous_version, restored_from, is_active,
	metrics, import_source, source_file_name, import_batch_id, import_date,
	validation_status, data_quality_score, validation_errors,
	deleted_at, deleted_by, created_by, created_at, last_updated_by, last_updated_at`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// CommitVersion runs the deactivate-then-insert sequence in one transaction.
// The current active row is locked with FOR UPDATE so a concurrent commit
// for the same entity serializes behind it; conflicts surface as
// ErrTxConflict and the caller re-runs the pipeline.
func (s *PostgresStore) CommitVersion(ctx context.Context, rec *model.MetricRecord) (*model.MetricRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin commit tx")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	// Version numbers advance over the whole lineage, deleted records
	// included, so a soft delete never frees a (entity_id, version) slot.
	var maxVersion int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM metric_records WHERE entity_id = $1`,
		rec.EntityID,
	).Scan(&maxVersion); err != nil {
		return nil, mapPgError(err, "postgres: max version")
	}
	rec.Version = maxVersion + 1
	rec.PreviousVersion = nil

	var prevID string
	err = tx.QueryRow(ctx,
		`SELECT id FROM metric_records
		 WHERE entity_id = $1 AND is_active AND deleted_at IS NULL
		 FOR UPDATE`,
		rec.EntityID,
	).Scan(&prevID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, mapPgError(err, "postgres: lock active record")
	default:
		if _, err := tx.Exec(ctx,
			`UPDATE metric_records SET is_active = false, last_updated_by = $1, last_updated_at = $2 WHERE id = $3`,
			rec.CreatedBy, now, prevID,
		); err != nil {
			return nil, mapPgError(err, "postgres: deactivate predecessor")
		}
		rec.PreviousVersion = &prevID
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.IsActive = true
	rec.CreatedAt = now
	rec.LastUpdatedBy = rec.CreatedBy
	rec.LastUpdatedAt = now
	if rec.ValidationStatus == "" {
		rec.ValidationStatus = model.ValidationNotValidated
	}

	metricsJSON, err := json.Marshal(rec.Metrics)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal metrics")
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO metric_records (`+recordColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		rec.ID, rec.EntityID, rec.EntityType, rec.Version, rec.PreviousVersion, rec.RestoredFrom, rec.IsActive,
		metricsJSON, rec.ImportSource, rec.SourceFileName, rec.ImportBatchID, nullTime(rec.ImportDate),
		string(rec.ValidationStatus), rec.DataQualityScore, nil,
		rec.DeletedAt, rec.DeletedBy, rec.CreatedBy, rec.CreatedAt, rec.LastUpdatedBy, rec.LastUpdatedAt,
	); err != nil {
		return nil, mapPgError(err, "postgres: insert record")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgError(err, "postgres: commit version")
	}
	return rec, nil
}

// RestoreVersion clones a historical record into a new active head.
func (s *PostgresStore) RestoreVersion(ctx context.Context, entityID, versionID, actor string) (*model.MetricRecord, error) {
	hist, err := s.GetRecordByID(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if hist.EntityID != entityID {
		return nil, eris.Wrapf(ErrNotFound, "postgres: version %s does not belong to entity %s", versionID, entityID)
	}

	rec := &model.MetricRecord{
		EntityID:       entityID,
		EntityType:     hist.EntityType,
		Metrics:        model.CloneMetrics(hist.Metrics),
		ImportSource:   "restore",
		SourceFileName: hist.SourceFileName,
		ImportBatchID:  model.NewBatchID("restore", time.Now().UTC()),
		ImportDate:     time.Now().UTC(),
		RestoredFrom:   &versionID,
		CreatedBy:      actor,
	}
	return s.CommitVersion(ctx, rec)
}

func (s *PostgresStore) GetActiveRecord(ctx context.Context, entityID string) (*model.MetricRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM metric_records
		 WHERE entity_id = $1 AND is_active AND deleted_at IS NULL`,
		entityID,
	)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get active record for %s", entityID)
	}
	return rec, nil
}

func (s *PostgresStore) GetRecordByID(ctx context.Context, id string) (*model.MetricRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM metric_records WHERE id = $1`,
		id,
	)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, entityID string) ([]model.MetricRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM metric_records
		 WHERE entity_id = $1 ORDER BY version DESC`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list versions")
	}
	defer rows.Close()

	var recs []model.MetricRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan version")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list versions iterate")
}

func (s *PostgresStore) GetMetricsByCategory(ctx context.Context, entityID string, category model.Category) ([]model.Metric, error) {
	rec, err := s.GetActiveRecord(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return metricsByCategory(rec, category), nil
}

func (s *PostgresStore) GetTimeSeries(ctx context.Context, entityID, metricName string, category model.Category) ([]model.YearlyDataPoint, error) {
	rec, err := s.GetActiveRecord(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return timeSeries(rec, metricName, category), nil
}

func (s *PostgresStore) UpdateValidation(ctx context.Context, recordID string, status model.ValidationStatus, score *float64, findings []model.Finding) error {
	findingsJSON, err := json.Marshal(findings)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal findings")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE metric_records
		 SET validation_status = $1, data_quality_score = $2, validation_errors = $3, last_updated_at = $4
		 WHERE id = $5`,
		string(status), score, findingsJSON, time.Now().UTC(), recordID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update validation %s", recordID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: record %s", recordID)
	}
	return nil
}

func (s *PostgresStore) SoftDeleteRecord(ctx context.Context, recordID, actor string) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE metric_records
		 SET is_active = false, deleted_at = $1, deleted_by = $2, last_updated_by = $2, last_updated_at = $1
		 WHERE id = $3 AND deleted_at IS NULL`,
		now, actor, recordID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: soft delete %s", recordID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: record %s", recordID)
	}
	return nil
}

// mapPgError converts serialization failures, deadlocks, and unique
// violations on the active-record index into ErrTxConflict.
func mapPgError(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return eris.Wrap(ErrTxConflict, msg)
		}
	}
	return eris.Wrap(err, msg)
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// scanRecord decodes one record row; shared by QueryRow and Query paths.
func scanRecord(row pgx.Row) (*model.MetricRecord, error) {
	var (
		rec          model.MetricRecord
		metricsJSON  []byte
		findingsJSON []byte
		importDate   *time.Time
		status       string
	)
	err := row.Scan(
		&rec.ID, &rec.EntityID, &rec.EntityType, &rec.Version, &rec.PreviousVersion, &rec.RestoredFrom, &rec.IsActive,
		&metricsJSON, &rec.ImportSource, &rec.SourceFileName, &rec.ImportBatchID, &importDate,
		&status, &rec.DataQualityScore, &findingsJSON,
		&rec.DeletedAt, &rec.DeletedBy, &rec.CreatedBy, &rec.CreatedAt, &rec.LastUpdatedBy, &rec.LastUpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.ValidationStatus = model.ValidationStatus(status)
	if importDate != nil {
		rec.ImportDate = *importDate
	}
	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &rec.Metrics); err != nil {
			return nil, eris.Wrap(err, "unmarshal metrics")
		}
	}
	if len(findingsJSON) > 0 {
		if err := json.Unmarshal(findingsJSON, &rec.ValidationErrors); err != nil {
			return nil, eris.Wrap(err, "unmarshal validation errors")
		}
	}
	return &rec, nil
}
