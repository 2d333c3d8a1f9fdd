package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/verdantiq/esg-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. A process-local
// mutex serializes version commits; the partial unique index on active
// records guards against writers from other processes.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS metric_records (
	id                 TEXT PRIMARY KEY,
	entity_id          TEXT NOT NULL,
	entity_type        TEXT NOT NULL DEFAULT 'general',
	version            INTEGER NOT NULL,
	previous_version   TEXT,
	restored_from      TEXT,
	is_active          INTEGER NOT NULL DEFAULT 0,
	metrics            TEXT NOT NULL DEFAULT '[]',
	import_source      TEXT NOT NULL DEFAULT '',
	source_file_name   TEXT NOT NULL DEFAULT '',
	import_batch_id    TEXT NOT NULL DEFAULT '',
	import_date        DATETIME,
	validation_status  TEXT NOT NULL DEFAULT 'not_validated',
	data_quality_score REAL,
	validation_errors  TEXT,
	deleted_at         DATETIME,
	deleted_by         TEXT NOT NULL DEFAULT '',
	created_by         TEXT NOT NULL DEFAULT '',
	created_at         DATETIME NOT NULL,
	last_updated_by    TEXT NOT NULL DEFAULT '',
	last_updated_at    DATETIME NOT NULL,
	UNIQUE (entity_id, version)
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_metric_records_active
	ON metric_records(entity_id) WHERE is_active = 1;
CREATE INDEX IF NOT EXISTS idx_metric_records_entity_version
	ON metric_records(entity_id, version DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteRecordColumns = `id, entity_id, entity_type, version, previous_version, restored_from, is_active,
	metrics, import_source, source_file_name, import_batch_id, import_date,
	validation_status, data_quality_score, validation_errors,
	deleted_at, deleted_by, created_by, created_at, last_updated_by, last_updated_at`

func (s *SQLiteStore) CommitVersion(ctx context.Context, rec *model.MetricRecord) (*model.MetricRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin commit tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	// Version numbers advance over the whole lineage, deleted records
	// included, so a soft delete never frees a (entity_id, version) slot.
	var maxVersion int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM metric_records WHERE entity_id = ?`,
		rec.EntityID,
	).Scan(&maxVersion); err != nil {
		return nil, eris.Wrap(err, "sqlite: max version")
	}
	rec.Version = maxVersion + 1
	rec.PreviousVersion = nil

	var prevID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM metric_records
		 WHERE entity_id = ? AND is_active = 1 AND deleted_at IS NULL`,
		rec.EntityID,
	).Scan(&prevID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, eris.Wrap(err, "sqlite: find active record")
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE metric_records SET is_active = 0, last_updated_by = ?, last_updated_at = ? WHERE id = ?`,
			rec.CreatedBy, now, prevID,
		); err != nil {
			return nil, mapSQLiteError(err, "sqlite: deactivate predecessor")
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
		return nil, eris.Wrap(err, "sqlite: marshal metrics")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO metric_records (`+sqliteRecordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EntityID, rec.EntityType, rec.Version, rec.PreviousVersion, rec.RestoredFrom, boolToInt(rec.IsActive),
		string(metricsJSON), rec.ImportSource, rec.SourceFileName, rec.ImportBatchID, nullTime(rec.ImportDate),
		string(rec.ValidationStatus), rec.DataQualityScore, nil,
		rec.DeletedAt, rec.DeletedBy, rec.CreatedBy, rec.CreatedAt, rec.LastUpdatedBy, rec.LastUpdatedAt,
	); err != nil {
		return nil, mapSQLiteError(err, "sqlite: insert record")
	}

	if err := tx.Commit(); err != nil {
		return nil, mapSQLiteError(err, "sqlite: commit version")
	}
	return rec, nil
}

func (s *SQLiteStore) RestoreVersion(ctx context.Context, entityID, versionID, actor string) (*model.MetricRecord, error) {
	hist, err := s.GetRecordByID(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if hist.EntityID != entityID {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: version %s does not belong to entity %s", versionID, entityID)
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

func (s *SQLiteStore) GetActiveRecord(ctx context.Context, entityID string) (*model.MetricRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRecordColumns+` FROM metric_records
		 WHERE entity_id = ? AND is_active = 1 AND deleted_at IS NULL`,
		entityID,
	)
	rec, err := scanSQLiteRecord(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get active record for %s", entityID)
	}
	return rec, nil
}

func (s *SQLiteStore) GetRecordByID(ctx context.Context, id string) (*model.MetricRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRecordColumns+` FROM metric_records WHERE id = ?`,
		id,
	)
	rec, err := scanSQLiteRecord(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) ListVersions(ctx context.Context, entityID string) ([]model.MetricRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteRecordColumns+` FROM metric_records
		 WHERE entity_id = ? ORDER BY version DESC`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list versions")
	}
	defer rows.Close()

	var recs []model.MetricRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan version")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list versions iterate")
}

func (s *SQLiteStore) GetMetricsByCategory(ctx context.Context, entityID string, category model.Category) ([]model.Metric, error) {
	rec, err := s.GetActiveRecord(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return metricsByCategory(rec, category), nil
}

func (s *SQLiteStore) GetTimeSeries(ctx context.Context, entityID, metricName string, category model.Category) ([]model.YearlyDataPoint, error) {
	rec, err := s.GetActiveRecord(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return timeSeries(rec, metricName, category), nil
}

func (s *SQLiteStore) UpdateValidation(ctx context.Context, recordID string, status model.ValidationStatus, score *float64, findings []model.Finding) error {
	findingsJSON, err := json.Marshal(findings)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal findings")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE metric_records
		 SET validation_status = ?, data_quality_score = ?, validation_errors = ?, last_updated_at = ?
		 WHERE id = ?`,
		string(status), score, string(findingsJSON), time.Now().UTC(), recordID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update validation %s", recordID)
	}
	return checkRowsAffected(res, recordID)
}

func (s *SQLiteStore) SoftDeleteRecord(ctx context.Context, recordID, actor string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE metric_records
		 SET is_active = 0, deleted_at = ?, deleted_by = ?, last_updated_by = ?, last_updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		now, actor, actor, now, recordID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: soft delete %s", recordID)
	}
	return checkRowsAffected(res, recordID)
}

// helpers

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: record %s", id)
	}
	return nil
}

// mapSQLiteError converts busy/locked and unique-violation failures into
// ErrTxConflict.
func mapSQLiteError(err error, msg string) error {
	s := err.Error()
	if strings.Contains(s, "UNIQUE constraint failed") ||
		strings.Contains(s, "database is locked") ||
		strings.Contains(s, "SQLITE_BUSY") {
		return eris.Wrap(ErrTxConflict, msg)
	}
	return eris.Wrap(err, msg)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row scannable) (*model.MetricRecord, error) {
	var (
		rec          model.MetricRecord
		isActive     int
		metricsJSON  string
		findingsJSON sql.NullString
		importDate   sql.NullTime
		status       string
	)
	err := row.Scan(
		&rec.ID, &rec.EntityID, &rec.EntityType, &rec.Version, &rec.PreviousVersion, &rec.RestoredFrom, &isActive,
		&metricsJSON, &rec.ImportSource, &rec.SourceFileName, &rec.ImportBatchID, &importDate,
		&status, &rec.DataQualityScore, &findingsJSON,
		&rec.DeletedAt, &rec.DeletedBy, &rec.CreatedBy, &rec.CreatedAt, &rec.LastUpdatedBy, &rec.LastUpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan record")
	}
	rec.IsActive = isActive == 1
	rec.ValidationStatus = model.ValidationStatus(status)
	if importDate.Valid {
		rec.ImportDate = importDate.Time
	}
	if metricsJSON != "" {
		if err := json.Unmarshal([]byte(metricsJSON), &rec.Metrics); err != nil {
			return nil, eris.Wrap(err, "unmarshal metrics")
		}
	}
	if findingsJSON.Valid && findingsJSON.String != "" {
		if err := json.Unmarshal([]byte(findingsJSON.String), &rec.ValidationErrors); err != nil {
			return nil, eris.Wrap(err, "unmarshal validation errors")
		}
	}
	return &rec, nil
}
