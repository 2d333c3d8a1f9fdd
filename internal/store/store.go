// Package store persists versioned metric records. CommitVersion and
// RestoreVersion are the only mutation paths for the per-entity active-record
// slot; both run deactivate-then-insert inside a single transaction so that
// at most one record per entity is ever active.
package store

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/verdantiq/esg-cli/internal/model"
)

// Sentinel errors. ErrTxConflict means a concurrent commit for the same
// entity won the race; the caller should retry the whole import pipeline so
// a fresh previous_version is computed.
var (
	ErrTxConflict = eris.New("concurrent version commit conflict")
	ErrNotFound   = eris.New("record not found")
)

// Store is the persistence interface for metric record lineages.
type Store interface {
	// CommitVersion atomically deactivates the entity's current active
	// record (if any) and inserts rec as its successor. The store assigns
	// ID, Version, PreviousVersion, IsActive, and timestamps.
	CommitVersion(ctx context.Context, rec *model.MetricRecord) (*model.MetricRecord, error)

	// RestoreVersion clones a historical record's metric tree wholesale
	// into a new active head, stamping RestoredFrom.
	RestoreVersion(ctx context.Context, entityID, versionID, actor string) (*model.MetricRecord, error)

	GetActiveRecord(ctx context.Context, entityID string) (*model.MetricRecord, error)
	GetRecordByID(ctx context.Context, id string) (*model.MetricRecord, error)
	ListVersions(ctx context.Context, entityID string) ([]model.MetricRecord, error)

	// Dashboard reads. Never write through these.
	GetMetricsByCategory(ctx context.Context, entityID string, category model.Category) ([]model.Metric, error)
	GetTimeSeries(ctx context.Context, entityID, metricName string, category model.Category) ([]model.YearlyDataPoint, error)

	UpdateValidation(ctx context.Context, recordID string, status model.ValidationStatus, score *float64, findings []model.Finding) error
	SoftDeleteRecord(ctx context.Context, recordID, actor string) error

	Migrate(ctx context.Context) error
	Close() error
}

// metricsByCategory filters a record's active metrics. Shared by both
// backends: category filtering happens client-side over the decoded metrics
// document rather than in backend-specific JSON SQL.
func metricsByCategory(rec *model.MetricRecord, category model.Category) []model.Metric {
	var out []model.Metric
	for _, m := range rec.ActiveMetrics() {
		if m.Category == category {
			out = append(out, m)
		}
	}
	return out
}

// timeSeries extracts a named yearly series from a record, ordered by fiscal
// year where parseable. An empty category matches any.
func timeSeries(rec *model.MetricRecord, metricName string, category model.Category) []model.YearlyDataPoint {
	var out []model.YearlyDataPoint
	for _, m := range rec.ActiveMetrics() {
		if m.Yearly == nil || !strings.EqualFold(m.MetricName, metricName) {
			continue
		}
		if category != "" && m.Category != category {
			continue
		}
		out = append(out, m.Yearly.Data...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		fi, fj := out[i].FiscalYear, out[j].FiscalYear
		if fi == nil || fj == nil {
			return fi != nil && fj == nil
		}
		return *fi < *fj
	})
	return out
}
