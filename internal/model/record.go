// Package model defines the canonical metric record and its tagged-union
// metric variants shared across the ingestion pipeline and stores.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// ValidationStatus tracks where a record sits in the validation lifecycle.
type ValidationStatus string

const (
	ValidationNotValidated ValidationStatus = "not_validated"
	ValidationValidating   ValidationStatus = "validating"
	ValidationValidated    ValidationStatus = "validated"
	ValidationFailed       ValidationStatus = "failed_validation"
)

// Finding is a single validation result attached to a record. Findings are
// data, not errors: a record with findings is still a committed record.
type Finding struct {
	Severity   string `json:"severity"` // "error" or "warning"
	Category   string `json:"category,omitempty"`
	MetricName string `json:"metric_name,omitempty"`
	Message    string `json:"message"`
	Critical   bool   `json:"critical,omitempty"`
}

// MetricRecord is one versioned snapshot of an entity's metrics. Records are
// superseded, never mutated: each import deactivates the current head and
// inserts a successor linked via PreviousVersion.
type MetricRecord struct {
	ID              string  `json:"id"`
	EntityID        string  `json:"entity_id"`
	EntityType      string  `json:"entity_type"`
	Version         int     `json:"version"`
	PreviousVersion *string `json:"previous_version,omitempty"`
	RestoredFrom    *string `json:"restored_from,omitempty"`
	IsActive        bool    `json:"is_active"`

	Metrics []Metric `json:"metrics"`

	ImportSource   string    `json:"import_source,omitempty"`
	SourceFileName string    `json:"source_file_name,omitempty"`
	ImportBatchID  string    `json:"import_batch_id,omitempty"`
	ImportDate     time.Time `json:"import_date"`

	ValidationStatus ValidationStatus `json:"validation_status"`
	DataQualityScore *float64         `json:"data_quality_score,omitempty"`
	ValidationErrors []Finding        `json:"validation_errors,omitempty"`

	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy string     `json:"deleted_by,omitempty"`

	CreatedBy     string    `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedBy string    `json:"last_updated_by,omitempty"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// ActiveMetrics returns the record's metrics that have not been soft-removed.
func (r *MetricRecord) ActiveMetrics() []Metric {
	out := make([]Metric, 0, len(r.Metrics))
	for _, m := range r.Metrics {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out
}

// NewBatchID builds an import batch identifier of the form
// {source}_{unix_ms}_{random_suffix}. Batch IDs are opaque and used only for
// traceability.
func NewBatchID(source string, now time.Time) string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("%s_%d_%s", source, now.UnixMilli(), hex.EncodeToString(suffix))
}
