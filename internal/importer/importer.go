// Package importer orchestrates the ingestion pipeline: format adaptation,
// section parsing, normalization, attribution, version commit, and
// post-import scoring. One import request runs to completion synchronously;
// parse-stage failures abort before anything is written.
package importer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verdantiq/esg-cli/internal/attribution"
	"github.com/verdantiq/esg-cli/internal/format"
	"github.com/verdantiq/esg-cli/internal/model"
	"github.com/verdantiq/esg-cli/internal/normalize"
	"github.com/verdantiq/esg-cli/internal/retry"
	"github.com/verdantiq/esg-cli/internal/section"
	"github.com/verdantiq/esg-cli/internal/store"
	"github.com/verdantiq/esg-cli/internal/validate"
)

// Request is one import of raw report bytes for an entity.
type Request struct {
	EntityID   string
	EntityType string
	Format     format.Format
	Data       []byte
	FileName   string
	Source     string // provenance tag, e.g. "upload" or "ftp"
	Actor      string
}

// Result is the success payload returned to the upload caller.
type Result struct {
	BatchID          string                 `json:"batch_id"`
	RecordsProcessed int                    `json:"records_processed"`
	RecordID         string                 `json:"record_id"`
	Version          int                    `json:"version"`
	ValidationStatus model.ValidationStatus `json:"validation_status"`
	DataQualityScore float64                `json:"data_quality_score"`
}

// Importer wires the pipeline stages to a store.
type Importer struct {
	registry   *section.Registry
	normalizer *normalize.Normalizer
	store      store.Store
	validator  *validate.Runner
	now        func() time.Time
}

// New creates an Importer.
func New(registry *section.Registry, st store.Store) *Importer {
	return &Importer{
		registry:   registry,
		normalizer: normalize.New(),
		store:      st,
		validator:  validate.NewRunner(st),
		now:        time.Now,
	}
}

// Run executes the full pipeline for one request. Either a complete new
// active record exists afterwards, or none does; no partial import is ever
// visible.
func (imp *Importer) Run(ctx context.Context, req Request) (*Result, error) {
	if req.EntityID == "" {
		return nil, eris.New("importer: entity id is required")
	}
	if req.Actor == "" {
		req.Actor = "system"
	}
	if req.Source == "" {
		req.Source = "upload"
	}
	if req.EntityType == "" {
		req.EntityType = "general"
	}
	log := zap.L().With(
		zap.String("entity_id", req.EntityID),
		zap.String("format", string(req.Format)),
		zap.String("file", req.FileName),
	)

	rows, err := format.Parse(req.Data, req.Format)
	if err != nil {
		return nil, eris.Wrap(err, "importer: adapt format")
	}

	rules, err := imp.registry.ForEntityType(req.EntityType)
	if err != nil {
		return nil, eris.Wrap(err, "importer: resolve rules")
	}
	sections := section.NewParser(rules).Parse(rows)

	citation := req.FileName
	if citation == "" {
		citation = req.Source
	}
	metrics, err := imp.normalizer.Normalize(sections, citation)
	if err != nil {
		return nil, eris.Wrap(err, "importer: normalize")
	}

	now := imp.now().UTC()
	attribution.Stamp(metrics, req.Actor, now)
	for i := range metrics {
		if err := metrics[i].Validate(); err != nil {
			return nil, eris.Wrap(err, "importer: malformed metric")
		}
	}

	rec := &model.MetricRecord{
		EntityID:       req.EntityID,
		EntityType:     req.EntityType,
		Metrics:        metrics,
		ImportSource:   req.Source,
		SourceFileName: req.FileName,
		ImportBatchID:  model.NewBatchID(req.Source, now),
		ImportDate:     now,
		CreatedBy:      req.Actor,
	}

	// A losing concurrent commit surfaces as ErrTxConflict; the re-run picks
	// up the winner's record as predecessor.
	committed, err := retry.DoVal(ctx, retry.Config{
		MaxAttempts: 3,
		ShouldRetry: func(err error) bool { return eris.Is(err, store.ErrTxConflict) },
		OnRetry:     retry.Logger("commit version"),
	}, func(ctx context.Context) (*model.MetricRecord, error) {
		return imp.store.CommitVersion(ctx, rec)
	})
	if err != nil {
		return nil, eris.Wrap(err, "importer: commit version")
	}

	log.Info("importer: record committed",
		zap.String("record_id", committed.ID),
		zap.Int("version", committed.Version),
		zap.Int("metrics", len(metrics)),
		zap.String("batch_id", committed.ImportBatchID),
	)

	res := &Result{
		BatchID:          committed.ImportBatchID,
		RecordsProcessed: len(metrics),
		RecordID:         committed.ID,
		Version:          committed.Version,
		ValidationStatus: model.ValidationNotValidated,
	}

	// Post-import scoring. A failed_validation status is a property of the
	// record, not of the import: the commit stands either way.
	vres, err := imp.validator.Run(ctx, committed.ID)
	if err != nil {
		log.Warn("importer: post-import validation failed to persist", zap.Error(err))
		return res, nil
	}
	res.ValidationStatus = vres.Status
	res.DataQualityScore = vres.Score
	return res, nil
}
