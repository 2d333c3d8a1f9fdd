// Package validate runs structural checks over a stored record's metrics and
// accumulates a deductive data-quality score. Findings are data attached to
// the record, never errors: a record that fails validation stays committed.
package validate

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verdantiq/esg-cli/internal/model"
	"github.com/verdantiq/esg-cli/internal/store"
)

const baselineScore = 100

// Deductions per check. Only the missing single value has record-level
// consequence (failed_validation); the others deduct per metric.
const (
	deductMissingName   = 5
	deductEmptySeries   = 3
	deductMissingSingle = 5
)

// Result is the outcome of scoring one record.
type Result struct {
	Status   model.ValidationStatus `json:"validation_status"`
	Score    float64                `json:"data_quality_score"`
	Findings []model.Finding        `json:"findings,omitempty"`
}

// Scorer computes data-quality scores. It is stateless and idempotent: it
// never alters metric content, only reports status/score/findings.
type Scorer struct{}

// NewScorer creates a Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score checks every active metric of the record. Starts at 100; deductions
// accumulate and the score floors at 0.
func (s *Scorer) Score(rec *model.MetricRecord) Result {
	res := Result{Status: model.ValidationValidated}
	score := float64(baselineScore)

	for _, m := range rec.ActiveMetrics() {
		if m.MetricName == "" {
			score -= deductMissingName
			res.Findings = append(res.Findings, model.Finding{
				Severity: "error",
				Category: string(m.Category),
				Message:  "metric has no name",
			})
		}

		switch m.DataType {
		case model.DataTypeYearlySeries:
			if m.Yearly == nil || len(m.Yearly.Data) == 0 {
				score -= deductEmptySeries
				res.Findings = append(res.Findings, model.Finding{
					Severity:   "warning",
					Category:   string(m.Category),
					MetricName: m.MetricName,
					Message:    "yearly series has no data points",
				})
				break
			}
			// Unparseable numerics are surfaced as non-deducting warnings:
			// the import keeps raw values on purpose, but reviewers should
			// see where coercion gave up.
			for _, dp := range m.Yearly.Data {
				if dp.NumericValue == nil && dp.Value != "" {
					res.Findings = append(res.Findings, model.Finding{
						Severity:   "warning",
						Category:   string(m.Category),
						MetricName: m.MetricName,
						Message:    "value " + dp.Value + " for " + dp.YearLabel + " has no numeric interpretation",
					})
				}
			}
		case model.DataTypeSingleValue:
			if m.Single == nil || (m.Single.Value == "" && m.Single.NumericValue == nil) {
				score -= deductMissingSingle
				res.Status = model.ValidationFailed
				res.Findings = append(res.Findings, model.Finding{
					Severity:   "error",
					Category:   string(m.Category),
					MetricName: m.MetricName,
					Message:    "single value metric has no populated value",
					Critical:   true,
				})
			}
		}
	}

	res.Score = math.Max(0, score)
	return res
}

// Runner scores a record and persists the outcome.
type Runner struct {
	store  store.Store
	scorer *Scorer
}

// NewRunner creates a Runner bound to a store.
func NewRunner(st store.Store) *Runner {
	return &Runner{store: st, scorer: NewScorer()}
}

// Run validates the record with the given ID and persists status, score, and
// findings. Safe to re-run at any time against the active record.
func (r *Runner) Run(ctx context.Context, recordID string) (*Result, error) {
	rec, err := r.store.GetRecordByID(ctx, recordID)
	if err != nil {
		return nil, eris.Wrapf(err, "validate: load record %s", recordID)
	}

	res := r.scorer.Score(rec)
	score := res.Score
	if err := r.store.UpdateValidation(ctx, rec.ID, res.Status, &score, res.Findings); err != nil {
		return nil, eris.Wrapf(err, "validate: persist result for %s", recordID)
	}

	zap.L().Info("validate: record scored",
		zap.String("record_id", rec.ID),
		zap.String("entity_id", rec.EntityID),
		zap.String("status", string(res.Status)),
		zap.Float64("score", res.Score),
		zap.Int("findings", len(res.Findings)),
	)
	return &res, nil
}
