package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantiq/esg-cli/internal/model"
)

func yearly(name string, points ...model.YearlyDataPoint) model.Metric {
	return model.Metric{
		Category:   model.CategoryEmissions,
		MetricName: name,
		DataType:   model.DataTypeYearlySeries,
		IsActive:   true,
		Yearly:     &model.YearlySeries{Data: points},
	}
}

func TestScoreCleanRecord(t *testing.T) {
	t.Parallel()

	nv := 10.0
	rec := &model.MetricRecord{Metrics: []model.Metric{
		yearly("Scope 1", model.YearlyDataPoint{YearLabel: "2023", Value: "10", NumericValue: &nv, Source: "r"}),
	}}

	res := NewScorer().Score(rec)
	assert.Equal(t, model.ValidationValidated, res.Status)
	assert.Equal(t, 100.0, res.Score)
	assert.Empty(t, res.Findings)
}

func TestScoreDeductions(t *testing.T) {
	t.Parallel()

	rec := &model.MetricRecord{Metrics: []model.Metric{
		yearly(""),          // missing name -5, empty series -3
		yearly("Emissions"), // empty series -3
		{
			Category:   model.CategoryKPISummary,
			MetricName: "Recovery",
			DataType:   model.DataTypeSingleValue,
			IsActive:   true,
			Single:     &model.SingleValue{Source: "r"}, // no value: -5, critical
		},
	}}

	res := NewScorer().Score(rec)
	assert.Equal(t, model.ValidationFailed, res.Status, "missing single value is the one record-level failure")
	assert.Equal(t, 100.0-5-3-3-5, res.Score)
	require.Len(t, res.Findings, 4)

	var critical int
	for _, f := range res.Findings {
		if f.Critical {
			critical++
			assert.Equal(t, "error", f.Severity)
			assert.Equal(t, "Recovery", f.MetricName)
		}
	}
	assert.Equal(t, 1, critical)
}

func TestScoreEmptySeriesAloneIsWarning(t *testing.T) {
	t.Parallel()

	rec := &model.MetricRecord{Metrics: []model.Metric{yearly("Emissions")}}
	res := NewScorer().Score(rec)

	assert.Equal(t, model.ValidationValidated, res.Status, "warnings never fail the record")
	assert.Equal(t, 97.0, res.Score)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "warning", res.Findings[0].Severity)
}

func TestScoreUnparseableNumericWarnsWithoutDeduction(t *testing.T) {
	t.Parallel()

	rec := &model.MetricRecord{Metrics: []model.Metric{
		yearly("Grid Power",
			model.YearlyDataPoint{YearLabel: "2022", Value: "approx. 500", Source: "r"},
			model.YearlyDataPoint{YearLabel: "2023", Value: "N/A", Source: "r"},
		),
	}}

	res := NewScorer().Score(rec)
	assert.Equal(t, 100.0, res.Score)
	require.Len(t, res.Findings, 2)
	for _, f := range res.Findings {
		assert.Equal(t, "warning", f.Severity)
		assert.False(t, f.Critical)
	}
}

func TestScoreFloorsAtZero(t *testing.T) {
	t.Parallel()

	var metrics []model.Metric
	for range 30 {
		metrics = append(metrics, yearly("")) // -8 each
	}
	res := NewScorer().Score(&model.MetricRecord{Metrics: metrics})

	assert.Equal(t, 0.0, res.Score)
}

func TestScoreSkipsInactiveMetrics(t *testing.T) {
	t.Parallel()

	m := yearly("")
	m.IsActive = false
	res := NewScorer().Score(&model.MetricRecord{Metrics: []model.Metric{m}})

	assert.Equal(t, 100.0, res.Score)
	assert.Empty(t, res.Findings)
}

func TestScoreIdempotent(t *testing.T) {
	t.Parallel()

	rec := &model.MetricRecord{Metrics: []model.Metric{yearly("Emissions")}}
	first := NewScorer().Score(rec)
	second := NewScorer().Score(rec)

	assert.Equal(t, first, second)
}
