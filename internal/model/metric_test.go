package model

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricValidate(t *testing.T) {
	t.Parallel()

	valid := Metric{
		Category:   CategoryEmissions,
		MetricName: "Scope 1",
		DataType:   DataTypeYearlySeries,
		Yearly: &YearlySeries{Data: []YearlyDataPoint{
			{YearLabel: "2023", Value: "10", Source: "r.csv"},
		}},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(m *Metric)
	}{
		{"no variant", func(m *Metric) { m.Yearly = nil }},
		{"two variants", func(m *Metric) { m.Single = &SingleValue{Value: "1", Source: "x"} }},
		{"variant mismatch", func(m *Metric) {
			m.Yearly = nil
			m.Single = &SingleValue{Value: "1", Source: "x"}
		}},
		{"missing point source", func(m *Metric) { m.Yearly.Data[0].Source = "" }},
		{"unknown data type", func(m *Metric) { m.DataType = "blob" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := valid
			m.Yearly = &YearlySeries{Data: append([]YearlyDataPoint(nil), valid.Yearly.Data...)}
			tt.mutate(&m)
			assert.Error(t, m.Validate())
		})
	}
}

func TestMetricValidateSingleNeedsSource(t *testing.T) {
	t.Parallel()

	m := Metric{
		MetricName: "Recovery",
		DataType:   DataTypeSingleValue,
		Single:     &SingleValue{Value: "11.2%"},
	}
	assert.Error(t, m.Validate())

	m.Single.Source = "r.csv"
	assert.NoError(t, m.Validate())
}

func TestMetricClone(t *testing.T) {
	t.Parallel()

	fy := 2023
	nv := 1200.0
	m := Metric{
		MetricName: "Total Waste",
		DataType:   DataTypeYearlySeries,
		Yearly: &YearlySeries{Data: []YearlyDataPoint{
			{YearLabel: "2023", FiscalYear: &fy, Value: "1200", NumericValue: &nv, Source: "r.csv"},
		}},
	}

	clone := m.Clone()
	*clone.Yearly.Data[0].FiscalYear = 1999
	clone.Yearly.Data[0].Value = "changed"

	assert.Equal(t, 2023, *m.Yearly.Data[0].FiscalYear, "clone must not share pointers")
	assert.Equal(t, "1200", m.Yearly.Data[0].Value)
}

func TestCloneMetricsListIndependence(t *testing.T) {
	t.Parallel()

	in := []Metric{{
		MetricName: "Board",
		DataType:   DataTypeList,
		List:       &ListData{Items: []map[string]any{{"name": "A"}}},
	}}
	out := CloneMetrics(in)
	out[0].List.Items[0]["name"] = "B"

	assert.Equal(t, "A", in[0].List.Items[0]["name"])
}

func TestActiveMetrics(t *testing.T) {
	t.Parallel()

	rec := MetricRecord{Metrics: []Metric{
		{MetricName: "kept", IsActive: true},
		{MetricName: "removed", IsActive: false},
	}}
	active := rec.ActiveMetrics()
	require.Len(t, active, 1)
	assert.Equal(t, "kept", active[0].MetricName)
}

func TestNewBatchID(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	id := NewBatchID("upload", now)
	assert.Regexp(t, regexp.MustCompile(`^upload_1709294400000_[0-9a-f]{8}$`), id)

	assert.NotEqual(t, id, NewBatchID("upload", now), "suffix makes batch IDs unique per call")
}
