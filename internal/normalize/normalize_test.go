package normalize

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantiq/esg-cli/internal/format"
	"github.com/verdantiq/esg-cli/internal/model"
	"github.com/verdantiq/esg-cli/internal/section"
)

func parseGeneral(t *testing.T, rows []format.Row) []section.RawSection {
	t.Helper()
	reg, err := section.DefaultRegistry()
	require.NoError(t, err)
	rs, err := reg.ForEntityType("general")
	require.NoError(t, err)
	return section.NewParser(rs).Parse(rows)
}

func cells(vals ...string) format.Row {
	return format.Row{Cells: vals}
}

func TestNormalizeYearlySeries(t *testing.T) {
	t.Parallel()

	sections := parseGeneral(t, []format.Row{
		cells("Waste Management"),
		cells("Metric", "2022", "2023"),
		cells("Total Waste (tons)", "1200", "1,450"),
	})

	metrics, err := New().Normalize(sections, "report.csv")
	require.NoError(t, err)
	require.Len(t, metrics, 1)

	m := metrics[0]
	assert.Equal(t, model.CategoryWasteManagement, m.Category)
	assert.Equal(t, "Total Waste", m.MetricName, "unit parenthetical is stripped from the name")
	assert.Equal(t, model.DataTypeYearlySeries, m.DataType)
	assert.True(t, m.IsActive)

	require.NotNil(t, m.Yearly)
	require.Len(t, m.Yearly.Data, 2)

	p22 := m.Yearly.Data[0]
	assert.Equal(t, "2022", p22.YearLabel)
	require.NotNil(t, p22.FiscalYear)
	assert.Equal(t, 2022, *p22.FiscalYear)
	assert.Equal(t, "1200", p22.Value)
	require.NotNil(t, p22.NumericValue)
	assert.Equal(t, 1200.0, *p22.NumericValue)
	assert.Equal(t, "tons", p22.Unit)
	assert.Equal(t, "report.csv", p22.Source)

	p23 := m.Yearly.Data[1]
	assert.Equal(t, "1,450", p23.Value, "raw text survives coercion")
	require.NotNil(t, p23.NumericValue)
	assert.Equal(t, 1450.0, *p23.NumericValue)
}

func TestNormalizeUnparseableValueKeptRaw(t *testing.T) {
	t.Parallel()

	sections := parseGeneral(t, []format.Row{
		cells("Energy Consumption"),
		cells("Metric", "2022", "2023"),
		cells("Grid Power (MWh)", "N/A", "approx. 500"),
	})

	metrics, err := New().Normalize(sections, "r.csv")
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	require.NotNil(t, metrics[0].Yearly)
	require.Len(t, metrics[0].Yearly.Data, 2)

	assert.Equal(t, "N/A", metrics[0].Yearly.Data[0].Value)
	assert.Nil(t, metrics[0].Yearly.Data[0].NumericValue)
	assert.Equal(t, "approx. 500", metrics[0].Yearly.Data[1].Value)
	assert.Nil(t, metrics[0].Yearly.Data[1].NumericValue, "parse failure never aborts, it degrades")
}

func TestNormalizeFoldsDuplicateMetricNames(t *testing.T) {
	t.Parallel()

	sections := parseGeneral(t, []format.Row{
		cells("Water Management"),
		cells("Metric", "2022"),
		cells("Water Drawn (kL)", "100"),
		cells("Water Consumption"),
		cells("Metric", "2023"),
		cells("Water Drawn (kL)", "120"),
	})

	metrics, err := New().Normalize(sections, "r.csv")
	require.NoError(t, err)
	require.Len(t, metrics, 1, "same name and category folds into one metric")
	require.NotNil(t, metrics[0].Yearly)
	assert.Len(t, metrics[0].Yearly.Data, 2)
}

func TestNormalizeListSection(t *testing.T) {
	t.Parallel()

	sections := parseGeneral(t, []format.Row{
		cells("Board of Directors Composition"),
		cells("Name", "Role", "Since"),
		cells("A. Sharma", "Chair", "2019"),
		cells("B. Iyer", "Independent Director", ""),
	})

	metrics, err := New().Normalize(sections, "annual.xlsx")
	require.NoError(t, err)
	require.Len(t, metrics, 1)

	m := metrics[0]
	assert.Equal(t, model.DataTypeList, m.DataType)
	assert.Equal(t, model.CategoryBoardComposition, m.Category)
	require.NotNil(t, m.List)
	require.Len(t, m.List.Items, 2)

	assert.Equal(t, "A. Sharma", m.List.Items[0]["name"])
	assert.Equal(t, "Chair", m.List.Items[0]["role"])
	assert.Equal(t, "2019", m.List.Items[0]["since"])
	assert.Equal(t, "annual.xlsx", m.List.Items[0]["source"])

	_, hasSince := m.List.Items[1]["since"]
	assert.False(t, hasSince, "empty cells produce no keys")
}

func TestNormalizeSummarySection(t *testing.T) {
	t.Parallel()

	sections := parseGeneral(t, []format.Row{
		cells("Key Performance Indicators"),
		cells("Sugar Recovery Rate", "11.2%", "improving", "5-year high"),
	})

	metrics, err := New().Normalize(sections, "r.csv")
	require.NoError(t, err)
	require.Len(t, metrics, 1)

	m := metrics[0]
	assert.Equal(t, "KPI Summary", m.MetricName)
	assert.Equal(t, model.DataTypeSummary, m.DataType)
	require.NotNil(t, m.Summary)
	assert.Equal(t, "Sugar Recovery Rate", m.Summary.KeyMetric)
	assert.Equal(t, "11.2%", m.Summary.LatestValue)
	assert.Equal(t, "improving", m.Summary.Trend)
	assert.Equal(t, "5-year high", m.Summary.Notes)
}

func TestNormalizeNoMetrics(t *testing.T) {
	t.Parallel()

	// Parses as a file but matches no section layout at all.
	sections := parseGeneral(t, []format.Row{
		cells("random", "cells"),
		cells("more", "noise"),
	})

	_, err := New().Normalize(sections, "noise.csv")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoMetricsExtracted))
}

func TestNormalizeHeaderlessYearProbe(t *testing.T) {
	t.Parallel()

	// No header row recognized: year columns probed positionally against the
	// fixed candidate set.
	sections := parseGeneral(t, []format.Row{
		cells("Waste Management"),
		cells("Total Waste", "1200", "1450"),
	})

	metrics, err := New().Normalize(sections, "r.csv")
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	require.NotNil(t, metrics[0].Yearly)
	require.Len(t, metrics[0].Yearly.Data, 2)
	assert.Equal(t, "2021", metrics[0].Yearly.Data[0].YearLabel)
	assert.Equal(t, "2022", metrics[0].Yearly.Data[1].YearLabel)
}

func TestCleanNumeric(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    *float64
		wantRaw string
	}{
		{"1200", f(1200), "1200"},
		{"1,450", f(1450), "1,450"},
		{"12,34,567", f(1234567), "12,34,567"},
		{"11.2%", f(11.2), "11.2%"},
		{"$2,500", f(2500), "$2,500"},
		{"₹500", f(500), "₹500"},
		{"N/A", nil, "N/A"},
		{"-", nil, "-"},
		{"—", nil, "—"},
		{"", nil, ""},
		{"approx. 500", nil, "approx. 500"},
		{" 42 ", f(42), "42"},
	}
	for _, tt := range tests {
		got, raw := CleanNumeric(tt.raw)
		assert.Equal(t, tt.wantRaw, raw, tt.raw)
		if tt.want == nil {
			assert.Nil(t, got, tt.raw)
		} else {
			require.NotNil(t, got, tt.raw)
			assert.Equal(t, *tt.want, *got, tt.raw)
		}
	}
}

func f(v float64) *float64 { return &v }

func TestInferUnit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		wantCleaned string
		wantUnit    string
	}{
		{"Total Waste (tons)", "Total Waste", "tons"},
		{"Scope 1 Emissions (tCO2e)", "Scope 1 Emissions", "tCO2e"},
		{"Grid Power (MWh)", "Grid Power", "MWh"},
		{"Female Representation (%)", "Female Representation", "%"},
		{"CSR Spend (INR)", "CSR Spend", "INR"},
		{"Plain Metric", "Plain Metric", ""},
	}
	for _, tt := range tests {
		cleaned, unit := InferUnit(tt.name)
		assert.Equal(t, tt.wantCleaned, cleaned, tt.name)
		assert.Equal(t, tt.wantUnit, unit, tt.name)
	}
}

func TestParseYearLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label  string
		wantFY *int
		wantOK bool
	}{
		{"2023", intp(2023), true},
		{"FY25", intp(2025), true},
		{"FY 24", intp(2024), true},
		{"2023-24", intp(2023), true},
		{"2022/23", intp(2022), true},
		{"Metric", nil, false},
		{"Role", nil, false},
		{"", nil, false},
	}
	for _, tt := range tests {
		fy, ok := ParseYearLabel(tt.label)
		assert.Equal(t, tt.wantOK, ok, tt.label)
		if tt.wantFY == nil {
			assert.Nil(t, fy, tt.label)
		} else {
			require.NotNil(t, fy, tt.label)
			assert.Equal(t, *tt.wantFY, *fy, tt.label)
		}
	}
}

func intp(v int) *int { return &v }
