package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// DataType selects which variant of a Metric is populated.
type DataType string

const (
	DataTypeYearlySeries DataType = "yearly_series"
	DataTypeSingleValue  DataType = "single_value"
	DataTypeList         DataType = "list"
	DataTypeSummary      DataType = "summary"
)

// Metric is one named, categorized measurement within a record. Exactly one
// variant field matching DataType is populated; Validate enforces this.
type Metric struct {
	Category    Category `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	MetricName  string   `json:"metric_name"`
	Description string   `json:"description,omitempty"`
	DataType    DataType `json:"data_type"`

	Yearly  *YearlySeries `json:"yearly_series,omitempty"`
	Single  *SingleValue  `json:"single_value,omitempty"`
	List    *ListData     `json:"list_data,omitempty"`
	Summary *Summary      `json:"summary,omitempty"`

	// IsActive allows soft-removing a metric independently of its record.
	IsActive  bool      `json:"is_active"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// YearlySeries holds an ordered year-indexed time series.
type YearlySeries struct {
	Data []YearlyDataPoint `json:"data"`
}

// YearlyDataPoint is one observation in a yearly series. YearLabel is
// free-text as found in the source document ("FY25", "2023-24"); FiscalYear
// is the parsed integer when recoverable. Value preserves the raw cell text
// even when NumericValue could not be derived.
type YearlyDataPoint struct {
	YearLabel    string    `json:"year"`
	FiscalYear   *int      `json:"fiscal_year,omitempty"`
	Value        string    `json:"value"`
	NumericValue *float64  `json:"numeric_value,omitempty"`
	Unit         string    `json:"unit,omitempty"`
	Source       string    `json:"source"`
	Notes        string    `json:"notes,omitempty"`
	AddedBy      string    `json:"added_by,omitempty"`
	AddedAt      time.Time `json:"added_at,omitempty"`
}

// SingleValue is a one-off snapshot measurement.
type SingleValue struct {
	Value        string     `json:"value"`
	NumericValue *float64   `json:"numeric_value,omitempty"`
	Unit         string     `json:"unit,omitempty"`
	Source       string     `json:"source"`
	Notes        string     `json:"notes,omitempty"`
	AsOf         *time.Time `json:"as_of,omitempty"`
	AddedBy      string     `json:"added_by,omitempty"`
	AddedAt      time.Time  `json:"added_at,omitempty"`
}

// ListData holds itemized entries, one free-form object per item. Every item
// carries at least a "source" key (injected during attribution if absent).
type ListData struct {
	Items []map[string]any `json:"items"`
}

// Summary is a KPI snapshot.
type Summary struct {
	KeyMetric   string `json:"key_metric"`
	LatestValue string `json:"latest_value"`
	Trend       string `json:"trend,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Validate checks that the populated variant matches DataType and that every
// data point carries a non-empty source citation.
func (m *Metric) Validate() error {
	populated := 0
	if m.Yearly != nil {
		populated++
	}
	if m.Single != nil {
		populated++
	}
	if m.List != nil {
		populated++
	}
	if m.Summary != nil {
		populated++
	}
	if populated != 1 {
		return eris.Errorf("metric %q: %d variants populated, want exactly 1", m.MetricName, populated)
	}

	switch m.DataType {
	case DataTypeYearlySeries:
		if m.Yearly == nil {
			return eris.Errorf("metric %q: data_type yearly_series but variant missing", m.MetricName)
		}
		for _, dp := range m.Yearly.Data {
			if dp.Source == "" {
				return eris.Errorf("metric %q: yearly data point %q has no source", m.MetricName, dp.YearLabel)
			}
		}
	case DataTypeSingleValue:
		if m.Single == nil {
			return eris.Errorf("metric %q: data_type single_value but variant missing", m.MetricName)
		}
		if m.Single.Source == "" {
			return eris.Errorf("metric %q: single value has no source", m.MetricName)
		}
	case DataTypeList:
		if m.List == nil {
			return eris.Errorf("metric %q: data_type list but variant missing", m.MetricName)
		}
	case DataTypeSummary:
		if m.Summary == nil {
			return eris.Errorf("metric %q: data_type summary but variant missing", m.MetricName)
		}
	default:
		return eris.Errorf("metric %q: unknown data_type %q", m.MetricName, m.DataType)
	}
	return nil
}

// Clone returns a deep copy of the metric. Used by restore, which clones a
// historical record's metric tree wholesale instead of re-normalizing.
func (m Metric) Clone() Metric {
	out := m
	if m.Yearly != nil {
		y := &YearlySeries{Data: make([]YearlyDataPoint, len(m.Yearly.Data))}
		copy(y.Data, m.Yearly.Data)
		for i := range y.Data {
			if m.Yearly.Data[i].FiscalYear != nil {
				fy := *m.Yearly.Data[i].FiscalYear
				y.Data[i].FiscalYear = &fy
			}
			if m.Yearly.Data[i].NumericValue != nil {
				nv := *m.Yearly.Data[i].NumericValue
				y.Data[i].NumericValue = &nv
			}
		}
		out.Yearly = y
	}
	if m.Single != nil {
		s := *m.Single
		if m.Single.NumericValue != nil {
			nv := *m.Single.NumericValue
			s.NumericValue = &nv
		}
		if m.Single.AsOf != nil {
			t := *m.Single.AsOf
			s.AsOf = &t
		}
		out.Single = &s
	}
	if m.List != nil {
		l := &ListData{Items: make([]map[string]any, len(m.List.Items))}
		for i, item := range m.List.Items {
			cp := make(map[string]any, len(item))
			for k, v := range item {
				cp[k] = v
			}
			l.Items[i] = cp
		}
		out.List = l
	}
	if m.Summary != nil {
		s := *m.Summary
		out.Summary = &s
	}
	return out
}

// CloneMetrics deep-copies a metric slice.
func CloneMetrics(in []Metric) []Metric {
	out := make([]Metric, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}
