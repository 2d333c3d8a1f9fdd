// Package normalize maps raw report sections into canonical typed metrics.
// The policy throughout is best effort: malformed cells keep their raw text
// with no numeric value, and only a document that yields zero metrics
// end-to-end fails the import.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verdantiq/esg-cli/internal/format"
	"github.com/verdantiq/esg-cli/internal/model"
	"github.com/verdantiq/esg-cli/internal/section"
)

// ErrNoMetricsExtracted is returned when a document parsed as a file but
// yielded no usable structure; the import caller treats it as fatal.
var ErrNoMetricsExtracted = eris.New("no metrics extracted from document")

// Normalizer folds raw sections into model.Metric values.
type Normalizer struct {
	now func() time.Time
}

// New creates a Normalizer.
func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize applies each section's shape rule and accumulates metrics. The
// same metric name and category within a document fold into one Metric, not
// duplicates. source is the citation stamped on every data point.
func (n *Normalizer) Normalize(sections []section.RawSection, source string) ([]model.Metric, error) {
	if source == "" {
		source = "import"
	}

	acc := newAccumulator(n.now())
	for _, sec := range sections {
		switch sec.Rule.Shape {
		case model.DataTypeYearlySeries:
			n.extractYearly(acc, sec, source)
		case model.DataTypeList:
			n.extractList(acc, sec, source)
		case model.DataTypeSingleValue:
			n.extractSingle(acc, sec, source)
		case model.DataTypeSummary:
			n.extractSummary(acc, sec)
		default:
			zap.L().Warn("normalize: section rule with unknown shape",
				zap.String("tag", sec.Tag),
				zap.String("shape", string(sec.Rule.Shape)),
			)
		}
	}

	metrics := acc.metrics()
	if len(metrics) == 0 {
		return nil, eris.Wrap(ErrNoMetricsExtracted, "normalize")
	}
	return metrics, nil
}

// extractYearly probes year columns per row. The header recorded at section
// entry names the columns; without one, the fixed candidate set is matched
// against cell positions 1..n in order.
func (n *Normalizer) extractYearly(acc *accumulator, sec section.RawSection, source string) {
	for _, row := range sec.Rows {
		headers := sec.Headers
		if len(row.Labels) > 0 {
			headers = row.Labels
		}

		name, unit, points := n.yearlyPointsFromRow(row, headers, source)
		if name == "" || len(points) == 0 {
			continue
		}
		m := acc.metric(sec.Rule.Category, name, model.DataTypeYearlySeries)
		if m.Yearly == nil {
			m.Yearly = &model.YearlySeries{}
		}
		for i := range points {
			if points[i].Unit == "" {
				points[i].Unit = unit
			}
		}
		m.Yearly.Data = append(m.Yearly.Data, points...)
	}
}

func (n *Normalizer) yearlyPointsFromRow(row format.Row, headers []string, source string) (name, unit string, points []model.YearlyDataPoint) {
	nameIdx := 0
	if len(row.Labels) > 0 {
		// Labeled rows name the metric in a "metric" or "name" field.
		for i, l := range row.Labels {
			ll := strings.ToLower(l)
			if ll == "metric" || ll == "name" {
				nameIdx = i
				break
			}
		}
	}
	if nameIdx >= len(row.Cells) || row.Cells[nameIdx] == "" {
		return "", "", nil
	}
	name, unit = InferUnit(row.Cells[nameIdx])

	for i, cell := range row.Cells {
		if i == nameIdx || cell == "" {
			continue
		}
		label := ""
		if i < len(headers) {
			label = headers[i]
		}
		fy, isYear := ParseYearLabel(label)
		if !isYear {
			// No usable header for this column: probe the fixed candidates
			// by position.
			if i-1 < len(defaultYearCandidates) && len(headers) == 0 {
				label = defaultYearCandidates[i-1]
				fy, isYear = ParseYearLabel(label)
			}
			if !isYear {
				continue
			}
		}

		numeric, raw := CleanNumeric(cell)
		points = append(points, model.YearlyDataPoint{
			YearLabel:    label,
			FiscalYear:   fy,
			Value:        raw,
			NumericValue: numeric,
			Source:       source,
		})
	}
	return name, unit, points
}

// extractList turns each row into one free-form item keyed by the section's
// header labels, with positional fallback keys.
func (n *Normalizer) extractList(acc *accumulator, sec section.RawSection, source string) {
	if len(sec.Rows) == 0 {
		return
	}
	name := sec.Rule.MetricName
	if name == "" {
		name = titleFromTag(sec.Tag)
	}
	m := acc.metric(sec.Rule.Category, name, model.DataTypeList)
	if m.List == nil {
		m.List = &model.ListData{}
	}

	for _, row := range sec.Rows {
		headers := sec.Headers
		if len(row.Labels) > 0 {
			headers = row.Labels
		}
		item := make(map[string]any, len(row.Cells)+1)
		for i, cell := range row.Cells {
			if cell == "" {
				continue
			}
			key := fmt.Sprintf("col_%d", i)
			if i < len(headers) && headers[i] != "" {
				key = normalizeKey(headers[i])
			}
			item[key] = cell
		}
		if len(item) == 0 {
			continue
		}
		if _, ok := item["source"]; !ok {
			item["source"] = source
		}
		m.List.Items = append(m.List.Items, item)
	}
}

func (n *Normalizer) extractSingle(acc *accumulator, sec section.RawSection, source string) {
	for _, row := range sec.Rows {
		if len(row.Cells) == 0 {
			continue
		}
		name := sec.Rule.MetricName
		if name == "" {
			name = row.Cells[0]
		}
		value := ""
		if v := row.Get("value"); v != "" {
			value = v
		} else if len(row.Cells) > 1 {
			value = row.Cells[1]
		}
		name, unit := InferUnit(name)
		if name == "" {
			continue
		}

		numeric, raw := CleanNumeric(value)
		m := acc.metric(sec.Rule.Category, name, model.DataTypeSingleValue)
		if m.Single == nil {
			m.Single = &model.SingleValue{
				Value:        raw,
				NumericValue: numeric,
				Unit:         unit,
				Source:       source,
			}
		}
	}
}

func (n *Normalizer) extractSummary(acc *accumulator, sec section.RawSection) {
	for _, row := range sec.Rows {
		if len(row.Cells) == 0 {
			continue
		}
		name := sec.Rule.MetricName
		if name == "" {
			name = titleFromTag(sec.Tag)
		}
		m := acc.metric(sec.Rule.Category, name, model.DataTypeSummary)
		if m.Summary != nil {
			continue
		}
		s := &model.Summary{}
		if len(row.Labels) > 0 {
			s.KeyMetric = firstNonEmpty(row.Get("key_metric"), row.Get("kpi"), row.Get("metric"))
			s.LatestValue = firstNonEmpty(row.Get("latest_value"), row.Get("value"))
			s.Trend = row.Get("trend")
			s.Notes = row.Get("notes")
		}
		if s.KeyMetric == "" {
			cells := row.Cells
			s.KeyMetric = cells[0]
			if len(cells) > 1 {
				s.LatestValue = cells[1]
			}
			if len(cells) > 2 {
				s.Trend = cells[2]
			}
			if len(cells) > 3 {
				s.Notes = cells[3]
			}
		}
		m.Summary = s
	}
}

// accumulator folds repeated (category, metric name) pairs into one Metric
// while preserving first-seen document order.
type accumulator struct {
	order []string
	byKey map[string]*model.Metric
	now   time.Time
}

func newAccumulator(now time.Time) *accumulator {
	return &accumulator{byKey: make(map[string]*model.Metric), now: now}
}

func (a *accumulator) metric(cat model.Category, name string, dt model.DataType) *model.Metric {
	key := string(cat) + "|" + name
	if m, ok := a.byKey[key]; ok {
		return m
	}
	m := &model.Metric{
		Category:   cat,
		MetricName: name,
		DataType:   dt,
		IsActive:   true,
		CreatedAt:  a.now,
	}
	a.byKey[key] = m
	a.order = append(a.order, key)
	return m
}

func (a *accumulator) metrics() []model.Metric {
	out := make([]model.Metric, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, *a.byKey[key])
	}
	return out
}

func normalizeKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

func titleFromTag(tag string) string {
	words := strings.Split(strings.ReplaceAll(tag, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
