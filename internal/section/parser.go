package section

import (
	"go.uber.org/zap"

	"github.com/verdantiq/esg-cli/internal/format"
)

// RawSection is one recovered sub-table: a tag, the rule that opened it, the
// header labels recorded at section entry (if any), and the constituent data
// rows in document order.
type RawSection struct {
	Tag     string
	Rule    Rule
	Headers []string
	Rows    []format.Row
}

// Parser is a single-pass, line-oriented state machine over a row sequence.
// State is the currently open section (initially none). Rows that cannot be
// attributed to a section are dropped, not fatal: source documents are human
// exports, so layout recognition must tolerate missing and extra rows.
type Parser struct {
	rules *RuleSet

	markerToRule map[string]*Rule
}

// NewParser builds a parser from one entity type's transition table.
func NewParser(rules *RuleSet) *Parser {
	p := &Parser{
		rules:        rules,
		markerToRule: make(map[string]*Rule),
	}
	for i := range rules.Rules {
		rule := &rules.Rules[i]
		for _, m := range rule.Markers {
			p.markerToRule[normalizeMarker(m)] = rule
		}
	}
	return p
}

// Parse scans rows and groups them into sections. Transition rules, applied
// to the first cell of each row:
//   - exact marker match opens that section and consumes the row;
//   - an entirely empty row is skipped;
//   - a known header cell inside an open section records the row as that
//     section's column labels and skips it;
//   - anything else appends to the open section, or is dropped when no
//     section is open yet.
func (p *Parser) Parse(rows []format.Row) []RawSection {
	var (
		sections []RawSection
		current  *RawSection
		dropped  int
	)

	for _, row := range rows {
		if row.Empty() {
			continue
		}

		// Labeled rows (JSON documents) carry their section in a "section"
		// field instead of a standalone marker line.
		if len(row.Labels) > 0 {
			if rule, ok := p.markerToRule[normalizeMarker(row.Get("section"))]; ok {
				if current == nil || current.Tag != rule.Tag {
					sections = append(sections, RawSection{Tag: rule.Tag, Rule: *rule, Headers: row.Labels})
					current = &sections[len(sections)-1]
				}
				current.Rows = append(current.Rows, row)
				continue
			}
			if current != nil {
				current.Rows = append(current.Rows, row)
			} else {
				dropped++
			}
			continue
		}

		first := ""
		if len(row.Cells) > 0 {
			first = row.Cells[0]
		}

		if rule, ok := p.markerToRule[normalizeMarker(first)]; ok {
			sections = append(sections, RawSection{Tag: rule.Tag, Rule: *rule})
			current = &sections[len(sections)-1]
			continue
		}

		if current == nil {
			dropped++
			continue
		}

		if p.isHeaderRow(current, first) {
			current.Headers = row.Cells
			continue
		}

		current.Rows = append(current.Rows, row)
	}

	if dropped > 0 {
		zap.L().Debug("section: dropped rows outside any section",
			zap.String("entity_type", p.rules.EntityType),
			zap.Int("dropped", dropped),
		)
	}
	return sections
}

// isHeaderRow reports whether the first cell matches one of the open
// section's declared sub-header cells.
func (p *Parser) isHeaderRow(current *RawSection, first string) bool {
	norm := normalizeMarker(first)
	for _, h := range current.Rule.HeaderCells {
		if norm == normalizeMarker(h) {
			return true
		}
	}
	return false
}
