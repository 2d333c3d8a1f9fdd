package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// noValueLiterals are cell values treated as "no numeric value": the raw
// text is preserved and NumericValue stays unset, never a parse error.
var noValueLiterals = map[string]bool{
	"":    true,
	"n/a": true,
	"na":  true,
	"-":   true,
	"—":   true,
}

// CleanNumeric coerces a formatted cell value to a float. It strips thousands
// separators, currency symbols, and a trailing percent sign. Returns
// (nil, raw) when the cell holds no numeric value or fails to parse; the
// pipeline degrades gracefully instead of aborting the import.
func CleanNumeric(raw string) (*float64, string) {
	trimmed := strings.TrimSpace(raw)
	if noValueLiterals[strings.ToLower(trimmed)] {
		return nil, trimmed
	}

	cleaned := strings.ReplaceAll(trimmed, ",", "")
	cleaned = strings.TrimSuffix(cleaned, "%")
	cleaned = strings.TrimLeft(cleaned, "$€£₹ ")
	cleaned = strings.TrimSpace(cleaned)

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil, trimmed
	}
	return &f, trimmed
}

// unitSubstrings is the closed mapping from metric-name substrings to
// measurement units. Matching is case-insensitive; the matched parenthetical
// is stripped from the metric name.
var unitSubstrings = []struct {
	needle string
	unit   string
}{
	{"(tco2e)", "tCO2e"},
	{"(tons)", "tons"},
	{"(tonnes)", "tonnes"},
	{"(mwh)", "MWh"},
	{"(kwh)", "kWh"},
	{"(kl)", "kL"},
	{"(ml)", "ML"},
	{"(m3)", "m3"},
	{"(%)", "%"},
	{"(inr)", "INR"},
	{"(usd)", "USD"},
	{"(hours)", "hours"},
	{"(count)", "count"},
	{"(headcount)", "headcount"},
}

// InferUnit derives the measurement unit from naming conventions in the
// metric name, returning the cleaned name and the unit ("" when no
// convention matches).
func InferUnit(name string) (cleaned, unit string) {
	lower := strings.ToLower(name)
	for _, u := range unitSubstrings {
		idx := strings.Index(lower, u.needle)
		if idx < 0 {
			continue
		}
		cleaned = strings.TrimSpace(name[:idx] + name[idx+len(u.needle):])
		return cleaned, u.unit
	}
	return strings.TrimSpace(name), ""
}

var yearLabelRe = regexp.MustCompile(`^(?:FY\s*)?(\d{2,4})(?:\s*[-/→]\s*\d{2,4})?$`)

// defaultYearCandidates is the fixed probe set used when a section's header
// row was not recognized.
var defaultYearCandidates = []string{
	"2021", "2022", "2023", "2024", "2025",
	"FY21", "FY22", "FY23", "FY24", "FY25",
}

// ParseYearLabel recognizes year-column labels ("2023", "FY25", "2023-24")
// and extracts the fiscal year integer when recoverable.
func ParseYearLabel(label string) (fiscalYear *int, ok bool) {
	m := yearLabelRe.FindStringSubmatch(strings.TrimSpace(strings.ToUpper(label)))
	if m == nil {
		return nil, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, true
	}
	switch {
	case n >= 1900 && n <= 2200:
		return &n, true
	case n < 100:
		// Two-digit fiscal years pivot on the century ("FY25" -> 2025).
		y := 2000 + n
		return &y, true
	}
	return nil, true
}
