// Package format converts raw uploaded report bytes (delimited text,
// spreadsheet binary, or JSON text) into a uniform ordered row sequence for
// the section parser. All transforms are pure: no side effects, no partial
// output on error.
package format

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Format identifies a supported input encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
	FormatJSON  Format = "json"
)

// Sentinel errors surfaced verbatim to the import caller.
var (
	ErrUnsupportedFormat = eris.New("unsupported input format")
	ErrEmptyInput        = eris.New("no rows recoverable from input")
)

// Row is one row-like record. Cells are positional values; Labels are the
// column labels when the source carries them per row (JSON first-level keys,
// in document order). For CSV and spreadsheet inputs Labels is nil and the
// header row is detected downstream by the section parser.
type Row struct {
	Cells  []string
	Labels []string
}

// Get returns the cell value for a label, or "" when the row has no such
// label.
func (r Row) Get(label string) string {
	for i, l := range r.Labels {
		if l == label && i < len(r.Cells) {
			return r.Cells[i]
		}
	}
	return ""
}

// Empty reports whether every cell in the row is blank.
func (r Row) Empty() bool {
	for _, c := range r.Cells {
		if c != "" {
			return false
		}
	}
	return true
}

// ForExtension maps a file extension (with leading dot) onto a Format.
func ForExtension(ext string) (Format, bool) {
	switch strings.ToLower(ext) {
	case ".csv", ".tsv":
		return FormatCSV, true
	case ".xlsx":
		return FormatExcel, true
	case ".json":
		return FormatJSON, true
	}
	return "", false
}

// Parse converts raw bytes of the declared format into an ordered row
// sequence. Returns ErrUnsupportedFormat for unknown formats and
// ErrEmptyInput when no rows are recoverable.
func Parse(data []byte, f Format) ([]Row, error) {
	var (
		rows []Row
		err  error
	)
	switch f {
	case FormatCSV:
		rows, err = parseCSV(data)
	case FormatExcel:
		rows, err = parseXLSX(data)
	case FormatJSON:
		rows, err = parseJSON(data)
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "format: %q", f)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.Wrap(ErrEmptyInput, "format: parse")
	}
	return rows, nil
}
