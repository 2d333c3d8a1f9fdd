package format

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// parseCSV reads delimited text into rows. Excel exports routinely carry a
// UTF-8 or UTF-16 byte-order mark, so input goes through a BOM-stripping
// decoder first. The delimiter is sniffed from the first line (comma,
// semicolon, or tab).
func parseCSV(data []byte) ([]Row, error) {
	decoder := unicode.UTF8BOM.NewDecoder()
	decoded, _, err := transform.Bytes(unicode.BOMOverride(decoder), data)
	if err != nil {
		return nil, eris.Wrap(err, "csv: decode input")
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = sniffDelimiter(decoded)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // source documents never guarantee a column count

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		rows = append(rows, Row{Cells: record})
	}
	return rows, nil
}

// sniffDelimiter picks the delimiter with the most occurrences on the first
// line, defaulting to comma.
func sniffDelimiter(data []byte) rune {
	line := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		line = data[:idx]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, cand := range []byte{';', '\t'} {
		if n := bytes.Count(line, []byte{cand}); n > bestCount {
			best, bestCount = rune(cand), n
		}
	}
	return best
}
