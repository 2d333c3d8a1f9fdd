package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// parseJSON reads a JSON array of flat objects into rows. Labels are the
// first-level keys of each element, preserved in document order via a
// token-level decode (map decoding would lose ordering).
func parseJSON(data []byte) ([]Row, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	tok, err := decoder.Token()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "json: read opening token")
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '[' {
		return nil, eris.Errorf("json: expected array, got %v", tok)
	}

	var rows []Row
	for decoder.More() {
		row, err := decodeObjectRow(decoder)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if _, err := decoder.Token(); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "json: read closing token")
	}
	return rows, nil
}

// decodeObjectRow consumes one object from the decoder, keeping key order.
func decodeObjectRow(decoder *json.Decoder) (Row, error) {
	tok, err := decoder.Token()
	if err != nil {
		return Row{}, eris.Wrap(err, "json: read element")
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return Row{}, eris.Errorf("json: expected object element, got %v", tok)
	}

	var row Row
	for decoder.More() {
		keyTok, err := decoder.Token()
		if err != nil {
			return Row{}, eris.Wrap(err, "json: read key")
		}
		key, _ := keyTok.(string)

		var val any
		if err := decoder.Decode(&val); err != nil {
			return Row{}, eris.Wrap(err, "json: decode value")
		}
		row.Labels = append(row.Labels, key)
		row.Cells = append(row.Cells, stringifyJSONValue(val))
	}
	if _, err := decoder.Token(); err != nil {
		return Row{}, eris.Wrap(err, "json: read object close")
	}
	return row, nil
}

func stringifyJSONValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
