package format

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// parseXLSX reads the first sheet of a spreadsheet binary into rows.
func parseXLSX(data []byte) ([]Row, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open binary")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Wrap(ErrEmptyInput, "xlsx: no sheets")
	}

	sheet := f.Sheets[0]
	rows := make([]Row, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		rows = append(rows, Row{Cells: cells})
	}
	return rows, nil
}
