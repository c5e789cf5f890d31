package fetcher

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Worksheet is one decoded sheet of a workbook, rows as raw cell values.
type Worksheet struct {
	Name string
	Rows [][]any
}

// ReadWorkbook decodes every sheet of an XLSX document held in memory.
// Plain numeric cells come back as float64 and booleans as bool. Everything
// else, dates included, is the cell's formatted string.
func ReadWorkbook(data []byte) ([]Worksheet, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}

	sheets := make([]Worksheet, 0, len(f.Sheets))
	for _, sheet := range f.Sheets {
		ws := Worksheet{Name: sheet.Name, Rows: make([][]any, 0, len(sheet.Rows))}
		for _, row := range sheet.Rows {
			if row == nil {
				continue
			}
			ws.Rows = append(ws.Rows, rowToValues(row))
		}
		sheets = append(sheets, ws)
	}
	return sheets, nil
}

func rowToValues(row *xlsx.Row) []any {
	cells := make([]any, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cellValue(cell)
	}
	return cells
}

func cellValue(cell *xlsx.Cell) any {
	if cell == nil {
		return nil
	}
	switch cell.Type() {
	case xlsx.CellTypeBool:
		return cell.Bool()
	case xlsx.CellTypeNumeric:
		s := cell.String()
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	}
	return cell.String()
}
