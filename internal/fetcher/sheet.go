package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/fleetops/fleetops/internal/model"
)

// Sheet is a decoded sheet keyed by its heading row.
type Sheet struct {
	Name string
	Rows []model.RawRow
}

// SheetReader decodes uploaded spreadsheet bytes.
type SheetReader struct{}

// NewSheetReader returns a SheetReader.
func NewSheetReader() *SheetReader {
	return &SheetReader{}
}

// Read decodes data according to format (csv, tsv, xls or xlsx). The first
// row of every sheet is the heading row; headings are trimmed and lowercased
// and become the keys of each RawRow. Empty cells decode to nil and rows with
// no values at all are dropped.
func (r *SheetReader) Read(ctx context.Context, data []byte, format string) ([]Sheet, error) {
	switch strings.ToLower(format) {
	case "csv":
		return readDelimited(ctx, data, ',')
	case "tsv":
		return readDelimited(ctx, data, '\t')
	case "xlsx", "xls":
		// Only the OOXML container is understood; legacy BIFF .xls fails here.
		return readXLSX(data)
	default:
		return nil, eris.Errorf("sheet: unsupported format %q", format)
	}
}

func readDelimited(ctx context.Context, data []byte, delim rune) ([]Sheet, error) {
	// Strip a UTF-8 BOM and transcode UTF-16 exports from spreadsheet tools.
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	src := transform.NewReader(bytes.NewReader(data), decoder)

	grid, err := ReadDelimited(ctx, src, DelimitedOptions{Delimiter: delim})
	if err != nil {
		return nil, eris.Wrap(err, "sheet: read delimited")
	}
	return []Sheet{{Name: "Worksheet", Rows: keyRows(grid)}}, nil
}

func readXLSX(data []byte) ([]Sheet, error) {
	books, err := ReadWorkbook(data)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: read workbook")
	}
	sheets := make([]Sheet, len(books))
	for i, ws := range books {
		sheets[i] = Sheet{Name: ws.Name, Rows: keyRows(ws.Rows)}
	}
	return sheets, nil
}

// keyRows turns a grid into header-keyed rows.
func keyRows(grid [][]any) []model.RawRow {
	if len(grid) == 0 {
		return []model.RawRow{}
	}

	header := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		header[i] = headingKey(h)
	}

	rows := make([]model.RawRow, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		row := make(model.RawRow, len(header))
		filled := false
		for i, key := range header {
			if key == "" {
				continue
			}
			var v any
			if i < len(cells) {
				v = cellOrNil(cells[i])
			}
			if v != nil {
				filled = true
			}
			row[key] = v
		}
		if filled {
			rows = append(rows, row)
		}
	}
	return rows
}

func headingKey(v any) string {
	var s string
	switch h := v.(type) {
	case nil:
		return ""
	case string:
		s = h
	case float64:
		s = strconv.FormatFloat(h, 'f', -1, 64)
	default:
		s = fmt.Sprint(h)
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func cellOrNil(v any) any {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}
	return v
}
