// Package export writes place and vehicle records as spreadsheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/fleetops/fleetops/internal/model"
)

// Format is an export file type.
type Format string

// Supported formats. XLSX is the default.
const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
)

// TimeLayout renders time values in every format.
const TimeLayout = "2006-01-02 15:04:05"

// ParseFormat maps a requested format to a Format; empty means xlsx.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatXLSX, nil
	case FormatXLSX, FormatCSV, FormatTSV:
		return f, nil
	}
	return "", model.NewError(model.ErrUnsupportedFormat,
		"Invalid export format, must be one of the following: xlsx, csv, tsv", nil)
}

// ContentType is the MIME type served with the file.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatTSV:
		return "text/tab-separated-values; charset=utf-8"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// Filename names an export of kind taken at t, e.g. places-2026-10-16-1430.xlsx.
func Filename(kind model.EntityKind, at time.Time, f Format) string {
	return Slug(kind.Plural()+"-"+at.Format("2006-01-02-15:04")) + "." + string(f)
}

var slugFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug lowercases s, folds accents, drops everything except letters, digits,
// spaces and dashes, then joins the words with single dashes.
func Slug(s string) string {
	folded, _, err := transform.String(slugFold, s)
	if err != nil {
		folded = s
	}
	folded = strings.ReplaceAll(folded, "_", "-")

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			dash = true
		}
	}
	return b.String()
}

// Write encodes records in f with columns as the heading row. Values are
// taken from each record by column name; missing keys are blank.
func Write(w io.Writer, f Format, sheetName string, columns []string, records []model.Record) error {
	switch f {
	case FormatCSV:
		return writeDelimited(w, ',', columns, records)
	case FormatTSV:
		return writeDelimited(w, '\t', columns, records)
	case FormatXLSX:
		return writeXLSX(w, sheetName, columns, records)
	}
	return eris.Errorf("export: unsupported format %q", f)
}

func writeDelimited(w io.Writer, delim rune, columns []string, records []model.Record) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim
	if err := cw.Write(columns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	row := make([]string, len(columns))
	for i, rec := range records {
		for j, c := range columns {
			row[j] = text(rec[c])
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "export: write row %d", i)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}

func writeXLSX(w io.Writer, sheetName string, columns []string, records []model.Record) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, c := range columns {
		header.AddCell().SetString(c)
	}
	for _, rec := range records {
		row := sheet.AddRow()
		for _, c := range columns {
			cell := row.AddCell()
			switch v := rec[c].(type) {
			case nil:
			case float64:
				cell.SetFloat(v)
			case int64:
				cell.SetInt64(v)
			case int:
				cell.SetInt(v)
			case bool:
				cell.SetBool(v)
			default:
				cell.SetString(text(v))
			}
		}
	}

	if err := file.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(TimeLayout)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
