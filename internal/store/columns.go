package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fleetops/fleetops/internal/model"
)

type colType int

const (
	colText colType = iota
	colFloat
	colBool
)

type column struct {
	name string
	typ  colType
}

// Writable columns per kind, in export order. Keys outside these lists are
// kept in the meta document.
var (
	placeColumns = []column{
		{"public_id", colText},
		{"name", colText},
		{"street1", colText},
		{"street2", colText},
		{"city", colText},
		{"province", colText},
		{"postal_code", colText},
		{"country", colText},
		{"phone", colText},
		{"latitude", colFloat},
		{"longitude", colFloat},
	}
	vehicleColumns = []column{
		{"public_id", colText},
		{"name", colText},
		{"make", colText},
		{"model", colText},
		{"year", colText},
		{"plate_number", colText},
		{"vin", colText},
		{"phone", colText},
		{"country", colText},
		{"status", colText},
		{"online", colBool},
	}
)

func columnsFor(kind model.EntityKind) []column {
	if kind == model.KindVehicle {
		return vehicleColumns
	}
	return placeColumns
}

// ExportColumns lists the record keys FindRecords returns for kind, in order.
func ExportColumns(kind model.EntityKind) []string {
	cols := columnsFor(kind)
	names := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		names = append(names, c.name)
	}
	return append(names, model.FieldCreatedAt)
}

// preparedRow is a record split into typed column values and leftovers.
type preparedRow struct {
	values    []any
	meta      map[string]any
	createdAt time.Time
	lat, lon  *float64
}

// timeLayouts are tried in order when reading created_at.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
}

func prepareRow(kind model.EntityKind, rec model.Record, now time.Time) preparedRow {
	cols := columnsFor(kind)
	known := make(map[string]bool, len(cols)+1)
	row := preparedRow{values: make([]any, len(cols)), meta: map[string]any{}, createdAt: now}

	for i, c := range cols {
		known[c.name] = true
		v, ok := rec[c.name]
		if !ok || v == nil {
			if c.typ == colBool {
				row.values[i] = false
			}
			continue
		}
		switch c.typ {
		case colText:
			row.values[i] = textValue(v)
		case colFloat:
			if f, ok := floatValue(v); ok {
				row.values[i] = f
				switch c.name {
				case model.FieldLatitude:
					row.lat = &f
				case model.FieldLongitude:
					row.lon = &f
				}
			} else {
				row.meta[c.name] = v
			}
		case colBool:
			row.values[i] = boolValue(v)
		}
	}

	known[model.FieldCreatedAt] = true
	if v, ok := rec[model.FieldCreatedAt]; ok && v != nil {
		if t, ok := timeValue(v); ok {
			row.createdAt = t
		} else {
			row.meta[model.FieldCreatedAt] = v
		}
	}

	for k, v := range rec {
		if !known[k] && v != nil {
			row.meta[k] = v
		}
	}
	return row
}

func textValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func floatValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func boolValue(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return strings.EqualFold(strings.TrimSpace(t), "yes")
		}
		return b
	default:
		return false
	}
}

func timeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// composeAddress joins the non-empty address parts.
func composeAddress(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// likePattern escapes LIKE wildcards in s and wraps it for a contains match.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(s)) + "%"
}
