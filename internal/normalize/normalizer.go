// Package normalize maps raw import rows onto canonical place and vehicle records.
package normalize

import (
	"fmt"
	"unicode/utf8"

	"github.com/fleetops/fleetops/internal/model"
)

// Normalizer applies the field rules to raw rows. It is safe for concurrent use.
type Normalizer struct {
	countries   *CountryTable
	callingCode string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithCallingCode sets the calling code applied to national phone numbers.
func WithCallingCode(code string) Option {
	return func(n *Normalizer) {
		n.callingCode = code
	}
}

// WithCountryTable replaces the embedded country table.
func WithCountryTable(t *CountryTable) Option {
	return func(n *Normalizer) {
		n.countries = t
	}
}

// New creates a Normalizer backed by the embedded country table.
func New(opts ...Option) (*Normalizer, error) {
	n := &Normalizer{callingCode: DefaultCallingCode}
	for _, opt := range opts {
		opt(n)
	}
	if n.countries == nil {
		t, err := DefaultCountryTable()
		if err != nil {
			return nil, err
		}
		n.countries = t
	}
	return n, nil
}

// Normalize converts one raw row into a canonical record. Rules run in a fixed
// order since the later ones read keys written by the earlier ones:
//
//  1. phone is rewritten to +<digits>
//  2. "created at" is renamed to created_at
//  3. country names longer than two characters become ISO codes
//  4. id is renamed to public_id
//  5. vehicles get status=active and online=false
//
// Unknown countries are kept and reported as warnings. Only a row that is not a
// mapping fails, with a FormatError.
func (n *Normalizer) Normalize(raw any, kind model.EntityKind) (model.Record, []model.Warning, error) {
	rec, err := toRecord(raw)
	if err != nil {
		return nil, nil, err
	}

	var warnings []model.Warning

	if rec.Has(model.FieldPhone) {
		rec[model.FieldPhone] = normalizePhone(rec[model.FieldPhone], n.callingCode)
	}

	if v, ok := rec[model.FieldCreatedAtSpaced]; ok {
		rec[model.FieldCreatedAt] = v
		delete(rec, model.FieldCreatedAtSpaced)
	}

	if name, ok := rec[model.FieldCountry].(string); ok && utf8.RuneCountInString(name) > 2 {
		if code, found := n.countries.Resolve(name); found {
			rec[model.FieldCountry] = code
		} else {
			warnings = append(warnings, model.Warning{
				Field:   model.FieldCountry,
				Value:   name,
				Message: "unknown country name, value kept as-is",
			})
		}
	}

	if v, ok := rec[model.FieldID]; ok {
		rec[model.FieldPublicID] = v
		delete(rec, model.FieldID)
	}

	if kind == model.KindVehicle {
		rec[model.FieldStatus] = model.VehicleDefaultStatus
		rec[model.FieldOnline] = model.VehicleDefaultOnline
	}

	return rec, warnings, nil
}

// toRecord copies a mapping-shaped row so the caller's value is never mutated.
func toRecord(raw any) (model.Record, error) {
	switch row := raw.(type) {
	case model.RawRow:
		if row == nil {
			return nil, formatError(raw)
		}
		return model.Record(row).Clone(), nil
	case model.Record:
		if row == nil {
			return nil, formatError(raw)
		}
		return row.Clone(), nil
	case map[string]any:
		if row == nil {
			return nil, formatError(raw)
		}
		return model.Record(row).Clone(), nil
	case map[string]string:
		if row == nil {
			return nil, formatError(raw)
		}
		rec := make(model.Record, len(row))
		for k, v := range row {
			rec[k] = v
		}
		return rec, nil
	default:
		return nil, formatError(raw)
	}
}

func formatError(raw any) error {
	return model.NewError(model.ErrFormat, fmt.Sprintf("row is not a mapping (got %T)", raw), nil)
}
