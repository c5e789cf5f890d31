// Package model defines the shared record, query and error types for place and vehicle handling.
package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// EntityKind selects which record family an operation works on.
type EntityKind string

const (
	KindPlace   EntityKind = "place"
	KindVehicle EntityKind = "vehicle"
)

// ParseEntityKind parses a kind selector. Plural forms are accepted.
func ParseEntityKind(s string) (EntityKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "place", "places":
		return KindPlace, nil
	case "vehicle", "vehicles":
		return KindVehicle, nil
	default:
		return "", eris.Errorf("model: unknown entity kind %q", s)
	}
}

// Plural returns the plural resource name used in messages and file names.
func (k EntityKind) Plural() string {
	return string(k) + "s"
}

// Table returns the storage table for the kind.
func (k EntityKind) Table() string {
	return k.Plural()
}

// Valid reports whether k is a known kind.
func (k EntityKind) Valid() bool {
	return k == KindPlace || k == KindVehicle
}
