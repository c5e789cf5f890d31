package model

// Canonical field names shared by the normalizer, the stores and the exporter.
const (
	FieldPhone           = "phone"
	FieldCreatedAt       = "created_at"
	FieldCreatedAtSpaced = "created at"
	FieldCountry         = "country"
	FieldID              = "id"
	FieldPublicID        = "public_id"
	FieldStatus          = "status"
	FieldOnline          = "online"
	FieldName            = "name"
	FieldLatitude        = "latitude"
	FieldLongitude       = "longitude"
)

// Vehicle import defaults.
const (
	VehicleDefaultStatus = "active"
	VehicleDefaultOnline = false
)

// RawRow is one decoded import line keyed by its column heading.
type RawRow map[string]any

// Record is a normalized row keyed by canonical snake_case field names.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the value of key as a string, or "" when absent or not textual.
func (r Record) String(key string) string {
	if s, ok := r[key].(string); ok {
		return s
	}
	return ""
}

// Has reports whether key is present with a non-nil value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// Warning describes a recoverable per-row normalization issue.
type Warning struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}
