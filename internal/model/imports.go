package model

import (
	"path"
	"strings"
)

// Import summary values.
const (
	ImportStatusOK    = "ok"
	ImportStatusError = "error"
	ImportCompleted   = "Import completed"
)

// AllowedImportExtensions lists the accepted import file types in message order.
var AllowedImportExtensions = []string{"csv", "tsv", "xls", "xlsx"}

// ImportSummary is returned by an import call.
type ImportSummary struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// FileMeta is the registry entry of an uploaded file.
type FileMeta struct {
	UUID             string `json:"uuid"`
	PublicID         string `json:"public_id,omitempty"`
	CompanyUUID      string `json:"company_uuid,omitempty"`
	Path             string `json:"path"`
	Disk             string `json:"disk,omitempty"`
	OriginalFilename string `json:"original_filename,omitempty"`
	ContentType      string `json:"content_type,omitempty"`
}

// Extension returns the lowercased import extension of the file, or "" when
// the path does not end in an allowed one.
func (f FileMeta) Extension() string {
	lower := strings.ToLower(f.Path)
	for _, ext := range AllowedImportExtensions {
		if strings.HasSuffix(lower, "."+ext) {
			return ext
		}
	}
	return strings.TrimPrefix(path.Ext(lower), ".")
}

// Allowed reports whether the file has an accepted import extension.
func (f FileMeta) Allowed() bool {
	lower := strings.ToLower(f.Path)
	for _, ext := range AllowedImportExtensions {
		if strings.HasSuffix(lower, "."+ext) {
			return true
		}
	}
	return false
}
