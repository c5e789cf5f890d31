package model

import "github.com/rotisserie/eris"

// Scope identifies the organization every store call is restricted to.
type Scope struct {
	CompanyUUID string `json:"company_uuid"`
}

// NewScope returns a Scope for the given company, rejecting blank identifiers.
func NewScope(companyUUID string) (Scope, error) {
	if companyUUID == "" {
		return Scope{}, eris.New("model: company uuid is required")
	}
	return Scope{CompanyUUID: companyUUID}, nil
}

// Valid reports whether the scope names a company.
func (s Scope) Valid() bool {
	return s.CompanyUUID != ""
}
