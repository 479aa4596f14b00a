package policy

import (
	"strings"

	"github.com/openfroyo/leadflow/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is logged but never blocks contact.
	SeverityWarning Severity = "warning"

	// SeverityError blocks contact with the lead.
	SeverityError Severity = "error"

	// SeverityCritical blocks contact with the lead.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether a violation of this severity denies the lead.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is a named Rego module defining deny rules.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Source is the file the policy was loaded from, empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation is a single matching deny rule.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Message describes the violation.
	Message string `json:"message"`

	// Severity is the severity of this violation.
	Severity Severity `json:"severity"`
}

// Input is the document policies are evaluated against.
type Input struct {
	Lead LeadInput `json:"lead"`
}

// LeadInput is the lead as seen by policies.
type LeadInput struct {
	Email     string `json:"email"`
	Domain    string `json:"domain"`
	LocalPart string `json:"local_part"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Title     string `json:"title"`
	Industry  string `json:"industry"`
}

// NewInput builds the policy input for a lead.
func NewInput(lead engine.Lead) Input {
	email := lead.Identity()
	local, domain := email, ""
	if i := strings.LastIndex(email, "@"); i >= 0 {
		local, domain = email[:i], email[i+1:]
	}
	a := lead.Attributes
	return Input{Lead: LeadInput{
		Email:     email,
		Domain:    domain,
		LocalPart: local,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Company:   a.Company,
		Title:     a.Title,
		Industry:  a.Industry,
	}}
}
