package engine

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var leadValidator = validator.New()

type leadIdentity struct {
	Email string `validate:"required,email"`
}

// ValidateLead checks that a lead has a usable identity. Failures are
// validation errors, which skip the lead permanently.
func ValidateLead(lead Lead) error {
	email := NormalizeEmail(lead.Email)
	if email == "" {
		return NewValidationError("lead has no email", nil).WithOperation("validate")
	}
	if strings.ContainsAny(email, " \t\r\n,;") {
		return NewValidationError("email contains separators", nil).WithLead(email).WithOperation("validate")
	}
	if err := leadValidator.Struct(leadIdentity{Email: email}); err != nil {
		return NewValidationError("invalid email address", err).WithLead(email).WithOperation("validate")
	}
	return nil
}
