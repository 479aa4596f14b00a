package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError lists every configuration problem found.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate configuration: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if c.UsesGoogle() && c.Google.CredentialsPath == "" {
		problems = append(problems, "google.credentials_path is required for the sheets source and gmail adapters")
	}
	if c.Content.Type == "template" {
		pairs := [][2]string{
			{c.Content.InitialSubject, c.Content.InitialBody},
			{c.Content.FollowupSubject, c.Content.FollowupBody},
		}
		for _, p := range pairs {
			if (p[0] == "") != (p[1] == "") {
				problems = append(problems, "content template overrides must set both subject and body")
				break
			}
		}
	}
	if err := c.Telemetry.Validate(); err != nil {
		problems = append(problems, "telemetry: "+err.Error())
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "email":
		return fmt.Sprintf("%s must be an email address, got %q", field, fe.Value())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s failed %s=%s (value %v)", field, fe.Tag(), fe.Param(), fe.Value())
		}
		return fmt.Sprintf("%s failed %s (value %v)", field, fe.Tag(), fe.Value())
	}
}
