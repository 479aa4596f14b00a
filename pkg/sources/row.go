package sources

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/openfroyo/leadflow/pkg/engine"
)

// Column names, in the fixed order used by sheet ranges.
const (
	ColFirstName = "first_name"
	ColLastName  = "last_name"
	ColEmail     = "email"
	ColCompany   = "company"
	ColTitle     = "title"
	ColIndustry  = "industry"
)

// Columns is the fixed column order of a lead sheet.
var Columns = []string{ColFirstName, ColLastName, ColEmail, ColCompany, ColTitle, ColIndustry}

// rowToLead builds a lead from column values. ok is false when the row has no email.
func rowToLead(logger zerolog.Logger, row int, values map[string]string) (engine.Lead, bool) {
	get := func(col string) string {
		return strings.TrimSpace(values[col])
	}

	email := get(ColEmail)
	if email == "" {
		logger.Warn().Int("row", row).Msg("Skipping row without email")
		return engine.Lead{}, false
	}

	return engine.Lead{
		Email: email,
		Row:   row,
		Attributes: engine.Attributes{
			FirstName: get(ColFirstName),
			LastName:  get(ColLastName),
			Company:   get(ColCompany),
			Title:     get(ColTitle),
			Industry:  get(ColIndustry),
		},
	}, true
}
