package sources

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/openfroyo/leadflow/pkg/engine"
	"github.com/openfroyo/leadflow/pkg/gapi"
)

// DefaultSheetRange is the range read when none is configured. Row 1 holds
// the header.
const DefaultSheetRange = "Lead Sheet!A2:F"

// SheetsSource reads leads from a Google Sheets range with the fixed column
// order first name, last name, email, company, title, industry.
type SheetsSource struct {
	service       *sheets.Service
	spreadsheetID string
	readRange     string
	firstRow      int
	logger        zerolog.Logger
}

// NewSheetsSource creates a Sheets client for the spreadsheet.
func NewSheetsSource(ctx context.Context, spreadsheetID, readRange string, logger zerolog.Logger, opts ...option.ClientOption) (*SheetsSource, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	if readRange == "" {
		readRange = DefaultSheetRange
	}

	return &SheetsSource{
		service:       service,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
		firstRow:      firstRowOf(readRange),
		logger: logger.With().
			Str("component", "sheets_source").
			Str("sheet_id", spreadsheetID).
			Logger(),
	}, nil
}

// FetchLeads implements engine.LeadSource.
func (s *SheetsSource) FetchLeads(ctx context.Context) ([]engine.Lead, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, gapi.Classify(err, engine.PortSource, "failed to read lead sheet")
	}

	if len(resp.Values) == 0 {
		s.logger.Warn().Str("range", s.readRange).Msg("No data found in the sheet")
		return nil, nil
	}

	var leads []engine.Lead
	for i, cells := range resp.Values {
		values := make(map[string]string, len(Columns))
		for j, col := range Columns {
			if j < len(cells) {
				values[col] = fmt.Sprint(cells[j])
			}
		}
		if lead, ok := rowToLead(s.logger, s.firstRow+i, values); ok {
			leads = append(leads, lead)
		}
	}

	s.logger.Info().
		Int("rows", len(resp.Values)).
		Int("leads", len(leads)).
		Msg("Leads fetched")
	return leads, nil
}

// firstRowOf returns the sheet row number of the first cell in an A1 range
// such as "Sheet!A2:F". Ranges without a row number start at 1.
func firstRowOf(a1 string) int {
	for i := len(a1) - 1; i >= 0; i-- {
		if a1[i] == '!' {
			a1 = a1[i+1:]
			break
		}
	}

	row := 0
	started := false
	for _, r := range a1 {
		switch {
		case r >= '0' && r <= '9':
			row = row*10 + int(r-'0')
			started = true
		case started:
			return row
		case r == ':':
			return 1
		}
	}
	if row == 0 {
		return 1
	}
	return row
}
