package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openfroyo/leadflow/pkg/engine"
)

// CSVSource reads leads from a CSV file with a header row.
type CSVSource struct {
	path   string
	logger zerolog.Logger
}

// NewCSVSource creates a source for the given file.
func NewCSVSource(path string, logger zerolog.Logger) *CSVSource {
	return &CSVSource{
		path:   path,
		logger: logger.With().Str("component", "csv_source").Str("path", path).Logger(),
	}
}

// FetchLeads implements engine.LeadSource. The file is read on every call.
func (s *CSVSource) FetchLeads(ctx context.Context) ([]engine.Lead, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, engine.NewPermanentError("lead file not found", err).
				WithOperation(engine.PortSource).WithCode(engine.ErrCodeNotFound)
		}
		return nil, engine.NewTransientError("failed to open lead file", err).
			WithOperation(engine.PortSource)
	}
	defer f.Close()

	leads, err := s.read(ctx, f)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("leads", len(leads)).Msg("Leads fetched")
	return leads, nil
}

func (s *CSVSource) read(ctx context.Context, r io.Reader) ([]engine.Lead, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, csvError("failed to read header", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[key]; dup {
			return nil, engine.NewValidationError(fmt.Sprintf("duplicate column %q", key), nil).
				WithOperation(engine.PortSource)
		}
		index[key] = i
	}
	if _, ok := index[ColEmail]; !ok {
		return nil, engine.NewValidationError("lead file has no email column", nil).
			WithOperation(engine.PortSource)
	}

	var leads []engine.Lead
	for row := 2; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(fmt.Sprintf("failed to read row %d", row), err)
		}

		values := make(map[string]string, len(Columns))
		for _, col := range Columns {
			if i, ok := index[col]; ok && i < len(record) {
				values[col] = record[i]
			}
		}

		if lead, ok := rowToLead(s.logger, row, values); ok {
			leads = append(leads, lead)
		}
	}

	return leads, nil
}

func csvError(msg string, err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return engine.NewValidationError(msg, err).WithOperation(engine.PortSource)
	}
	return engine.NewTransientError(msg, err).WithOperation(engine.PortSource)
}
