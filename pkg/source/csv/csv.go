// Package csv implements a Source that reads rows from a CSV file.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ArionMiles/invoicedl/pkg/api"
)

// Source reads rows from a CSV export of the invoice spreadsheet.
type Source struct {
	path   string
	comma  rune
	logger *slog.Logger
}

// Config holds configuration for the CSV source.
type Config struct {
	// Path is the CSV file.
	Path string
	// Comma is the field delimiter. Defaults to ','.
	Comma rune
}

// New creates a new CSV source.
func New(cfg Config, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	comma := cfg.Comma
	if comma == 0 {
		comma = ','
	}
	return &Source{path: cfg.Path, comma: comma, logger: logger}
}

// Name returns the file path.
func (s *Source) Name() string {
	return s.path
}

// Rows reads every record in the file. Records may have differing field counts.
func (s *Source) Rows(ctx context.Context) ([]api.Row, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening csv file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = s.comma
	r.FieldsPerRecord = -1

	var rows []api.Row
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv record %d: %w", n, err)
		}
		rows = append(rows, api.Row{Number: n, Cells: record})
	}

	s.logger.Debug("read csv", "path", s.path, "rows", len(rows))
	return rows, nil
}
