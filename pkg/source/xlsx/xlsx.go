// Package xlsx implements a Source that reads rows from an Excel workbook.
package xlsx

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/ArionMiles/invoicedl/pkg/api"
)

// Source reads rows from a single worksheet of an xlsx file.
type Source struct {
	path   string
	sheet  string
	logger *slog.Logger
}

// Config holds configuration for the xlsx source.
type Config struct {
	// Path is the workbook file.
	Path string
	// Sheet is the worksheet name. Defaults to the active sheet.
	Sheet string
}

// New creates a new xlsx source.
func New(cfg Config, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{path: cfg.Path, sheet: cfg.Sheet, logger: logger}
}

// Name returns the workbook file name.
func (s *Source) Name() string {
	return s.path
}

// Rows returns the formatted cell values of every row up to the last populated one.
// Date cells come back in their display format. Only a column formatted as
// mm/dd/yyyy (or m/d/yyyy) reads like a text date; the built-in short date
// format yields mm-dd-yy and a date-time yields m/d/yy hh:mm, both of which
// the filter rejects as invalid dates.
func (s *Source) Rows(ctx context.Context) ([]api.Row, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", filepath.Base(s.path), err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("failed to close workbook", "path", s.path, "error", err)
		}
	}()

	sheet := s.sheet
	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}

	it, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	defer it.Close()

	var rows []api.Row
	for n := 1; it.Next(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cells, err := it.Columns()
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", n, err)
		}
		rows = append(rows, api.Row{Number: n, Cells: cells})
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("iterating sheet %q: %w", sheet, err)
	}

	s.logger.Debug("read workbook", "path", s.path, "sheet", sheet, "rows", len(rows))
	return rows, nil
}
