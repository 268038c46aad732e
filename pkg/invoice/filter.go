// Package invoice selects invoice identifiers from spreadsheet rows.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/ArionMiles/invoicedl/pkg/api"
)

// DateLayout is the month/day/year layout of the date column.
// Single-digit months and days are accepted.
const DateLayout = "1/2/2006"

// Column positions within a row.
const (
	ColIdentifier = 0
	ColDate       = 1
)

var (
	ErrInvalidDate   = errors.New("invalid invoice date")
	ErrInvalidPeriod = errors.New("invalid target period")
)

// identifierPattern matches invoice references such as INV001.
var identifierPattern = regexp.MustCompile(`^[A-Z]+[0-9]+$`)

// IsIdentifier reports whether s is a well-formed invoice identifier.
func IsIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// ParseDate parses a date cell strictly.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Filter returns the identifiers of all rows dated in the given year and month,
// in row order. Rows without a well-formed identifier are skipped before their
// date is looked at; a malformed date on any other row fails the whole call.
func Filter(ctx context.Context, src api.Source, year, month int, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month %d", ErrInvalidPeriod, month)
	}
	if year <= 0 {
		return nil, fmt.Errorf("%w: year %d", ErrInvalidPeriod, year)
	}

	rows, err := src.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", src.Name(), err)
	}

	identifiers := make([]string, 0)
	for _, row := range rows {
		id := row.Cell(ColIdentifier)
		if id == "" || !IsIdentifier(id) {
			continue
		}

		date, err := ParseDate(row.Cell(ColDate))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d (%s): %q", ErrInvalidDate, row.Number, id, row.Cell(ColDate))
		}
		if int(date.Month()) != month || date.Year() != year {
			continue
		}

		identifiers = append(identifiers, id)
	}

	logger.Info("filtered invoices",
		"source", src.Name(),
		"year", year,
		"month", month,
		"rows", len(rows),
		"count", len(identifiers),
	)
	return identifiers, nil
}
