// Package sheets implements a Source that reads rows from a Google Sheets range.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/invoicedl/pkg/api"
)

// DefaultRange covers the identifier, date and the two trailing columns.
const DefaultRange = "A:D"

// Source reads invoice rows from a spreadsheet range.
type Source struct {
	client        *sheets.Service
	spreadsheetID string
	readRange     string
	retryDelay    time.Duration
	logger        *slog.Logger
}

// Config holds configuration for the Sheets source.
type Config struct {
	// SpreadsheetID is the ID of the spreadsheet to read.
	SpreadsheetID string
	// Range is an A1 range, optionally prefixed with a sheet name.
	// Defaults to DefaultRange.
	Range string
	// RetryDelay is the wait before retrying a rate-limited read.
	// Defaults to 30 seconds.
	RetryDelay time.Duration
}

// New creates a new Sheets source.
func New(ctx context.Context, httpClient *http.Client, cfg Config, logger *slog.Logger, opts ...option.ClientOption) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	client, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	readRange := cfg.Range
	if readRange == "" {
		readRange = DefaultRange
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 30 * time.Second
	}

	return &Source{
		client:        client,
		spreadsheetID: cfg.SpreadsheetID,
		readRange:     readRange,
		retryDelay:    retryDelay,
		logger:        logger,
	}, nil
}

// Name returns a sheets:// reference to the range being read.
func (s *Source) Name() string {
	return fmt.Sprintf("sheets://%s/%s", s.spreadsheetID, s.readRange)
}

// Rows reads the configured range using the sheet's displayed values.
func (s *Source) Rows(ctx context.Context) ([]api.Row, error) {
	var resp *sheets.ValueRange
	err := retry.Do(
		func() error {
			var err error
			resp, err = s.client.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).
				ValueRenderOption("FORMATTED_VALUE").
				MajorDimension("ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				s.logger.Warn("rate limited, will retry", "error", err)
				return true
			}
			return false
		}),
		retry.Attempts(3),
		retry.Delay(s.retryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("reading range %s: %w", s.readRange, err)
	}

	rows := make([]api.Row, 0, len(resp.Values))
	for i, values := range resp.Values {
		cells := make([]string, len(values))
		for j, v := range values {
			cells[j] = fmt.Sprint(v)
		}
		rows = append(rows, api.Row{Number: i + 1, Cells: cells})
	}

	s.logger.Debug("read sheet range", "spreadsheet_id", s.spreadsheetID, "range", s.readRange, "rows", len(rows))
	return rows, nil
}
