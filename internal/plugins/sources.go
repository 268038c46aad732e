package plugins

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/invoicedl/pkg/api"
	"github.com/ArionMiles/invoicedl/pkg/config"
	csvsource "github.com/ArionMiles/invoicedl/pkg/source/csv"
	sheetssource "github.com/ArionMiles/invoicedl/pkg/source/sheets"
	xlsxsource "github.com/ArionMiles/invoicedl/pkg/source/xlsx"
)

// XLSXSource reads an Excel workbook.
type XLSXSource struct{}

func (p *XLSXSource) Name() string { return config.SourceXLSX }
func (p *XLSXSource) Description() string { return "Read invoices from an xlsx/xlsm workbook" }
func (p *XLSXSource) RequiredScopes() []string { return nil }

func (p *XLSXSource) NewSource(_ context.Context, _ *http.Client, cfg *config.Config, logger *slog.Logger) (api.Source, error) {
	return xlsxsource.New(xlsxsource.Config{Path: cfg.Input, Sheet: cfg.Sheet}, logger), nil
}

// CSVSource reads a CSV export of the invoice sheet.
type CSVSource struct{}

func (p *CSVSource) Name() string { return config.SourceCSV }
func (p *CSVSource) Description() string { return "Read invoices from a CSV file" }
func (p *CSVSource) RequiredScopes() []string { return nil }

func (p *CSVSource) NewSource(_ context.Context, _ *http.Client, cfg *config.Config, logger *slog.Logger) (api.Source, error) {
	return csvsource.New(csvsource.Config{Path: cfg.Input}, logger), nil
}

// SheetsSource reads a Google Sheets range.
type SheetsSource struct{}

func (p *SheetsSource) Name() string { return config.SourceSheets }
func (p *SheetsSource) Description() string { return "Read invoices from a Google Sheets range" }

func (p *SheetsSource) RequiredScopes() []string {
	return []string{sheets.SpreadsheetsReadonlyScope}
}

func (p *SheetsSource) NewSource(ctx context.Context, httpClient *http.Client, cfg *config.Config, logger *slog.Logger) (api.Source, error) {
	if httpClient == nil {
		return nil, errors.New("sheets source requires an authorized http client")
	}
	return sheetssource.New(ctx, httpClient, sheetssource.Config{
		SpreadsheetID: cfg.GSheets.ID,
		Range:         cfg.GSheets.Range,
	}, logger)
}
