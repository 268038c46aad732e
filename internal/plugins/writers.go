package plugins

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/invoicedl/pkg/api"
	"github.com/ArionMiles/invoicedl/pkg/config"
	csvwriter "github.com/ArionMiles/invoicedl/pkg/writer/csv"
	jsonwriter "github.com/ArionMiles/invoicedl/pkg/writer/json"
	postgreswriter "github.com/ArionMiles/invoicedl/pkg/writer/postgres"
	sheetswriter "github.com/ArionMiles/invoicedl/pkg/writer/sheets"
)

// CSVWriter appends the manifest to a CSV file.
type CSVWriter struct{}

func (p *CSVWriter) Name() string { return config.WriterCSV }
func (p *CSVWriter) Description() string { return "Append downloaded invoices to a CSV manifest" }
func (p *CSVWriter) RequiredScopes() []string { return nil }

func (p *CSVWriter) NewWriter(_ context.Context, _ *http.Client, cfg *config.Config, logger *slog.Logger) (api.Writer, error) {
	return csvwriter.New(csvwriter.Config{
		FilePath:      cfg.ManifestFile(),
		BatchSize:     cfg.Manifest.BatchSize,
		FlushInterval: cfg.Manifest.FlushInterval,
	}, logger)
}

// JSONWriter keeps the manifest as a JSON array.
type JSONWriter struct{}

func (p *JSONWriter) Name() string { return config.WriterJSON }
func (p *JSONWriter) Description() string { return "Record downloaded invoices in a JSON manifest" }
func (p *JSONWriter) RequiredScopes() []string { return nil }

func (p *JSONWriter) NewWriter(_ context.Context, _ *http.Client, cfg *config.Config, logger *slog.Logger) (api.Writer, error) {
	return jsonwriter.New(jsonwriter.Config{
		FilePath:      cfg.ManifestFile(),
		BatchSize:     cfg.Manifest.BatchSize,
		FlushInterval: cfg.Manifest.FlushInterval,
	}, logger)
}

// PostgresWriter records the manifest in PostgreSQL.
type PostgresWriter struct{}

func (p *PostgresWriter) Name() string { return config.WriterPostgres }
func (p *PostgresWriter) Description() string { return "Record downloaded invoices in PostgreSQL" }
func (p *PostgresWriter) RequiredScopes() []string { return nil }

func (p *PostgresWriter) NewWriter(ctx context.Context, _ *http.Client, cfg *config.Config, logger *slog.Logger) (api.Writer, error) {
	pg := cfg.Postgres
	return postgreswriter.New(ctx, postgreswriter.Config{
		Host:          pg.Host,
		Port:          pg.Port,
		Database:      pg.Database,
		User:          pg.User,
		Password:      pg.Password,
		SSLMode:       pg.SSLMode,
		BatchSize:     cfg.Manifest.BatchSize,
		FlushInterval: cfg.Manifest.FlushInterval,
	}, logger)
}

// SheetsWriter appends the manifest to a Google Sheet.
type SheetsWriter struct{}

func (p *SheetsWriter) Name() string { return config.WriterSheets }
func (p *SheetsWriter) Description() string { return "Append downloaded invoices to a Google Sheet" }

func (p *SheetsWriter) RequiredScopes() []string {
	return []string{sheets.SpreadsheetsScope}
}

func (p *SheetsWriter) NewWriter(ctx context.Context, httpClient *http.Client, cfg *config.Config, logger *slog.Logger) (api.Writer, error) {
	if httpClient == nil {
		return nil, errors.New("sheets writer requires an authorized http client")
	}
	return sheetswriter.New(ctx, httpClient, sheetswriter.Config{
		SheetTitle:    cfg.Manifest.SheetTitle,
		SheetID:       cfg.Manifest.SheetID,
		SheetName:     cfg.Manifest.SheetName,
		BatchSize:     cfg.Manifest.BatchSize,
		FlushInterval: cfg.Manifest.FlushInterval,
	}, logger)
}

// Default returns a registry holding every built-in plugin.
func Default() *Registry {
	r := NewRegistry()
	for _, p := range []SourcePlugin{&XLSXSource{}, &CSVSource{}, &SheetsSource{}} {
		if err := r.RegisterSource(p); err != nil {
			panic(err)
		}
	}
	for _, p := range []WriterPlugin{&CSVWriter{}, &JSONWriter{}, &PostgresWriter{}, &SheetsWriter{}} {
		if err := r.RegisterWriter(p); err != nil {
			panic(err)
		}
	}
	return r
}
