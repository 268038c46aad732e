package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Default()
	cfg.Year = 2024
	cfg.Month = 3
	cfg.PortalURL = "https://1234.app.netsuite.com/app/center/card.nl"
	cfg.Email = "me@example.com"
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "missing.json")})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Input != "input.xlsx" || cfg.OutputDir != "output" {
		t.Errorf("unexpected paths: %q %q", cfg.Input, cfg.OutputDir)
	}
	if cfg.Timeouts.Element != 5*time.Second {
		t.Errorf("element timeout: %v", cfg.Timeouts.Element)
	}
	if cfg.Timeouts.Download != 2*time.Minute {
		t.Errorf("download timeout: %v", cfg.Timeouts.Download)
	}
	if cfg.GSheets.Range != "A:D" {
		t.Errorf("range: %q", cfg.GSheets.Range)
	}
	if cfg.Manifest.BatchSize != 10 {
		t.Errorf("batch size: %d", cfg.Manifest.BatchSize)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invoicedl.json")
	content := `{
		"input": "march.xlsx",
		"year": 2023,
		"month": 12,
		"portal_url": "https://portal.example.com",
		"timeouts": {"element": "10s"},
		"manifest": {"writer": "json"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("INVOICEDL_YEAR", "2024")
	t.Setenv("INVOICEDL_OUTPUT_DIR", "/tmp/invoices")
	t.Setenv("INVOICEDL_CLEAN_OUTPUT", "true")
	t.Setenv("INVOICEDL_BROWSER__HEADLESS", "true")
	t.Setenv("INVOICEDL_TIMEOUTS__DOWNLOAD", "30s")

	cfg, err := Load(LoadOptions{File: path, FileRequired: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Input != "march.xlsx" {
		t.Errorf("input: %q", cfg.Input)
	}
	if cfg.Year != 2024 {
		t.Errorf("env should override file: year %d", cfg.Year)
	}
	if cfg.Month != 12 {
		t.Errorf("month: %d", cfg.Month)
	}
	if cfg.OutputDir != "/tmp/invoices" || !cfg.CleanOutput {
		t.Errorf("output: %q clean=%v", cfg.OutputDir, cfg.CleanOutput)
	}
	if !cfg.Browser.Headless {
		t.Error("headless not applied")
	}
	if cfg.Timeouts.Element != 10*time.Second {
		t.Errorf("element timeout: %v", cfg.Timeouts.Element)
	}
	if cfg.Timeouts.Download != 30*time.Second {
		t.Errorf("download timeout: %v", cfg.Timeouts.Download)
	}
	if cfg.Timeouts.PollInterval != time.Second {
		t.Errorf("unset keys should keep defaults: poll %v", cfg.Timeouts.PollInterval)
	}
	if cfg.Manifest.Writer != WriterJSON {
		t.Errorf("writer: %q", cfg.Manifest.Writer)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("INVOICEDL_EMAIL=dotenv@example.com\nINVOICEDL_MONTH=7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Registered so the variables loaded from the file are cleared afterwards.
	t.Setenv("INVOICEDL_EMAIL", "")
	os.Unsetenv("INVOICEDL_EMAIL")
	t.Setenv("INVOICEDL_MONTH", "3")

	cfg, err := Load(LoadOptions{EnvFile: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Email != "dotenv@example.com" {
		t.Errorf("email: %q", cfg.Email)
	}
	if cfg.Month != 3 {
		t.Errorf("process environment should win over .env: month %d", cfg.Month)
	}
}

func TestLoad_RequiredFileMissing(t *testing.T) {
	_, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "nope.json"), FileRequired: true})
	if err == nil {
		t.Fatal("expected error for missing required config file")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoicedl.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(LoadOptions{File: path}); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "month zero", mutate: func(c *Config) { c.Month = 0 }, wantErr: "month"},
		{name: "month thirteen", mutate: func(c *Config) { c.Month = 13 }, wantErr: "month"},
		{name: "missing year", mutate: func(c *Config) { c.Year = 0 }, wantErr: "year"},
		{name: "missing email", mutate: func(c *Config) { c.Email = "" }, wantErr: "email"},
		{name: "relative portal url", mutate: func(c *Config) { c.PortalURL = "portal.example.com" }, wantErr: "portal_url"},
		{name: "unsupported input", mutate: func(c *Config) { c.Input = "invoices.ods" }, wantErr: "unsupported input"},
		{name: "sheets input", mutate: func(c *Config) { c.Input = ""; c.GSheets.ID = "abc" }},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeouts.Element = 0 }, wantErr: "timeouts"},
		{name: "unknown writer", mutate: func(c *Config) { c.Manifest.Writer = "xml" }, wantErr: "manifest.writer"},
		{name: "sheets writer needs target", mutate: func(c *Config) { c.Manifest.Writer = WriterSheets }, wantErr: "sheet_id"},
		{name: "postgres writer needs host", mutate: func(c *Config) { c.Manifest.Writer = WriterPostgres }, wantErr: "postgres.host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSourceKind(t *testing.T) {
	tests := []struct {
		input   string
		sheetID string
		want    string
	}{
		{input: "invoices.xlsx", want: SourceXLSX},
		{input: "Invoices.XLSM", want: SourceXLSX},
		{input: "invoices.csv", want: SourceCSV},
		{input: "invoices.xlsx", sheetID: "abc", want: SourceSheets},
	}

	for _, tt := range tests {
		cfg := validConfig()
		cfg.Input = tt.input
		cfg.GSheets.ID = tt.sheetID

		got, err := cfg.SourceKind()
		if err != nil {
			t.Fatalf("%s: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestManifestFile(t *testing.T) {
	cfg := validConfig()
	cfg.OutputDir = "/data/invoices/"
	cfg.Manifest.Writer = WriterCSV

	if got := cfg.ManifestFile(); got != "/data/manifest.csv" {
		t.Errorf("got %q", got)
	}

	cfg.Manifest.File = "/elsewhere/runs.csv"
	if got := cfg.ManifestFile(); got != "/elsewhere/runs.csv" {
		t.Errorf("explicit file ignored: %q", got)
	}
}
