// Package config loads invoicedl configuration from an optional .env file,
// an optional JSON file and INVOICEDL_* environment variables, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	kJson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read into the config.
// A double underscore separates nested keys: INVOICEDL_TIMEOUTS__ELEMENT.
const EnvPrefix = "INVOICEDL_"

// Default file locations.
const (
	DefaultConfigFile = "invoicedl.json"
	DefaultEnvFile    = ".env"
	ClientSecretFile  = "data/client_secret.json"
	TokenFile         = "data/token.json"
)

// Input source kinds.
const (
	SourceXLSX   = "xlsx"
	SourceCSV    = "csv"
	SourceSheets = "sheets"
)

// Manifest writer kinds.
const (
	WriterNone     = ""
	WriterCSV      = "csv"
	WriterJSON     = "json"
	WriterPostgres = "postgres"
	WriterSheets   = "sheets"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application configuration.
type Config struct {
	// Input is the path of the xlsx/xlsm or csv file listing invoices.
	Input string `koanf:"input"`
	// Sheet selects a worksheet of an xlsx input. Defaults to the active sheet.
	Sheet string `koanf:"sheet"`

	OutputDir   string `koanf:"output_dir"`
	CleanOutput bool   `koanf:"clean_output"`

	Year  int `koanf:"year"`
	Month int `koanf:"month"`

	PortalURL string `koanf:"portal_url"`
	Email     string `koanf:"email"`

	Browser  BrowserConfig  `koanf:"browser"`
	Timeouts TimeoutsConfig `koanf:"timeouts"`
	GSheets  GSheetsConfig  `koanf:"gsheets"`
	Manifest ManifestConfig `koanf:"manifest"`
	Postgres PostgresConfig `koanf:"postgres"`
}

// BrowserConfig controls the Chrome session.
type BrowserConfig struct {
	Headless bool   `koanf:"headless"`
	ExecPath string `koanf:"exec_path"`
}

// TimeoutsConfig bounds portal interactions.
type TimeoutsConfig struct {
	Element      time.Duration `koanf:"element"`
	Navigation   time.Duration `koanf:"navigation"`
	Download     time.Duration `koanf:"download"`
	PollInterval time.Duration `koanf:"poll_interval"`
}

// GSheetsConfig selects a Google Sheets range as input and holds the OAuth
// file locations shared with the Sheets manifest writer.
type GSheetsConfig struct {
	ID          string `koanf:"id"`
	Range       string `koanf:"range"`
	SecretsFile string `koanf:"secrets_file"`
	TokenFile   string `koanf:"token_file"`
}

// ManifestConfig selects where fetched artifacts are recorded.
type ManifestConfig struct {
	Writer        string        `koanf:"writer"`
	File          string        `koanf:"file"`
	BatchSize     int           `koanf:"batch_size"`
	FlushInterval time.Duration `koanf:"flush_interval"`
	SheetID       string        `koanf:"sheet_id"`
	SheetTitle    string        `koanf:"sheet_title"`
	SheetName     string        `koanf:"sheet_name"`
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	SSLMode  string `koanf:"sslmode"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Input:     "input.xlsx",
		OutputDir: "output",
		Timeouts: TimeoutsConfig{
			Element:      5 * time.Second,
			Navigation:   60 * time.Second,
			Download:     2 * time.Minute,
			PollInterval: time.Second,
		},
		GSheets: GSheetsConfig{
			Range:       "A:D",
			SecretsFile: ClientSecretFile,
			TokenFile:   TokenFile,
		},
		Manifest: ManifestConfig{
			BatchSize:     10,
			FlushInterval: 30 * time.Second,
			SheetName:     "Sheet1",
		},
		Postgres: PostgresConfig{
			Port:    5432,
			SSLMode: "disable",
		},
	}
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// File is a JSON config file. A missing file is ignored unless FileRequired is set.
	File         string
	FileRequired bool
	// EnvFile is a dotenv file loaded into the process environment. Variables
	// already set take precedence. A missing file is ignored.
	EnvFile string
}

// Load reads the configuration. It does not validate it.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", opts.EnvFile, err)
		}
	}

	k := koanf.New(".")

	if opts.File != "" {
		_, err := os.Stat(opts.File)
		switch {
		case err == nil:
			if err := k.Load(file.Provider(opts.File), kJson.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist) && !opts.FileRequired:
		default:
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// envKey maps INVOICEDL_TIMEOUTS__ELEMENT to timeouts.element.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// SourceKind reports which input source the configuration selects.
// A Google Sheets ID takes precedence over the input file.
func (c *Config) SourceKind() (string, error) {
	if c.GSheets.ID != "" {
		return SourceSheets, nil
	}
	switch strings.ToLower(filepath.Ext(c.Input)) {
	case ".xlsx", ".xlsm":
		return SourceXLSX, nil
	case ".csv":
		return SourceCSV, nil
	default:
		return "", fmt.Errorf("%w: unsupported input file %q", ErrInvalidConfig, c.Input)
	}
}

// ManifestFile returns the manifest path for file-based writers. Unless set
// explicitly it sits next to the output directory, which must stay empty.
func (c *Config) ManifestFile() string {
	if c.Manifest.File != "" {
		return c.Manifest.File
	}
	parent := filepath.Dir(filepath.Clean(c.OutputDir))
	return filepath.Join(parent, "manifest."+c.Manifest.Writer)
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Month < 1 || c.Month > 12 {
		add("month must be between 1 and 12, got %d", c.Month)
	}
	if c.Year <= 0 {
		add("year is required")
	}
	if c.Email == "" {
		add("email is required")
	}
	if u, err := url.Parse(c.PortalURL); c.PortalURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("portal_url must be an absolute http(s) URL, got %q", c.PortalURL)
	}
	if c.OutputDir == "" {
		add("output_dir is required")
	}
	if c.GSheets.ID == "" && c.Input == "" {
		add("input or gsheets.id is required")
	} else if _, err := c.SourceKind(); err != nil {
		add("unsupported input file %q", c.Input)
	}

	t := c.Timeouts
	if t.Element <= 0 || t.Navigation <= 0 || t.Download <= 0 || t.PollInterval <= 0 {
		add("timeouts must be positive")
	}

	switch c.Manifest.Writer {
	case WriterNone, WriterCSV, WriterJSON:
	case WriterSheets:
		if c.Manifest.SheetID == "" && c.Manifest.SheetTitle == "" {
			add("manifest.sheet_id or manifest.sheet_title is required for the sheets writer")
		}
		if c.Manifest.SheetName == "" {
			add("manifest.sheet_name is required for the sheets writer")
		}
	case WriterPostgres:
		if c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "" {
			add("postgres.host, postgres.database and postgres.user are required for the postgres writer")
		}
	default:
		add("unknown manifest.writer %q", c.Manifest.Writer)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
