package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/invoicedl/internal/plugins"
	"github.com/ArionMiles/invoicedl/pkg/client"
	"github.com/ArionMiles/invoicedl/pkg/config"
	"github.com/ArionMiles/invoicedl/pkg/staging"
)

// chromeNames are the binaries looked up on PATH when browser.exec_path is unset.
var chromeNames = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"}

// runStatus checks the configuration and readiness of a run.
func runStatus(configPath string) error {
	fmt.Println("=== invoicedl Status ===")
	fmt.Println()

	allGood := true

	cfg := checkConfig(configPath, &allGood)
	if cfg != nil {
		checkInput(cfg, &allGood)
		checkOutput(cfg, &allGood)
		checkGoogle(cfg, &allGood)
	}
	checkChrome(cfg, &allGood)

	printFinalStatus(allGood)

	return nil
}

func checkConfig(configPath string, allGood *bool) *config.Config {
	fmt.Printf("Config file (%s): ", configPath)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Println("- Not found (using environment only)")
	} else {
		fmt.Println("✓ Found")
	}

	cfg, err := config.Load(config.LoadOptions{File: configPath, EnvFile: config.DefaultEnvFile})
	if err != nil {
		fmt.Printf("Configuration: ✗ %v\n", err)
		*allGood = false
		return nil
	}

	fmt.Print("Configuration: ")
	if err := cfg.Validate(); err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
	} else {
		fmt.Printf("✓ Valid (%d-%02d, %s)\n", cfg.Year, cfg.Month, cfg.PortalURL)
	}
	return cfg
}

func checkInput(cfg *config.Config, allGood *bool) {
	kind, err := cfg.SourceKind()
	if err != nil {
		return
	}
	if kind == config.SourceSheets {
		fmt.Printf("Input: Google Sheet %s (range %s)\n", cfg.GSheets.ID, cfg.GSheets.Range)
		return
	}

	fmt.Printf("Input file (%s): ", cfg.Input)
	if _, err := os.Stat(cfg.Input); err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return
	}
	fmt.Println("✓ Found")
}

func checkOutput(cfg *config.Config, allGood *bool) {
	fmt.Printf("Output directory (%s): ", cfg.OutputDir)
	entries, err := os.ReadDir(cfg.OutputDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Println("✓ Will be created")
	case err != nil:
		fmt.Printf("✗ %v\n", err)
		*allGood = false
	case len(entries) == 0:
		fmt.Println("✓ Empty")
	case cfg.CleanOutput:
		fmt.Printf("⚠ %d entries (will be removed, clean_output is set)\n", len(entries))
	default:
		fmt.Printf("✗ Not empty (%d entries); empty it or set clean_output\n", len(entries))
		*allGood = false
	}
	fmt.Printf("Staging directory: %s\n", staging.Dir(cfg.OutputDir))
}

func checkGoogle(cfg *config.Config, allGood *bool) {
	kind, err := cfg.SourceKind()
	if err != nil {
		return
	}
	scopes, err := plugins.Default().Scopes(kind, cfg.Manifest.Writer)
	if err != nil || len(scopes) == 0 {
		return
	}

	fmt.Printf("Credentials file (%s): ", cfg.GSheets.SecretsFile)
	if _, err := os.Stat(cfg.GSheets.SecretsFile); os.IsNotExist(err) {
		fmt.Println("✗ Not found")
		*allGood = false
	} else {
		fmt.Println("✓ Found")
	}

	fmt.Printf("OAuth token (%s): ", cfg.GSheets.TokenFile)
	token, err := client.TokenFromFile(cfg.GSheets.TokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("✗ Not found (run 'invoicedl setup')")
		} else {
			fmt.Printf("✗ %v\n", err)
		}
		*allGood = false
		return
	}
	if token.Expiry.Before(time.Now()) {
		fmt.Println("⚠ Expired (will refresh on next run)")
	} else {
		fmt.Printf("✓ Valid (expires: %s)\n", token.Expiry.Format(time.RFC3339))
	}

	if kind != config.SourceSheets {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Print("Sheets API: ")
	httpClient, err := client.New(ctx, client.Config{
		SecretsFile: cfg.GSheets.SecretsFile,
		TokenFile:   cfg.GSheets.TokenFile,
	}, scopes...)
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return
	}
	if err := testSheetsAPI(ctx, httpClient, cfg.GSheets.ID); err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return
	}
	fmt.Println("✓ Connected")
}

func testSheetsAPI(ctx context.Context, httpClient *http.Client, spreadsheetID string) error {
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}

	if _, err := svc.Spreadsheets.Get(spreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return fmt.Errorf("API call failed: %w", err)
	}
	return nil
}

func checkChrome(cfg *config.Config, allGood *bool) {
	fmt.Print("Chrome: ")
	if cfg != nil && cfg.Browser.ExecPath != "" {
		if _, err := os.Stat(cfg.Browser.ExecPath); err != nil {
			fmt.Printf("✗ %v\n", err)
			*allGood = false
			return
		}
		fmt.Printf("✓ %s\n", cfg.Browser.ExecPath)
		return
	}

	for _, name := range chromeNames {
		if path, err := exec.LookPath(name); err == nil {
			fmt.Printf("✓ %s\n", path)
			return
		}
	}
	fmt.Println("✗ Not found on PATH (set browser.exec_path)")
	*allGood = false
}

func printFinalStatus(allGood bool) {
	fmt.Println()
	if allGood {
		fmt.Println("Status: ✓ Ready to run")
		fmt.Println()
		fmt.Println("Run 'invoicedl run' to download the month's invoices.")
	} else {
		fmt.Println("Status: ✗ Configuration issues detected")
		fmt.Println()
		fmt.Println("Fix the issues above, then run 'invoicedl status' again.")
	}
}
