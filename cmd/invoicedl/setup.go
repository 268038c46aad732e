package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ArionMiles/invoicedl/internal/plugins"
	"github.com/ArionMiles/invoicedl/pkg/client"
	"github.com/ArionMiles/invoicedl/pkg/config"
)

// runSetup handles the OAuth setup flow for the Google Sheets source and writer.
func runSetup(logger *slog.Logger, configPath string, force bool) error {
	fmt.Println("=== invoicedl Setup ===")
	fmt.Println()

	cfg, err := config.Load(config.LoadOptions{File: configPath, EnvFile: config.DefaultEnvFile})
	if err != nil {
		return err
	}

	sourceKind, err := cfg.SourceKind()
	if err != nil {
		return err
	}
	scopes, err := plugins.Default().Scopes(sourceKind, cfg.Manifest.Writer)
	if err != nil {
		return err
	}
	if len(scopes) == 0 {
		fmt.Printf("Nothing to set up: the %s source", sourceKind)
		if cfg.Manifest.Writer != config.WriterNone {
			fmt.Printf(" and %s writer", cfg.Manifest.Writer)
		}
		fmt.Println(" need no Google access.")
		return nil
	}

	secretsPath := cfg.GSheets.SecretsFile
	tokenFile := cfg.GSheets.TokenFile

	// Check if credentials file exists
	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
			"1. Go to https://console.cloud.google.com/apis/credentials\n"+
			"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
			"3. Download the JSON file and save it as '%s'", secretsPath, secretsPath)
	}

	// Check if already authenticated
	if !force {
		if _, err := os.Stat(tokenFile); err == nil {
			fmt.Printf("Already authenticated! Token file exists: %s\n", tokenFile)
			fmt.Println()
			fmt.Println("To re-authenticate, run: invoicedl setup -force")
			return nil
		}
	}

	if force {
		if err := os.Remove(tokenFile); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove existing token", "error", err)
		}
		fmt.Println("Forcing re-authentication...")
		fmt.Println()
	}

	fmt.Println("This will set up OAuth authentication with Google.")
	fmt.Println()
	fmt.Println("Required permissions:")
	for _, scope := range scopes {
		fmt.Printf("  - %s\n", scope)
	}
	fmt.Println()
	fmt.Println("Starting authentication...")
	fmt.Println()

	// Trigger OAuth flow by creating client
	_, err = client.New(context.Background(), client.Config{
		SecretsFile: secretsPath,
		TokenFile:   tokenFile,
	}, scopes...)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Println()
	fmt.Println("=== Setup Complete ===")
	fmt.Println()
	fmt.Printf("Token saved to: %s\n", tokenFile)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Run 'invoicedl status' to check the rest of the configuration")
	fmt.Println("  2. Run 'invoicedl run' to download the month's invoices")
	fmt.Println()

	return nil
}
