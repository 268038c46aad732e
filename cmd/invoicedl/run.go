package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ArionMiles/invoicedl/internal/plugins"
	"github.com/ArionMiles/invoicedl/pkg/api"
	"github.com/ArionMiles/invoicedl/pkg/client"
	"github.com/ArionMiles/invoicedl/pkg/config"
	"github.com/ArionMiles/invoicedl/pkg/credentials"
	"github.com/ArionMiles/invoicedl/pkg/orchestrator"
	"github.com/ArionMiles/invoicedl/pkg/portal"
	"github.com/ArionMiles/invoicedl/pkg/staging"
)

// runInvoicedl performs a single download run.
func runInvoicedl(logger *slog.Logger, configPath, envFile string) error {
	cfg, err := config.Load(config.LoadOptions{File: configPath, EnvFile: envFile})
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sourceKind, err := cfg.SourceKind()
	if err != nil {
		return err
	}

	logger.Info("configuration loaded",
		"source", sourceKind,
		"year", cfg.Year,
		"month", cfg.Month,
		"output_dir", cfg.OutputDir,
		"manifest_writer", cfg.Manifest.Writer,
	)

	// Setup context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	registry := plugins.Default()
	scopes, err := registry.Scopes(sourceKind, cfg.Manifest.Writer)
	if err != nil {
		return err
	}

	var httpClient *http.Client
	if len(scopes) > 0 {
		httpClient, err = client.New(ctx, client.Config{
			SecretsFile: cfg.GSheets.SecretsFile,
			TokenFile:   cfg.GSheets.TokenFile,
		}, scopes...)
		if err != nil {
			return fmt.Errorf("creating http client: %w", err)
		}
	}

	source, err := registry.CreateSource(ctx, sourceKind, httpClient, cfg, logger.With("component", sourceKind+"_source"))
	if err != nil {
		return fmt.Errorf("creating %s source: %w", sourceKind, err)
	}

	var writer api.Writer
	if cfg.Manifest.Writer != config.WriterNone {
		writer, err = registry.CreateWriter(ctx, cfg.Manifest.Writer, httpClient, cfg, logger.With("component", cfg.Manifest.Writer+"_writer"))
		if err != nil {
			return fmt.Errorf("creating %s writer: %w", cfg.Manifest.Writer, err)
		}
	}

	open := func(ctx context.Context) (portal.Browser, error) {
		return portal.NewChrome(ctx, portal.ChromeConfig{
			DownloadDir: staging.Dir(cfg.OutputDir),
			Headless:    cfg.Browser.Headless,
			ExecPath:    cfg.Browser.ExecPath,
		}, logger.With("component", "chrome"))
	}

	o := orchestrator.New(orchestrator.Config{
		Source:      source,
		OutputDir:   cfg.OutputDir,
		CleanOutput: cfg.CleanOutput,
		Year:        cfg.Year,
		Month:       cfg.Month,
		PortalURL:   cfg.PortalURL,
		Email:       cfg.Email,
		Selectors:   portal.DefaultSelectors(),
		Timeouts: portal.Timeouts{
			Element:    cfg.Timeouts.Element,
			Navigation: cfg.Timeouts.Navigation,
		},
		Download: staging.WaitConfig{
			Timeout:  cfg.Timeouts.Download,
			Interval: cfg.Timeouts.PollInterval,
		},
		Writer:   writer,
		Reporter: orchestrator.NewConsoleReporter(os.Stdout),
		Prompts:  os.Stdout,
	}, open, credentials.NewPrompt(os.Stdin, os.Stdout), logger.With("component", "orchestrator"))

	summary, err := o.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("run interrupted: %w", err)
		}
		return err
	}

	logger.Info("run complete",
		"run_id", summary.RunID,
		"downloaded", len(summary.Artifacts),
		"output_dir", cfg.OutputDir,
	)
	return nil
}
