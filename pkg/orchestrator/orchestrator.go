// Package orchestrator runs a complete invoice download: select the invoices
// for a month, sign in once and export each one into the output directory.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ArionMiles/invoicedl/pkg/api"
	"github.com/ArionMiles/invoicedl/pkg/credentials"
	"github.com/ArionMiles/invoicedl/pkg/invoice"
	"github.com/ArionMiles/invoicedl/pkg/pdfinfo"
	"github.com/ArionMiles/invoicedl/pkg/portal"
	"github.com/ArionMiles/invoicedl/pkg/staging"
)

// Opener starts a browser session. Its download directory must be
// staging.Dir of the run's output directory.
type Opener func(ctx context.Context) (portal.Browser, error)

// Config holds configuration for a run.
type Config struct {
	Source      api.Source
	OutputDir   string
	CleanOutput bool
	Year        int
	Month       int
	PortalURL   string
	Email       string

	Selectors portal.Selectors
	Timeouts  portal.Timeouts
	Download  staging.WaitConfig

	// Writer records a manifest of fetched artifacts. Optional. A Writer that
	// is also an io.Closer is closed when Run returns, including runs that fail
	// before anything is fetched; Close must tolerate being called after Write.
	Writer api.Writer
	// Reporter receives progress. Optional.
	Reporter api.Reporter
	// Prompts receives the sign-in banner. Defaults to io.Discard.
	Prompts io.Writer
}

// Summary describes a finished run.
type Summary struct {
	RunID       string
	Identifiers []string
	Artifacts   []*api.Artifact
}

// Orchestrator drives a single download run.
type Orchestrator struct {
	cfg       Config
	open      Opener
	creds     credentials.Provider
	pageCount func(path string) (int, error)
	logger    *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config, open Opener, creds credentials.Provider, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Reporter == nil {
		cfg.Reporter = nopReporter{}
	}
	if cfg.Prompts == nil {
		cfg.Prompts = io.Discard
	}

	return &Orchestrator{
		cfg:       cfg,
		open:      open,
		creds:     creds,
		pageCount: pdfinfo.PageCount,
		logger:    logger,
	}
}

// Run downloads every invoice dated in the configured month. A failure on any
// invoice aborts the run; artifacts already written stay on disk.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: uuid.NewString()}
	logger := o.logger.With("run_id", summary.RunID)

	if c, ok := o.cfg.Writer.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				logger.Warn("failed to close manifest writer", "error", err)
			}
		}()
	}

	if err := staging.EnsureEmpty(o.cfg.OutputDir, o.cfg.CleanOutput); err != nil {
		return summary, fmt.Errorf("preparing output directory: %w", err)
	}

	ids, err := invoice.Filter(ctx, o.cfg.Source, o.cfg.Year, o.cfg.Month, logger)
	if err != nil {
		return summary, err
	}
	summary.Identifiers = ids
	o.cfg.Reporter.Selected(o.cfg.Source.Name(), o.cfg.Year, o.cfg.Month, len(ids))

	b, err := o.open(ctx)
	if err != nil {
		return summary, fmt.Errorf("opening browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()

	auth := portal.NewAuthenticator(b, o.creds, portal.AuthConfig{
		Selectors: o.cfg.Selectors,
		Timeouts:  o.cfg.Timeouts,
		Output:    o.cfg.Prompts,
	}, logger.With("component", "authenticator"))
	if err := auth.Authenticate(ctx, o.cfg.PortalURL, o.cfg.Email); err != nil {
		return summary, err
	}

	fetcher := portal.NewFetcher(b, portal.FetchConfig{
		Selectors: o.cfg.Selectors,
		Timeouts:  o.cfg.Timeouts,
		Download:  o.cfg.Download,
	}, logger.With("component", "fetcher"))

	g, gctx := errgroup.WithContext(ctx)
	var artifacts chan *api.Artifact
	if o.cfg.Writer != nil {
		artifacts = make(chan *api.Artifact, len(ids))
		g.Go(func() error {
			return o.cfg.Writer.Write(gctx, artifacts)
		})
	}

	fetchErr := o.fetchAll(gctx, fetcher, ids, summary, artifacts, logger)
	if artifacts != nil {
		close(artifacts)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return summary, fmt.Errorf("writing manifest: %w", err)
	}
	if fetchErr != nil {
		return summary, fetchErr
	}

	logger.Info("run complete", "invoices", len(summary.Artifacts))
	return summary, nil
}

func (o *Orchestrator) fetchAll(ctx context.Context, fetcher *portal.Fetcher, ids []string, summary *Summary, out chan<- *api.Artifact, logger *slog.Logger) error {
	total := len(ids)
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.cfg.Reporter.Started(i+1, total, id)

		artifact, err := fetcher.Fetch(ctx, id, o.cfg.PortalURL, o.cfg.OutputDir)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", id, err)
		}
		artifact.RunID = summary.RunID

		pages, err := o.pageCount(artifact.Path)
		if err != nil {
			logger.Warn("could not read page count", "invoice", id, "error", err)
		}
		artifact.Pages = pages

		summary.Artifacts = append(summary.Artifacts, artifact)
		if out != nil {
			select {
			case out <- artifact:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		o.cfg.Reporter.Fetched(i+1, total, artifact)
	}
	return nil
}

type nopReporter struct{}

func (nopReporter) Selected(string, int, int, int) {}
func (nopReporter) Started(int, int, string) {}
func (nopReporter) Fetched(int, int, *api.Artifact) {}
