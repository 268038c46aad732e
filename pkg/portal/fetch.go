package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp/kb"

	"github.com/ArionMiles/invoicedl/pkg/api"
	"github.com/ArionMiles/invoicedl/pkg/staging"
)

// Fetcher exports single invoices through an authenticated session.
type Fetcher struct {
	browser   Browser
	selectors Selectors
	timeouts  Timeouts
	download  staging.WaitConfig
	now       func() time.Time
	logger    *slog.Logger
}

// FetchConfig holds configuration for the Fetcher.
type FetchConfig struct {
	Selectors Selectors
	Timeouts  Timeouts
	// Download bounds the wait for the exported PDF to land in staging.
	Download staging.WaitConfig
}

// NewFetcher creates a Fetcher that reuses the given session.
func NewFetcher(b Browser, cfg FetchConfig, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Selectors == (Selectors{}) {
		cfg.Selectors = DefaultSelectors()
	}

	return &Fetcher{
		browser:   b,
		selectors: cfg.Selectors,
		timeouts:  cfg.Timeouts.withDefaults(),
		download:  cfg.Download,
		now:       time.Now,
		logger:    logger,
	}
}

// Fetch downloads the invoice with the given identifier to {outputDir}/{identifier}.pdf.
// The browser must be configured to save downloads into staging.Dir(outputDir).
func (f *Fetcher) Fetch(ctx context.Context, identifier, portalURL, outputDir string) (*api.Artifact, error) {
	logger := f.logger.With("invoice", identifier)
	stagingDir := staging.Dir(outputDir)

	// Reset: start from the landing page with an empty staging directory.
	if err := navigate(ctx, f.browser, f.timeouts.Navigation, portalURL); err != nil {
		return nil, err
	}
	if err := staging.EnsureEmpty(stagingDir, true); err != nil {
		return nil, fmt.Errorf("preparing staging: %w", err)
	}

	// Search.
	err := bounded(ctx, f.timeouts.Element, f.selectors.Search, func(ctx context.Context) error {
		if err := f.browser.WaitInteractable(ctx, f.selectors.Search); err != nil {
			return err
		}
		return f.browser.SendKeys(ctx, f.selectors.Search, identifier+kb.Enter)
	})
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	logger.Debug("submitted search")

	// Select the first result.
	err = bounded(ctx, f.timeouts.Element, f.selectors.ViewItem, func(ctx context.Context) error {
		if err := f.browser.WaitInteractable(ctx, f.selectors.ViewItem); err != nil {
			return err
		}
		return f.browser.Click(ctx, f.selectors.ViewItem)
	})
	if err != nil {
		return nil, fmt.Errorf("opening search result: %w", err)
	}
	logger.Debug("opened invoice")

	// Export.
	var canceled <-chan string
	if r, ok := f.browser.(DownloadReporter); ok {
		canceled = r.DownloadCanceled()
		drain(canceled)
	}
	if err := f.browser.Evaluate(ctx, f.selectors.PrintScript); err != nil {
		return nil, fmt.Errorf("triggering print: %w", err)
	}

	// Materialize.
	downloaded, err := f.awaitDownload(ctx, stagingDir, canceled)
	if err != nil {
		return nil, fmt.Errorf("waiting for download: %w", err)
	}

	dst := filepath.Join(outputDir, identifier+".pdf")
	size, err := staging.Move(downloaded, dst)
	if err != nil {
		return nil, err
	}

	logger.Info("invoice saved", "path", dst, "bytes", size)
	return &api.Artifact{
		Identifier: identifier,
		Path:       dst,
		SizeBytes:  size,
		FetchedAt:  f.now().UTC(),
	}, nil
}

// awaitDownload waits for the export to land in dir. A download the browser
// reports as canceled ends the wait early with ErrDownloadCanceled.
func (f *Fetcher) awaitDownload(ctx context.Context, dir string, canceled <-chan string) (string, error) {
	if canceled == nil {
		return staging.Await(ctx, dir, f.download)
	}

	waitCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case name := <-canceled:
			cancel(fmt.Errorf("%w: %s", ErrDownloadCanceled, name))
		case <-waitCtx.Done():
		}
	}()

	path, err := staging.Await(waitCtx, dir, f.download)
	if err != nil && ctx.Err() == nil {
		if cause := context.Cause(waitCtx); errors.Is(cause, ErrDownloadCanceled) {
			return "", cause
		}
	}
	return path, err
}

// drain discards cancellations left over from an earlier invoice.
func drain(ch <-chan string) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
