package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

// ChromeConfig holds configuration for a Chrome session.
type ChromeConfig struct {
	// DownloadDir is where exported files are saved.
	DownloadDir string
	// Headless runs Chrome without a window.
	Headless bool
	// ExecPath overrides the Chrome binary. Defaults to chromedp's lookup.
	ExecPath string
}

var _ DownloadReporter = (*Chrome)(nil)

// Chrome is a Browser backed by a local Chrome instance.
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	cancelAlloc context.CancelFunc
	profileDir  string
	headless    bool
	logger      *slog.Logger
	// downloads maps in-flight download GUIDs to their suggested file names.
	downloads sync.Map
	canceled  chan string
	closeOnce sync.Once
	closeErr  error
}

// NewChrome starts Chrome with a throwaway profile that saves downloads into
// cfg.DownloadDir without prompting and never opens PDFs in the viewer.
func NewChrome(ctx context.Context, cfg ChromeConfig, logger *slog.Logger) (*Chrome, error) {
	if logger == nil {
		logger = slog.Default()
	}

	downloadDir, err := filepath.Abs(cfg.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("resolving download dir: %w", err)
	}

	profileDir, err := os.MkdirTemp("", "invoicedl-profile-")
	if err != nil {
		return nil, fmt.Errorf("creating browser profile: %w", err)
	}
	if err := writePreferences(profileDir, downloadDir); err != nil {
		os.RemoveAll(profileDir)
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profileDir),
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("start-maximized", true),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Warn(fmt.Sprintf(format, args...))
		}),
	)

	c := &Chrome{
		ctx:         browserCtx,
		cancel:      cancel,
		cancelAlloc: cancelAlloc,
		profileDir:  profileDir,
		headless:    cfg.Headless,
		logger:      logger,
		canceled:    make(chan string, 8),
	}

	// The first Run allocates the browser and ties its lifetime to browserCtx,
	// so it must not run on a derived context.
	stop := context.AfterFunc(ctx, cancel)
	err = chromedp.Run(browserCtx)
	stop()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}

	chromedp.ListenTarget(browserCtx, c.onDownloadEvent)
	err = c.run(ctx, browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(downloadDir).
		WithEventsEnabled(true))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("setting download directory: %w", err)
	}

	logger.Info("chrome started", "headless", cfg.Headless, "download_dir", downloadDir)
	return c, nil
}

func (c *Chrome) onDownloadEvent(ev any) {
	switch ev := ev.(type) {
	case *browser.EventDownloadWillBegin:
		c.downloads.Store(ev.GUID, ev.SuggestedFilename)
		c.logger.Debug("download started", "file", ev.SuggestedFilename)
	case *browser.EventDownloadProgress:
		if ev.State == browser.DownloadProgressStateInProgress {
			return
		}
		v, ok := c.downloads.LoadAndDelete(ev.GUID)
		if !ok {
			return
		}
		name, _ := v.(string)
		switch ev.State {
		case browser.DownloadProgressStateCompleted:
			c.logger.Debug("download completed", "file", name, "bytes", int64(ev.ReceivedBytes))
		case browser.DownloadProgressStateCanceled:
			c.logger.Warn("download canceled", "file", name)
			select {
			case c.canceled <- name:
			default:
			}
		}
	}
}

// DownloadCanceled receives the names of downloads Chrome abandoned.
func (c *Chrome) DownloadCanceled() <-chan string {
	return c.canceled
}

// writePreferences seeds the profile with download and PDF handling preferences.
func writePreferences(profileDir, downloadDir string) error {
	prefs := map[string]any{
		"download": map[string]any{
			"default_directory":   downloadDir,
			"prompt_for_download": false,
			"directory_upgrade":   true,
		},
		"savefile": map[string]any{
			"default_directory": downloadDir,
		},
		"plugins": map[string]any{
			"always_open_pdf_externally": true,
		},
	}

	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encoding browser preferences: %w", err)
	}

	dir := filepath.Join(profileDir, "Default")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating profile directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Preferences"), data, 0o600); err != nil {
		return fmt.Errorf("writing browser preferences: %w", err)
	}
	return nil
}

// run executes actions on the session, aborting when ctx is done. Canceling
// ctx stops the actions but leaves the tab open.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Maximize maximizes the window. Headless sessions get a desktop-sized viewport instead.
func (c *Chrome) Maximize(ctx context.Context) error {
	if c.headless {
		return c.run(ctx, chromedp.EmulateViewport(1920, 1080))
	}
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		windowID, _, err := browser.GetWindowForTarget().Do(ctx)
		if err != nil {
			return err
		}
		return browser.SetWindowBounds(windowID, &browser.Bounds{
			WindowState: browser.WindowStateMaximized,
		}).Do(ctx)
	}))
}

// Navigate loads url and waits for the page to load.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, chromedp.Navigate(url))
}

// WaitInteractable waits until the element is visible and enabled.
func (c *Chrome) WaitInteractable(ctx context.Context, selector string) error {
	return c.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.WaitEnabled(selector, chromedp.ByQuery),
	)
}

// SendKeys types text into the element.
func (c *Chrome) SendKeys(ctx context.Context, selector, text string) error {
	return c.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

// Click clicks the element once it is visible.
func (c *Chrome) Click(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// Evaluate runs script in the page and discards its result.
func (c *Chrome) Evaluate(ctx context.Context, script string) error {
	return c.run(ctx, chromedp.Evaluate(script, nil))
}

// Close shuts Chrome down and removes the temporary profile.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		if err := chromedp.Cancel(c.ctx); err != nil {
			c.logger.Debug("chrome did not close cleanly", "error", err)
		}
		c.cancel()
		c.cancelAlloc()
		if err := os.RemoveAll(c.profileDir); err != nil {
			c.closeErr = fmt.Errorf("removing browser profile: %w", err)
			return
		}
		c.logger.Info("chrome closed")
	})
	return c.closeErr
}
