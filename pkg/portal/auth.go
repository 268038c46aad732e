package portal

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/chromedp/chromedp/kb"

	"github.com/ArionMiles/invoicedl/pkg/credentials"
)

// Authenticator signs a browser session into the portal.
type Authenticator struct {
	browser   Browser
	creds     credentials.Provider
	selectors Selectors
	timeouts  Timeouts
	out       io.Writer
	logger    *slog.Logger
}

// AuthConfig holds configuration for the Authenticator.
type AuthConfig struct {
	Selectors Selectors
	Timeouts  Timeouts
	// Output receives the sign-in banner shown before prompting. Defaults to io.Discard.
	Output io.Writer
}

// NewAuthenticator creates an Authenticator for the given session.
func NewAuthenticator(b Browser, creds credentials.Provider, cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}
	if cfg.Selectors == (Selectors{}) {
		cfg.Selectors = DefaultSelectors()
	}

	return &Authenticator{
		browser:   b,
		creds:     creds,
		selectors: cfg.Selectors,
		timeouts:  cfg.Timeouts.withDefaults(),
		out:       cfg.Output,
		logger:    logger,
	}
}

// Authenticate collects the secrets, submits the login form and answers the
// security question. It must succeed before the session is used for anything else.
func (a *Authenticator) Authenticate(ctx context.Context, portalURL, email string) error {
	fmt.Fprintf(a.out, "\n--- Sign into %s ---\n\nEmail: %s\n", portalURL, email)

	password, err := a.creds.Password(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	answer, err := a.creds.SecretAnswer(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	fmt.Fprintln(a.out)

	if err := a.browser.Maximize(ctx); err != nil {
		return fmt.Errorf("%w: maximizing window: %w", ErrAuthentication, err)
	}
	if err := navigate(ctx, a.browser, a.timeouts.Navigation, portalURL); err != nil {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	sel := a.selectors
	steps := []struct {
		selector string
		wait     bool
		keys     string
	}{
		{selector: sel.Email, keys: email},
		{selector: sel.Password, keys: password + kb.Enter},
		{selector: sel.Answer, wait: true, keys: answer + kb.Enter},
	}
	for _, step := range steps {
		err := bounded(ctx, a.timeouts.Element, step.selector, func(ctx context.Context) error {
			if step.wait {
				if err := a.browser.WaitInteractable(ctx, step.selector); err != nil {
					return err
				}
			}
			return a.browser.SendKeys(ctx, step.selector, step.keys)
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrAuthentication, err)
		}
	}

	a.logger.Info("signed in", "portal", portalURL, "email", email)
	return nil
}
