// Package portal drives the ERP web portal: signing in and exporting invoices.
package portal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrAuthentication   = errors.New("authentication failed")
	ErrElementNotFound  = errors.New("element not found")
	ErrDownloadCanceled = errors.New("download canceled by browser")
)

// Default timeouts for browser interactions.
const (
	DefaultElementTimeout    = 5 * time.Second
	DefaultNavigationTimeout = 60 * time.Second
)

// Browser is a single interactive browser session. Selectors are CSS queries.
// Element operations wait for their element until ctx is done.
type Browser interface {
	Maximize(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	WaitInteractable(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	Evaluate(ctx context.Context, script string) error
	Close() error
}

// DownloadReporter is implemented by browsers that observe their own downloads.
// The channel receives the suggested file name of every download the browser
// abandons, letting a fetch fail without waiting out the download timeout.
type DownloadReporter interface {
	DownloadCanceled() <-chan string
}

// Selectors locates the portal elements the workflow depends on.
type Selectors struct {
	Email    string
	Password string
	// Answer is the security question input shown after the password step.
	Answer string
	Search string
	// ViewItem is the "view" link of the first search result.
	ViewItem string
	// PrintScript triggers the invoice PDF export.
	PrintScript string
}

// DefaultSelectors returns the selectors for the NetSuite center pages.
func DefaultSelectors() Selectors {
	return Selectors{
		Email:       "input#email",
		Password:    "input#password",
		Answer:      `input[name="answer"]`,
		Search:      "input#_searchstring",
		ViewItem:    "#row0 > td.listtextctr > a.dottedlink.viewitem",
		PrintScript: "NLInvokeButton(getButton('print'))",
	}
}

// Timeouts bounds browser interactions.
type Timeouts struct {
	Element    time.Duration
	Navigation time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Element <= 0 {
		t.Element = DefaultElementTimeout
	}
	if t.Navigation <= 0 {
		t.Navigation = DefaultNavigationTimeout
	}
	return t
}

// bounded runs fn against selector with its own deadline. Expiry is reported
// as ErrElementNotFound unless the parent context ended first.
func bounded(ctx context.Context, timeout time.Duration, selector string, fn func(ctx context.Context) error) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := fn(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %w", ErrElementNotFound, selector, err)
	}
	return nil
}

func navigate(ctx context.Context, b Browser, timeout time.Duration, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := b.Navigate(navCtx, url); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}
