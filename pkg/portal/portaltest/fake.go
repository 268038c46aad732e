// Package portaltest provides an in-memory portal.Browser for tests.
package portaltest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chromedp/chromedp/kb"

	"github.com/ArionMiles/invoicedl/pkg/portal"
)

// Call records one Browser method invocation.
type Call struct {
	Method string
	Arg    string
}

// Browser simulates the portal. Searching for an identifier and evaluating
// the print script drops "{identifier}-export.pdf" into DownloadDir.
// Elements listed in Absent, and the first result row for identifiers in
// Unknown, never appear: waits on them block until the context is done.
type Browser struct {
	Selectors   portal.Selectors
	DownloadDir string

	// Absent selectors never become available.
	Absent map[string]bool
	// Unknown identifiers have no search result.
	Unknown map[string]bool
	// Silent identifiers export without producing a download.
	Silent map[string]bool
	// Canceled identifiers export a download the browser then abandons.
	Canceled map[string]bool

	mu         sync.Mutex
	calls      []Call
	lastSearch string
	closed     bool
	canceled   chan string
}

// New returns a fake using the default selectors.
func New(downloadDir string) *Browser {
	return &Browser{
		Selectors:   portal.DefaultSelectors(),
		DownloadDir: downloadDir,
		Absent:      map[string]bool{},
		Unknown:     map[string]bool{},
		Silent:      map[string]bool{},
		Canceled:    map[string]bool{},
		canceled:    make(chan string, 8),
	}
}

var (
	_ portal.Browser          = (*Browser)(nil)
	_ portal.DownloadReporter = (*Browser)(nil)
)

// DownloadCanceled reports exports of Canceled identifiers.
func (b *Browser) DownloadCanceled() <-chan string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.canceled == nil {
		b.canceled = make(chan string, 8)
	}
	return b.canceled
}

func (b *Browser) record(method, arg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, Call{Method: method, Arg: arg})
}

// Calls returns a copy of the recorded calls.
func (b *Browser) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Index returns the position of the first call matching method and arg, or -1.
func (b *Browser) Index(method, arg string) int {
	for i, c := range b.Calls() {
		if c.Method == method && c.Arg == arg {
			return i
		}
	}
	return -1
}

// Count returns how many calls used method.
func (b *Browser) Count(method string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called.
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Browser) available(selector string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Absent[selector] {
		return false
	}
	if selector == b.Selectors.ViewItem && b.Unknown[b.lastSearch] {
		return false
	}
	return true
}

func (b *Browser) await(ctx context.Context, selector string) error {
	if b.available(selector) {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (b *Browser) Maximize(context.Context) error {
	b.record("Maximize", "")
	return nil
}

func (b *Browser) Navigate(_ context.Context, url string) error {
	b.record("Navigate", url)
	return nil
}

func (b *Browser) WaitInteractable(ctx context.Context, selector string) error {
	b.record("WaitInteractable", selector)
	return b.await(ctx, selector)
}

func (b *Browser) SendKeys(ctx context.Context, selector, text string) error {
	if err := b.await(ctx, selector); err != nil {
		return err
	}
	b.record("SendKeys", selector)
	if selector == b.Selectors.Search {
		b.mu.Lock()
		b.lastSearch = strings.TrimSuffix(text, kb.Enter)
		b.mu.Unlock()
	}
	return nil
}

func (b *Browser) Click(ctx context.Context, selector string) error {
	if err := b.await(ctx, selector); err != nil {
		return err
	}
	b.record("Click", selector)
	return nil
}

func (b *Browser) Evaluate(_ context.Context, script string) error {
	b.record("Evaluate", script)
	if script != b.Selectors.PrintScript {
		return nil
	}

	b.mu.Lock()
	id := b.lastSearch
	silent := b.Silent[id]
	abandoned := b.Canceled[id]
	b.mu.Unlock()
	if silent {
		return nil
	}
	if abandoned {
		select {
		case b.canceled <- id + "-export.pdf":
		default:
		}
		return nil
	}

	if err := os.MkdirAll(b.DownloadDir, 0o755); err != nil {
		return err
	}
	name := filepath.Join(b.DownloadDir, id+"-export.pdf")
	return os.WriteFile(name, []byte(fmt.Sprintf("%%PDF-1.4 fake invoice %s\n", id)), 0o600)
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.calls = append(b.calls, Call{Method: "Close"})
	return nil
}
