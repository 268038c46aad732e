package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"

	"github.com/ArionMiles/invoicedl/pkg/api"
)

type fakeSheets struct {
	mu          sync.Mutex
	exists      bool
	appendFails int
	created     string
	headers     [][]any
	appended    [][]any
	appendCalls int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	decode := func() [][]any {
		body, _ := io.ReadAll(r.Body)
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.Unmarshal(body, &vr)
		return vr.Values
	}

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/spreadsheets/existing"):
		if !f.exists {
			http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"spreadsheetId":"existing","properties":{"title":"Invoices"}}`))
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/spreadsheets"):
		body, _ := io.ReadAll(r.Body)
		var ss struct {
			Properties struct {
				Title string `json:"title"`
			} `json:"properties"`
		}
		_ = json.Unmarshal(body, &ss)
		f.created = ss.Properties.Title
		_, _ = w.Write([]byte(`{"spreadsheetId":"created","properties":{"title":"` + ss.Properties.Title + `"}}`))
	case r.Method == http.MethodPut && strings.Contains(r.URL.Path, "/values/"):
		f.headers = decode()
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		f.appendCalls++
		if f.appendFails > 0 {
			f.appendFails--
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota"}}`))
			return
		}
		f.appended = append(f.appended, decode()...)
		_, _ = w.Write([]byte(`{}`))
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
	}
}

func newTestWriter(t *testing.T, fake *fakeSheets, cfg Config) *Writer {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg.SheetName = "Manifest"
	cfg.RetryDelay = 10 * time.Millisecond
	w, err := New(context.Background(), srv.Client(), cfg, nil, option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func send(t *testing.T, w *Writer, ids ...string) {
	t.Helper()
	in := make(chan *api.Artifact, len(ids))
	for _, id := range ids {
		in <- &api.Artifact{
			RunID:      "run-1",
			Identifier: id,
			Path:       "/out/" + id + ".pdf",
			SizeBytes:  512,
			Pages:      2,
			FetchedAt:  time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
		}
	}
	close(in)
	if err := w.Write(context.Background(), in); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func TestWriter_ExistingSpreadsheet(t *testing.T) {
	fake := &fakeSheets{exists: true}
	w := newTestWriter(t, fake, Config{SheetID: "existing"})

	if w.SpreadsheetID() != "existing" {
		t.Errorf("spreadsheet id: %q", w.SpreadsheetID())
	}
	send(t, w, "INV001", "INV003")

	if len(fake.appended) != 2 {
		t.Fatalf("expected 2 appended rows, got %d", len(fake.appended))
	}
	row := fake.appended[0]
	if row[0] != "run-1" || row[1] != "INV001" || row[5] != "2024-03-05T09:00:00Z" {
		t.Errorf("unexpected row %v", row)
	}
	if fake.headers != nil {
		t.Error("headers rewritten on an existing spreadsheet")
	}
}

func TestWriter_CreatesSpreadsheet(t *testing.T) {
	fake := &fakeSheets{}
	w := newTestWriter(t, fake, Config{SheetID: "existing", SheetTitle: "Invoice downloads"})

	if w.SpreadsheetID() != "created" {
		t.Errorf("spreadsheet id: %q", w.SpreadsheetID())
	}
	if fake.created != "Invoice downloads" {
		t.Errorf("created title: %q", fake.created)
	}
	if len(fake.headers) != 1 || len(fake.headers[0]) != len(Headers) || fake.headers[0][1] != "Identifier" {
		t.Errorf("headers: %v", fake.headers)
	}
}

func TestWriter_RetriesRateLimit(t *testing.T) {
	fake := &fakeSheets{exists: true, appendFails: 1}
	w := newTestWriter(t, fake, Config{SheetID: "existing"})

	send(t, w, "INV001")

	if fake.appendCalls != 2 {
		t.Errorf("expected one retry, got %d calls", fake.appendCalls)
	}
	if len(fake.appended) != 1 {
		t.Errorf("row not written after retry: %v", fake.appended)
	}
}

func TestNew_RequiresSheetName(t *testing.T) {
	if _, err := New(context.Background(), http.DefaultClient, Config{SheetID: "x"}, nil); err == nil {
		t.Fatal("expected error without a sheet name")
	}
}
