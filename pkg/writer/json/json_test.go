package json

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ArionMiles/invoicedl/pkg/api"
)

func write(t *testing.T, w *Writer, ids ...string) {
	t.Helper()
	in := make(chan *api.Artifact, len(ids))
	for _, id := range ids {
		in <- &api.Artifact{
			RunID:      "run-1",
			Identifier: id,
			Path:       "/out/" + id + ".pdf",
			SizeBytes:  100,
			Pages:      1,
			FetchedAt:  time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		}
	}
	close(in)
	if err := w.Write(context.Background(), in); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func TestWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	w, err := New(Config{FilePath: path}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	write(t, w, "INV001", "INV003")

	// A second run appends to the existing manifest.
	w2, err := New(Config{FilePath: path}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if w2.Count() != 2 {
		t.Fatalf("existing entries not loaded: %d", w2.Count())
	}
	write(t, w2, "INV009")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got []api.Artifact
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("manifest is not valid json: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Identifier != "INV001" || got[2].Identifier != "INV009" {
		t.Errorf("unexpected order: %+v", got)
	}
	if got[2].RunID != "run-1" || got[2].Pages != 1 {
		t.Errorf("fields lost: %+v", got[2])
	}
}

func TestNew_CorruptManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(path, []byte("[{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Config{FilePath: path}, nil); err == nil {
		t.Fatal("expected error for corrupt manifest")
	}
}
