package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ArionMiles/invoicedl/pkg/api"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	if os.Getenv("TEST_POSTGRES_HOST") == "" {
		t.Skip("TEST_POSTGRES_HOST not set, skipping integration test")
	}
	return Config{
		Host:          os.Getenv("TEST_POSTGRES_HOST"),
		Database:      os.Getenv("TEST_POSTGRES_DB"),
		User:          os.Getenv("TEST_POSTGRES_USER"),
		Password:      os.Getenv("TEST_POSTGRES_PASSWORD"),
		BatchSize:     2,
		FlushInterval: time.Second,
	}
}

// TestNewWriter_ConnectionFailure tests that the writer returns an error when connection fails.
func TestNewWriter_ConnectionFailure(t *testing.T) {
	cfg := Config{
		Host:     "nonexistent-host",
		Port:     5432,
		Database: "invoicedl",
		User:     "invoicedl",
		Password: "password",
		SSLMode:  "disable",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := New(ctx, cfg, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	if err == nil {
		t.Error("expected error when connecting to nonexistent host, got nil")
	}
}

// TestWrite_Batch records a run and checks every invoice landed.
func TestWrite_Batch(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	writer, err := New(ctx, cfg, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}

	runID := uuid.NewString()
	in := make(chan *api.Artifact, 6)
	for i := range 5 {
		id := fmt.Sprintf("INV%03d", i+1)
		in <- &api.Artifact{
			RunID:      runID,
			Identifier: id,
			Path:       "/out/" + id + ".pdf",
			SizeBytes:  int64(1000 + i),
			Pages:      1,
			FetchedAt:  time.Now().UTC(),
		}
	}
	// Same invoice again within the run is an update, not a new row.
	in <- &api.Artifact{RunID: runID, Identifier: "INV001", Path: "/out/INV001.pdf", SizeBytes: 1, FetchedAt: time.Now().UTC()}
	close(in)

	// Write closes the pool, so count through a second writer.
	if err := writer.Write(ctx, in); err != nil {
		t.Fatalf("writer returned error: %v", err)
	}

	reader, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("failed to reconnect: %v", err)
	}
	defer reader.Close()

	n, err := reader.CountRun(ctx, runID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("expected 5 rows for run, got %d", n)
	}
}
