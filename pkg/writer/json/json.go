// Package json implements a Writer that keeps the manifest as a JSON array.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ArionMiles/invoicedl/pkg/api"
	"github.com/ArionMiles/invoicedl/pkg/writer/buffered"
)

// Writer writes artifacts to a JSON file with buffered batching.
type Writer struct {
	filePath  string
	artifacts []*api.Artifact
	mu        sync.Mutex
	buffered  *buffered.Writer
	logger    *slog.Logger
}

// Config holds configuration for the JSON writer.
type Config struct {
	// FilePath is the path to the JSON manifest. Existing entries are kept.
	FilePath string
	// BatchSize is the number of artifacts to buffer before writing.
	BatchSize int
	// FlushInterval is the interval between automatic flushes.
	FlushInterval time.Duration
}

// New creates a new JSON writer. An existing manifest that cannot be parsed is
// an error rather than being overwritten.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	w := &Writer{
		filePath:  cfg.FilePath,
		artifacts: make([]*api.Artifact, 0),
		logger:    logger,
	}

	if err := w.loadExisting(); err != nil {
		return nil, fmt.Errorf("loading existing manifest: %w", err)
	}

	w.buffered = buffered.New(w.flushBatch, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger.With("component", "json_buffer"))

	logger.Info("json writer initialized", "file", cfg.FilePath, "existing_count", len(w.artifacts))
	return w, nil
}

// loadExisting loads existing entries from the JSON file if it exists.
func (w *Writer) loadExisting() error {
	data, err := os.ReadFile(w.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, &w.artifacts)
}

// Write consumes artifacts from the input channel and writes them to JSON.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Artifact) error {
	return w.buffered.Write(ctx, in)
}

// flushBatch appends a batch of artifacts and rewrites the JSON file.
func (w *Writer) flushBatch(artifacts []*api.Artifact) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	all := append(w.artifacts, artifacts...)

	// Write entire array to file (JSON doesn't support appending)
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}

	if err := os.WriteFile(w.filePath, data, 0o600); err != nil {
		return fmt.Errorf("writing json file: %w", err)
	}
	w.artifacts = all

	w.logger.Debug("wrote manifest entries to json",
		"batch_count", len(artifacts),
		"total_count", len(w.artifacts),
	)
	return nil
}

// Count returns the total number of manifest entries written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.artifacts)
}
