// Package api defines the core interfaces and data structures for invoicedl.
package api

import (
	"context"
	"time"
)

// Row is a single spreadsheet row as read from a Source.
type Row struct {
	// Number is the 1-based position of the row in the source.
	Number int
	// Cells holds the cell values of the row, column A first.
	Cells []string
}

// Cell returns the value of the cell at the zero-based column index.
// Cells past the end of the row read as empty.
func (r Row) Cell(col int) string {
	if col < 0 || col >= len(r.Cells) {
		return ""
	}
	return r.Cells[col]
}

// Source reads the rows of a tabular input in order.
type Source interface {
	// Name identifies the source in logs and progress output.
	Name() string
	// Rows returns every populated row, in row order.
	Rows(ctx context.Context) ([]Row, error)
}

// Artifact describes an invoice PDF produced by a run.
type Artifact struct {
	RunID      string    `json:"run_id"`
	Identifier string    `json:"identifier"`
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"size_bytes"`
	Pages      int       `json:"pages"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Writer consumes artifacts from a channel and records them to a destination.
// Write returns once the channel is closed and everything has been flushed.
type Writer interface {
	Write(ctx context.Context, in <-chan *Artifact) error
}

// Reporter receives progress for operator display.
type Reporter interface {
	// Selected is called once the identifiers for the run are known.
	Selected(source string, year, month, count int)
	// Started is called before an invoice is fetched. index is 1-based.
	Started(index, total int, identifier string)
	// Fetched is called after an invoice has been written to disk.
	Fetched(index, total int, artifact *Artifact)
}
