package orchestrator

import (
	"fmt"
	"io"

	"github.com/ArionMiles/invoicedl/pkg/api"
)

// ConsoleReporter prints progress lines for an operator watching the run.
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a reporter writing to out.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

var _ api.Reporter = (*ConsoleReporter)(nil)

func (r *ConsoleReporter) Selected(source string, year, month, count int) {
	fmt.Fprintf(r.out, "Found %d invoices from %d-%d in %s!\n", count, year, month, source)
}

func (r *ConsoleReporter) Started(_, _ int, identifier string) {
	fmt.Fprintf(r.out, "Downloading %s...\n", identifier)
}

func (r *ConsoleReporter) Fetched(index, total int, artifact *api.Artifact) {
	fmt.Fprintf(r.out, "%d/%d: %s\n", index, total, artifact.Identifier)
}
