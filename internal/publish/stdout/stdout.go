// Package stdout implements a Publisher that prints chunks to standard
// output, used for local runs without a configured destination.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Publisher prints chunks to stdout in a delimited, human-readable format.
type Publisher struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Publisher that writes to os.Stdout.
func New() *Publisher {
	return &Publisher{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Publisher that writes to the given
// writer. This is useful for testing.
func NewWithWriter(w io.Writer) *Publisher {
	return &Publisher{writer: w}
}

// Publish prints the chunk. It always returns nil (success).
func (p *Publisher) Publish(_ context.Context, text string) error {
	fmt.Fprintln(p.writer, "========================================")
	fmt.Fprintln(p.writer, text)
	fmt.Fprintln(p.writer, "========================================")
	return nil
}

// Name returns the backend name.
func (p *Publisher) Name() string {
	return "stdout"
}
