package publisher

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Console prints would-be published messages instead of sending them.
// Used outside production so the pipeline can run end to end without
// touching the real channel.
type Console struct {
	out io.Writer
}

// NewConsole creates a Console publisher. A nil writer defaults to stdout.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

// Publish writes the message followed by a newline.
func (c *Console) Publish(_ context.Context, text string) error {
	if _, err := fmt.Fprintln(c.out, text); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}
