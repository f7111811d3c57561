package log

import (
	"io"
	"os"
	"sync"
)

// ConsoleOutput writes formatted entries to an io.Writer, stderr by
// default. Writes are serialised so concurrent loggers sharing one
// ConsoleOutput never interleave a single line.
type ConsoleOutput struct {
	mu sync.Mutex
	W  io.Writer
}

// NewConsoleOutput builds a ConsoleOutput writing to w, useful in tests
// that need to inspect emitted lines.
func NewConsoleOutput(w io.Writer) *ConsoleOutput { return &ConsoleOutput{W: w} }

func (o *ConsoleOutput) writer() io.Writer {
	if o.W != nil {
		return o.W
	}
	return os.Stderr
}

func (o *ConsoleOutput) Write(entry *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.writer().Write(formatted)
	return err
}

func (o *ConsoleOutput) Close() error { return nil }

// NullOutput discards every entry. Useful for tests that want a Logger
// without stderr noise.
type NullOutput struct{}

func (NullOutput) Write(*Entry, []byte) error { return nil }
func (NullOutput) Close() error               { return nil }
