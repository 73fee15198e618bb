package delivery

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// WriterDispatcher writes each composed message to w, separated by a blank line.
type WriterDispatcher struct {
	mu       sync.Mutex
	w        io.Writer
	composer Composer
}

// NewWriterDispatcher wraps w.
func NewWriterDispatcher(w io.Writer) *WriterDispatcher {
	return &WriterDispatcher{w: w}
}

// Dispatch implements [Dispatcher].
func (d *WriterDispatcher) Dispatch(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	raw, err := d.composer.Compose(msg)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.w.Write(append(raw, "\r\n"...)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}
