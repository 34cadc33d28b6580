package log

import (
	"fmt"
	"io"
	"sync"
)

// StreamHandler writes one formatted record per line to an [io.Writer].
// Writes are serialized, so a shared writer never sees interleaved lines.
type StreamHandler struct {
	*HandlerBase

	w  io.Writer
	mu sync.Mutex
}

// NewStreamHandler creates a [StreamHandler] writing to w.
func NewStreamHandler(name string, w io.Writer, opts ...HandlerOption) (*StreamHandler, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: nil writer", ErrInvalidArgument)
	}

	base, err := NewHandlerBase(name, opts...)
	if err != nil {
		return nil, err
	}

	return &StreamHandler{HandlerBase: base, w: w}, nil
}

// Emit implements [Handler].
func (h *StreamHandler) Emit(rec Record) error {
	payload, err := h.Render(rec)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err = io.WriteString(h.w, payload+"\n")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDelivery, h.Name(), err)
	}

	return nil
}
