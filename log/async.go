package log

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

const defaultQueueSize = 1024

// DropPolicy selects which record an [AsyncHandler] discards when its queue
// is full.
type DropPolicy int

const (
	// DropOldest discards the oldest queued record to make room.
	DropOldest DropPolicy = iota
	// DropNewest discards the record being emitted.
	DropNewest
)

// String returns "drop-oldest" or "drop-newest".
func (p DropPolicy) String() string {
	if p == DropNewest {
		return "drop-newest"
	}

	return "drop-oldest"
}

// ParseDropPolicy parses "drop-oldest" or "drop-newest". An empty string
// yields [DropOldest].
func ParseDropPolicy(s string) (DropPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop-oldest":
		return DropOldest, nil
	case "drop-newest":
		return DropNewest, nil
	}

	return DropOldest, fmt.Errorf("%w: drop policy %q", ErrInvalidArgument, s)
}

// AsyncHandler moves another [Handler]'s Emit onto a single background
// goroutine behind a bounded queue.
//
// Emit never blocks and never returns an error: when the queue is full a
// record is discarded according to the [DropPolicy], and failures of the
// wrapped handler (including formatting failures) are reported to the
// diagnostics logger. Name, level and formatter are those of the wrapped
// handler.
//
// Create instances with [NewAsyncHandler]; call [AsyncHandler.Close] to
// drain the queue.
type AsyncHandler struct {
	Handler

	diag    *slog.Logger
	queue   chan Record
	wg      sync.WaitGroup
	dropped atomic.Int64
	mu      sync.Mutex
	policy  DropPolicy
	size    int
	closed  bool
}

// AsyncOption configures an [AsyncHandler].
type AsyncOption func(*AsyncHandler)

// WithQueueSize sets the queue capacity. Values less than 1 are clamped
// to 1. The default is 1024.
func WithQueueSize(n int) AsyncOption {
	return func(h *AsyncHandler) {
		if n < 1 {
			n = 1
		}

		h.size = n
	}
}

// WithDropPolicy sets the [DropPolicy]. The default is [DropOldest].
func WithDropPolicy(p DropPolicy) AsyncOption {
	return func(h *AsyncHandler) {
		h.policy = p
	}
}

// WithAsyncDiagnostics sets the logger that receives failures of the
// wrapped handler. A nil logger is ignored.
func WithAsyncDiagnostics(diag *slog.Logger) AsyncOption {
	return func(h *AsyncHandler) {
		if diag != nil {
			h.diag = diag
		}
	}
}

// NewAsyncHandler wraps next and starts its worker goroutine.
func NewAsyncHandler(next Handler, opts ...AsyncOption) (*AsyncHandler, error) {
	if next == nil {
		return nil, fmt.Errorf("%w: nil handler", ErrInvalidArgument)
	}

	h := &AsyncHandler{
		Handler: next,
		size:    defaultQueueSize,
		policy:  DropOldest,
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.diag == nil {
		h.diag = DefaultDiagnostics()
	}

	h.queue = make(chan Record, h.size)

	h.wg.Add(1)

	go h.run()

	return h, nil
}

// Emit queues rec for the worker. It always returns nil.
func (h *AsyncHandler) Emit(rec Record) error {
	// The caller may reuse its extra map and args after Emit returns.
	rec.Extra = rec.Extra.Merge()
	rec.Args = slices.Clone(rec.Args)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		h.dropped.Add(1)

		return nil
	}

	select {
	case h.queue <- rec:
		return nil
	default:
	}

	if h.policy == DropNewest {
		h.dropped.Add(1)

		return nil
	}

	// The worker may have freed a slot since the first attempt.
	select {
	case h.queue <- rec:
		return nil
	default:
	}

	// Only the worker receives, and it can only free slots, so after this
	// the send below cannot block.
	select {
	case <-h.queue:
		h.dropped.Add(1)
	default:
	}

	h.queue <- rec

	return nil
}

// Dropped returns the number of records discarded so far.
func (h *AsyncHandler) Dropped() int64 {
	return h.dropped.Load()
}

// Close stops accepting records, waits for queued records to be emitted,
// and closes the wrapped handler if it implements [io.Closer]. Idempotent.
func (h *AsyncHandler) Close() error {
	h.mu.Lock()

	if h.closed {
		h.mu.Unlock()

		return nil
	}

	h.closed = true
	close(h.queue)
	h.mu.Unlock()

	h.wg.Wait()

	if c, ok := h.Handler.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

func (h *AsyncHandler) run() {
	defer h.wg.Done()

	for rec := range h.queue {
		err := h.Handler.Emit(rec)
		if err != nil {
			h.diag.Error("async log handler failed",
				"handler", h.Name(),
				"logger", rec.LoggerName,
				"policy", h.policy.String(),
				"error", err,
			)
		}
	}
}
