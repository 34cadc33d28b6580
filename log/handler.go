package log

import (
	"fmt"
	"sync"
)

// Handler is a named sink attached to a [Logger].
//
// A Logger calls Emit only for records whose level is at or above both its
// own effective level and the handler's Level. Emit returns an error
// wrapping [ErrDelivery] for operational failures (network, I/O), which the
// logger reports and swallows; any other error, such as [ErrSerialization],
// is returned from the logging call.
//
// Implementations must be safe for concurrent use.
type Handler interface {
	Name() string
	Level() Level
	SetLevel(level Level) error
	Formatter() Formatter
	SetFormatter(f Formatter) error
	Emit(rec Record) error
}

// HandlerOption configures a [HandlerBase].
type HandlerOption func(*HandlerBase)

// WithLevel sets the handler's minimum level.
func WithLevel(level Level) HandlerOption {
	return func(b *HandlerBase) {
		b.level = level
	}
}

// WithFormatter sets the handler's formatter.
func WithFormatter(f Formatter) HandlerOption {
	return func(b *HandlerBase) {
		b.formatter = f
	}
}

// HandlerBase implements the name, level and formatter bookkeeping shared
// by every [Handler]. Embed a *HandlerBase and implement Emit.
//
// Create instances with [NewHandlerBase].
type HandlerBase struct {
	formatter Formatter
	name      string
	mu        sync.RWMutex
	level     Level
}

// NewHandlerBase creates a [HandlerBase] with the given name. Without
// options the level is [LevelNotSet] and records are rendered with
// [TextFormatter].
func NewHandlerBase(name string, opts ...HandlerOption) (*HandlerBase, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: handler name must not be empty", ErrInvalidArgument)
	}

	b := &HandlerBase{name: name}
	for _, opt := range opts {
		opt(b)
	}

	if !b.level.Valid() {
		return nil, fmt.Errorf("handler %q: %w: rank %d", name, ErrInvalidLevel, int(b.level))
	}

	return b, nil
}

// Name returns the handler's name.
func (b *HandlerBase) Name() string {
	return b.name
}

// Level returns the handler's minimum level.
func (b *HandlerBase) Level() Level {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.level
}

// SetLevel sets the handler's minimum level.
func (b *HandlerBase) SetLevel(level Level) error {
	if !level.Valid() {
		return fmt.Errorf("%w: rank %d", ErrInvalidLevel, int(level))
	}

	b.mu.Lock()
	b.level = level
	b.mu.Unlock()

	return nil
}

// Formatter returns the assigned formatter, or a zero [TextFormatter] if
// none was assigned.
func (b *HandlerBase) Formatter() Formatter {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.formatter == nil {
		return TextFormatter{}
	}

	return b.formatter
}

// SetFormatter assigns the formatter used for all subsequent records.
func (b *HandlerBase) SetFormatter(f Formatter) error {
	if f == nil {
		return fmt.Errorf("%w: nil formatter", ErrInvalidArgument)
	}

	b.mu.Lock()
	b.formatter = f
	b.mu.Unlock()

	return nil
}

// Render formats rec with the current formatter.
func (b *HandlerBase) Render(rec Record) (string, error) {
	return b.Formatter().Format(rec)
}
