package log

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
)

// Logger is a named source of records with an ordered set of named
// handlers.
//
// A record is dispatched only if its level passes the logger's effective
// level; each handler then applies its own level. Unless propagation is
// disabled, the record continues to the handlers of the nearest registered
// ancestor (by dotted name), and on up to the root.
//
// Obtain instances with [Registry.GetLogger]; a Logger is a singleton per
// name within its registry.
type Logger struct {
	registry  *Registry
	name      string
	handlers  []Handler // Replaced, never mutated in place.
	mu        sync.RWMutex
	level     Level
	propagate bool
}

func newLogger(r *Registry, name string, level Level) *Logger {
	return &Logger{
		registry:  r,
		name:      name,
		level:     level,
		propagate: true,
	}
}

// Name returns the logger's name. The root logger's name is empty.
func (l *Logger) Name() string {
	return l.name
}

// Level returns the logger's own base level, which may be [LevelNotSet].
func (l *Logger) Level() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.level
}

// SetLevel sets the logger's base level. [LevelNotSet] makes the logger
// inherit its ancestor's level.
func (l *Logger) SetLevel(level Level) error {
	if !level.Valid() {
		return fmt.Errorf("logger %q: %w: rank %d", l.name, ErrInvalidLevel, int(level))
	}

	l.mu.Lock()
	l.level = level
	l.mu.Unlock()

	return nil
}

// EffectiveLevel returns the first level that is not [LevelNotSet],
// walking from this logger up through its ancestors.
func (l *Logger) EffectiveLevel() Level {
	for cur := l; cur != nil; cur = cur.parent() {
		lvl := cur.Level()
		if lvl != LevelNotSet {
			return lvl
		}
	}

	return LevelNotSet
}

// Enabled reports whether a record at level would be dispatched.
func (l *Logger) Enabled(level Level) bool {
	return level >= l.EffectiveLevel()
}

// Propagate reports whether records are passed to ancestor handlers.
func (l *Logger) Propagate() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.propagate
}

// SetPropagate enables or disables propagation to ancestor handlers.
func (l *Logger) SetPropagate(propagate bool) {
	l.mu.Lock()
	l.propagate = propagate
	l.mu.Unlock()
}

// AddHandler attaches h. A handler already attached under the same name is
// replaced in place, keeping its position, and then released.
func (l *Logger) AddHandler(h Handler) error {
	if h == nil {
		return fmt.Errorf("%w: nil handler", ErrInvalidArgument)
	}

	if h.Name() == "" {
		return fmt.Errorf("%w: handler name must not be empty", ErrInvalidArgument)
	}

	l.mu.Lock()

	var replaced Handler

	handlers := slices.Clone(l.handlers)

	i := indexOf(handlers, h.Name())
	if i >= 0 {
		replaced = handlers[i]
		handlers[i] = h
	} else {
		handlers = append(handlers, h)
	}

	l.handlers = handlers
	l.mu.Unlock()

	if replaced != nil && replaced != h {
		l.release(replaced)
	}

	return nil
}

// RemoveHandler detaches and releases the named handler. Removing a name
// that is not attached is a no-op.
func (l *Logger) RemoveHandler(name string) {
	l.mu.Lock()

	i := indexOf(l.handlers, name)
	if i < 0 {
		l.mu.Unlock()

		return
	}

	removed := l.handlers[i]
	l.handlers = slices.Delete(slices.Clone(l.handlers), i, i+1)
	l.mu.Unlock()

	l.release(removed)
}

// Handler returns the named handler.
func (l *Logger) Handler(name string) (Handler, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i := indexOf(l.handlers, name)
	if i < 0 {
		return nil, false
	}

	return l.handlers[i], true
}

// Handlers returns the attached handlers in attachment order.
func (l *Logger) Handlers() []Handler {
	return slices.Clone(l.snapshot())
}

// SetHandlerLevel sets the minimum level of the named handler.
func (l *Logger) SetHandlerLevel(name string, level Level) error {
	h, ok := l.Handler(name)
	if !ok {
		return fmt.Errorf("logger %q: %w: %q", l.name, ErrHandlerNotFound, name)
	}

	err := h.SetLevel(level)
	if err != nil {
		return fmt.Errorf("handler %q: %w", name, err)
	}

	return nil
}

// SetHandlerFormatter assigns the formatter of the named handler.
func (l *Logger) SetHandlerFormatter(name string, f Formatter) error {
	h, ok := l.Handler(name)
	if !ok {
		return fmt.Errorf("logger %q: %w: %q", l.name, ErrHandlerNotFound, name)
	}

	err := h.SetFormatter(f)
	if err != nil {
		return fmt.Errorf("handler %q: %w", name, err)
	}

	return nil
}

// Log emits a record at level. msg is interpolated with args using
// [fmt.Sprintf] verbs when args are given.
//
// The returned error reports formatting failures such as [ErrSerialization]
// or an invalid level. Delivery failures are never returned.
func (l *Logger) Log(level Level, msg string, extra Fields, args ...any) error {
	if level == LevelNotSet || !level.Valid() {
		return fmt.Errorf("logger %q: %w: rank %d", l.name, ErrInvalidLevel, int(level))
	}

	if !l.Enabled(level) {
		return nil
	}

	return l.dispatch(NewRecord(l.name, level, msg, extra, args...))
}

// Handle dispatches a pre-built record as if it had been logged through l.
// The record keeps its own LoggerName and Time. Like [Logger.Log], it
// rejects records whose level is not one of the Level constants.
func (l *Logger) Handle(rec Record) error {
	if rec.Level == LevelNotSet || !rec.Level.Valid() {
		return fmt.Errorf("logger %q: %w: rank %d", l.name, ErrInvalidLevel, int(rec.Level))
	}

	if !l.Enabled(rec.Level) {
		return nil
	}

	return l.dispatch(rec)
}

// Debug logs msg at [LevelDebug].
func (l *Logger) Debug(msg string, extra ...Fields) error {
	return l.Log(LevelDebug, msg, mergeFields(extra))
}

// Info logs msg at [LevelInfo].
func (l *Logger) Info(msg string, extra ...Fields) error {
	return l.Log(LevelInfo, msg, mergeFields(extra))
}

// Warning logs msg at [LevelWarning].
func (l *Logger) Warning(msg string, extra ...Fields) error {
	return l.Log(LevelWarning, msg, mergeFields(extra))
}

// Error logs msg at [LevelError].
func (l *Logger) Error(msg string, extra ...Fields) error {
	return l.Log(LevelError, msg, mergeFields(extra))
}

// Critical logs msg at [LevelCritical].
func (l *Logger) Critical(msg string, extra ...Fields) error {
	return l.Log(LevelCritical, msg, mergeFields(extra))
}

// Debugf logs a formatted message at [LevelDebug].
func (l *Logger) Debugf(format string, args ...any) error {
	return l.Log(LevelDebug, format, nil, args...)
}

// Infof logs a formatted message at [LevelInfo].
func (l *Logger) Infof(format string, args ...any) error {
	return l.Log(LevelInfo, format, nil, args...)
}

// Warningf logs a formatted message at [LevelWarning].
func (l *Logger) Warningf(format string, args ...any) error {
	return l.Log(LevelWarning, format, nil, args...)
}

// Errorf logs a formatted message at [LevelError].
func (l *Logger) Errorf(format string, args ...any) error {
	return l.Log(LevelError, format, nil, args...)
}

// Criticalf logs a formatted message at [LevelCritical].
func (l *Logger) Criticalf(format string, args ...any) error {
	return l.Log(LevelCritical, format, nil, args...)
}

func (l *Logger) dispatch(rec Record) error {
	var errs []error

	for cur := l; cur != nil; cur = cur.parent() {
		for _, h := range cur.snapshot() {
			if rec.Level < h.Level() {
				continue
			}

			err := h.Emit(rec)
			if err == nil {
				continue
			}

			if errors.Is(err, ErrDelivery) {
				l.registry.reportError(h.Name(), rec, err)

				continue
			}

			errs = append(errs, fmt.Errorf("handler %q: %w", h.Name(), err))
		}

		if !cur.Propagate() {
			break
		}
	}

	return errors.Join(errs...)
}

func (l *Logger) snapshot() []Handler {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.handlers
}

func (l *Logger) parent() *Logger {
	return l.registry.parentOf(l)
}

func (l *Logger) release(h Handler) {
	c, ok := h.(io.Closer)
	if !ok {
		return
	}

	err := c.Close()
	if err != nil {
		l.registry.Diagnostics().Warn("closing log handler",
			"logger", l.name,
			"handler", h.Name(),
			"error", err,
		)
	}
}

func indexOf(handlers []Handler, name string) int {
	return slices.IndexFunc(handlers, func(h Handler) bool {
		return h.Name() == name
	})
}

func mergeFields(extra []Fields) Fields {
	switch len(extra) {
	case 0:
		return nil
	case 1:
		return extra[0]
	}

	return Fields{}.Merge(extra...)
}
