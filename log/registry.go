package log

import (
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
)

// DefaultRootLevel is the base level of a new registry's root logger.
const DefaultRootLevel = LevelInfo

var defaultRegistry = sync.OnceValue(func() *Registry {
	return NewRegistry()
})

// Default returns the process-wide [Registry], creating it on first use.
func Default() *Registry {
	return defaultRegistry()
}

// GetLogger returns the named logger from the [Default] registry.
func GetLogger(name string) *Logger {
	return Default().GetLogger(name)
}

// DefaultDiagnostics returns the logger used for a layer's own diagnostics
// when none is configured: human-readable text on stderr at
// [LevelWarning].
func DefaultDiagnostics() *slog.Logger {
	return slog.New(NewSlogHandler(os.Stderr, LevelWarning, FormatText))
}

// Registry owns the loggers of a process (or of a test), keyed by name.
//
// The root logger has the empty name. Loggers are created on first
// request and live as long as the registry. Safe for concurrent use.
//
// Create instances with [NewRegistry], or use [Default].
type Registry struct {
	diag    *slog.Logger
	root    *Logger
	loggers map[string]*Logger
	mu      sync.Mutex
}

// RegistryOption configures a [Registry].
type RegistryOption func(*Registry)

// WithRootLevel sets the root logger's base level. Invalid levels are
// ignored and [DefaultRootLevel] is used.
func WithRootLevel(level Level) RegistryOption {
	return func(r *Registry) {
		if level.Valid() {
			r.root.level = level
		}
	}
}

// WithDiagnostics sets the logger that receives delivery failures and
// other internal errors. A nil logger is ignored.
func WithDiagnostics(diag *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if diag != nil {
			r.diag = diag
		}
	}
}

// NewRegistry creates a [Registry] containing only the root logger.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		loggers: map[string]*Logger{},
	}
	r.root = newLogger(r, "", DefaultRootLevel)

	for _, opt := range opts {
		opt(r)
	}

	if r.diag == nil {
		r.diag = DefaultDiagnostics()
	}

	return r
}

// Root returns the root logger.
func (r *Registry) Root() *Logger {
	return r.root
}

// GetLogger returns the logger for name, creating it with [LevelNotSet] on
// first use. Repeated calls with the same name return the same *Logger.
// The empty name returns the root logger.
func (r *Registry) GetLogger(name string) *Logger {
	if name == "" {
		return r.root
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.loggers[name]
	if !ok {
		l = newLogger(r, name, LevelNotSet)
		r.loggers[name] = l
	}

	return l
}

// Diagnostics returns the logger that receives internal errors.
func (r *Registry) Diagnostics() *slog.Logger {
	return r.diag
}

// Shutdown detaches every handler from every logger and releases it, as
// [Logger.RemoveHandler] does. Call it before the process exits so that
// asynchronous handlers drain their queues.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	loggers := append([]*Logger{r.root}, slices.Collect(maps.Values(r.loggers))...)
	r.mu.Unlock()

	for _, l := range loggers {
		for _, h := range l.Handlers() {
			l.RemoveHandler(h.Name())
		}
	}
}

// parentOf returns the nearest registered dotted-name ancestor of l, the
// root logger if there is none, or nil for the root itself.
func (r *Registry) parentOf(l *Logger) *Logger {
	if l == r.root {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := l.name
	for {
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			return r.root
		}

		name = name[:i]
		if p, ok := r.loggers[name]; ok {
			return p
		}
	}
}

func (r *Registry) reportError(handler string, rec Record, err error) {
	r.diag.Error("log handler failed",
		"handler", handler,
		"logger", rec.LoggerName,
		"record_level", rec.Level.String(),
		"error", err,
	)
}
