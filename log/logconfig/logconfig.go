// Package logconfig loads a YAML description of loggers and handlers and
// applies it to a [log.Registry].
//
// A configuration names its handlers once and attaches them to loggers by
// reference:
//
//	root:
//	  level: info
//	  handlers: [console]
//	handlers:
//	  console:
//	    type: stream
//	    stream: stderr
//	    format: text
//	  collector:
//	    type: http
//	    url: https://logs.example.com/ingest
//	    timeout: 2s
//	    format: json
//	    level: warning
//	    headers:
//	      Authorization: Bearer example
//	    async:
//	      queue_size: 256
//	      drop_policy: drop-oldest
//	loggers:
//	  app.db:
//	    level: debug
//	    propagate: false
//	    handlers: [console, collector]
//
// Documents are converted to JSON and validated against [Schema] before
// they are decoded, so unknown keys and wrongly typed values are rejected
// with the offending location.
package logconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/google/jsonschema-go/jsonschema"

	"go.jacobcolvin.com/edgelog/log"
	"go.jacobcolvin.com/edgelog/log/httplog"
)

// Handler types.
const (
	TypeStream = "stream"
	TypeHTTP   = "http"
)

// Stream names.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

var (
	// ErrParse indicates the document is not valid YAML.
	ErrParse = errors.New("parse log config")
	// ErrValidate indicates the document does not describe a valid
	// configuration.
	ErrValidate = errors.New("invalid log config")
)

// Config is the root of a configuration document.
type Config struct {
	Root     *LoggerConfig            `json:"root,omitempty"     yaml:"root,omitempty"     jsonschema:"settings for the root logger"`
	Handlers map[string]HandlerConfig `json:"handlers,omitempty" yaml:"handlers,omitempty" jsonschema:"handlers by name"`
	Loggers  map[string]LoggerConfig  `json:"loggers,omitempty"  yaml:"loggers,omitempty"  jsonschema:"loggers by dotted name"`
}

// LoggerConfig configures one logger.
type LoggerConfig struct {
	// Propagate defaults to true when omitted.
	Propagate *bool    `json:"propagate,omitempty" yaml:"propagate,omitempty" jsonschema:"pass records to ancestor handlers"`
	Level     string   `json:"level,omitempty"     yaml:"level,omitempty"     jsonschema:"level name or numeric rank"`
	Handlers  []string `json:"handlers,omitempty"  yaml:"handlers,omitempty"  jsonschema:"names of handlers to attach"`
}

// HandlerConfig configures one handler.
type HandlerConfig struct {
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" jsonschema:"extra request headers (http)"`
	Async   *AsyncConfig      `json:"async,omitempty"   yaml:"async,omitempty"   jsonschema:"deliver on a background goroutine"`
	Type    string            `json:"type"              yaml:"type"              jsonschema:"handler type"`
	Level   string            `json:"level,omitempty"   yaml:"level,omitempty"   jsonschema:"minimum level for this handler"`
	Format  string            `json:"format,omitempty"  yaml:"format,omitempty"  jsonschema:"record format"`
	Stream  string            `json:"stream,omitempty"  yaml:"stream,omitempty"  jsonschema:"output stream (stream)"`
	URL     string            `json:"url,omitempty"     yaml:"url,omitempty"     jsonschema:"absolute http(s) URL (http)"`
	Timeout string            `json:"timeout,omitempty" yaml:"timeout,omitempty" jsonschema:"request timeout as a Go duration (http)"`
}

// AsyncConfig configures the queue in front of an asynchronous handler.
type AsyncConfig struct {
	DropPolicy string `json:"drop_policy,omitempty" yaml:"drop_policy,omitempty" jsonschema:"which record to discard when the queue is full"`
	QueueSize  int    `json:"queue_size,omitempty"  yaml:"queue_size,omitempty"  jsonschema:"queue capacity"`
}

// Streams supplies the writers behind stream handlers. Nil fields default
// to [os.Stdout] and [os.Stderr].
type Streams struct {
	Stdout io.Writer
	Stderr io.Writer
}

var resolvedSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	s, err := Schema()
	if err != nil {
		return nil, err
	}

	return s.Resolve(nil)
})

// Schema returns the JSON Schema that configuration documents are
// validated against.
func Schema() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[Config](nil)
	if err != nil {
		return nil, fmt.Errorf("infer schema: %w", err)
	}

	s.Schema = "https://json-schema.org/draft/2020-12/schema"
	s.Title = "edgelog configuration"

	handler := s.Properties["handlers"].AdditionalProperties
	handler.Properties["type"].Enum = []any{TypeStream, TypeHTTP}
	handler.Properties["stream"].Enum = []any{StreamStdout, StreamStderr}
	handler.Properties["format"].Enum = enum(log.GetAllFormatStrings())
	handler.Properties["async"].Properties["drop_policy"].Enum = enum([]string{
		log.DropOldest.String(),
		log.DropNewest.String(),
	})
	handler.Properties["async"].Properties["queue_size"].Minimum = jsonschema.Ptr(1.0)

	return s, nil
}

func enum(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}

	return out
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Parse validates and decodes a YAML (or JSON) document. An empty
// document yields an empty [Config].
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	var instance any

	err = json.Unmarshal(jsonData, &instance)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	if instance == nil {
		return cfg, nil
	}

	schema, err := resolvedSchema()
	if err != nil {
		return nil, err
	}

	err = schema.Validate(instance)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidate, err)
	}

	err = yaml.UnmarshalWithOptions(data, cfg, yaml.DisallowUnknownField())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the constraints the schema cannot express: level,
// duration and URL syntax, per-type required fields, and handler
// references.
func (c *Config) Validate() error {
	var errs []error

	for _, name := range slices.Sorted(maps.Keys(c.Handlers)) {
		if name == "" {
			errs = append(errs, fmt.Errorf("%w: handler name must not be empty", log.ErrInvalidArgument))

			continue
		}

		err := c.Handlers[name].validate()
		if err != nil {
			errs = append(errs, fmt.Errorf("handler %q: %w", name, err))
		}
	}

	if c.Root != nil {
		err := c.validateLogger(*c.Root)
		if err != nil {
			errs = append(errs, fmt.Errorf("root: %w", err))
		}
	}

	for _, name := range slices.Sorted(maps.Keys(c.Loggers)) {
		err := c.validateLogger(c.Loggers[name])
		if err != nil {
			errs = append(errs, fmt.Errorf("logger %q: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrValidate, errors.Join(errs...))
	}

	return nil
}

func (c *Config) validateLogger(lc LoggerConfig) error {
	if lc.Level != "" {
		_, err := log.ParseLevel(lc.Level)
		if err != nil {
			return err
		}
	}

	for _, ref := range lc.Handlers {
		if _, ok := c.Handlers[ref]; !ok {
			return fmt.Errorf("%w: %q", log.ErrHandlerNotFound, ref)
		}
	}

	return nil
}

func (hc HandlerConfig) validate() error {
	if hc.Level != "" {
		_, err := log.ParseLevel(hc.Level)
		if err != nil {
			return err
		}
	}

	if hc.Format != "" {
		_, err := log.ParseFormat(hc.Format)
		if err != nil {
			return err
		}
	}

	if hc.Async != nil {
		_, err := log.ParseDropPolicy(hc.Async.DropPolicy)
		if err != nil {
			return err
		}
	}

	switch hc.Type {
	case TypeStream:
		if hc.URL != "" || hc.Timeout != "" || len(hc.Headers) > 0 {
			return fmt.Errorf("%w: url, timeout and headers apply only to http handlers", log.ErrInvalidArgument)
		}

	case TypeHTTP:
		if hc.URL == "" {
			return fmt.Errorf("%w: url is required", log.ErrInvalidArgument)
		}

		u, err := url.Parse(hc.URL)
		if err != nil {
			return fmt.Errorf("%w: url: %w", log.ErrInvalidArgument, err)
		}

		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: url %q must be absolute http(s)", log.ErrInvalidArgument, hc.URL)
		}

		if hc.Stream != "" {
			return fmt.Errorf("%w: stream applies only to stream handlers", log.ErrInvalidArgument)
		}

		if hc.Timeout != "" {
			_, err := time.ParseDuration(hc.Timeout)
			if err != nil {
				return fmt.Errorf("%w: timeout: %w", log.ErrInvalidArgument, err)
			}
		}

	default:
		return fmt.Errorf("%w: unknown handler type %q", log.ErrInvalidArgument, hc.Type)
	}

	return nil
}

// Apply builds the configured handlers and attaches them to reg's loggers.
// Handlers referenced by several loggers are shared, and handlers no logger
// references are not built. Levels and propagation of loggers not named in
// the configuration are left as is.
//
// If Apply fails, handlers it built but had not yet attached are closed.
// Handlers already attached belong to their loggers and are released by
// [log.Registry.Shutdown].
func (c *Config) Apply(reg *log.Registry, streams Streams) error {
	err := c.Validate()
	if err != nil {
		return err
	}

	handlers := make(map[string]log.Handler, len(c.Handlers))
	attached := make(map[string]bool, len(c.Handlers))

	defer func() {
		for name, h := range handlers {
			if !attached[name] {
				closeHandler(h)
			}
		}
	}()

	for _, name := range c.referenced() {
		h, err := c.Handlers[name].build(name, reg, streams)
		if err != nil {
			return fmt.Errorf("handler %q: %w", name, err)
		}

		handlers[name] = h
	}

	if c.Root != nil {
		err := applyLogger(reg.Root(), *c.Root, handlers, attached)
		if err != nil {
			return fmt.Errorf("root: %w", err)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(c.Loggers)) {
		err := applyLogger(reg.GetLogger(name), c.Loggers[name], handlers, attached)
		if err != nil {
			return fmt.Errorf("logger %q: %w", name, err)
		}
	}

	return nil
}

// referenced returns the sorted names of handlers that at least one logger
// attaches.
func (c *Config) referenced() []string {
	seen := make(map[string]struct{}, len(c.Handlers))

	if c.Root != nil {
		for _, ref := range c.Root.Handlers {
			seen[ref] = struct{}{}
		}
	}

	for _, lc := range c.Loggers {
		for _, ref := range lc.Handlers {
			seen[ref] = struct{}{}
		}
	}

	return slices.Sorted(maps.Keys(seen))
}

func closeHandler(h log.Handler) {
	if c, ok := h.(io.Closer); ok {
		_ = c.Close()
	}
}

func applyLogger(l *log.Logger, lc LoggerConfig, handlers map[string]log.Handler, attached map[string]bool) error {
	if lc.Level != "" {
		lvl, err := log.ParseLevel(lc.Level)
		if err != nil {
			return err
		}

		err = l.SetLevel(lvl)
		if err != nil {
			return err
		}
	}

	if lc.Propagate != nil {
		l.SetPropagate(*lc.Propagate)
	}

	for _, ref := range lc.Handlers {
		err := l.AddHandler(handlers[ref])
		if err != nil {
			return err
		}

		attached[ref] = true
	}

	return nil
}

func (hc HandlerConfig) build(name string, reg *log.Registry, streams Streams) (log.Handler, error) {
	level := log.LevelNotSet

	if hc.Level != "" {
		var err error

		level, err = log.ParseLevel(hc.Level)
		if err != nil {
			return nil, err
		}
	}

	format := log.FormatText

	if hc.Format != "" {
		var err error

		format, err = log.ParseFormat(hc.Format)
		if err != nil {
			return nil, err
		}
	}

	var (
		h   log.Handler
		err error
	)

	switch hc.Type {
	case TypeStream:
		h, err = log.NewStreamHandler(name, streams.writer(hc.Stream),
			log.WithLevel(level),
			log.WithFormatter(log.NewFormatter(format)),
		)

	case TypeHTTP:
		opts := []httplog.Option{
			httplog.WithLevel(level),
			httplog.WithFormatter(log.NewFormatter(format)),
		}

		if hc.Timeout != "" {
			d, perr := time.ParseDuration(hc.Timeout)
			if perr != nil {
				return nil, fmt.Errorf("%w: timeout: %w", log.ErrInvalidArgument, perr)
			}

			opts = append(opts, httplog.WithTimeout(d))
		}

		if len(hc.Headers) > 0 {
			hdr := http.Header{}
			for k, v := range hc.Headers {
				hdr.Set(k, v)
			}

			opts = append(opts, httplog.WithHeaders(hdr))
		}

		h, err = httplog.New(name, hc.URL, opts...)

	default:
		err = fmt.Errorf("%w: unknown handler type %q", log.ErrInvalidArgument, hc.Type)
	}

	if err != nil {
		return nil, err
	}

	if hc.Async == nil {
		return h, nil
	}

	policy, err := log.ParseDropPolicy(hc.Async.DropPolicy)
	if err != nil {
		closeHandler(h)

		return nil, err
	}

	asyncOpts := []log.AsyncOption{
		log.WithDropPolicy(policy),
		log.WithAsyncDiagnostics(reg.Diagnostics()),
	}

	if hc.Async.QueueSize > 0 {
		asyncOpts = append(asyncOpts, log.WithQueueSize(hc.Async.QueueSize))
	}

	async, err := log.NewAsyncHandler(h, asyncOpts...)
	if err != nil {
		closeHandler(h)

		return nil, err
	}

	return async, nil
}

func (s Streams) writer(stream string) io.Writer {
	if stream == StreamStdout {
		if s.Stdout != nil {
			return s.Stdout
		}

		return os.Stdout
	}

	if s.Stderr != nil {
		return s.Stderr
	}

	return os.Stderr
}
