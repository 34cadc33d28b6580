package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"go.jacobcolvin.com/edgelog/log"
	"go.jacobcolvin.com/edgelog/log/httplog"
	"go.jacobcolvin.com/edgelog/log/logconfig"
	"go.jacobcolvin.com/edgelog/version"
)

var (
	errNoDestination = errors.New("no destination: set --url or --config")
	errInvalidPair   = errors.New("expected key=value")
)

type sendOptions struct {
	record  *log.Config
	config  string
	url     string
	logger  string
	headers []string
	fields  []string
	timeout time.Duration
}

func (a *app) newSendCmd() *cobra.Command {
	opts := &sendOptions{
		record: log.Flags{Level: "level", Format: "record-format"}.NewConfig(),
	}

	cmd := &cobra.Command{
		Use:   "send [flags] <message>...",
		Short: "Send one log record",
		Long: `send emits a single record through a logger configured from --config, from
--url, or both. The message is the arguments joined by spaces.

Field values are parsed as JSON literals when possible (temp=72, ok=true,
tags='["a","b"]') and sent as strings otherwise (city=sf).

send exits non-zero if any handler failed to deliver the record.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.runSend(opts, strings.Join(args, " "))
		},
	}

	flags := cmd.Flags()
	opts.record.RegisterFlags(flags)
	flags.StringVar(&opts.config, "config", "", "logging configuration file (YAML)")
	flags.StringVar(&opts.url, "url", "", "collector URL to POST the record to")
	flags.StringVar(&opts.logger, "logger", "edgelog", "logger name")
	flags.StringArrayVar(&opts.headers, "header", nil, "request header as key=value (repeatable)")
	flags.StringArrayVar(&opts.fields, "field", nil, "extra field as key=value (repeatable)")
	flags.DurationVar(&opts.timeout, "timeout", httplog.DefaultTimeout, "request timeout for --url")

	completionErr := opts.record.RegisterCompletions(cmd)
	if completionErr != nil {
		fmt.Fprintf(a.stderr, "register completions: %v\n", completionErr)
	}

	return cmd
}

func (a *app) runSend(opts *sendOptions, msg string) error {
	if opts.config == "" && opts.url == "" {
		return errNoDestination
	}

	level, err := log.ParseLevel(opts.record.Level)
	if err != nil {
		return fmt.Errorf("--level: %w", err)
	}

	format, err := log.ParseFormat(opts.record.Format)
	if err != nil {
		return fmt.Errorf("--record-format: %w", err)
	}

	extra, err := parseFields(opts.fields)
	if err != nil {
		return fmt.Errorf("--field: %w", err)
	}

	header, err := parseHeaders(opts.headers)
	if err != nil {
		return fmt.Errorf("--header: %w", err)
	}

	diag, failures := countFailures(a.diag)
	reg := log.NewRegistry(log.WithDiagnostics(diag), log.WithRootLevel(log.LevelDebug))

	if opts.config != "" {
		cfg, err := logconfig.Load(opts.config)
		if err != nil {
			return err
		}

		err = cfg.Apply(reg, logconfig.Streams{Stdout: a.stdout, Stderr: a.stderr})
		if err != nil {
			reg.Shutdown()

			return err
		}
	}

	logger := reg.GetLogger(opts.logger)

	if opts.url != "" {
		// A --header User-Agent replaces the default rather than adding to it.
		if header.Get("User-Agent") == "" {
			header.Set("User-Agent", version.UserAgent())
		}

		h, err := httplog.New("url", opts.url,
			httplog.WithFormatter(log.NewFormatter(format)),
			httplog.WithTimeout(opts.timeout),
			httplog.WithHeaders(header),
		)
		if err != nil {
			reg.Shutdown()

			return fmt.Errorf("--url: %w", err)
		}

		err = logger.AddHandler(h)
		if err != nil {
			reg.Shutdown()

			return err
		}
	}

	logErr := logger.Log(level, msg, extra)

	// Drain asynchronous handlers before counting failures.
	reg.Shutdown()

	if logErr != nil {
		return logErr
	}

	if n := failures.Load(); n > 0 {
		return fmt.Errorf("%w: %d handler failure(s) reported", log.ErrDelivery, n)
	}

	return nil
}

// parseFields parses key=value pairs. Values that are valid JSON are
// decoded, keeping numbers exact; anything else is kept as a string.
func parseFields(pairs []string) (log.Fields, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	fields := make(log.Fields, len(pairs))

	for _, pair := range pairs {
		key, raw, err := splitPair(pair)
		if err != nil {
			return nil, err
		}

		if log.IsReservedField(key) {
			return nil, fmt.Errorf("%w: %q is a reserved field", log.ErrInvalidArgument, key)
		}

		fields[key] = parseValue(raw)
	}

	return fields, nil
}

func parseValue(raw string) any {
	if raw == "" {
		return ""
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var v any

	err := dec.Decode(&v)
	if err != nil || dec.More() {
		return raw
	}

	return v
}

func parseHeaders(pairs []string) (http.Header, error) {
	header := http.Header{}

	for _, pair := range pairs {
		key, value, err := splitPair(pair)
		if err != nil {
			return nil, err
		}

		header.Add(key, value)
	}

	return header, nil
}

func splitPair(pair string) (string, string, error) {
	key, value, ok := strings.Cut(pair, "=")
	key = strings.TrimSpace(key)

	if !ok || key == "" {
		return "", "", fmt.Errorf("%w: %q", errInvalidPair, pair)
	}

	return key, value, nil
}
