package log

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	charmlog "charm.land/log/v2"
)

// Format represents a log output format.
type Format string

const (
	// FormatJSON outputs logs as JSON objects.
	FormatJSON Format = "json"
	// FormatLogfmt outputs logs in logfmt format.
	FormatLogfmt Format = "logfmt"
	// FormatText outputs human-readable text.
	FormatText Format = "text"
)

// NewSlogHandlerFromStrings creates a [slog.Handler] by strings. It is used
// for the layer's own diagnostics, not for records routed through a
// [Logger].
func NewSlogHandlerFromStrings(w io.Writer, logLevel, logFormat string) (slog.Handler, error) {
	logLvl, err := ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	logFmt, err := ParseFormat(logFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return NewSlogHandler(w, logLvl, logFmt), nil
}

// NewSlogHandler creates a [slog.Handler] with the specified level and
// format. [FormatText] uses the charm pretty printer.
func NewSlogHandler(w io.Writer, logLvl Level, logFmt Format) slog.Handler {
	switch logFmt {
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: logLvl.Slog(),
		})

	case FormatLogfmt:
		return slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: logLvl.Slog(),
		})
	}

	return charmlog.NewWithOptions(w, charmlog.Options{
		Level:           charmlog.Level(logLvl.Slog()),
		ReportTimestamp: true,
	})
}

// NewFormatter returns the record [Formatter] for logFmt.
func NewFormatter(logFmt Format) Formatter {
	switch logFmt {
	case FormatJSON:
		return JSONFormatter{}
	case FormatLogfmt:
		return LogfmtFormatter{}
	}

	return TextFormatter{}
}

// ParseFormat parses a log format string and returns the corresponding
// [Format].
func ParseFormat(format string) (Format, error) {
	logFmt := Format(strings.ToLower(format))
	if slices.Contains([]Format{FormatJSON, FormatLogfmt, FormatText}, logFmt) {
		return logFmt, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownLogFormat, format)
}

// GetAllFormatStrings returns the names accepted by [ParseFormat].
func GetAllFormatStrings() []string {
	return []string{string(FormatText), string(FormatJSON), string(FormatLogfmt)}
}
