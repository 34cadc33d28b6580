package log

import (
	"strings"
)

// DefaultTimeLayout is the timestamp layout used by the built-in formatters
// when none is configured.
const DefaultTimeLayout = "2006-01-02 15:04:05,000"

// Formatter renders a [Record] into the payload a [Handler] writes.
type Formatter interface {
	Format(rec Record) (string, error)
}

// ContentTyper is implemented by formatters that know the media type of
// their output. Network handlers use it to set the Content-Type header.
type ContentTyper interface {
	ContentType() string
}

// FormatterFunc adapts an ordinary function to the [Formatter] interface.
type FormatterFunc func(rec Record) (string, error)

// Format calls f(rec).
func (f FormatterFunc) Format(rec Record) (string, error) {
	return f(rec)
}

// TextFormatter renders records as plain text.
//
// With an empty Template only the rendered message is written. Otherwise
// the placeholders {timestamp}, {level}, {name} and {message} in Template
// are substituted; extra fields are not rendered.
type TextFormatter struct {
	Template   string
	TimeLayout string
}

// Format implements [Formatter]. It never fails.
func (f TextFormatter) Format(rec Record) (string, error) {
	if f.Template == "" {
		return rec.RenderMessage(), nil
	}

	layout := f.TimeLayout
	if layout == "" {
		layout = DefaultTimeLayout
	}

	r := strings.NewReplacer(
		"{timestamp}", rec.Time.Format(layout),
		"{level}", rec.Level.String(),
		"{name}", rec.LoggerName,
		"{message}", rec.RenderMessage(),
	)

	return r.Replace(f.Template), nil
}

// ContentType implements [ContentTyper].
func (f TextFormatter) ContentType() string {
	return "text/plain; charset=utf-8"
}

// ContentTypeOf returns the media type reported by f, falling back to
// plain text.
func ContentTypeOf(f Formatter) string {
	if ct, ok := f.(ContentTyper); ok {
		return ct.ContentType()
	}

	return TextFormatter{}.ContentType()
}
