package log

import (
	"fmt"
	"maps"
	"time"
)

// Reserved field names written by every structured [Formatter]. Extra
// fields with these keys are ignored.
const (
	FieldTimestamp = "timestamp"
	FieldLevel     = "level"
	FieldName      = "name"
	FieldMessage   = "message"
)

// Fields holds extra key/value pairs supplied at a logging call.
type Fields map[string]any

// IsReservedField reports whether key is one of the fields every structured
// [Formatter] writes itself.
func IsReservedField(key string) bool {
	switch key {
	case FieldTimestamp, FieldLevel, FieldName, FieldMessage:
		return true
	}

	return false
}

// Merge returns a new Fields containing f overlaid with each of others, in
// order. Later keys win.
func (f Fields) Merge(others ...Fields) Fields {
	out := make(Fields, len(f))
	maps.Copy(out, f)

	for _, o := range others {
		maps.Copy(out, o)
	}

	return out
}

// Record is a single log event as seen by a [Handler].
type Record struct {
	Time       time.Time
	Extra      Fields
	LoggerName string
	Message    string
	Args       []any
	Level      Level
}

// NewRecord creates a [Record] stamped with the current time.
func NewRecord(name string, level Level, msg string, extra Fields, args ...any) Record {
	return Record{
		Time:       time.Now(),
		Level:      level,
		LoggerName: name,
		Message:    msg,
		Args:       args,
		Extra:      extra,
	}
}

// RenderMessage returns the message with [Record.Args] interpolated using
// [fmt.Sprintf] verbs. Without args the message is returned verbatim, so
// a literal "%" needs no escaping.
func (r Record) RenderMessage() string {
	if len(r.Args) == 0 {
		return r.Message
	}

	return fmt.Sprintf(r.Message, r.Args...)
}
