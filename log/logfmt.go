package log

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"github.com/go-logfmt/logfmt"
)

// LogfmtFormatter renders a [Record] as a single logfmt line.
//
// Field order and collision handling match [JSONFormatter]. Composite
// values (maps, slices, structs) cannot be represented in logfmt and fail
// with [ErrSerialization].
type LogfmtFormatter struct {
	TimeLayout string
}

// Format implements [Formatter].
func (f LogfmtFormatter) Format(rec Record) (string, error) {
	layout := f.TimeLayout
	if layout == "" {
		layout = DefaultTimeLayout
	}

	var buf bytes.Buffer

	enc := logfmt.NewEncoder(&buf)

	keyvals := []any{
		FieldTimestamp, rec.Time.Format(layout),
		FieldLevel, rec.Level.String(),
		FieldName, rec.LoggerName,
		FieldMessage, rec.RenderMessage(),
	}

	for _, key := range slices.Sorted(maps.Keys(rec.Extra)) {
		if IsReservedField(key) {
			continue
		}

		keyvals = append(keyvals, key, rec.Extra[key])
	}

	for i := 0; i < len(keyvals); i += 2 {
		err := enc.EncodeKeyval(keyvals[i], keyvals[i+1])
		if err != nil {
			return "", fmt.Errorf("%w: field %q: %w", ErrSerialization, keyvals[i], err)
		}
	}

	return buf.String(), nil
}

// ContentType implements [ContentTyper].
func (f LogfmtFormatter) ContentType() string {
	return "text/plain; charset=utf-8"
}
