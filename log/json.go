package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"
)

// JSONFormatter renders a [Record] as a single-line, flat JSON object.
//
// The object always starts with the reserved fields timestamp, level, name
// and message, followed by the record's extra fields sorted by key. An
// extra field whose key collides with a reserved field is ignored. An extra
// value that cannot be encoded makes Format fail with [ErrSerialization];
// fields are never dropped silently.
//
// Values implementing error are written as their Error() string.
type JSONFormatter struct {
	// TimeLayout overrides [DefaultTimeLayout] for the timestamp field.
	TimeLayout string
}

// Format implements [Formatter].
func (f JSONFormatter) Format(rec Record) (string, error) {
	layout := f.TimeLayout
	if layout == "" {
		layout = DefaultTimeLayout
	}

	var buf bytes.Buffer

	buf.WriteByte('{')

	reserved := []struct {
		key   string
		value string
	}{
		{FieldTimestamp, rec.Time.Format(layout)},
		{FieldLevel, rec.Level.String()},
		{FieldName, rec.LoggerName},
		{FieldMessage, rec.RenderMessage()},
	}

	for i, kv := range reserved {
		if i > 0 {
			buf.WriteByte(',')
		}

		err := writeJSONField(&buf, kv.key, kv.value)
		if err != nil {
			return "", err
		}
	}

	for _, key := range slices.Sorted(maps.Keys(rec.Extra)) {
		if IsReservedField(key) {
			continue
		}

		buf.WriteByte(',')

		err := writeJSONField(&buf, key, jsonValue(rec.Extra[key]))
		if err != nil {
			return "", err
		}
	}

	buf.WriteByte('}')

	return buf.String(), nil
}

// ContentType implements [ContentTyper].
func (f JSONFormatter) ContentType() string {
	return "application/json"
}

func writeJSONField(buf *bytes.Buffer, key string, value any) error {
	k, err := marshalJSON(key)
	if err != nil {
		return fmt.Errorf("%w: key %q: %w", ErrSerialization, key, err)
	}

	v, err := marshalJSON(value)
	if err != nil {
		return fmt.Errorf("%w: field %q: %w", ErrSerialization, key, err)
	}

	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)

	return nil
}

// marshalJSON is [json.Marshal] without HTML escaping and without the
// trailing newline added by [json.Encoder].
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	err := enc.Encode(v)
	if err != nil {
		return nil, err
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func jsonValue(v any) any {
	if err, ok := v.(error); ok && err != nil {
		if _, isMarshaler := v.(json.Marshaler); !isMarshaler {
			return err.Error()
		}
	}

	return v
}

// ParseJSONRecord decodes a payload produced by [JSONFormatter] back into a
// [Record]. Numbers in extra fields are kept as [json.Number] so they
// re-encode unchanged. A missing or unparsable timestamp yields the zero
// time; a missing level yields [LevelNotSet].
func ParseJSONRecord(data []byte, timeLayout string) (Record, error) {
	if timeLayout == "" {
		timeLayout = DefaultTimeLayout
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var obj map[string]any

	err := dec.Decode(&obj)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	var rec Record

	rec.LoggerName, _ = obj[FieldName].(string)
	rec.Message, _ = obj[FieldMessage].(string)

	if ts, ok := obj[FieldTimestamp].(string); ok {
		t, err := time.ParseInLocation(timeLayout, ts, time.Local)
		if err == nil {
			rec.Time = t
		}
	}

	if lvl, ok := obj[FieldLevel].(string); ok {
		rec.Level, err = ParseLevel(lvl)
		if err != nil {
			return Record{}, err
		}
	}

	for k, v := range obj {
		if IsReservedField(k) {
			continue
		}

		if rec.Extra == nil {
			rec.Extra = Fields{}
		}

		rec.Extra[k] = v
	}

	return rec, nil
}
