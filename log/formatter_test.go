package log_test

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/edgelog/log"
)

var testTime = time.Date(2024, time.March, 5, 14, 7, 9, 123_000_000, time.Local)

func newTestRecord(msg string, extra log.Fields, args ...any) log.Record {
	return log.Record{
		Time:       testTime,
		Level:      log.LevelInfo,
		LoggerName: "tests.formatter",
		Message:    msg,
		Args:       args,
		Extra:      extra,
	}
}

func TestJSONFormatter(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		checkFunc func(*testing.T, map[string]any)
		rec       log.Record
	}{
		"reserved fields": {
			rec: newTestRecord("info", nil),
			checkFunc: func(t *testing.T, got map[string]any) {
				t.Helper()

				assert.Equal(t, map[string]any{
					"timestamp": "2024-03-05 14:07:09,123",
					"level":     "INFO",
					"name":      "tests.formatter",
					"message":   "info",
				}, got)
			},
		},
		"numeric extras keep their type": {
			rec: newTestRecord("info", log.Fields{"city": "san francisco", "temp": 72}),
			checkFunc: func(t *testing.T, got map[string]any) {
				t.Helper()

				assert.InDelta(t, 72, got["temp"], 0)
				assert.Equal(t, "san francisco", got["city"])
			},
		},
		"scalar extras": {
			rec: newTestRecord("info", log.Fields{"ok": true, "missing": nil, "ratio": 0.5}),
			checkFunc: func(t *testing.T, got map[string]any) {
				t.Helper()

				assert.Equal(t, true, got["ok"])
				assert.Contains(t, got, "missing")
				assert.Nil(t, got["missing"])
				assert.InDelta(t, 0.5, got["ratio"], 0)
			},
		},
		"args are interpolated": {
			rec: newTestRecord("%d items in %s", nil, 3, "cart"),
			checkFunc: func(t *testing.T, got map[string]any) {
				t.Helper()

				assert.Equal(t, "3 items in cart", got["message"])
			},
		},
		"reserved keys win over extras": {
			rec: newTestRecord("original", log.Fields{
				"message":   "spoofed",
				"name":      "spoofed",
				"level":     "spoofed",
				"timestamp": "spoofed",
				"kept":      "yes",
			}),
			checkFunc: func(t *testing.T, got map[string]any) {
				t.Helper()

				assert.Equal(t, "original", got["message"])
				assert.Equal(t, "tests.formatter", got["name"])
				assert.Equal(t, "INFO", got["level"])
				assert.Equal(t, "2024-03-05 14:07:09,123", got["timestamp"])
				assert.Equal(t, "yes", got["kept"])
			},
		},
		"error values render as strings": {
			rec: newTestRecord("failed", log.Fields{"error": errors.New("connection refused")}),
			checkFunc: func(t *testing.T, got map[string]any) {
				t.Helper()

				assert.Equal(t, "connection refused", got["error"])
			},
		},
		"nested extras are kept": {
			rec: newTestRecord("info", log.Fields{"tags": []string{"a", "b"}}),
			checkFunc: func(t *testing.T, got map[string]any) {
				t.Helper()

				assert.Equal(t, []any{"a", "b"}, got["tags"])
			},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			out, err := log.JSONFormatter{}.Format(tc.rec)
			require.NoError(t, err)
			assert.NotContains(t, out, "\n")

			var got map[string]any

			require.NoError(t, json.Unmarshal([]byte(out), &got))
			tc.checkFunc(t, got)
		})
	}
}

func TestJSONFormatterKeyOrder(t *testing.T) {
	t.Parallel()

	out, err := log.JSONFormatter{}.Format(newTestRecord("m", log.Fields{"zeta": 1, "alpha": "<b>"}))
	require.NoError(t, err)

	assert.Equal(t,
		`{"timestamp":"2024-03-05 14:07:09,123","level":"INFO","name":"tests.formatter","message":"m","alpha":"<b>","zeta":1}`,
		out,
	)
}

func TestJSONFormatterTimeLayout(t *testing.T) {
	t.Parallel()

	out, err := log.JSONFormatter{TimeLayout: time.DateOnly}.Format(newTestRecord("m", nil))
	require.NoError(t, err)
	assert.Contains(t, out, `"timestamp":"2024-03-05"`)
}

func TestJSONFormatterSerializationError(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		value any
	}{
		"channel":  {value: make(chan int)},
		"function": {value: func() {}},
		"NaN":      {value: math.NaN()},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := log.JSONFormatter{}.Format(newTestRecord("m", log.Fields{"bad": tc.value, "good": 1}))
			require.ErrorIs(t, err, log.ErrSerialization)
			assert.Contains(t, err.Error(), `"bad"`)
		})
	}
}

func TestParseJSONRecord(t *testing.T) {
	t.Parallel()

	rec := newTestRecord("hello %s", log.Fields{"temp": 72, "city": "sf"}, "world")
	rec.Level = log.LevelError

	out, err := log.JSONFormatter{}.Format(rec)
	require.NoError(t, err)

	got, err := log.ParseJSONRecord([]byte(out), "")
	require.NoError(t, err)

	assert.Equal(t, "hello world", got.Message)
	assert.Equal(t, "tests.formatter", got.LoggerName)
	assert.Equal(t, log.LevelError, got.Level)
	assert.True(t, testTime.Equal(got.Time))
	assert.Equal(t, json.Number("72"), got.Extra["temp"])

	// Re-encoding yields the same payload.
	again, err := log.JSONFormatter{}.Format(got)
	require.NoError(t, err)
	assert.Equal(t, out, again)

	_, err = log.ParseJSONRecord([]byte("not json"), "")
	require.ErrorIs(t, err, log.ErrSerialization)

	_, err = log.ParseJSONRecord([]byte(`{"level":"loud"}`), "")
	require.ErrorIs(t, err, log.ErrInvalidLevel)
}

func TestTextFormatter(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		formatter log.TextFormatter
		rec       log.Record
		want      string
	}{
		"message only": {
			rec:  newTestRecord("info", log.Fields{"ignored": 1}),
			want: "info",
		},
		"percent without args": {
			rec:  newTestRecord("100% done", nil),
			want: "100% done",
		},
		"args": {
			rec:  newTestRecord("%s=%d", nil, "n", 4),
			want: "n=4",
		},
		"template": {
			formatter: log.TextFormatter{Template: "{timestamp} {level} [{name}] {message}"},
			rec:       newTestRecord("info", nil),
			want:      "2024-03-05 14:07:09,123 INFO [tests.formatter] info",
		},
		"template with layout": {
			formatter: log.TextFormatter{Template: "{timestamp}|{message}", TimeLayout: time.Kitchen},
			rec:       newTestRecord("info", nil),
			want:      "2:07PM|info",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := tc.formatter.Format(tc.rec)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLogfmtFormatter(t *testing.T) {
	t.Parallel()

	out, err := log.LogfmtFormatter{}.Format(newTestRecord("hi there", log.Fields{"temp": 72, "message": "spoofed"}))
	require.NoError(t, err)
	assert.Equal(t,
		`timestamp="2024-03-05 14:07:09,123" level=INFO name=tests.formatter message="hi there" temp=72`,
		strings.TrimSpace(out),
	)

	_, err = log.LogfmtFormatter{}.Format(newTestRecord("m", log.Fields{"tags": []string{"a"}}))
	require.ErrorIs(t, err, log.ErrSerialization)
}

func TestContentTypeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "application/json", log.ContentTypeOf(log.JSONFormatter{}))
	assert.Equal(t, "text/plain; charset=utf-8", log.ContentTypeOf(log.TextFormatter{}))
	assert.Equal(t, "text/plain; charset=utf-8", log.ContentTypeOf(log.FormatterFunc(func(r log.Record) (string, error) {
		return r.Message, nil
	})))
}
