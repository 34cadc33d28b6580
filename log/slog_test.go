package log_test

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/edgelog/log"
	"go.jacobcolvin.com/edgelog/logtest"
)

func TestSlogHandler(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		logFunc   func(*slog.Logger)
		checkFunc func(*testing.T, map[string]any)
	}{
		"attributes become extras": {
			logFunc: func(l *slog.Logger) {
				l.Info("request", slog.Int("status", 200), slog.String("path", "/"))
			},
			checkFunc: func(t *testing.T, got map[string]any) {
				t.Helper()

				assert.Equal(t, "request", got["message"])
				assert.Equal(t, "INFO", got["level"])
				assert.Equal(t, "slog.bridge", got["name"])
				assert.InDelta(t, 200, got["status"], 0)
				assert.Equal(t, "/", got["path"])
			},
		},
		"groups flatten to dotted keys": {
			logFunc: func(l *slog.Logger) {
				l.WithGroup("req").With("method", "GET").Warn("slow",
					slog.Group("timing", slog.Int("ms", 900)))
			},
			checkFunc: func(t *testing.T, got map[string]any) {
				t.Helper()

				assert.Equal(t, "WARNING", got["level"])
				assert.Equal(t, "GET", got["req.method"])
				assert.InDelta(t, 900, got["req.timing.ms"], 0)
			},
		},
		"errors render as strings": {
			logFunc: func(l *slog.Logger) {
				l.Error("failed", slog.Any("error", errors.New("boom")))
			},
			checkFunc: func(t *testing.T, got map[string]any) {
				t.Helper()

				assert.Equal(t, "ERROR", got["level"])
				assert.Equal(t, "boom", got["error"])
			},
		},
		"with attrs are kept": {
			logFunc: func(l *slog.Logger) {
				l.With("service", "api").Info("started")
			},
			checkFunc: func(t *testing.T, got map[string]any) {
				t.Helper()

				assert.Equal(t, "api", got["service"])
			},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			reg, _ := logtest.NewRegistry(t)
			logger := reg.GetLogger("slog.bridge")
			b := logtest.Attach(t, logger, "buffer_handler", log.WithFormatter(log.JSONFormatter{}))

			tc.logFunc(slog.New(logger.SlogHandler()))

			var got map[string]any

			require.NoError(t, json.Unmarshal([]byte(b.String()), &got))
			tc.checkFunc(t, got)
		})
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	t.Parallel()

	reg, _ := logtest.NewRegistry(t)
	logger := reg.GetLogger("slog.bridge")
	b := logtest.Attach(t, logger, "buffer_handler")

	sl := slog.New(logger.SlogHandler())

	sl.Debug("hidden")
	assert.Empty(t, b.String())

	require.NoError(t, logger.SetLevel(log.LevelDebug))
	sl.Debug("shown")
	assert.Equal(t, "shown", b.String())
}
