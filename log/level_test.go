package log_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/edgelog/log"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input       string
		expected    log.Level
		expectError bool
	}{
		"debug level": {
			input:    "debug",
			expected: log.LevelDebug,
		},
		"info level": {
			input:    "info",
			expected: log.LevelInfo,
		},
		"warning level": {
			input:    "warning",
			expected: log.LevelWarning,
		},
		"warn alias": {
			input:    "warn",
			expected: log.LevelWarning,
		},
		"error level": {
			input:    "error",
			expected: log.LevelError,
		},
		"critical level": {
			input:    "critical",
			expected: log.LevelCritical,
		},
		"fatal alias": {
			input:    "fatal",
			expected: log.LevelCritical,
		},
		"notset level": {
			input:    "NOTSET",
			expected: log.LevelNotSet,
		},
		"case insensitive": {
			input:    "DeBuG",
			expected: log.LevelDebug,
		},
		"numeric rank": {
			input:    "30",
			expected: log.LevelWarning,
		},
		"surrounding whitespace": {
			input:    " info ",
			expected: log.LevelInfo,
		},
		"rank between levels": {
			input:       "15",
			expectError: true,
		},
		"negative rank": {
			input:       "-10",
			expectError: true,
		},
		"unknown level": {
			input:       "verbose",
			expectError: true,
		},
		"empty": {
			input:       "",
			expectError: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			lvl, err := log.ParseLevel(tc.input)
			if tc.expectError {
				require.Error(t, err)
				require.ErrorIs(t, err, log.ErrInvalidLevel)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, lvl)
			}
		})
	}
}

func TestLevelFromRank(t *testing.T) {
	t.Parallel()

	for _, lvl := range []log.Level{
		log.LevelNotSet, log.LevelDebug, log.LevelInfo,
		log.LevelWarning, log.LevelError, log.LevelCritical,
	} {
		got, err := log.LevelFromRank(int(lvl))
		require.NoError(t, err)
		assert.Equal(t, lvl, got)
	}

	_, err := log.LevelFromRank(51)
	require.ErrorIs(t, err, log.ErrInvalidLevel)
}

func TestLevelString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "INFO", log.LevelInfo.String())
	assert.Equal(t, "CRITICAL", log.LevelCritical.String())
	assert.Equal(t, "Level(7)", log.Level(7).String())
	assert.True(t, log.LevelWarning.Valid())
	assert.False(t, log.Level(7).Valid())
}

func TestLevelText(t *testing.T) {
	t.Parallel()

	b, err := log.LevelError.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "ERROR", string(b))

	_, err = log.Level(33).MarshalText()
	require.ErrorIs(t, err, log.ErrInvalidLevel)

	var lvl log.Level
	require.NoError(t, lvl.UnmarshalText([]byte("warning")))
	assert.Equal(t, log.LevelWarning, lvl)

	require.ErrorIs(t, lvl.UnmarshalText([]byte("loud")), log.ErrInvalidLevel)
	assert.Equal(t, log.LevelWarning, lvl, "failed unmarshal must not modify the level")
}

func TestLevelSlog(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		level log.Level
		slog  slog.Level
	}{
		"debug":    {level: log.LevelDebug, slog: slog.LevelDebug},
		"info":     {level: log.LevelInfo, slog: slog.LevelInfo},
		"warning":  {level: log.LevelWarning, slog: slog.LevelWarn},
		"error":    {level: log.LevelError, slog: slog.LevelError},
		"critical": {level: log.LevelCritical, slog: slog.LevelError + 4},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.slog, tc.level.Slog())
			assert.Equal(t, tc.level, log.LevelFromSlog(tc.slog))
		})
	}

	assert.Equal(t, log.LevelDebug, log.LevelFromSlog(slog.LevelDebug-4))
	assert.Equal(t, log.LevelInfo, log.LevelFromSlog(slog.LevelInfo+2))
}
