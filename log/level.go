package log

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Level is the severity of a [Record]. Levels are ordered by numeric rank,
// so a larger Level is more severe.
type Level int

const (
	// LevelNotSet admits every record on a handler, and defers to the
	// nearest ancestor's level on a [Logger].
	LevelNotSet Level = 0
	// LevelDebug is for detailed diagnostic output.
	LevelDebug Level = 10
	// LevelInfo is for routine operational messages.
	LevelInfo Level = 20
	// LevelWarning is for unexpected but recoverable conditions.
	LevelWarning Level = 30
	// LevelError is for failures of a single operation.
	LevelError Level = 40
	// LevelCritical is for failures that leave the program unable to continue.
	LevelCritical Level = 50
)

var levelNames = map[Level]string{
	LevelNotSet:   "NOTSET",
	LevelDebug:    "DEBUG",
	LevelInfo:     "INFO",
	LevelWarning:  "WARNING",
	LevelError:    "ERROR",
	LevelCritical: "CRITICAL",
}

// ParseLevel parses a case-insensitive level name ("debug", "info",
// "warning", "error", "critical", "notset") or the decimal rank of one of
// the Level constants. "warn" and "fatal" are accepted as aliases for
// [LevelWarning] and [LevelCritical]. Any other input returns an error
// wrapping [ErrInvalidLevel].
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "notset":
		return LevelNotSet, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	case "critical", "fatal":
		return LevelCritical, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}

	return LevelFromRank(n)
}

// LevelFromRank returns the Level whose rank is exactly n. Ranks between
// the constants are rejected rather than rounded.
func LevelFromRank(n int) (Level, error) {
	lvl := Level(n)
	if !lvl.Valid() {
		return 0, fmt.Errorf("%w: rank %d", ErrInvalidLevel, n)
	}

	return lvl, nil
}

// LevelFromSlog maps a [slog.Level] onto the nearest Level at or below it.
// Custom slog levels above [slog.LevelError] map to [LevelCritical].
func LevelFromSlog(l slog.Level) Level {
	switch {
	case l > slog.LevelError:
		return LevelCritical
	case l >= slog.LevelError:
		return LevelError
	case l >= slog.LevelWarn:
		return LevelWarning
	case l >= slog.LevelInfo:
		return LevelInfo
	}

	return LevelDebug
}

// Valid reports whether l is one of the Level constants.
func (l Level) Valid() bool {
	_, ok := levelNames[l]

	return ok
}

// String returns the upper-case level name, e.g. "INFO". Unknown levels
// render as "Level(n)".
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}

	return "Level(" + strconv.Itoa(int(l)) + ")"
}

// Slog returns the equivalent [slog.Level].
func (l Level) Slog() slog.Level {
	switch {
	case l >= LevelCritical:
		return slog.LevelError + 4
	case l >= LevelError:
		return slog.LevelError
	case l >= LevelWarning:
		return slog.LevelWarn
	case l >= LevelInfo:
		return slog.LevelInfo
	}

	return slog.LevelDebug
}

// MarshalText implements [encoding.TextMarshaler].
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: rank %d", ErrInvalidLevel, int(l))
	}

	return []byte(l.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler] using [ParseLevel].
func (l *Level) UnmarshalText(text []byte) error {
	lvl, err := ParseLevel(string(text))
	if err != nil {
		return err
	}

	*l = lvl

	return nil
}

// GetAllLevelStrings returns the lower-case names accepted by [ParseLevel],
// in severity order. [LevelNotSet] is omitted since it is not a useful
// threshold for a flag.
func GetAllLevelStrings() []string {
	return []string{"debug", "info", "warning", "error", "critical"}
}
