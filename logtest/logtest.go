// Package logtest provides helpers for tests that inspect log output.
package logtest

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/edgelog/log"
)

// JoinLF joins multiple strings with LF line endings.
// Use this to construct expected multi-record output.
//
// Example:
//
//	want := logtest.JoinLF(
//		"first",
//		"second",
//	) // -> "first\nsecond"
func JoinLF(ss ...string) string {
	return strings.Join(ss, "\n")
}

// Compact removes all whitespace from s, so assertions do not depend on
// line endings or padding.
func Compact(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}

		return r
	}, s)
}

// SafeBuffer is a [bytes.Buffer] that is safe for concurrent use.
type SafeBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

// Write implements [io.Writer].
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

// String returns the buffered output with surrounding whitespace trimmed.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return strings.TrimSpace(b.buf.String())
}

// Lines returns the buffered output split into non-empty lines.
func (b *SafeBuffer) Lines() []string {
	s := b.String()
	if s == "" {
		return nil
	}

	return strings.Split(s, "\n")
}

// Buffer is a [log.StreamHandler] that records into a [SafeBuffer].
type Buffer struct {
	*log.StreamHandler
	*SafeBuffer
}

// String returns the captured output with surrounding whitespace trimmed.
func (b *Buffer) String() string {
	return b.SafeBuffer.String()
}

// NewBuffer creates a [Buffer] handler named name.
func NewBuffer(t *testing.T, name string, opts ...log.HandlerOption) *Buffer {
	t.Helper()

	sb := &SafeBuffer{}

	h, err := log.NewStreamHandler(name, sb, opts...)
	require.NoError(t, err)

	return &Buffer{StreamHandler: h, SafeBuffer: sb}
}

// Attach creates a [Buffer] named name, adds it to l, and removes it again
// when the test finishes.
func Attach(t *testing.T, l *log.Logger, name string, opts ...log.HandlerOption) *Buffer {
	t.Helper()

	b := NewBuffer(t, name, opts...)
	require.NoError(t, l.AddHandler(b))
	t.Cleanup(func() { l.RemoveHandler(name) })

	return b
}

// NewRegistry returns an isolated [log.Registry] whose diagnostics are
// captured as JSON lines in the returned buffer.
func NewRegistry(t *testing.T, opts ...log.RegistryOption) (*log.Registry, *SafeBuffer) {
	t.Helper()

	diag := &SafeBuffer{}
	logger := slog.New(log.NewSlogHandler(diag, log.LevelDebug, log.FormatJSON))

	return log.NewRegistry(append([]log.RegistryOption{log.WithDiagnostics(logger)}, opts...)...), diag
}
