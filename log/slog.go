package log

import (
	"context"
	"log/slog"
	"time"
)

// SlogHandler returns a [slog.Handler] that routes [slog.Record]s through
// l, so code written against log/slog reaches l's handlers.
//
// Attributes become extra fields; attributes inside groups are flattened
// into dotted keys ("req.method").
func (l *Logger) SlogHandler() slog.Handler {
	return &slogHandler{logger: l}
}

type slogHandler struct {
	logger *Logger
	fields Fields
	prefix string
}

func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.Enabled(LevelFromSlog(level))
}

func (h *slogHandler) Handle(_ context.Context, r slog.Record) error {
	extra := make(Fields, len(h.fields)+r.NumAttrs())
	for k, v := range h.fields {
		extra[k] = v
	}

	r.Attrs(func(a slog.Attr) bool {
		addAttr(extra, h.prefix, a)

		return true
	})

	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}

	return h.logger.Handle(Record{
		Time:       t,
		Level:      LevelFromSlog(r.Level),
		LoggerName: h.logger.Name(),
		Message:    r.Message,
		Extra:      extra,
	})
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := h.fields.Merge()
	for _, a := range attrs {
		addAttr(fields, h.prefix, a)
	}

	return &slogHandler{logger: h.logger, fields: fields, prefix: h.prefix}
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	return &slogHandler{logger: h.logger, fields: h.fields, prefix: h.prefix + name + "."}
}

func addAttr(fields Fields, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix += a.Key + "."
		}

		for _, ga := range a.Value.Group() {
			addAttr(fields, groupPrefix, ga)
		}

		return
	}

	fields[prefix+a.Key] = a.Value.Any()
}
