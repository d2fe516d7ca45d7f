package notice

import (
	"context"
	"log/slog"
	"runtime"
)

// SlogHandler forwards slog records to the notice handler installed in the
// record's context, then to the wrapped handler. Application code that logs
// through slog therefore shows up in the request report.
type SlogHandler struct {
	next  slog.Handler
	attrs []slog.Attr
	group string
}

// NewSlogHandler wraps next.
func NewSlogHandler(next slog.Handler) *SlogHandler {
	return &SlogHandler{next: next}
}

// Enabled reports true when either a request handler is listening or the
// wrapped handler wants the level.
func (h *SlogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return contextHandler(ctx) != nil || h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *SlogHandler) Handle(ctx context.Context, r slog.Record) error {
	if ch := contextHandler(ctx); ch != nil {
		ch.HandleNotice(h.toRecord(r))
	}
	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &SlogHandler{next: h.next.WithAttrs(attrs), attrs: merged, group: h.group}
}

// WithGroup implements slog.Handler.
func (h *SlogHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &SlogHandler{next: h.next.WithGroup(name), attrs: h.attrs, group: group}
}

func (h *SlogHandler) toRecord(r slog.Record) Record {
	rec := Record{
		Severity: SeverityForLevel(r.Level),
		Message:  r.Message,
		Time:     r.Time,
	}
	if r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		frame, _ := frames.Next()
		rec.File, rec.Line = frame.File, frame.Line
	}

	vars := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		vars[a.Key] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		vars[key] = a.Value.Resolve().Any()
		return true
	})
	if len(vars) > 0 {
		rec.Context = vars
	}
	return rec
}

// SeverityForLevel maps slog levels onto host severities.
func SeverityForLevel(level slog.Level) Severity {
	switch {
	case level >= slog.LevelError:
		return Error
	case level >= slog.LevelWarn:
		return Warning
	case level >= slog.LevelInfo:
		return Notice
	default:
		return UserNotice
	}
}

func contextHandler(ctx context.Context) Handler {
	if ctx == nil {
		return nil
	}
	h, _ := ctx.Value(handlerKey{}).(Handler)
	return h
}
