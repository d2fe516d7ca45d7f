package notice

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/conneroisu/kbdebug/internal/logging"
)

// Handler receives diagnostics. Returning true suppresses the default
// handler; returning false lets it run as well.
type Handler interface {
	HandleNotice(r Record) bool
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(r Record) bool

// HandleNotice calls f(r).
func (f HandlerFunc) HandleNotice(r Record) bool {
	return f(r)
}

type handlerKey struct{}

var (
	defaultMu      sync.RWMutex
	defaultHandler Handler
	fallback       logging.Logger = logging.NewLogger(nil).WithComponent("notice")
)

// Install makes h the active handler for everything raised under the
// returned context. The previously active handler, if any, is returned so the
// caller can report that it displaced one.
func Install(ctx context.Context, h Handler) (context.Context, Handler) {
	prev := Active(ctx)
	return context.WithValue(ctx, handlerKey{}, h), prev
}

// Active returns the handler installed in ctx, falling back to the process
// default. It returns nil when neither exists.
func Active(ctx context.Context) Handler {
	if ctx != nil {
		if h, ok := ctx.Value(handlerKey{}).(Handler); ok && h != nil {
			return h
		}
	}
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultHandler
}

// SetDefault replaces the process-wide handler used when a context carries
// none, and returns the one it displaced.
func SetDefault(h Handler) Handler {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultHandler
	defaultHandler = h
	return prev
}

// SetFallbackLogger replaces the logger used by the default handler.
func SetFallbackLogger(l logging.Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	fallback = l
}

// Trigger raises a diagnostic at the caller's location.
func Trigger(ctx context.Context, sev Severity, msg string, vars map[string]any) {
	r := Record{Severity: sev, Message: msg, Context: vars}
	if _, file, line, ok := runtime.Caller(1); ok {
		r.File, r.Line = file, line
	}
	Dispatch(ctx, r)
}

// Dispatch delivers an already located record to the active handler and,
// unless the handler suppresses it, to the default handler.
func Dispatch(ctx context.Context, r Record) {
	if r.Time.IsZero() {
		r.Time = time.Now()
	}
	r = r.clone()

	if h := Active(ctx); h != nil && h.HandleNotice(r) {
		return
	}
	logDefault(ctx, r)
}

func logDefault(ctx context.Context, r Record) {
	defaultMu.RLock()
	l := fallback
	defaultMu.RUnlock()

	fields := []interface{}{"severity", r.Severity.String(), "file", r.File, "line", r.Line}
	switch r.Category() {
	case CategoryError:
		l.Error(ctx, nil, r.Message, fields...)
	case CategoryWarning:
		l.Warn(ctx, nil, r.Message, fields...)
	case CategoryDebug:
		l.Debug(ctx, r.Message, fields...)
	default:
		l.Info(ctx, r.Message, fields...)
	}
}
