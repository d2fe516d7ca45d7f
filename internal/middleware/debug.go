// Package middleware provides the HTTP middleware stack, including the debug
// middleware that opens a session per request, fires the shutdown hook once
// the handler returns and appends the rendered report to HTML pages.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/conneroisu/kbdebug/internal/config"
	"github.com/conneroisu/kbdebug/internal/console"
	"github.com/conneroisu/kbdebug/internal/constants"
	"github.com/conneroisu/kbdebug/internal/flags"
	"github.com/conneroisu/kbdebug/internal/hooks"
	"github.com/conneroisu/kbdebug/internal/logging"
	"github.com/conneroisu/kbdebug/internal/notice"
	"github.com/conneroisu/kbdebug/internal/report"
	"github.com/conneroisu/kbdebug/internal/roles"
	"github.com/conneroisu/kbdebug/internal/session"
	"github.com/google/uuid"
)

const (
	// ShutdownHook fires after the handler has produced the page.
	ShutdownHook = "shutdown"
	// RenderCallbackID identifies the report renderer on ShutdownHook.
	RenderCallbackID = "kbdebug_render"
	// RequestIDHeader carries the session id on responses.
	RequestIDHeader = "X-Kbdebug-Request-Id"
)

// Broadcaster receives every rendered report.
type Broadcaster interface {
	Broadcast(msg console.Message)
}

// DebugOptions configures the debug middleware.
type DebugOptions struct {
	Registry *hooks.Registry
	// Config returns the active configuration; it is called once per request
	// so a reloaded config applies to the next request.
	Config    func() *config.Config
	Constants *constants.Table
	// RoleStore overrides the file store at roles.path.
	RoleStore roles.Store
	Console   Broadcaster
	Logger    logging.Logger
}

// Debug is the debug middleware.
type Debug struct {
	registry  *hooks.Registry
	config    func() *config.Config
	constants *constants.Table
	roleStore roles.Store
	console   Broadcaster
	logger    logging.Logger

	renderers atomic.Pointer[rendererEntry]
}

type rendererEntry struct {
	cfg      *config.Config
	renderer *report.Renderer
}

// requestState is shared between the handler and the shutdown callback.
type requestState struct {
	flags    flags.Flags
	render   bool
	renderer *report.Renderer
	output   string
	err      error
}

type stateKey struct{}

// NewDebug creates the middleware and registers the renderer as the last
// shutdown callback.
func NewDebug(opts DebugOptions) *Debug {
	if opts.Registry == nil {
		panic("NewDebug: registry cannot be nil")
	}
	if opts.Config == nil {
		panic("NewDebug: config provider cannot be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	d := &Debug{
		registry:  opts.Registry,
		config:    opts.Config,
		constants: opts.Constants,
		roleStore: opts.RoleStore,
		console:   opts.Console,
		logger:    logger.WithComponent("debug"),
	}
	d.registry.Add(ShutdownHook, RenderCallbackID, hooks.PriorityLast, d.renderOnShutdown)
	return d
}

// Middleware returns the debug middleware.
func (d *Debug) Middleware() Middleware {
	return d.wrap
}

func (d *Debug) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		cfg := d.config()

		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		f := flags.NewResolver(cfg.Debug, d.constants).Resolve(r.URL.Query())
		xhr := r.Header.Get("X-Requested-With") == "XMLHttpRequest"

		s := session.New(session.Options{
			ID:            id,
			Lookup:        d.registry,
			ExcludedHooks: cfg.Debug.ExcludedHooks,
		})
		st := &requestState{
			flags:    f,
			render:   f.Debug,
			renderer: d.rendererFor(cfg),
		}
		ctx := context.WithValue(s.Attach(r.Context()), stateKey{}, st)
		r = r.WithContext(ctx)

		if f.ResetCaps {
			d.resetCaps(ctx, cfg)
		}

		bw := newBufferedWriter(w)
		d.serve(bw, r, next)

		d.registry.Do(ctx, ShutdownHook)
		s.Close()

		if st.err != nil {
			d.logger.Error(ctx, st.err, "Failed to render debug report", "request_id", id)
		}

		body := bw.body.Bytes()
		inject := st.output != "" &&
			!(xhr && cfg.Debug.SkipAjax) &&
			isHTML(bw.Header()) &&
			bodyAllowed(r.Method, bw.status)
		if inject {
			body = injectFragment(body, st.output)
		}
		if err := bw.flush(body); err != nil {
			d.logger.Warn(ctx, err, "Failed to write response", "request_id", id)
		}

		if st.output != "" && d.console != nil {
			d.console.Broadcast(console.Message{
				Type:      console.MessageTypeReport,
				RequestID: id,
				Path:      r.URL.Path,
				Content:   st.output,
			})
		}

		counters := s.Counters()
		d.logger.Debug(ctx, "Debug session finished",
			"request_id", id,
			"flags", f.String(),
			"notices", len(s.Notices()),
			"hooks_total", counters.Total,
			"hooks_used", counters.Used,
			"hooks_gettext", counters.Gettext,
			"injected", inject,
			"duration", time.Since(start).String(),
		)
	})
}

// serve runs next, turning a panic into an Error notice and a 500 response
// when nothing has been written yet.
func (d *Debug) serve(bw *bufferedWriter, r *http.Request, next http.Handler) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		if p == http.ErrAbortHandler {
			panic(p)
		}

		rec := notice.Record{
			Severity: notice.Error,
			Message:  fmt.Sprintf("panic: %v", p),
			Context:  map[string]any{"stack": stack()},
		}
		rec.File, rec.Line = panicSite()
		notice.Dispatch(r.Context(), rec)
		d.logger.Error(r.Context(), fmt.Errorf("%v", p), "Handler panicked", "path", r.URL.Path)

		if !bw.written() {
			bw.Header().Set("Content-Type", "text/html; charset=utf-8")
			bw.WriteHeader(http.StatusInternalServerError)
			_, _ = bw.Write([]byte("<html><body><h1>Internal Server Error</h1></body></html>"))
		}
	}()

	next.ServeHTTP(bw, r)
}

// panicSite returns the location of the frame that panicked.
func panicSite() (string, int) {
	pcs := make([]uintptr, 32)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(1, pcs)])

	afterPanic := false
	for {
		frame, more := frames.Next()
		if afterPanic {
			return frame.File, frame.Line
		}
		if frame.Function == "runtime.gopanic" {
			afterPanic = true
		}
		if !more {
			return "", 0
		}
	}
}

func stack() string {
	buf := make([]byte, 8<<10)
	return string(buf[:runtime.Stack(buf, false)])
}

func (d *Debug) resetCaps(ctx context.Context, cfg *config.Config) {
	store := d.roleStore
	if store == nil {
		store = roles.NewFileStore(cfg.Roles.Path)
	}
	if err := roles.Reset(ctx, store); err != nil {
		notice.Trigger(ctx, notice.Warning, "capability reset failed: "+err.Error(), map[string]any{"roles_path": cfg.Roles.Path})
		d.logger.Warn(ctx, err, "Capability reset failed")
		return
	}
	d.logger.Info(ctx, "Capabilities reset to defaults", "roles_path", cfg.Roles.Path)
}

// renderOnShutdown is the last shutdown callback of every request.
func (d *Debug) renderOnShutdown(ctx context.Context, _ ...any) any {
	st, _ := ctx.Value(stateKey{}).(*requestState)
	s := session.FromContext(ctx)
	if st == nil || s == nil || !st.render {
		return nil
	}
	st.output, st.err = st.renderer.Finish(ctx, s, st.flags, d.constants)
	return nil
}

// rendererFor returns a renderer for cfg's file patterns, rebuilding it only
// when the config changes.
func (d *Debug) rendererFor(cfg *config.Config) *report.Renderer {
	if e := d.renderers.Load(); e != nil && e.cfg == cfg {
		return e.renderer
	}

	r, err := report.NewRenderer(cfg.Debug.FilePatterns)
	if err != nil {
		d.logger.Warn(context.Background(), err, "Ignoring invalid file patterns")
		r, _ = report.NewRenderer(nil)
	}
	d.renderers.Store(&rendererEntry{cfg: cfg, renderer: r})
	return r
}
