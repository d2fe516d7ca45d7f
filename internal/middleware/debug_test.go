package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/conneroisu/kbdebug/internal/config"
	"github.com/conneroisu/kbdebug/internal/console"
	"github.com/conneroisu/kbdebug/internal/constants"
	"github.com/conneroisu/kbdebug/internal/hooks"
	"github.com/conneroisu/kbdebug/internal/notice"
	"github.com/conneroisu/kbdebug/internal/roles"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureConsole struct {
	mu       sync.Mutex
	messages []console.Message
}

func (c *captureConsole) Broadcast(msg console.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

type failingStore struct{}

func (failingStore) Delete(context.Context) error                { return errors.New("read-only store") }
func (failingStore) Populate(context.Context, []roles.Role) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Debug: config.DebugConfig{
			QueryFlags:    true,
			SkipAjax:      true,
			ExcludedHooks: config.DefaultExcludedHooks,
		},
		Roles: config.RolesConfig{Path: "roles.yml"},
	}
}

type fixture struct {
	registry *hooks.Registry
	cfg      *config.Config
	console  *captureConsole
	handler  http.Handler
}

func newFixture(t *testing.T, page http.HandlerFunc, mutate func(*DebugOptions)) *fixture {
	t.Helper()
	f := &fixture{
		registry: hooks.NewRegistry(),
		cfg:      testConfig(),
		console:  &captureConsole{},
	}
	opts := DebugOptions{
		Registry:  f.registry,
		Config:    func() *config.Config { return f.cfg },
		Constants: constants.NewTable(),
		Console:   f.console,
	}
	if mutate != nil {
		mutate(&opts)
	}
	d := NewDebug(opts)
	f.handler = NewChain(d.Middleware()).Apply(page)
	return f
}

func (f *fixture) get(t *testing.T, target string, headers map[string]string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	resp := rec.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func htmlPage(registry func() *hooks.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notice.Trigger(r.Context(), notice.Notice, "undefined variable $post", nil)
		registry().Do(r.Context(), "init")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, "<html><body><p>content</p></body></html>")
	}
}

func TestDebug_InjectsBeforeBodyClose(t *testing.T) {
	var f *fixture
	f = newFixture(t, htmlPage(func() *hooks.Registry { return f.registry }), nil)
	f.registry.Add("init", "boot", hooks.PriorityDefault, func(context.Context, ...any) any { return nil })

	resp, body := f.get(t, "/?KB_DEBUG=1&KB_DISPLAY_HOOKS=1", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
	assert.True(t, strings.HasSuffix(body, "</body></html>"))
	assert.Less(t, strings.Index(body, "<p>content</p>"), strings.Index(body, "kb_disp_error"))
	assert.Contains(t, body, "Notice: undefined variable $post")
	assert.Contains(t, body, `class="kb_mine kb_disp_error kb_Hook"`)
	// init and shutdown both had callbacks.
	assert.Contains(t, body, "Hooks: Total 2, Used 2, Gettext 0")
	assert.Equal(t, resp.Header.Get("Content-Length"), strconv.Itoa(len(body)))

	require.Len(t, f.console.messages, 1)
	assert.Equal(t, resp.Header.Get(RequestIDHeader), f.console.messages[0].RequestID)
	assert.Equal(t, "/", f.console.messages[0].Path)
}

func TestDebug_NoReportWithoutDebugFlag(t *testing.T) {
	var f *fixture
	f = newFixture(t, htmlPage(func() *hooks.Registry { return f.registry }), nil)

	_, body := f.get(t, "/", nil)

	assert.Equal(t, "<html><body><p>content</p></body></html>", body)
	assert.Empty(t, f.console.messages)
}

func TestDebug_NoticesDoNotReachDefaultHandlerDuringRequest(t *testing.T) {
	var seen []notice.Record
	prev := notice.SetDefault(notice.HandlerFunc(func(r notice.Record) bool {
		seen = append(seen, r)
		return true
	}))
	t.Cleanup(func() { notice.SetDefault(prev) })

	var f *fixture
	f = newFixture(t, htmlPage(func() *hooks.Registry { return f.registry }), nil)
	f.get(t, "/", nil)

	assert.Empty(t, seen)
}

func TestDebug_XHRIsNotInjected(t *testing.T) {
	var f *fixture
	f = newFixture(t, htmlPage(func() *hooks.Registry { return f.registry }), nil)

	_, body := f.get(t, "/?KB_DEBUG=1", map[string]string{"X-Requested-With": "XMLHttpRequest"})

	assert.NotContains(t, body, "kb_disp_error")
	require.Len(t, f.console.messages, 1, "XHR reports still reach the console")
}

func TestDebug_NonHTMLIsNeverModified(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		notice.Trigger(r.Context(), notice.Warning, "slow query", nil)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}, nil)

	_, body := f.get(t, "/api/ping?KB_DEBUG=1", nil)
	assert.Equal(t, `{"ok":true}`, body)
}

func TestDebug_AppendsWhenNoBodyTag(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<p>fragment</p>")
	}, nil)

	_, body := f.get(t, "/?KB_DEBUG=1", nil)

	assert.True(t, strings.HasPrefix(body, "<p>fragment</p>"))
	assert.Contains(t, body, "Hooks: Total 1, Used 1, Gettext 0")
}

func TestDebug_ForceHide(t *testing.T) {
	var f *fixture
	f = newFixture(t, htmlPage(func() *hooks.Registry { return f.registry }), nil)

	_, body := f.get(t, "/?KB_DEBUG=1&KB_FORCE_HIDE=1", nil)

	assert.Equal(t, "<html><body><p>content</p></body></html>", body)
}

func TestDebug_ConstantsEnableFlags(t *testing.T) {
	table := constants.NewTable()
	require.NoError(t, table.Define("KB_DEBUG", true))
	require.NoError(t, table.Define("KB_DISPLAY_CONSTANTS", true))

	var f *fixture
	f = newFixture(t, htmlPage(func() *hooks.Registry { return f.registry }), func(o *DebugOptions) {
		o.Constants = table
	})
	f.cfg.Debug.QueryFlags = false

	_, body := f.get(t, "/", nil)

	assert.Contains(t, body, "kb_Debug")
	assert.Contains(t, body, "KB_DISPLAY_CONSTANTS")
}

func TestDebug_PanicBecomesErrorNotice(t *testing.T) {
	f := newFixture(t, func(http.ResponseWriter, *http.Request) {
		panic("template missing")
	}, nil)

	resp, body := f.get(t, "/?KB_DEBUG=1", nil)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, "Error: panic: template missing")
	assert.Contains(t, body, "debug_test.go")
}

func TestDebug_ResetCapsFailureIsWarning(t *testing.T) {
	var f *fixture
	f = newFixture(t, htmlPage(func() *hooks.Registry { return f.registry }), func(o *DebugOptions) {
		o.RoleStore = failingStore{}
	})

	resp, body := f.get(t, "/?KB_DEBUG=1&KB_RESET_CAPS=1", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Warning: capability reset failed")
}

func TestDebug_ResetCapsWritesRoleFile(t *testing.T) {
	var f *fixture
	f = newFixture(t, htmlPage(func() *hooks.Registry { return f.registry }), nil)
	f.cfg.Roles.Path = filepath.Join(t.TempDir(), "roles.yml")

	f.get(t, "/?KB_RESET_CAPS=1", nil)

	stored, err := roles.NewFileStore(f.cfg.Roles.Path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, roles.Defaults(), stored)
}

func TestDebug_ConfigReloadAppliesToNextRequest(t *testing.T) {
	var f *fixture
	f = newFixture(t, htmlPage(func() *hooks.Registry { return f.registry }), nil)

	_, body := f.get(t, "/", nil)
	assert.NotContains(t, body, "kb_disp_error")

	next := testConfig()
	next.Debug.Enabled = true
	f.cfg = next

	_, body = f.get(t, "/", nil)
	assert.Contains(t, body, "kb_disp_error")
}

func TestDebug_RendererRunsLastOnShutdown(t *testing.T) {
	var f *fixture
	f = newFixture(t, htmlPage(func() *hooks.Registry { return f.registry }), nil)
	f.registry.Add(ShutdownHook, "late_flush", 1000, func(ctx context.Context, _ ...any) any {
		notice.Trigger(ctx, notice.Notice, "flushed during shutdown", nil)
		return nil
	})

	_, body := f.get(t, "/?KB_DEBUG=1", nil)
	assert.Contains(t, body, "flushed during shutdown")
}

func TestDebug_EmptyExclusionLogsGettext(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetConfigType("yaml")
	require.NoError(t, viper.ReadConfig(strings.NewReader("debug:\n  excluded_hooks: []\n")))
	cfg, err := config.Load()
	require.NoError(t, err)

	var f *fixture
	f = newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		f.registry.ApplyFilters(r.Context(), "gettext", "Recent posts", "Recent posts", "default")
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html><body></body></html>")
	}, nil)
	f.cfg = cfg
	f.registry.Add("gettext", "translate", hooks.PriorityDefault, func(_ context.Context, args ...any) any { return args[0] })

	_, body := f.get(t, "/?KB_DEBUG=1&KB_DISPLAY_HOOKS=1", nil)

	assert.Contains(t, body, `<span class="kb_hook_name">gettext</span>`)
	assert.Contains(t, body, "Gettext 0")
}

func TestDebug_HeadKeepsContentLength(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Length", "42")
		w.WriteHeader(http.StatusOK)
	}, nil)

	req := httptest.NewRequest(http.MethodHead, "/?KB_DEBUG=1", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Content-Length"))
	assert.Zero(t, rec.Body.Len())
}
