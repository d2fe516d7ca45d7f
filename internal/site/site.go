// Package site is a small demo host. It registers callbacks on the usual
// content hooks, fires them while building pages and raises a few notices,
// giving the debug middleware something to report.
package site

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/conneroisu/kbdebug/internal/config"
	"github.com/conneroisu/kbdebug/internal/constants"
	"github.com/conneroisu/kbdebug/internal/flags"
	"github.com/conneroisu/kbdebug/internal/hooks"
	"github.com/conneroisu/kbdebug/internal/notice"
)

// Post is a demo article.
type Post struct {
	Slug    string
	Title   string
	Content string
}

// Options configures a Site.
type Options struct {
	Registry *hooks.Registry
	Config   func() *config.Config
	// Constants is the table the debug middleware resolves flags from.
	Constants *constants.Table
	// Slog is the base logger. The site wraps it so records logged during a
	// request also reach that request's report.
	Slog  *slog.Logger
	Posts []Post
}

// Site serves the demo pages.
type Site struct {
	registry  *hooks.Registry
	config    func() *config.Config
	constants *constants.Table
	log       *slog.Logger
	posts     map[string]Post
	order     []string
}

// New creates the site and registers its hook callbacks.
func New(opts Options) *Site {
	base := opts.Slog
	if base == nil {
		base = slog.New(slog.DiscardHandler)
	}
	posts := opts.Posts
	if posts == nil {
		posts = DefaultPosts()
	}

	s := &Site{
		registry:  opts.Registry,
		config:    opts.Config,
		constants: opts.Constants,
		log:       slog.New(notice.NewSlogHandler(base.Handler())),
		posts:     make(map[string]Post, len(posts)),
	}
	for _, p := range posts {
		s.posts[p.Slug] = p
		s.order = append(s.order, p.Slug)
	}
	s.registerHooks()
	return s
}

// DefaultPosts returns the built-in articles.
func DefaultPosts() []Post {
	return []Post{
		{Slug: "hello-world", Title: "  Hello world!  ", Content: "Welcome to the demo site.\n\nThis is your first post. Edit or delete it, then start writing!"},
		{Slug: "hooks", Title: "Working with hooks", Content: "Actions run callbacks.\n\nFilters pass a value through every callback, Wordpress style."},
	}
}

// Routes mounts the site handlers.
func (s *Site) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /post/{slug}", s.handlePost)
	mux.HandleFunc("GET /api/ping", s.handlePing)
}

func (s *Site) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.registry.Do(ctx, "init")

	items := make([]templ.Component, 0, len(s.order))
	for _, slug := range s.order {
		p := s.posts[slug]
		title := s.filterString(ctx, "the_title", p.Title, p.Slug)
		items = append(items, link("/post/"+p.Slug, title))
	}

	s.deprecated(ctx, "get_the_author_ID", "get_the_author_meta('ID')")

	s.render(w, r, http.StatusOK, s.translate(ctx, "Recent posts"), templ.Join(items...))
}

func (s *Site) handlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.registry.Do(ctx, "init")

	slug := r.PathValue("slug")
	p, ok := s.posts[slug]
	if !ok {
		notice.Trigger(ctx, notice.Notice, fmt.Sprintf("Undefined index: %s", slug), map[string]any{"slug": slug})
		s.render(w, r, http.StatusNotFound, s.translate(ctx, "Not found"), paragraph(s.translate(ctx, "Nothing matched your request.")))
		return
	}

	start := time.Now()
	title := s.filterString(ctx, "the_title", p.Title, p.Slug)
	content := s.filterString(ctx, "the_content", p.Content)
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		s.log.WarnContext(ctx, "slow content filters", "slug", slug, "elapsed", elapsed.String())
	}
	s.log.DebugContext(ctx, "post rendered", "slug", slug, "bytes", len(content))

	s.render(w, r, http.StatusOK, title, templ.Raw(content))
}

type pingResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
	Flags  string    `json:"flags"`
}

func (s *Site) handlePing(w http.ResponseWriter, r *http.Request) {
	s.registry.Do(r.Context(), "rest_api_init")

	f := flags.NewResolver(s.config().Debug, s.constants).Resolve(r.URL.Query())
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(pingResponse{Status: "ok", Time: time.Now().UTC(), Flags: f.String()}); err != nil {
		s.log.ErrorContext(r.Context(), "encoding ping response", "error", err)
	}
}

// render writes the page layout. wp_head callbacks write into <head>.
func (s *Site) render(w http.ResponseWriter, r *http.Request, status int, title string, body templ.Component) {
	ctx := r.Context()
	page := templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		if _, err := io.WriteString(out, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>"+templ.EscapeString(title)+"</title>\n"); err != nil {
			return err
		}
		s.registry.Do(ctx, "wp_head", out)
		if _, err := io.WriteString(out, "</head>\n<body>\n<h1>"+templ.EscapeString(title)+"</h1>\n"); err != nil {
			return err
		}
		if err := body.Render(ctx, out); err != nil {
			return err
		}
		_, err := io.WriteString(out, "\n</body>\n</html>\n")
		return err
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Render(ctx, w); err != nil {
		notice.Trigger(ctx, notice.Warning, "page render failed: "+err.Error(), nil)
	}
}

// translate passes text through the gettext filter.
func (s *Site) translate(ctx context.Context, text string) string {
	return s.filterString(ctx, "gettext", text, text, "default")
}

func (s *Site) filterString(ctx context.Context, hook, value string, args ...any) string {
	out, ok := s.registry.ApplyFilters(ctx, hook, value, args...).(string)
	if !ok {
		notice.Trigger(ctx, notice.Warning, fmt.Sprintf("filter %s returned a non-string value", hook), nil)
		return value
	}
	return out
}

// deprecated raises a UserNotice unless a deprecated_function_trigger_error
// callback says otherwise.
func (s *Site) deprecated(ctx context.Context, function, replacement string) {
	s.registry.Do(ctx, "deprecated_function_run", function, replacement)
	if trigger, _ := s.registry.ApplyFilters(ctx, "deprecated_function_trigger_error", true).(bool); !trigger {
		return
	}
	notice.Trigger(ctx, notice.UserNotice,
		fmt.Sprintf("%s is deprecated since version 2.8! Use %s instead.", function, replacement), nil)
}

func link(href, text string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<p><a href="`+templ.EscapeString(href)+`">`+templ.EscapeString(text)+"</a></p>\n")
		return err
	})
}

func paragraph(text string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<p>"+templ.EscapeString(text)+"</p>\n")
		return err
	})
}

// autop wraps blank-line separated blocks in paragraphs.
func autop(text string) string {
	var sb strings.Builder
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(templ.EscapeString(block))
		sb.WriteString("</p>\n")
	}
	return sb.String()
}
