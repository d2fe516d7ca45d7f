// Package report renders a session's buffers as the HTML fragment appended to
// a page at the end of a request.
//
// The fragment is built from templ components: a stylesheet and toggle
// script, an optional banner when another error handler was displaced, one
// block per notice, one block per hook event (only when hooks are displayed)
// and a summary line with the hook counters.
package report

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/a-h/templ"
	"github.com/conneroisu/kbdebug/internal/constants"
	kberrors "github.com/conneroisu/kbdebug/internal/errors"
	"github.com/conneroisu/kbdebug/internal/flags"
	"github.com/conneroisu/kbdebug/internal/notice"
	"github.com/conneroisu/kbdebug/internal/session"
)

// Renderer turns session snapshots into report fragments.
type Renderer struct {
	patterns []*regexp.Regexp
}

// NewRenderer compiles the file patterns used to hide notices raised outside
// the files of interest. With no patterns every notice is visible.
func NewRenderer(filePatterns []string) (*Renderer, error) {
	r := &Renderer{}
	for _, p := range filePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, kberrors.NewValidationError("ERR_FILE_PATTERN",
				fmt.Sprintf("invalid file pattern %q", p)).WithContext("cause", err.Error())
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// Visible reports whether a notice raised in file is shown by default.
func (r *Renderer) Visible(file string) bool {
	if len(r.patterns) == 0 {
		return true
	}
	for _, re := range r.patterns {
		if re.MatchString(file) {
			return true
		}
	}
	return false
}

// Component returns the report for snap under the given flags. ForceHide
// yields an empty component.
func (r *Renderer) Component(snap session.Snapshot, f flags.Flags) templ.Component {
	if f.ForceHide {
		return templ.NopComponent
	}

	parts := []templ.Component{head()}
	if snap.Displaced {
		parts = append(parts, displacedBanner())
	}
	for _, rec := range snap.Notices {
		parts = append(parts, noticeBlock(rec, !r.Visible(rec.File)))
	}
	if f.DisplayHooks {
		for _, ev := range snap.Hooks {
			parts = append(parts, hookBlock(ev))
		}
	}
	parts = append(parts, summary(snap.Counters))

	return templ.Join(parts...)
}

// Finish runs the end-of-request steps for s: the constants dump when
// requested, then rendering. The constants dump is raised as a notice under
// ctx, so ctx must carry the session for it to appear in the report.
func (r *Renderer) Finish(ctx context.Context, s *session.Session, f flags.Flags, table *constants.Table) (string, error) {
	if f.DisplayConstants {
		notice.Trigger(ctx, notice.UserNotice, ConstantsDump(table), nil)
	}
	if f.ForceHide {
		return "", nil
	}

	var buf bytes.Buffer
	if err := r.Component(s.Snapshot(), f).Render(ctx, &buf); err != nil {
		return "", kberrors.NewInternalError("ERR_RENDER", "rendering report", err).
			WithContext("request_id", s.ID())
	}
	return buf.String(), nil
}

// ConstantsDump prints every defined constant sorted by name.
func ConstantsDump(table *constants.Table) string {
	if table == nil {
		return Dump(map[string]any{})
	}
	values := make(map[string]any, table.Len())
	for _, c := range table.Sorted() {
		values[c.Name] = c.Value
	}
	return Dump(values)
}
