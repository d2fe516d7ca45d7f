package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/conneroisu/kbdebug/internal/notice"
	"github.com/conneroisu/kbdebug/internal/session"
)

const stylesheet = `<style type="text/css">
.kb_disp_error { background-color: #fff; border: solid 1px #aaa; padding: 5px; margin: 5px; }
.kb_disp_error pre { margin: 0; white-space: pre-wrap; }
.kb_Notice { color: #00f; }
.kb_Error { color: #f00; }
.kb_Strict { color: #666; display: none; }
.kb_Warning { background-color: #111; color: #faa; }
.kb_Debug { background-color: #111; color: #fff; }
.kb_Hook { background-color: #fff; color: #444; cursor: pointer; }
.kb_hook_vars, .kb_notice_vars { display: none; }
.kb_summary { font-family: monospace; margin: 5px; }
</style>`

const toggleScript = `<script type="text/javascript">
document.addEventListener("click", function (e) {
  var block = e.target.closest(".kb_Hook, .kb_disp_error");
  if (!block) { return; }
  block.querySelectorAll(".kb_hook_vars, .kb_notice_vars").forEach(function (el) {
    el.style.display = el.style.display === "block" ? "none" : "block";
  });
});
</script>`

func head() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return write(w, stylesheet, "\n", toggleScript, "\n")
	})
}

func displacedBanner() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return write(w,
			`<div class="kb_mine kb_disp_error kb_Warning kb_banner">`,
			"Warning: another error handler was active and has been replaced for this request",
			"</div>\n")
	})
}

func noticeBlock(rec notice.Record, hidden bool) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		label := rec.Category().Label()

		open := `<div`
		if hidden {
			open += ` style="display: none;"`
		}
		open += fmt.Sprintf(` class="kb_mine kb_disp_error kb_%s">`, label)

		if err := write(w,
			open,
			templ.EscapeString(label), ": ", messageHTML(rec.Message),
			"<br/>",
			templ.EscapeString(fmt.Sprintf("Line %d, %s", rec.Line, rec.File)),
		); err != nil {
			return err
		}
		if len(rec.Context) > 0 {
			if err := write(w, `<div class="kb_notice_vars"><pre>`, templ.EscapeString(Dump(rec.Context)), "</pre></div>"); err != nil {
				return err
			}
		}
		return write(w, "</div>\n")
	})
}

func hookBlock(ev session.HookEvent) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return write(w,
			`<div class="kb_mine kb_disp_error kb_Hook">`,
			`<span class="kb_hook_name">`, templ.EscapeString(ev.Name), "</span>",
			`<div class="kb_hook_vars"><pre>`, templ.EscapeString(Dump(ev.Args)), "</pre></div>",
			`<div class="kb_fn_called"><pre>`, templ.EscapeString(Dump(ev.Callbacks)), "</pre></div>",
			"</div>\n")
	})
}

func summary(c session.Counters) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return write(w,
			`<div class="kb_mine kb_summary">`,
			templ.EscapeString(fmt.Sprintf("Hooks: Total %d, Used %d, Gettext %d", c.Total, c.Used, c.Gettext)),
			"</div>\n")
	})
}

// messageHTML keeps multi-line messages (constant dumps) readable.
func messageHTML(msg string) string {
	if strings.Contains(msg, "\n") {
		return "<pre>" + templ.EscapeString(msg) + "</pre>"
	}
	return templ.EscapeString(msg)
}

func write(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}
