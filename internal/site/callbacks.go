package site

import (
	"context"
	"io"
	"strings"

	"github.com/conneroisu/kbdebug/internal/hooks"
)

var translations = map[string]string{
	"Recent posts":                  "Recent posts",
	"Not found":                     "Not found",
	"Nothing matched your request.": "Nothing matched your request.",
}

func (s *Site) registerHooks() {
	r := s.registry

	r.Add("init", "load_textdomain", 1, func(context.Context, ...any) any { return nil })
	r.Add("init", "register_post_types", hooks.PriorityDefault, func(context.Context, ...any) any { return nil })

	r.Add("wp_head", "print_generator", hooks.PriorityDefault, func(_ context.Context, args ...any) any {
		if w, ok := firstArg[io.Writer](args); ok {
			_, _ = io.WriteString(w, "<meta name=\"generator\" content=\"kbdebug demo\">\n")
		}
		return nil
	})

	r.Add("the_title", "trim_title", hooks.PriorityDefault, func(_ context.Context, args ...any) any {
		title, _ := firstArg[string](args)
		return strings.TrimSpace(title)
	})

	r.Add("the_content", "capital_p_dangit", 11, func(_ context.Context, args ...any) any {
		content, _ := firstArg[string](args)
		return strings.ReplaceAll(content, "Wordpress", "WordPress")
	})
	r.Add("the_content", "wpautop", hooks.PriorityDefault, func(_ context.Context, args ...any) any {
		content, _ := firstArg[string](args)
		return autop(content)
	})

	r.Add("gettext", "translate", hooks.PriorityDefault, func(_ context.Context, args ...any) any {
		text, _ := firstArg[string](args)
		if t, ok := translations[text]; ok {
			return t
		}
		return text
	})

	r.Add("deprecated_function_trigger_error", "kbdebug_disable_deprecated", hooks.PriorityDefault, func(_ context.Context, args ...any) any {
		if s.config().Debug.SuppressDeprecated {
			return false
		}
		trigger, _ := firstArg[bool](args)
		return trigger
	})
}

func firstArg[T any](args []any) (T, bool) {
	var zero T
	if len(args) == 0 {
		return zero, false
	}
	v, ok := args[0].(T)
	return v, ok
}
