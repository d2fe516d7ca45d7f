// Package notice models host diagnostics (errors, warnings, notices) and the
// replaceable handler they are delivered to.
//
// A request installs its own Handler into the context; Trigger and the slog
// bridge route every diagnostic raised under that context to it. The handler
// decides whether the default handler (a log line) also runs.
package notice

import "time"

// Record is one captured diagnostic. It is immutable once created.
type Record struct {
	Severity Severity
	Message  string
	File     string
	Line     int
	Context  map[string]any
	Time     time.Time
}

// Category returns the display category of the record.
func (r Record) Category() Category {
	return Categorize(r.Severity)
}

// clone copies the context map so later mutation by the caller cannot leak
// into a stored record.
func (r Record) clone() Record {
	if r.Context == nil {
		return r
	}
	vars := make(map[string]any, len(r.Context))
	for k, v := range r.Context {
		vars[k] = v
	}
	r.Context = vars
	return r
}
