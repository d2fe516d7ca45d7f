// Package session holds the request-scoped debug collector. A Session is
// created when a request starts, receives every notice and hook invocation
// raised under the request context, and is rendered once when the request
// ends. After Close it is inert.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/conneroisu/kbdebug/internal/config"
	"github.com/conneroisu/kbdebug/internal/hooks"
	"github.com/conneroisu/kbdebug/internal/notice"
)

// HookEvent records one hook invocation that had callbacks registered.
type HookEvent struct {
	Name      string
	Args      []any
	Callbacks []hooks.CallbackRef
	Time      time.Time
}

// Counters tracks hook traffic.
type Counters struct {
	// Total counts every logged-or-not invocation outside the exclusion set.
	Total int
	// Used counts invocations that had at least one callback.
	Used int
	// Gettext counts invocations of excluded (translation) hooks.
	Gettext int
}

// Snapshot is an immutable copy of a session's buffers.
type Snapshot struct {
	ID        string
	Notices   []notice.Record
	Hooks     []HookEvent
	Counters  Counters
	Displaced bool
}

// Options configures a Session.
type Options struct {
	ID     string
	Lookup hooks.Lookup
	// ExcludedHooks are counted but never logged. nil means the default
	// translation hooks; an empty slice disables exclusion.
	ExcludedHooks []string
}

// Session collects notices and hook events for one request.
type Session struct {
	id       string
	lookup   hooks.Lookup
	excluded map[string]struct{}

	notices   []notice.Record
	events    []HookEvent
	counters  Counters
	displaced bool
	closed    bool
	mutex     sync.Mutex
}

// New creates an active session.
func New(opts Options) *Session {
	names := opts.ExcludedHooks
	if names == nil {
		names = config.DefaultExcludedHooks
	}
	excluded := make(map[string]struct{}, len(names))
	for _, name := range names {
		excluded[name] = struct{}{}
	}

	return &Session{
		id:       opts.ID,
		lookup:   opts.Lookup,
		excluded: excluded,
		notices:  make([]notice.Record, 0),
		events:   make([]HookEvent, 0),
	}
}

type sessionKey struct{}

// Attach installs the session as the notice handler and hook observer for
// the returned context and stores it for FromContext. Displacing an existing
// notice handler is remembered and surfaced in the report.
func (s *Session) Attach(ctx context.Context) context.Context {
	ctx, prev := notice.Install(ctx, s)
	if prev != nil {
		s.mutex.Lock()
		s.displaced = true
		s.mutex.Unlock()
	}
	ctx = hooks.WithObserver(ctx, s)
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session attached to ctx, or nil.
func FromContext(ctx context.Context) *Session {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// ID returns the request identifier the session was created with.
func (s *Session) ID() string {
	return s.id
}

// HandleNotice appends the record and suppresses the default handler. A
// closed session declines so the default handler still sees the record.
func (s *Session) HandleNotice(r notice.Record) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return false
	}
	s.notices = append(s.notices, r)
	return true
}

// OnHook implements hooks.Observer.
func (s *Session) OnHook(_ context.Context, name string, args []any) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return
	}

	if _, skip := s.excluded[name]; skip {
		s.counters.Gettext++
		return
	}

	s.counters.Total++

	var callbacks []hooks.CallbackRef
	if s.lookup != nil {
		callbacks = s.lookup.Callbacks(name)
	}
	if len(callbacks) == 0 {
		return
	}

	s.counters.Used++
	s.events = append(s.events, HookEvent{
		Name:      name,
		Args:      append([]any(nil), args...),
		Callbacks: callbacks,
		Time:      time.Now(),
	})
}

// Notices returns a copy of the notice buffer in arrival order.
func (s *Session) Notices() []notice.Record {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]notice.Record, len(s.notices))
	copy(out, s.notices)
	return out
}

// HookEvents returns a copy of the hook buffer in invocation order.
func (s *Session) HookEvents() []HookEvent {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]HookEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Counters returns the current counters.
func (s *Session) Counters() Counters {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.counters
}

// Displaced reports whether attaching the session replaced another handler.
func (s *Session) Displaced() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.displaced
}

// Snapshot copies every buffer at once.
func (s *Session) Snapshot() Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	snap := Snapshot{
		ID:        s.id,
		Notices:   make([]notice.Record, len(s.notices)),
		Hooks:     make([]HookEvent, len(s.events)),
		Counters:  s.counters,
		Displaced: s.displaced,
	}
	copy(snap.Notices, s.notices)
	copy(snap.Hooks, s.events)
	return snap
}

// Close makes the session inert. Later notices fall through to the default
// handler and later hooks are ignored.
func (s *Session) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.closed = true
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closed
}
