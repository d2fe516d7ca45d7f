// Package hooks is a minimal in-process hook bus: named extension points with
// prioritised callbacks, plus a per-request observer that sees every hook
// fired, whether or not anything is registered for it.
package hooks

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Priorities used by the bus. Lower runs first.
const (
	PriorityFirst   = math.MinInt
	PriorityDefault = 10
	PriorityLast    = math.MaxInt
)

// Func is a hook callback. Actions ignore the return value; filters pass it
// on as the first argument of the next callback.
type Func func(ctx context.Context, args ...any) any

// CallbackRef identifies a registered callback.
type CallbackRef struct {
	Priority int    `yaml:"priority"`
	ID       string `yaml:"id"`
}

type callback struct {
	CallbackRef
	seq int
	fn  Func
}

// Lookup returns the callbacks registered for a hook name, sorted by
// priority key.
type Lookup interface {
	Callbacks(name string) []CallbackRef
}

// Observer is notified of every hook invocation before its callbacks run.
type Observer interface {
	OnHook(ctx context.Context, name string, args []any)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, name string, args []any)

// OnHook calls f.
func (f ObserverFunc) OnHook(ctx context.Context, name string, args []any) {
	f(ctx, name, args)
}

type observerKey struct{}

// WithObserver returns a context whose hook invocations are reported to o.
func WithObserver(ctx context.Context, o Observer) context.Context {
	return context.WithValue(ctx, observerKey{}, o)
}

// ObserverFrom returns the observer carried by ctx, or nil.
func ObserverFrom(ctx context.Context) Observer {
	if ctx == nil {
		return nil
	}
	o, _ := ctx.Value(observerKey{}).(Observer)
	return o
}

// Registry holds hook callbacks. Registration normally happens at startup;
// dispatch happens per request.
type Registry struct {
	hooks map[string][]callback
	seq   int
	mutex sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		hooks: make(map[string][]callback),
	}
}

// Add registers fn under name. Registering the same id twice for a name
// replaces the earlier callback.
func (r *Registry) Add(name, id string, priority int, fn Func) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	list := r.hooks[name]
	for i, cb := range list {
		if cb.ID == id {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}

	r.seq++
	list = append(list, callback{
		CallbackRef: CallbackRef{Priority: priority, ID: id},
		seq:         r.seq,
		fn:          fn,
	})
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].seq < list[j].seq
	})
	r.hooks[name] = list
}

// Remove unregisters the callback id from name. It reports whether anything
// was removed.
func (r *Registry) Remove(name, id string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	list := r.hooks[name]
	for i, cb := range list {
		if cb.ID == id {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(r.hooks, name)
			} else {
				r.hooks[name] = list
			}
			return true
		}
	}
	return false
}

// Has reports whether any callback is registered for name.
func (r *Registry) Has(name string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.hooks[name]) > 0
}

// Callbacks returns the registered callbacks for name ordered by priority,
// then registration order. The result is a copy.
func (r *Registry) Callbacks(name string) []CallbackRef {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	list := r.hooks[name]
	if len(list) == 0 {
		return nil
	}
	refs := make([]CallbackRef, len(list))
	for i, cb := range list {
		refs[i] = cb.CallbackRef
	}
	return refs
}

// Names returns every hook name with at least one callback, sorted.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Do fires the action name: the context observer first, then every callback
// in priority order.
func (r *Registry) Do(ctx context.Context, name string, args ...any) {
	if o := ObserverFrom(ctx); o != nil {
		o.OnHook(ctx, name, args)
	}
	for _, fn := range r.snapshot(name) {
		fn(ctx, args...)
	}
}

// ApplyFilters runs value through every callback registered for name and
// returns the result. Extra args are passed after the value.
func (r *Registry) ApplyFilters(ctx context.Context, name string, value any, args ...any) any {
	all := append([]any{value}, args...)
	if o := ObserverFrom(ctx); o != nil {
		o.OnHook(ctx, name, append([]any(nil), all...))
	}
	for _, fn := range r.snapshot(name) {
		all[0] = fn(ctx, all...)
	}
	return all[0]
}

// snapshot copies the callbacks out so they run without the lock held and
// may register further callbacks.
func (r *Registry) snapshot(name string) []Func {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	list := r.hooks[name]
	fns := make([]Func, len(list))
	for i, cb := range list {
		fns[i] = cb.fn
	}
	return fns
}
