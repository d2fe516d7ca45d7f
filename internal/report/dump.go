package report

import (
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"
)

// Dump pretty-prints v for display. Values YAML cannot encode (funcs,
// channels) fall back to Go syntax. Cyclic values never reach the YAML
// encoder: a cycle through a pointer prints in Go syntax, which shows nested
// pointers as addresses, and a cycle made only of maps and slices prints its
// type alone.
func Dump(v any) (out string) {
	switch c := findCycle(v); {
	case c.found && c.unbounded:
		return fmt.Sprintf("%T (cyclic, not shown)\n", v)
	case c.found:
		return fmt.Sprintf("%#v\n", v)
	}

	defer func() {
		if recover() != nil {
			out = fmt.Sprintf("%#v\n", v)
		}
	}()

	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v\n", v)
	}
	return string(data)
}

type cycle struct {
	found bool
	// unbounded is set when some cycle has no pointer on it; fmt would
	// recurse through it forever.
	unbounded bool
}

type visitKey struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

// cycleWalker tracks the references on the current path, so a value shared
// by two siblings is not mistaken for a cycle.
type cycleWalker struct {
	onPath map[visitKey]int
	kinds  []reflect.Kind
	result cycle
}

func findCycle(v any) cycle {
	w := &cycleWalker{onPath: make(map[visitKey]int)}
	w.walk(reflect.ValueOf(v))
	return w.result
}

func (w *cycleWalker) walk(v reflect.Value) {
	if !v.IsValid() || w.result.unbounded {
		return
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return
		}
		key := visitKey{ptr: v.Pointer(), typ: v.Type()}
		if v.Kind() == reflect.Slice {
			key.n = v.Len()
		}
		if at, ok := w.onPath[key]; ok {
			w.result.found = true
			if !containsPointer(w.kinds[at:]) {
				w.result.unbounded = true
			}
			return
		}

		w.onPath[key] = len(w.kinds)
		w.kinds = append(w.kinds, v.Kind())
		w.walkChildren(v)
		w.kinds = w.kinds[:len(w.kinds)-1]
		delete(w.onPath, key)

	case reflect.Interface:
		if !v.IsNil() {
			w.walk(v.Elem())
		}
	case reflect.Struct, reflect.Array:
		w.walkChildren(v)
	}
}

func (w *cycleWalker) walkChildren(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer:
		w.walk(v.Elem())
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			w.walk(iter.Key())
			w.walk(iter.Value())
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			w.walk(v.Index(i))
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			w.walk(v.Field(i))
		}
	}
}

func containsPointer(kinds []reflect.Kind) bool {
	for _, k := range kinds {
		if k == reflect.Pointer {
			return true
		}
	}
	return false
}
