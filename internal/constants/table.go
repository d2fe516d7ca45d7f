// Package constants holds the user-defined constant table the host exposes
// for introspection. Feature flags may be defined here, and the report can
// dump the whole table.
package constants

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Constant is one name/value pair.
type Constant struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
}

// Table is a set of constants. Constants cannot be redefined.
type Table struct {
	values map[string]any
	mutex  sync.RWMutex
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{values: make(map[string]any)}
}

// FromMap builds a table from a config map. Names are upper-cased because
// config loaders fold key case.
func FromMap(m map[string]any) *Table {
	t := NewTable()
	for k, v := range m {
		t.values[strings.ToUpper(k)] = v
	}
	return t
}

// Define adds a constant. Redefining an existing name is an error and keeps
// the original value.
func (t *Table) Define(name string, value any) error {
	if name == "" {
		return fmt.Errorf("constant name cannot be empty")
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, exists := t.values[name]; exists {
		return fmt.Errorf("constant %s already defined", name)
	}
	t.values[name] = value
	return nil
}

// Lookup returns the value of name.
func (t *Table) Lookup(name string) (any, bool) {
	if t == nil {
		return nil, false
	}
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	v, ok := t.values[name]
	return v, ok
}

// Defined reports whether name exists.
func (t *Table) Defined(name string) bool {
	_, ok := t.Lookup(name)
	return ok
}

// Len returns the number of constants.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return len(t.values)
}

// Sorted returns every constant ordered by name.
func (t *Table) Sorted() []Constant {
	if t == nil {
		return nil
	}
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	out := make([]Constant, 0, len(t.values))
	for k, v := range t.values {
		out = append(out, Constant{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
