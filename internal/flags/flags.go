// Package flags resolves the KB_* feature flags for a request. A flag can be
// switched on by a defined constant, by configuration, or by a query-string
// parameter; the sources are interchangeable and any truthy one wins.
package flags

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/conneroisu/kbdebug/internal/config"
	"github.com/conneroisu/kbdebug/internal/constants"
)

// Name is a feature flag name as written in constants and query strings.
type Name string

const (
	Debug            Name = "KB_DEBUG"
	DisplayHooks     Name = "KB_DISPLAY_HOOKS"
	DisplayConstants Name = "KB_DISPLAY_CONSTANTS"
	ForceHide        Name = "KB_FORCE_HIDE"
	ResetCaps        Name = "KB_RESET_CAPS"
)

// All lists every known flag.
var All = []Name{Debug, DisplayHooks, DisplayConstants, ForceHide, ResetCaps}

// Flags is the resolved flag state for one request.
type Flags struct {
	Debug            bool
	DisplayHooks     bool
	DisplayConstants bool
	ForceHide        bool
	ResetCaps        bool
}

// Has returns the state of a flag by name.
func (f Flags) Has(name Name) bool {
	switch name {
	case Debug:
		return f.Debug
	case DisplayHooks:
		return f.DisplayHooks
	case DisplayConstants:
		return f.DisplayConstants
	case ForceHide:
		return f.ForceHide
	case ResetCaps:
		return f.ResetCaps
	default:
		return false
	}
}

func (f *Flags) set(name Name) {
	switch name {
	case Debug:
		f.Debug = true
	case DisplayHooks:
		f.DisplayHooks = true
	case DisplayConstants:
		f.DisplayConstants = true
	case ForceHide:
		f.ForceHide = true
	case ResetCaps:
		f.ResetCaps = true
	}
}

// String lists the flags that are on.
func (f Flags) String() string {
	var on []string
	for _, name := range All {
		if f.Has(name) {
			on = append(on, string(name))
		}
	}
	if len(on) == 0 {
		return "none"
	}
	return strings.Join(on, ",")
}

// Resolver combines the configured flag sources.
type Resolver struct {
	config     config.DebugConfig
	constants  *constants.Table
	queryFlags bool
}

// NewResolver creates a resolver. table may be nil.
func NewResolver(cfg config.DebugConfig, table *constants.Table) *Resolver {
	return &Resolver{config: cfg, constants: table, queryFlags: cfg.QueryFlags}
}

// Static resolves flags from configuration and constants only.
func (r *Resolver) Static() Flags {
	f := Flags{
		Debug:            r.config.Enabled,
		DisplayHooks:     r.config.DisplayHooks,
		DisplayConstants: r.config.DisplayConstants,
		ForceHide:        r.config.ForceHide,
		ResetCaps:        r.config.ResetCaps,
	}
	for _, name := range All {
		if v, ok := r.constants.Lookup(string(name)); ok && Truthy(v) {
			f.set(name)
		}
	}
	return f
}

// Resolve adds query-string parameters to the static flags when query flags
// are allowed. Parameters match the flag name in either case.
func (r *Resolver) Resolve(query url.Values) Flags {
	f := r.Static()
	if !r.queryFlags {
		return f
	}
	for _, name := range All {
		for _, key := range []string{string(name), strings.ToLower(string(name))} {
			values, ok := query[key]
			if !ok {
				continue
			}
			if len(values) == 0 || values[0] == "" || Truthy(values[0]) {
				f.set(name)
			}
		}
	}
	return f
}

// Truthy interprets a constant or parameter value the way the host does:
// false, zero, "", "0", "false", "off" and "no" are false.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(val))
		switch s {
		case "", "0", "off", "no":
			return false
		case "on", "yes":
			return true
		}
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
		return true
	default:
		return fmt.Sprint(val) != ""
	}
}
