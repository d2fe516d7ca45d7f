package notice

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Severity is the host runtime's classification of a diagnostic. The values
// are the host's own codes so records can be compared with host output.
type Severity int

const (
	Error       Severity = 1
	Warning     Severity = 2
	Notice      Severity = 8
	UserWarning Severity = 512
	UserNotice  Severity = 1024
	Strict      Severity = 2048
)

var severityNames = map[Severity]string{
	Error:       "E_ERROR",
	Warning:     "E_WARNING",
	Notice:      "E_NOTICE",
	UserWarning: "E_USER_WARNING",
	UserNotice:  "E_USER_NOTICE",
	Strict:      "E_STRICT",
}

// String returns the host constant name for the severity.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("E_UNKNOWN(%d)", int(s))
}

// Category is the display bucket a severity is rendered under.
type Category string

const (
	CategoryError   Category = "error"
	CategoryWarning Category = "warning"
	CategoryNotice  Category = "notice"
	CategoryStrict  Category = "strict"
	CategoryDebug   Category = "debug"
)

var titleCaser = cases.Title(language.English)

// Label is the capitalised category name used for CSS classes and block
// prefixes ("Error", "Warning", ...).
func (c Category) Label() string {
	return titleCaser.String(string(c))
}

// Categorize maps a severity onto its display category. Codes without an
// explicit bucket fall into CategoryStrict.
func Categorize(s Severity) Category {
	switch s {
	case Error:
		return CategoryError
	case Warning, UserWarning:
		return CategoryWarning
	case Notice:
		return CategoryNotice
	case UserNotice:
		return CategoryDebug
	default:
		return CategoryStrict
	}
}
