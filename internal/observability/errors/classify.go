// Package errors normalizes Go errors into low-cardinality class names for
// metric tags and log fields.
package errors

import (
	goerrors "errors"
	"reflect"
	"strings"

	apperrors "github.com/automaton-hq/automaton/internal/errors"
)

// Classify reduces err to a stable class name. Application errors classify by
// their code; anything else falls back to the innermost concrete type name,
// lowercased with the package qualifier folded in.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	if code := apperrors.GetCode(err); code != "" {
		return "app_" + strings.ToLower(string(code))
	}

	return typeClass(innermost(err))
}

func innermost(err error) error {
	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func typeClass(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.NewReplacer("*", "", ".", "_").Replace(t.String())
	if name = strings.ToLower(name); name == "" {
		return "unknown"
	}
	return name
}
