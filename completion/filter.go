package completion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rlch/dvql/metadata"
)

// ErrFilterNotBool is returned when a filter expression does not yield a bool.
var ErrFilterNotBool = errors.New("filter expression must return a boolean")

// Filter is a compiled boolean expression over a suggestion's fields,
// e.g. `IsCustomEntity || LogicalName startsWith "msdyn_"`.
// A nil *Filter matches everything.
type Filter[T any] struct {
	source  string
	program *vm.Program
}

// EntityFilter selects entity suggestions.
type EntityFilter = Filter[metadata.EntitySuggestion]

// AttributeFilter selects attribute suggestions.
type AttributeFilter = Filter[metadata.AttributeSuggestion]

// CompileFilter compiles source against T. A blank source yields a nil filter.
func CompileFilter[T any](source string) (*Filter[T], error) {
	if strings.TrimSpace(source) == "" {
		return nil, nil //nolint:nilnil // nil filter matches everything
	}

	var env T

	program, err := expr.Compile(source, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", source, err)
	}

	return &Filter[T]{source: source, program: program}, nil
}

// String returns the expression source.
func (f *Filter[T]) String() string {
	if f == nil {
		return ""
	}

	return f.source
}

// Match evaluates the filter against v.
func (f *Filter[T]) Match(v T) (bool, error) {
	if f == nil {
		return true, nil
	}

	output, err := expr.Run(f.program, v)
	if err != nil {
		return false, fmt.Errorf("evaluate filter %q: %w", f.source, err)
	}

	ok, isBool := output.(bool)
	if !isBool {
		return false, fmt.Errorf("%w: %q returned %T", ErrFilterNotBool, f.source, output)
	}

	return ok, nil
}

// Apply returns the items matching f, preserving order. The input slice is
// not modified. Evaluation stops at the first error.
func (f *Filter[T]) Apply(items []T) ([]T, error) {
	if f == nil {
		return items, nil
	}

	out := make([]T, 0, len(items))

	for _, item := range items {
		ok, err := f.Match(item)
		if err != nil {
			return nil, err
		}

		if ok {
			out = append(out, item)
		}
	}

	return out, nil
}
