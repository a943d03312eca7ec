// Package predicate compiles expr-lang expressions into validators. The
// candidate value is bound to the variable "value", so "value % 2 == 1"
// accepts only odd numbers.
package predicate

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"atomref/internal/ref"
)

const valueName = "value"

// Compile type-checks source against T and returns a validator that runs
// it for each candidate. An empty source yields a nil validator.
func Compile[T any](source string) (ref.Validator[T], error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return nil, nil
	}
	var zero T
	program, err := expr.Compile(trimmed,
		expr.Env(map[string]any{valueName: zero}),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile validator %q: %w", trimmed, err)
	}
	return validator[T](program, trimmed), nil
}

// MustCompile is Compile for expressions known at build time.
func MustCompile[T any](source string) ref.Validator[T] {
	fn, err := Compile[T](source)
	if err != nil {
		panic(err)
	}
	return fn
}

func validator[T any](program *vm.Program, source string) ref.Validator[T] {
	return func(value T) (bool, error) {
		result, err := expr.Run(program, map[string]any{valueName: value})
		if err != nil {
			return false, fmt.Errorf("evaluate %q: %w", source, err)
		}
		accepted, ok := result.(bool)
		if !ok {
			return false, fmt.Errorf("evaluate %q: expected bool, got %T", source, result)
		}
		return accepted, nil
	}
}
