// Package template defines the expression-evaluation seam the engine relies
// on. Descriptors embed template strings for default values, status flags,
// data-source URLs, and submission payloads; any engine able to interpolate
// variables, branch, and iterate can satisfy the contract.
package template

import (
	"fmt"
	"strconv"
	"strings"
)

// Evaluator evaluates a template string against a context map. The result is
// a primitive or structured value: implementations that render to text should
// re-decode JSON-shaped output so templates can produce arrays and objects.
type Evaluator interface {
	Evaluate(tpl string, ctx map[string]any) (any, error)
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(tpl string, ctx map[string]any) (any, error)

// Evaluate delegates to the underlying function.
func (fn EvaluatorFunc) Evaluate(tpl string, ctx map[string]any) (any, error) {
	return fn(tpl, ctx)
}

// EvaluateString evaluates tpl and coerces the result to a string.
func EvaluateString(ev Evaluator, tpl string, ctx map[string]any) (string, error) {
	value, err := ev.Evaluate(tpl, ctx)
	if err != nil {
		return "", err
	}
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

// EvaluateBool evaluates tpl and interprets the result as a boolean. Status
// templates conventionally render the strings "true" or "false"; an empty
// result counts as false.
func EvaluateBool(ev Evaluator, tpl string, ctx map[string]any) (bool, error) {
	value, err := ev.Evaluate(tpl, ctx)
	if err != nil {
		return false, err
	}
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return false, nil
		}
		parsed, err := strconv.ParseBool(strings.ToLower(trimmed))
		if err != nil {
			return false, fmt.Errorf("template: %q is not boolean-like", v)
		}
		return parsed, nil
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	default:
		return false, fmt.Errorf("template: %T is not boolean-like", value)
	}
}
