package engine

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/goliatone/go-formflow/pkg/casecontext"
	"github.com/goliatone/go-formflow/pkg/descriptor"
	"github.com/goliatone/go-formflow/pkg/template"
)

// Violation is one failed validation rule for one field. Violations are
// collected, never raised: validation always runs to completion.
type Violation struct {
	FieldID string
	Kind    string
	Message string
}

// Validate evaluates every field's validation rules against formData and
// returns the violations in descriptor order. Custom rules evaluate their
// template against the form data; a non-true result is a violation.
func (e *Engine) Validate(formData map[string]any) []Violation {
	e.mu.RLock()
	current := e.current
	e.mu.RUnlock()

	var out []Violation
	for _, field := range Fields(current) {
		value, present := casecontext.Lookup(formData, field.ID)
		for _, rule := range field.Validation {
			if violation, ok := e.checkRule(field, rule, value, present, formData); ok {
				out = append(out, violation)
			}
		}
	}
	return out
}

func (e *Engine) checkRule(field descriptor.FieldDescriptor, rule descriptor.ValidationRule, value any, present bool, formData map[string]any) (Violation, bool) {
	fail := func(defaultMsg string) (Violation, bool) {
		message := rule.Message
		if message == "" {
			message = defaultMsg
		}
		return Violation{FieldID: field.ID, Kind: rule.Kind, Message: message}, true
	}

	switch rule.Kind {
	case descriptor.ValidationRuleRequired:
		if !present || value == nil || value == "" {
			return fail("value is required")
		}
	case descriptor.ValidationRuleMinLength:
		min, err := strconv.Atoi(rule.Value)
		if err != nil {
			break
		}
		if text, ok := value.(string); ok && len([]rune(text)) < min {
			return fail(fmt.Sprintf("must be at least %d characters", min))
		}
	case descriptor.ValidationRuleMaxLength:
		max, err := strconv.Atoi(rule.Value)
		if err != nil {
			break
		}
		if text, ok := value.(string); ok && len([]rune(text)) > max {
			return fail(fmt.Sprintf("must be at most %d characters", max))
		}
	case descriptor.ValidationRulePattern:
		text, ok := value.(string)
		if !ok || text == "" {
			break
		}
		matched, err := regexp.MatchString(rule.Pattern, text)
		if err != nil {
			e.logger.Warn("invalid validation pattern", "field", field.ID, "pattern", rule.Pattern, "error", err)
			break
		}
		if !matched {
			return fail("value does not match the expected format")
		}
	case descriptor.ValidationRuleCustom:
		ok, err := template.EvaluateBool(e.evaluator, rule.Value, formData)
		if err != nil {
			e.logger.Warn("custom validation template failed", "field", field.ID, "error", err)
			break
		}
		if !ok {
			return fail("value is invalid")
		}
	}
	return Violation{}, false
}
