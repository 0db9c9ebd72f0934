package engine

import (
	"github.com/goliatone/go-formflow/pkg/descriptor"
	"github.com/goliatone/go-formflow/pkg/template"
)

// State is the evaluated presentation status for a block or field.
type State struct {
	Hidden   bool
	Disabled bool
	Readonly bool
}

// BlockState evaluates a block's status templates against the merged view of
// case context and form data. Evaluation failures degrade to the zero state
// (visible, enabled) with the failure logged.
func (e *Engine) BlockState(blockID string, formData map[string]any) State {
	e.mu.RLock()
	current := e.current
	e.mu.RUnlock()

	for _, block := range current.Blocks {
		if block.ID == blockID {
			return e.evalStatus(block.Status, formData)
		}
	}
	return State{}
}

// FieldState evaluates a field's status templates.
func (e *Engine) FieldState(fieldID string, formData map[string]any) State {
	field, ok := e.findField(fieldID)
	if !ok {
		return State{}
	}
	return e.evalStatus(field.Status, formData)
}

func (e *Engine) evalStatus(status *descriptor.StatusTemplates, formData map[string]any) State {
	if status == nil {
		return State{}
	}
	ctx := e.formContext(formData)
	return State{
		Hidden:   e.evalBool(status.Hidden, ctx),
		Disabled: e.evalBool(status.Disabled, ctx),
		Readonly: e.evalBool(status.Readonly, ctx),
	}
}

func (e *Engine) evalBool(tpl string, ctx map[string]any) bool {
	if tpl == "" {
		return false
	}
	value, err := template.EvaluateBool(e.evaluator, tpl, ctx)
	if err != nil {
		e.logger.Warn("status template failed", "template", tpl, "error", err)
		return false
	}
	return value
}
