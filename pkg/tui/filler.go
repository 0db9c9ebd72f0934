// Package tui walks a prepared form engine through an interactive terminal
// session: one prompt per visible field, dynamic options resolved through the
// engine, and validation reported inline.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/goliatone/go-formflow/pkg/descriptor"
	"github.com/goliatone/go-formflow/pkg/engine"
)

// Filler prompts for every visible field of an engine's descriptor and
// collects the answers into a form data map.
type Filler struct {
	driver PromptDriver
}

// Option configures the filler.
type Option func(*Filler)

// WithPromptDriver overrides the prompt driver used by the filler.
func WithPromptDriver(driver PromptDriver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// New constructs a filler backed by a survey-based driver unless overridden.
func New(options ...Option) *Filler {
	f := &Filler{driver: newSurveyDriver()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(f)
	}
	return f
}

// Fill runs one interactive pass over the engine's current descriptor. Fields
// hidden at prompt time are skipped; answers to discriminant fields are pushed
// through the engine so rules can rehydrate before later fields are shown.
func (f *Filler) Fill(ctx context.Context, eng *engine.Engine, seed map[string]any) (map[string]any, error) {
	if eng == nil {
		return nil, errors.New("tui: engine is required")
	}
	formData := make(map[string]any, len(seed))
	for key, value := range seed {
		formData[key] = value
	}

	for _, block := range eng.Descriptor().Blocks {
		if eng.BlockState(block.ID, formData).Hidden {
			continue
		}
		if block.Title != "" {
			if err := f.driver.Info(ctx, block.Title); err != nil {
				return nil, err
			}
		}
		for _, field := range block.Fields {
			if err := f.promptField(ctx, eng, field, formData); err != nil {
				return nil, err
			}
		}
	}

	for _, violation := range eng.Validate(formData) {
		msg := fmt.Sprintf("%s: %s", violation.FieldID, violation.Message)
		if err := f.driver.Info(ctx, msg); err != nil {
			return nil, err
		}
	}
	return formData, nil
}

func (f *Filler) promptField(ctx context.Context, eng *engine.Engine, field descriptor.FieldDescriptor, formData map[string]any) error {
	state := eng.FieldState(field.ID, formData)
	if state.Hidden {
		return nil
	}
	if state.Disabled || state.Readonly {
		if value, ok := formData[field.ID]; ok {
			return f.driver.Info(ctx, fmt.Sprintf("%s: %v", fieldLabel(field), value))
		}
		return nil
	}

	value, err := f.askValue(ctx, eng, field, formData)
	if err != nil {
		return err
	}
	if value == nil {
		return nil
	}
	formData[field.ID] = value
	if field.IsDiscriminant {
		eng.OnFormChange(ctx, formData)
	}
	return nil
}

func (f *Filler) askValue(ctx context.Context, eng *engine.Engine, field descriptor.FieldDescriptor, formData map[string]any) (any, error) {
	label := fieldLabel(field)

	switch field.Type {
	case descriptor.FieldTypeCheckbox:
		out, err := f.driver.Confirm(ctx, ConfirmConfig{
			Message: label,
			Default: boolDefault(formData[field.ID], field.DefaultValue),
			Help:    field.Description,
		})
		if err != nil {
			return nil, err
		}
		return out, nil

	case descriptor.FieldTypeDropdown, descriptor.FieldTypeRadio, descriptor.FieldTypeAutocomplete:
		items := field.Items
		if field.DataSource != nil {
			items = eng.Options(ctx, field.ID, formData)
		}
		if len(items) == 0 {
			return nil, nil
		}
		labels := make([]string, len(items))
		for i, item := range items {
			labels[i] = item.Label
		}
		idx, err := f.driver.Select(ctx, SelectConfig{
			Message:      label,
			Options:      labels,
			DefaultIndex: defaultItemIndex(items, formData[field.ID], field.DefaultValue),
			Help:         field.Description,
		})
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(items) {
			return nil, nil
		}
		return items[idx].Value, nil

	case descriptor.FieldTypeNumber:
		out, err := f.driver.Input(ctx, InputConfig{
			Message:   label,
			Default:   stringDefault(formData[field.ID], field.DefaultValue),
			Help:      field.Description,
			Validator: numberValidator,
		})
		if err != nil {
			return nil, err
		}
		if out == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(out, 64)
		if err != nil {
			return nil, fmt.Errorf("tui: field %q: %w", field.ID, err)
		}
		return parsed, nil

	default:
		out, err := f.driver.Input(ctx, InputConfig{
			Message: label,
			Default: stringDefault(formData[field.ID], field.DefaultValue),
			Help:    field.Description,
		})
		if err != nil {
			return nil, err
		}
		if out == "" {
			return nil, nil
		}
		return out, nil
	}
}

func fieldLabel(field descriptor.FieldDescriptor) string {
	if field.Label != "" {
		return field.Label
	}
	return field.ID
}

func numberValidator(value string) error {
	if value == "" {
		return nil
	}
	if _, err := strconv.ParseFloat(value, 64); err != nil {
		return fmt.Errorf("%q is not a number", value)
	}
	return nil
}

func stringDefault(current, fallback any) string {
	if current != nil {
		return fmt.Sprint(current)
	}
	if fallback != nil {
		return fmt.Sprint(fallback)
	}
	return ""
}

func boolDefault(current, fallback any) bool {
	for _, candidate := range []any{current, fallback} {
		if flag, ok := candidate.(bool); ok {
			return flag
		}
	}
	return false
}

func defaultItemIndex(items []descriptor.FieldItem, current, fallback any) int {
	for _, candidate := range []any{current, fallback} {
		if candidate == nil {
			continue
		}
		want := fmt.Sprint(candidate)
		for i, item := range items {
			if item.Value == want {
				return i
			}
		}
	}
	return 0
}
