package formflow

import (
	"context"

	"github.com/goliatone/go-formflow/pkg/casecontext"
	"github.com/goliatone/go-formflow/pkg/descriptor"
	"github.com/goliatone/go-formflow/pkg/engine"
)

// GlobalFormDescriptor is the root form definition; alias exported via the
// root package for convenience.
type GlobalFormDescriptor = descriptor.GlobalFormDescriptor

// SubFormDescriptor is a reusable form fragment referenced by blocks.
type SubFormDescriptor = descriptor.SubFormDescriptor

// RulesObject is the sparse overlay merged into a descriptor after
// rehydration.
type RulesObject = descriptor.RulesObject

// Prefill seeds the case context before the first render.
type Prefill = casecontext.Prefill

// Engine coordinates descriptor resolution, case context tracking, rule
// rehydration, dynamic options, and submission for one form session.
type Engine = engine.Engine

// New exposes the engine constructor from the top-level module.
func New(options ...engine.Option) *engine.Engine {
	return engine.New(options...)
}

// Prepare builds a ready-to-render engine in one call: it resolves sub-form
// references, seeds the case context, and arms rule rehydration. It is the
// simplest entry point for callers that just want a working form session.
func Prepare(ctx context.Context, raw GlobalFormDescriptor, subForms map[string]SubFormDescriptor, prefill Prefill, options ...engine.Option) (*engine.Engine, error) {
	eng := engine.New(options...)
	if err := eng.Prepare(ctx, raw, subForms, prefill); err != nil {
		return nil, err
	}
	return eng, nil
}
