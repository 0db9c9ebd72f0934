// Package engine wires the descriptor pipeline together: sub-form
// resolution, case-context seeding, default-value evaluation, rule
// rehydration, merging, data-source loading, and submission. It is the one
// stateful façade; everything underneath is pure or independently testable.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/goliatone/go-formflow/pkg/casecontext"
	"github.com/goliatone/go-formflow/pkg/datasource"
	"github.com/goliatone/go-formflow/pkg/descriptor"
	"github.com/goliatone/go-formflow/pkg/rehydrate"
	"github.com/goliatone/go-formflow/pkg/rules"
	"github.com/goliatone/go-formflow/pkg/subform"
	"github.com/goliatone/go-formflow/pkg/submission"
	"github.com/goliatone/go-formflow/pkg/template"
)

// Option customises the engine configuration.
type Option func(*Engine)

// WithEvaluator injects a template evaluator. Defaults to the pongo2-backed
// implementation.
func WithEvaluator(ev template.Evaluator) Option {
	return func(e *Engine) {
		if ev != nil {
			e.evaluator = ev
		}
	}
}

// WithRulesFetcher injects the rules transport used during rehydration.
func WithRulesFetcher(fetcher rehydrate.Fetcher) Option {
	return func(e *Engine) {
		e.fetcher = fetcher
	}
}

// WithDataSources injects a pre-configured data-source loader.
func WithDataSources(loader *datasource.Loader) Option {
	return func(e *Engine) {
		e.datasources = loader
	}
}

// WithHTTPClient overrides the client used for submission.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// WithClock injects the coordinator's timer source (test seam).
func WithClock(clock rehydrate.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithLogger injects the logger for background failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// OnDescriptor registers an observer notified whenever the merged descriptor
// changes (after every applied rules overlay).
func OnDescriptor(fn func(descriptor.GlobalFormDescriptor)) Option {
	return func(e *Engine) {
		e.onDescriptor = fn
	}
}

// OnRehydrating registers the pending-indicator observer.
func OnRehydrating(fn func(bool)) Option {
	return func(e *Engine) {
		e.onRehydrating = fn
	}
}

// Engine orchestrates one form instance. Construct with New, then call
// Prepare once before using the accessors.
type Engine struct {
	evaluator     template.Evaluator
	fetcher       rehydrate.Fetcher
	datasources   *datasource.Loader
	httpClient    *http.Client
	clock         rehydrate.Clock
	logger        *slog.Logger
	onDescriptor  func(descriptor.GlobalFormDescriptor)
	onRehydrating func(bool)

	mu          sync.RWMutex
	base        descriptor.GlobalFormDescriptor
	current     descriptor.GlobalFormDescriptor
	coordinator *rehydrate.Coordinator
	rehydrating bool
	prepared    bool
}

// New constructs an Engine applying any provided options. Missing
// collaborators are initialised with the built-in implementations.
func New(options ...Option) *Engine {
	e := &Engine{
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}
	if e.evaluator == nil {
		e.evaluator = template.NewPongo()
	}
	if e.datasources == nil {
		e.datasources = datasource.New(e.evaluator)
	}
	return e
}

// Prepare resolves the descriptor graph, seeds the case context from prefill,
// evaluates default-value templates, and arms the rehydration coordinator.
// Resolution failures abort preparation; there is no partial descriptor.
func (e *Engine) Prepare(ctx context.Context, raw descriptor.GlobalFormDescriptor, subForms map[string]descriptor.SubFormDescriptor, prefill casecontext.Prefill) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resolved, err := subform.Resolve(raw, subForms)
	if err != nil {
		return fmt.Errorf("engine: resolve descriptor: %w", err)
	}

	caseCtx := casecontext.Initialize(prefill)
	resolved = e.evaluateDefaults(resolved, contextMap(caseCtx))

	discriminants := casecontext.Discriminants(Fields(resolved))

	e.mu.Lock()
	e.base = resolved
	e.current = resolved
	e.prepared = true
	e.coordinator = rehydrate.New(e.fetcher,
		rehydrate.WithClock(e.clock),
		rehydrate.WithLogger(e.logger),
		rehydrate.WithInitialContext(caseCtx),
		rehydrate.WithDiscriminants(discriminants),
		rehydrate.OnRehydrating(e.setRehydrating),
		rehydrate.OnRules(e.applyRules),
	)
	e.mu.Unlock()
	return nil
}

// OnFormChange feeds a form-data change event into the rehydration pipeline.
// Safe to call for every edit; only qualifying discriminant changes schedule
// work.
func (e *Engine) OnFormChange(ctx context.Context, formData map[string]any) {
	e.mu.RLock()
	coordinator := e.coordinator
	e.mu.RUnlock()
	if coordinator != nil {
		coordinator.OnFormData(ctx, formData)
	}
}

// Descriptor returns the current merged descriptor.
func (e *Engine) Descriptor() descriptor.GlobalFormDescriptor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Rehydrating reports whether a rules refresh is pending or in flight.
func (e *Engine) Rehydrating() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rehydrating
}

// CaseContext returns a copy of the coordinator's current case context.
func (e *Engine) CaseContext() casecontext.Context {
	e.mu.RLock()
	coordinator := e.coordinator
	e.mu.RUnlock()
	if coordinator == nil {
		return casecontext.Context{}
	}
	return coordinator.Context()
}

// Options loads the dynamic option list for a data-source field. Failures
// resolve to an empty list with the error logged, so the field lands in a
// loading-finished state rather than a stuck spinner.
func (e *Engine) Options(ctx context.Context, fieldID string, formData map[string]any) []descriptor.FieldItem {
	field, ok := e.findField(fieldID)
	if !ok || field.DataSource == nil {
		return nil
	}

	formContext := e.formContext(formData)
	items, err := e.datasources.Load(ctx, field, formContext)
	if err != nil {
		e.logger.Warn("data-source load failed", "field", fieldID, "error", err)
		return []descriptor.FieldItem{}
	}
	return items
}

// MergeSavedValues combines saved form data with freshly evaluated defaults.
// A saved value differing from the new default is treated as a user edit and
// kept; one equal to the new default is replaced by it. The string-equality
// test is an accepted approximation: two contexts producing the same default
// as a prior edit will misread the edit as untouched.
func (e *Engine) MergeSavedValues(saved map[string]any) map[string]any {
	e.mu.RLock()
	current := e.current
	e.mu.RUnlock()

	merged := make(map[string]any, len(saved))
	for _, field := range Fields(current) {
		newDefault := field.DefaultValue
		savedValue, ok := saved[field.ID]
		if !ok {
			if newDefault != nil {
				merged[field.ID] = newDefault
			}
			continue
		}
		if fmt.Sprint(savedValue) != fmt.Sprint(newDefault) {
			merged[field.ID] = savedValue
			continue
		}
		merged[field.ID] = newDefault
	}
	for key, value := range saved {
		if _, ok := merged[key]; !ok {
			merged[key] = value
		}
	}
	return merged
}

// Submit builds and issues the submission request. A structured backend
// rejection comes back as *submission.BackendError for field mapping; other
// failures are plain errors.
func (e *Engine) Submit(ctx context.Context, formData map[string]any) error {
	e.mu.RLock()
	cfg := e.current.Submission
	prepared := e.prepared
	e.mu.RUnlock()
	if !prepared {
		return errors.New("engine: not prepared")
	}

	req, err := submission.Build(ctx, cfg, formData, e.evaluator)
	if err != nil {
		return err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("engine: submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return submission.ParseBackendError(resp.StatusCode, body)
}

// Stop cancels pending rehydration timers.
func (e *Engine) Stop() {
	e.mu.RLock()
	coordinator := e.coordinator
	e.mu.RUnlock()
	if coordinator != nil {
		coordinator.Stop()
	}
}

// applyRules merges a fetched overlay into the base descriptor. A nil overlay
// applies no change, leaving prior rules in effect.
func (e *Engine) applyRules(overlay *descriptor.RulesObject) {
	if overlay == nil {
		return
	}

	e.mu.Lock()
	merged := rules.Merge(e.current, overlay)
	e.current = merged
	notify := e.onDescriptor
	e.mu.Unlock()

	if notify != nil {
		notify(merged)
	}
}

func (e *Engine) setRehydrating(on bool) {
	e.mu.Lock()
	e.rehydrating = on
	notify := e.onRehydrating
	e.mu.Unlock()
	if notify != nil {
		notify(on)
	}
}

// evaluateDefaults resolves template-typed default values against the case
// context. Evaluation failures keep the raw template and log, so a broken
// template degrades to visible text instead of aborting preparation.
func (e *Engine) evaluateDefaults(d descriptor.GlobalFormDescriptor, ctx map[string]any) descriptor.GlobalFormDescriptor {
	out := d.Clone()
	for i := range out.Blocks {
		for j := range out.Blocks[i].Fields {
			field := &out.Blocks[i].Fields[j]
			tpl, ok := field.DefaultValue.(string)
			if !ok || !template.IsTemplate(tpl) {
				continue
			}
			value, err := e.evaluator.Evaluate(tpl, ctx)
			if err != nil {
				e.logger.Warn("default value template failed", "field", field.ID, "error", err)
				continue
			}
			field.DefaultValue = value
		}
	}
	return out
}

func (e *Engine) findField(fieldID string) (descriptor.FieldDescriptor, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, block := range e.current.Blocks {
		for _, field := range block.Fields {
			if field.ID == fieldID {
				return field, true
			}
		}
	}
	return descriptor.FieldDescriptor{}, false
}

// formContext merges the case context with live form data; form data wins on
// key collisions.
func (e *Engine) formContext(formData map[string]any) map[string]any {
	ctx := contextMap(e.CaseContext())
	for key, value := range formData {
		ctx[key] = value
	}
	return ctx
}

func contextMap(cc casecontext.Context) map[string]any {
	out := make(map[string]any, len(cc))
	for key, value := range cc {
		out[key] = value
	}
	return out
}

// Fields flattens every field across the descriptor's blocks, preserving
// block and field order.
func Fields(d descriptor.GlobalFormDescriptor) []descriptor.FieldDescriptor {
	var out []descriptor.FieldDescriptor
	for _, block := range d.Blocks {
		out = append(out, block.Fields...)
	}
	return out
}
