// Package rehydrate coordinates rule refreshes: when a discriminant field
// changes, it debounces the edit burst, fetches updated rules for the latest
// case context, and hands the result to observers for merging. Overlapping
// fetches are resolved by sequence token, so a slow stale response can never
// overwrite a newer one.
package rehydrate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/goliatone/go-formflow/pkg/casecontext"
	"github.com/goliatone/go-formflow/pkg/descriptor"
)

// DebounceInterval is the fixed quiet period after the last qualifying edit
// before a rules fetch is issued.
const DebounceInterval = 500 * time.Millisecond

// Status names the coordinator's lifecycle states.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusDebouncing  Status = "debouncing"
	StatusRehydrating Status = "rehydrating"
)

// Fetcher retrieves the rules overlay for a case context. Implementations
// normally POST the context to the rules endpoint. Fetches must be idempotent
// reads: superseded requests are not transport-cancelled, only discarded.
type Fetcher interface {
	FetchRules(ctx context.Context, cc casecontext.Context) (*descriptor.RulesObject, error)
}

// FetcherFunc adapts a function into a Fetcher.
type FetcherFunc func(ctx context.Context, cc casecontext.Context) (*descriptor.RulesObject, error)

// FetchRules delegates to the underlying function.
func (fn FetcherFunc) FetchRules(ctx context.Context, cc casecontext.Context) (*descriptor.RulesObject, error) {
	return fn(ctx, cc)
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithClock injects a timer source. Tests use this to drive the debounce
// window deterministically.
func WithClock(clock Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger injects the logger used for fetch failures. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithInitialContext seeds the case context, typically from prefill data.
func WithInitialContext(cc casecontext.Context) Option {
	return func(c *Coordinator) {
		next := make(casecontext.Context, len(cc))
		for key, value := range cc {
			next[key] = value
		}
		c.current = next
	}
}

// WithDiscriminants registers the discriminant fields whose edits qualify
// for rehydration.
func WithDiscriminants(fields []descriptor.FieldDescriptor) Option {
	return func(c *Coordinator) {
		c.discriminants = append([]descriptor.FieldDescriptor{}, fields...)
	}
}

// OnRehydrating registers the pending-indicator observer. It fires with true
// at schedule time and with false once the governing fetch settles.
func OnRehydrating(fn func(bool)) Option {
	return func(c *Coordinator) {
		c.onRehydrating = fn
	}
}

// OnRules registers the observer receiving fetched rules. A nil overlay means
// "no change to apply" and follows failed fetches.
func OnRules(fn func(*descriptor.RulesObject)) Option {
	return func(c *Coordinator) {
		c.onRules = fn
	}
}

// Coordinator is the only stateful piece of the rehydration pipeline. All
// state transitions happen under one mutex; fetches run in goroutines and
// re-enter through the same lock.
type Coordinator struct {
	mu            sync.Mutex
	fetcher       Fetcher
	clock         Clock
	logger        *slog.Logger
	discriminants []descriptor.FieldDescriptor
	onRehydrating func(bool)
	onRules       func(*descriptor.RulesObject)

	status      Status
	current     casecontext.Context
	pending     casecontext.Context
	timer       Timer
	seq         uint64
	rehydrating bool
	stopped     bool
}

// New constructs a Coordinator around the given fetcher. A nil fetcher
// disables rule refreshes entirely; discriminant edits still update the
// tracked context.
func New(fetcher Fetcher, options ...Option) *Coordinator {
	c := &Coordinator{
		fetcher: fetcher,
		clock:   realClock{},
		logger:  slog.Default(),
		status:  StatusIdle,
		current: casecontext.Context{},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// Status reports the current lifecycle state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Context returns a copy of the current case context.
func (c *Coordinator) Context() casecontext.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(casecontext.Context, len(c.current))
	for key, value := range c.current {
		out[key] = value
	}
	return out
}

// OnFormData feeds a form-data change event into the coordinator. When a
// discriminant value actually changed, the case context is recomputed and a
// debounced fetch is scheduled; a change arriving while a fetch is pending
// cancels and reschedules the timer so only the latest context is ever sent.
func (c *Coordinator) OnFormData(ctx context.Context, formData map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	if !casecontext.DiscriminantsChanged(c.current, formData, c.discriminants) {
		return
	}
	next := casecontext.Update(c.current, formData, c.discriminants)
	if !casecontext.Changed(c.current, next) {
		return
	}

	c.current = next
	c.pending = next
	if c.fetcher == nil {
		// No rules source configured; the context still tracks edits.
		return
	}
	c.schedule(ctx)
}

// Stop cancels any pending timer. In-flight fetch results are still discarded
// through the usual sequencing; no further fetches are scheduled.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// schedule cancels any prior timer and arms a fresh debounce window. Caller
// holds the lock.
func (c *Coordinator) schedule(ctx context.Context) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.status = StatusDebouncing
	c.signalRehydrating(true)
	c.timer = c.clock.AfterFunc(DebounceInterval, func() {
		c.fire(ctx)
	})
}

// fire runs when the debounce window elapses without a superseding change.
func (c *Coordinator) fire(ctx context.Context) {
	c.mu.Lock()
	if c.stopped || c.status != StatusDebouncing {
		c.mu.Unlock()
		return
	}
	c.status = StatusRehydrating
	c.timer = nil
	c.seq++
	token := c.seq
	snapshot := c.pending
	fetcher := c.fetcher
	c.mu.Unlock()

	go func() {
		overlay, err := fetcher.FetchRules(ctx, snapshot)
		c.settle(token, overlay, err)
	}()
}

// settle applies a fetch result. Responses are last-issued-wins: anything but
// the most recently issued token is discarded, regardless of arrival order.
func (c *Coordinator) settle(token uint64, overlay *descriptor.RulesObject, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.seq {
		return
	}
	if err != nil {
		c.logger.Warn("rules fetch failed, keeping prior rules", "error", err)
		overlay = nil
	}

	// A fresh debounce window may already be open for a newer edit; in that
	// case the pending indicator stays up.
	if c.status == StatusRehydrating {
		c.status = StatusIdle
		c.signalRehydrating(false)
	}
	if c.onRules != nil {
		c.onRules(overlay)
	}
}

// signalRehydrating emits the pending indicator on transitions only. Caller
// holds the lock.
func (c *Coordinator) signalRehydrating(on bool) {
	if c.rehydrating == on {
		return
	}
	c.rehydrating = on
	if c.onRehydrating != nil {
		c.onRehydrating(on)
	}
}
