// Package casecontext computes and diffs the case context: the key-value
// snapshot of discriminant values sent to the rules endpoint to decide which
// business rules apply to a form. All functions are pure; the orchestration
// layer owns the resulting maps.
package casecontext

import (
	"strings"

	"github.com/goliatone/go-formflow/pkg/descriptor"
)

// Context maps discriminant field IDs (and prefill-derived keys) to their
// current values. Allowed values are nil, strings, numbers, booleans, and
// arrays thereof.
type Context map[string]any

// Prefill carries the initial seed values for a case. Pointer fields
// distinguish "absent" from zero values so absent keys are omitted from the
// initial context rather than set to nil.
type Prefill struct {
	IncorporationCountry *string          `json:"incorporationCountry,omitempty"`
	OnboardingCountries  []string         `json:"onboardingCountries,omitempty"`
	ProcessType          *string          `json:"processType,omitempty"`
	NeedSignature        *bool            `json:"needSignature,omitempty"`
	Addresses            []map[string]any `json:"addresses,omitempty"`
}

// Initialize builds the initial context from prefill data. Only defined keys
// are copied; Initialize(Prefill{}) yields an empty context.
func Initialize(prefill Prefill) Context {
	ctx := Context{}
	if prefill.IncorporationCountry != nil {
		ctx["incorporationCountry"] = *prefill.IncorporationCountry
	}
	if prefill.OnboardingCountries != nil {
		ctx["onboardingCountries"] = append([]string{}, prefill.OnboardingCountries...)
	}
	if prefill.ProcessType != nil {
		ctx["processType"] = *prefill.ProcessType
	}
	if prefill.NeedSignature != nil {
		ctx["needSignature"] = *prefill.NeedSignature
	}
	if prefill.Addresses != nil {
		addresses := make([]map[string]any, len(prefill.Addresses))
		copy(addresses, prefill.Addresses)
		ctx["addresses"] = addresses
	}
	return ctx
}

// Discriminants filters fields marked as discriminant, preserving order.
func Discriminants(fields []descriptor.FieldDescriptor) []descriptor.FieldDescriptor {
	var out []descriptor.FieldDescriptor
	for _, field := range fields {
		if field.IsDiscriminant {
			out = append(out, field)
		}
	}
	return out
}

// Update returns a new context derived from current: for each discriminant
// field, the matching form-data value (dot-path aware) overwrites the entry.
// Fields absent from formData leave the existing entry untouched; values of
// disallowed types are ignored. current is never mutated.
func Update(current Context, formData map[string]any, discriminants []descriptor.FieldDescriptor) Context {
	next := make(Context, len(current)+len(discriminants))
	for key, value := range current {
		next[key] = value
	}
	for _, field := range discriminants {
		value, ok := Lookup(formData, field.ID)
		if !ok || !allowedValue(value) {
			continue
		}
		next[field.ID] = value
	}
	return next
}

// Changed compares two contexts over the union of their keys. A key present
// on one side only, or any value differing (arrays compared element-wise),
// counts as a change.
func Changed(old, next Context) bool {
	for key, value := range old {
		nextValue, ok := next[key]
		if !ok || !equalValues(value, nextValue) {
			return true
		}
	}
	for key := range next {
		if _, ok := old[key]; !ok {
			return true
		}
	}
	return false
}

// DiscriminantsChanged reports whether any discriminant field present in
// formData differs from its context entry. Fields absent from formData are
// skipped; an empty discriminant list never signals a change.
func DiscriminantsChanged(ctx Context, formData map[string]any, discriminants []descriptor.FieldDescriptor) bool {
	for _, field := range discriminants {
		value, ok := Lookup(formData, field.ID)
		if !ok {
			continue
		}
		if !equalValues(value, ctx[field.ID]) {
			return true
		}
	}
	return false
}

// Lookup extracts a value from formData by field ID, following dot-separated
// segments into nested maps (for example "personalInfo.jurisdiction"). The
// boolean reports whether the path resolved to a present key.
func Lookup(formData map[string]any, id string) (any, bool) {
	if formData == nil {
		return nil, false
	}
	if value, ok := formData[id]; ok {
		return value, true
	}

	segments := strings.Split(id, ".")
	if len(segments) == 1 {
		return nil, false
	}

	current := any(formData)
	for _, segment := range segments {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func allowedValue(value any) bool {
	switch value.(type) {
	case nil, string, bool, int, int64, float64, []any, []string:
		return true
	default:
		return false
	}
}

// equalValues compares context values: arrays element-wise by index and
// length, numbers across Go numeric types, everything else by equality.
func equalValues(a, b any) bool {
	if sliceA, ok := asSlice(a); ok {
		sliceB, ok := asSlice(b)
		if !ok || len(sliceA) != len(sliceB) {
			return false
		}
		for i := range sliceA {
			if !equalValues(sliceA[i], sliceB[i]) {
				return false
			}
		}
		return true
	}
	if _, ok := asSlice(b); ok {
		return false
	}
	if numA, ok := asNumber(a); ok {
		numB, ok := asNumber(b)
		return ok && numA == numB
	}
	return a == b
}

func asSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
