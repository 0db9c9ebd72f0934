package casecontext_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/casecontext"
	"github.com/goliatone/go-formflow/pkg/descriptor"
)

func strptr(s string) *string { return &s }
func boolptr(b bool) *bool    { return &b }

func discriminant(id string) descriptor.FieldDescriptor {
	return descriptor.FieldDescriptor{ID: id, Type: descriptor.FieldTypeText, IsDiscriminant: true}
}

func TestInitialize(t *testing.T) {
	t.Parallel()

	got := casecontext.Initialize(casecontext.Prefill{
		IncorporationCountry: strptr("FR"),
		OnboardingCountries:  []string{"FR", "DE"},
		NeedSignature:        boolptr(false),
	})
	want := casecontext.Context{
		"incorporationCountry": "FR",
		"onboardingCountries":  []string{"FR", "DE"},
		"needSignature":        false,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("context (-want +got):\n%s", diff)
	}
}

func TestInitialize_EmptyPrefill(t *testing.T) {
	t.Parallel()

	got := casecontext.Initialize(casecontext.Prefill{})
	if len(got) != 0 {
		t.Fatalf("want empty context, got %#v", got)
	}
}

func TestDiscriminants(t *testing.T) {
	t.Parallel()

	fields := []descriptor.FieldDescriptor{
		{ID: "name"},
		{ID: "country", IsDiscriminant: true},
		{ID: "processType", IsDiscriminant: true},
	}
	got := casecontext.Discriminants(fields)
	if len(got) != 2 || got[0].ID != "country" || got[1].ID != "processType" {
		t.Fatalf("discriminants: %#v", got)
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	current := casecontext.Context{"country": "FR", "processType": "standard"}
	discriminants := []descriptor.FieldDescriptor{
		discriminant("country"),
		discriminant("processType"),
		discriminant("missing"),
	}

	next := casecontext.Update(current, map[string]any{"country": "DE"}, discriminants)

	want := casecontext.Context{"country": "DE", "processType": "standard"}
	if diff := cmp.Diff(want, next); diff != "" {
		t.Fatalf("updated context (-want +got):\n%s", diff)
	}
	if current["country"] != "FR" {
		t.Fatalf("input context mutated: %#v", current)
	}
}

func TestUpdate_NeverDropsKeys(t *testing.T) {
	t.Parallel()

	current := casecontext.Context{"country": "FR", "legacy": true}
	next := casecontext.Update(current, map[string]any{}, []descriptor.FieldDescriptor{discriminant("country")})
	for key := range current {
		if _, ok := next[key]; !ok {
			t.Fatalf("key %q dropped by update", key)
		}
	}
}

func TestUpdate_DotPathLookup(t *testing.T) {
	t.Parallel()

	formData := map[string]any{
		"personalInfo": map[string]any{"jurisdiction": "LU"},
	}
	next := casecontext.Update(nil, formData, []descriptor.FieldDescriptor{discriminant("personalInfo.jurisdiction")})
	if next["personalInfo.jurisdiction"] != "LU" {
		t.Fatalf("dot path not resolved: %#v", next)
	}
}

func TestUpdate_PrefixedIDsBeatDotDescent(t *testing.T) {
	t.Parallel()

	// Flattened sub-form field IDs contain literal dots; a direct key match
	// must win over path descent.
	formData := map[string]any{"home.country": "BE"}
	next := casecontext.Update(nil, formData, []descriptor.FieldDescriptor{discriminant("home.country")})
	if next["home.country"] != "BE" {
		t.Fatalf("prefixed ID not resolved: %#v", next)
	}
}

func TestUpdate_IgnoresDisallowedValues(t *testing.T) {
	t.Parallel()

	formData := map[string]any{"country": map[string]any{"nested": true}}
	next := casecontext.Update(casecontext.Context{"country": "FR"}, formData, []descriptor.FieldDescriptor{discriminant("country")})
	if next["country"] != "FR" {
		t.Fatalf("disallowed value overwrote entry: %#v", next)
	}
}

func TestChanged(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		old  casecontext.Context
		next casecontext.Context
		want bool
	}{
		{"identical", casecontext.Context{"a": "x"}, casecontext.Context{"a": "x"}, false},
		{"both empty", casecontext.Context{}, casecontext.Context{}, false},
		{"value differs", casecontext.Context{"a": "x"}, casecontext.Context{"a": "y"}, true},
		{"key added", casecontext.Context{}, casecontext.Context{"a": "x"}, true},
		{"key removed", casecontext.Context{"a": "x"}, casecontext.Context{}, true},
		{"numeric types normalized", casecontext.Context{"n": 1}, casecontext.Context{"n": float64(1)}, false},
		{"array equal", casecontext.Context{"c": []string{"FR", "DE"}}, casecontext.Context{"c": []any{"FR", "DE"}}, false},
		{"array order matters", casecontext.Context{"c": []any{"FR", "DE"}}, casecontext.Context{"c": []any{"DE", "FR"}}, true},
		{"array length differs", casecontext.Context{"c": []any{"FR"}}, casecontext.Context{"c": []any{"FR", "DE"}}, true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := casecontext.Changed(tc.old, tc.next); got != tc.want {
				t.Fatalf("Changed(%v, %v) = %v, want %v", tc.old, tc.next, got, tc.want)
			}
		})
	}
}

func TestChanged_Reflexive(t *testing.T) {
	t.Parallel()

	ctx := casecontext.Context{
		"country":   "FR",
		"countries": []string{"FR", "DE"},
		"flag":      true,
		"count":     3,
	}
	if casecontext.Changed(ctx, ctx) {
		t.Fatalf("context reported as changed against itself")
	}
}

func TestDiscriminantsChanged(t *testing.T) {
	t.Parallel()

	ctx := casecontext.Context{"country": "FR", "processType": "standard"}
	discriminants := []descriptor.FieldDescriptor{
		discriminant("country"),
		discriminant("processType"),
	}

	if casecontext.DiscriminantsChanged(ctx, map[string]any{"country": "FR"}, discriminants) {
		t.Fatalf("unchanged value reported as change")
	}
	if !casecontext.DiscriminantsChanged(ctx, map[string]any{"country": "DE"}, discriminants) {
		t.Fatalf("changed value not detected")
	}
	// Absent from form data means untouched, not changed.
	if casecontext.DiscriminantsChanged(ctx, map[string]any{"unrelated": 1}, discriminants) {
		t.Fatalf("absent discriminant reported as change")
	}
	if casecontext.DiscriminantsChanged(ctx, map[string]any{"country": "DE"}, nil) {
		t.Fatalf("empty discriminant list signalled a change")
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	formData := map[string]any{
		"plain": "x",
		"nested": map[string]any{
			"inner": map[string]any{"leaf": 1},
		},
		"home.city": "Lyon",
	}

	if v, ok := casecontext.Lookup(formData, "plain"); !ok || v != "x" {
		t.Fatalf("plain lookup: %v, %v", v, ok)
	}
	if v, ok := casecontext.Lookup(formData, "nested.inner.leaf"); !ok || v != 1 {
		t.Fatalf("nested lookup: %v, %v", v, ok)
	}
	if v, ok := casecontext.Lookup(formData, "home.city"); !ok || v != "Lyon" {
		t.Fatalf("literal dot key lookup: %v, %v", v, ok)
	}
	if _, ok := casecontext.Lookup(formData, "nested.missing"); ok {
		t.Fatalf("missing path resolved")
	}
	if _, ok := casecontext.Lookup(nil, "plain"); ok {
		t.Fatalf("nil form data resolved")
	}
}
