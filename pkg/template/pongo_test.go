package template_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/template"
)

func TestPongo_PlainStringPassesThrough(t *testing.T) {
	t.Parallel()

	ev := template.NewPongo()
	got, err := ev.Evaluate("https://api.example.com/countries", nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != "https://api.example.com/countries" {
		t.Fatalf("plain string changed: %v", got)
	}
}

func TestPongo_Interpolation(t *testing.T) {
	t.Parallel()

	ev := template.NewPongo()
	got, err := ev.Evaluate("https://api.example.com/{{ country }}/cities", map[string]any{"country": "FR"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != "https://api.example.com/FR/cities" {
		t.Fatalf("interpolated: %v", got)
	}
}

func TestPongo_SingleVariableReturnsNativeValue(t *testing.T) {
	t.Parallel()

	ev := template.NewPongo()
	countries := []any{"FR", "DE"}
	got, err := ev.Evaluate("{{ response.countries }}", map[string]any{
		"response": map[string]any{"countries": countries},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if diff := cmp.Diff(countries, got); diff != "" {
		t.Fatalf("native value (-want +got):\n%s", diff)
	}
}

func TestPongo_RenderedNumericResultDecodes(t *testing.T) {
	t.Parallel()

	ev := template.NewPongo()
	got, err := ev.Evaluate("{% if count %}{{ count }}{% endif %}", map[string]any{"count": 3})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != float64(3) {
		t.Fatalf("want float64(3), got %T %v", got, got)
	}
}

func TestPongo_JSONShapedResultDecodes(t *testing.T) {
	t.Parallel()

	ev := template.NewPongo()
	got, err := ev.Evaluate(`{"country": "{{ country }}", "limit": {{ limit }}}`, map[string]any{
		"country": "DE",
		"limit":   10,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	want := map[string]any{"country": "DE", "limit": float64(10)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("decoded value (-want +got):\n%s", diff)
	}
}

func TestPongo_ConditionalBlock(t *testing.T) {
	t.Parallel()

	ev := template.NewPongo()
	tpl := "{% if processType == 'express' %}true{% else %}false{% endif %}"

	got, err := ev.Evaluate(tpl, map[string]any{"processType": "express"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != true {
		t.Fatalf("want true, got %T %v", got, got)
	}

	got, err = ev.Evaluate(tpl, map[string]any{"processType": "standard"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != false {
		t.Fatalf("want false, got %T %v", got, got)
	}
}

func TestPongo_ParseError(t *testing.T) {
	t.Parallel()

	ev := template.NewPongo()
	if _, err := ev.Evaluate("{{ unclosed", nil); err == nil {
		t.Fatalf("want parse error")
	}
}

func TestPongo_CachesCompiledTemplates(t *testing.T) {
	t.Parallel()

	ev := template.NewPongo()
	for _, country := range []string{"FR", "DE", "BE"} {
		got, err := ev.Evaluate("{{ country }}", map[string]any{"country": country})
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if got != country {
			t.Fatalf("want %q, got %v", country, got)
		}
	}
}

func TestIsTemplate(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"plain":            false,
		"{{ var }}":        true,
		"{% if x %}{% endif %}": true,
		"":                 false,
	}
	for in, want := range cases {
		if got := template.IsTemplate(in); got != want {
			t.Fatalf("IsTemplate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestEvaluateBool(t *testing.T) {
	t.Parallel()

	literal := template.EvaluatorFunc(func(tpl string, _ map[string]any) (any, error) {
		return tpl, nil
	})

	cases := map[string]bool{
		"true":  true,
		"True":  true,
		"false": false,
		"":      false,
	}
	for in, want := range cases {
		got, err := template.EvaluateBool(literal, in, nil)
		if err != nil {
			t.Fatalf("EvaluateBool(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("EvaluateBool(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := template.EvaluateBool(literal, "maybe", nil); err == nil {
		t.Fatalf("want error for non-boolean result")
	}
}

func TestEvaluateString(t *testing.T) {
	t.Parallel()

	ev := template.NewPongo()
	got, err := template.EvaluateString(ev, "{{ n }}", map[string]any{"n": 7})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != "7" {
		t.Fatalf("want \"7\", got %q", got)
	}
}
