package rulestore_test

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-formflow/pkg/casecontext"
	"github.com/goliatone/go-formflow/pkg/descriptor"
	"github.com/goliatone/go-formflow/pkg/rulestore"
)

func TestLoadFS(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"fr.yaml": {Data: []byte(`
ruleSets:
  - name: france
    when:
      country: FR
    rules:
      fields:
        - id: taxId
          validation:
            - kind: required
`)},
		"express.json": {Data: []byte(`{
  "ruleSets": [
    {
      "name": "express",
      "when": {"processType": "express"},
      "rules": {"blocks": [{"id": "review", "status": {"hidden": "true"}}]}
    }
  ]
}`)},
	}

	store, err := rulestore.LoadFS(fsys)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("want 2 rule sets, got %d", store.Len())
	}
}

func TestLoadFS_MissingWhenClause(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"bad.yaml": {Data: []byte("ruleSets:\n  - name: broken\n    rules: {}\n")},
	}
	_, err := rulestore.LoadFS(fsys)
	if err == nil || !strings.Contains(err.Error(), "when clause") {
		t.Fatalf("want when-clause error, got %v", err)
	}
}

func TestMatch_ScalarEquality(t *testing.T) {
	t.Parallel()

	store := rulestore.New([]rulestore.RuleSet{
		{
			When: map[string]any{"country": "FR"},
			Rules: descriptor.RulesObject{
				Fields: []descriptor.FieldRule{{ID: "taxId"}},
			},
		},
	})

	if got := store.Match(casecontext.Context{"country": "FR"}); len(got.Fields) != 1 {
		t.Fatalf("matching context yielded %#v", got)
	}
	if got := store.Match(casecontext.Context{"country": "DE"}); len(got.Fields) != 0 {
		t.Fatalf("non-matching context yielded %#v", got)
	}
	// A missing context key never matches.
	if got := store.Match(casecontext.Context{}); len(got.Fields) != 0 {
		t.Fatalf("empty context yielded %#v", got)
	}
}

func TestMatch_ListMembership(t *testing.T) {
	t.Parallel()

	store := rulestore.New([]rulestore.RuleSet{
		{
			When: map[string]any{"country": []any{"FR", "BE", "LU"}},
			Rules: descriptor.RulesObject{
				Blocks: []descriptor.BlockRule{{ID: "eu"}},
			},
		},
	})

	if got := store.Match(casecontext.Context{"country": "BE"}); len(got.Blocks) != 1 {
		t.Fatalf("member value did not match: %#v", got)
	}
	if got := store.Match(casecontext.Context{"country": "US"}); len(got.Blocks) != 0 {
		t.Fatalf("non-member matched: %#v", got)
	}
}

func TestMatch_ArrayContextValue(t *testing.T) {
	t.Parallel()

	store := rulestore.New([]rulestore.RuleSet{
		{
			When: map[string]any{"onboardingCountries": "FR"},
			Rules: descriptor.RulesObject{
				Blocks: []descriptor.BlockRule{{ID: "fr-extras"}},
			},
		},
	})

	ctx := casecontext.Context{"onboardingCountries": []string{"DE", "FR"}}
	if got := store.Match(ctx); len(got.Blocks) != 1 {
		t.Fatalf("array context element did not match: %#v", got)
	}
}

func TestMatch_NumericNormalization(t *testing.T) {
	t.Parallel()

	store := rulestore.New([]rulestore.RuleSet{
		{
			When: map[string]any{"tier": 2},
			Rules: descriptor.RulesObject{
				Blocks: []descriptor.BlockRule{{ID: "tier2"}},
			},
		},
	})

	// JSON-decoded contexts carry float64 values.
	if got := store.Match(casecontext.Context{"tier": float64(2)}); len(got.Blocks) != 1 {
		t.Fatalf("numeric comparison failed: %#v", got)
	}
}

func TestMatch_AllClausesMustHold(t *testing.T) {
	t.Parallel()

	store := rulestore.New([]rulestore.RuleSet{
		{
			When: map[string]any{"country": "FR", "processType": "express"},
			Rules: descriptor.RulesObject{
				Blocks: []descriptor.BlockRule{{ID: "combo"}},
			},
		},
	})

	if got := store.Match(casecontext.Context{"country": "FR"}); len(got.Blocks) != 0 {
		t.Fatalf("partial clause match applied: %#v", got)
	}
	full := casecontext.Context{"country": "FR", "processType": "express"}
	if got := store.Match(full); len(got.Blocks) != 1 {
		t.Fatalf("full clause match failed: %#v", got)
	}
}

func TestMatch_LaterSetsWinPerID(t *testing.T) {
	t.Parallel()

	store := rulestore.New([]rulestore.RuleSet{
		{
			When: map[string]any{"country": "FR"},
			Rules: descriptor.RulesObject{
				Fields: []descriptor.FieldRule{
					{ID: "taxId", Status: &descriptor.StatusTemplates{Hidden: "true"}},
					{ID: "vat", Status: &descriptor.StatusTemplates{Hidden: "true"}},
				},
			},
		},
		{
			When: map[string]any{"processType": "express"},
			Rules: descriptor.RulesObject{
				Fields: []descriptor.FieldRule{
					{ID: "taxId", Status: &descriptor.StatusTemplates{Hidden: "false"}},
				},
			},
		},
	})

	got := store.Match(casecontext.Context{"country": "FR", "processType": "express"})
	if len(got.Fields) != 2 {
		t.Fatalf("want 2 merged field rules, got %#v", got.Fields)
	}
	for _, rule := range got.Fields {
		if rule.ID == "taxId" && rule.Status.Hidden != "false" {
			t.Fatalf("later set did not win: %#v", rule)
		}
	}
}
