package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/casecontext"
	"github.com/goliatone/go-formflow/pkg/descriptor"
)

func TestRemoteFetcher_AcceptsAny2xx(t *testing.T) {
	t.Parallel()

	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"fields":[{"id":"vatNumber","validation":[{"kind":"required"}]}]}`))
	}))
	defer endpoint.Close()

	overlay, err := remoteFetcher(endpoint.URL).FetchRules(context.Background(), casecontext.Context{"country": "FR"})
	if err != nil {
		t.Fatalf("FetchRules() error = %v", err)
	}

	want := &descriptor.RulesObject{
		Fields: []descriptor.FieldRule{
			{ID: "vatNumber", Validation: []descriptor.ValidationRule{{Kind: descriptor.ValidationRuleRequired}}},
		},
	}
	if diff := cmp.Diff(want, overlay); diff != "" {
		t.Fatalf("overlay mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoteFetcher_Non2xxIsFailure(t *testing.T) {
	t.Parallel()

	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no rules for you", http.StatusServiceUnavailable)
	}))
	defer endpoint.Close()

	if _, err := remoteFetcher(endpoint.URL).FetchRules(context.Background(), casecontext.Context{}); err == nil {
		t.Fatalf("FetchRules() accepted a 503")
	}
}
