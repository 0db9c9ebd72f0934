package dsproxy_test

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-formflow/components/dsproxy"
	"github.com/goliatone/go-formflow/pkg/descriptor"
)

func TestStaticCredentials(t *testing.T) {
	t.Parallel()

	store := dsproxy.NewStaticCredentials(map[string]descriptor.AuthConfig{
		"countries": {Kind: descriptor.AuthBearer, Token: "t"},
	})
	store.Set("partners", descriptor.AuthConfig{Kind: descriptor.AuthBasic, Username: "u", Password: "p"})

	if _, ok := store.Credentials("countries"); !ok {
		t.Fatalf("seeded credential missing")
	}
	if _, ok := store.Credentials("partners"); !ok {
		t.Fatalf("added credential missing")
	}
	if _, ok := store.Credentials("ghost"); ok {
		t.Fatalf("unknown credential resolved")
	}
}

func TestBasicAuthInjection(t *testing.T) {
	t.Parallel()

	wantHeader := "Basic " + base64.StdEncoding.EncodeToString([]byte("svc:pass"))
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != wantHeader {
			t.Errorf("Authorization = %q, want %q", got, wantHeader)
		}
		json.NewEncoder(w).Encode([]map[string]any{{"label": "x", "value": "y"}})
	}))
	defer upstream.Close()

	handler := dsproxy.Handler(
		dsproxy.WithCredentials(dsproxy.NewStaticCredentials(map[string]descriptor.AuthConfig{
			"partners": {Kind: descriptor.AuthBasic, Username: "svc", Password: "pass"},
		})),
	)

	body, _ := json.Marshal(map[string]any{
		"dataSourceId":  "partners",
		"urlTemplate":   "{{ upstream }}/list",
		"itemsTemplate": `{"label": "{{ item.label }}", "value": "{{ item.value }}"}`,
		"formContext":   map[string]any{"upstream": upstream.URL},
	})
	rec := postJSON(t, handler, string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestIncompleteCredentialRejected(t *testing.T) {
	t.Parallel()

	handler := dsproxy.Handler(
		dsproxy.WithCredentials(dsproxy.NewStaticCredentials(map[string]descriptor.AuthConfig{
			"partners": {Kind: descriptor.AuthAPIKey, Header: "X-Api-Key"}, // no value
		})),
	)

	body, _ := json.Marshal(map[string]any{
		"dataSourceId":  "partners",
		"urlTemplate":   "https://example.com/list",
		"itemsTemplate": `{"label": "{{ item.name }}", "value": "{{ item.id }}"}`,
		"formContext":   map[string]any{},
	})
	rec := postJSON(t, handler, string(body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for incomplete credential", rec.Code)
	}
}
