package dsproxy_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-formflow/components/dsproxy"
	"github.com/goliatone/go-formflow/pkg/descriptor"
)

func proxyBody(overrides map[string]any) string {
	body := map[string]any{
		"dataSourceId":  "countries",
		"urlTemplate":   "{{ upstream }}/countries",
		"itemsTemplate": `{"label": "{{ item.name }}", "value": "{{ item.code }}"}`,
		"formContext":   map[string]any{},
	}
	for key, value := range overrides {
		if value == nil {
			delete(body, key)
			continue
		}
		body[key] = value
	}
	encoded, _ := json.Marshal(body)
	return string(encoded)
}

func postJSON(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/data-source/proxy", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return payload.Error
}

func TestHandler_ProxiesWithCredentialInjection(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer s3cret" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"name": "France", "code": "FR"},
		})
	}))
	defer upstream.Close()

	handler := dsproxy.Handler(
		dsproxy.WithCredentials(dsproxy.NewStaticCredentials(map[string]descriptor.AuthConfig{
			"countries": {Kind: descriptor.AuthBearer, Token: "s3cret"},
		})),
	)

	rec := postJSON(t, handler, proxyBody(map[string]any{
		"formContext": map[string]any{"upstream": upstream.URL},
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Items []descriptor.FieldItem `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].Label != "France" || payload.Items[0].Value != "FR" {
		t.Fatalf("items: %#v", payload.Items)
	}
}

func TestHandler_MissingDataSourceID(t *testing.T) {
	t.Parallel()

	handler := dsproxy.Handler()
	rec := postJSON(t, handler, proxyBody(map[string]any{"dataSourceId": nil}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg := decodeError(t, rec); !strings.Contains(msg, "dataSourceId") {
		t.Fatalf("error does not name the field: %q", msg)
	}
}

func TestHandler_FieldErrorsInDocumentedOrder(t *testing.T) {
	t.Parallel()

	handler := dsproxy.Handler()

	// Everything missing: dataSourceId is reported first.
	rec := postJSON(t, handler, `{}`)
	if msg := decodeError(t, rec); !strings.Contains(msg, "dataSourceId") {
		t.Fatalf("first error = %q, want dataSourceId", msg)
	}

	// dataSourceId present: urlTemplate is next.
	rec = postJSON(t, handler, `{"dataSourceId": "x"}`)
	if msg := decodeError(t, rec); !strings.Contains(msg, "urlTemplate") {
		t.Fatalf("second error = %q, want urlTemplate", msg)
	}

	rec = postJSON(t, handler, `{"dataSourceId": "x", "urlTemplate": "u"}`)
	if msg := decodeError(t, rec); !strings.Contains(msg, "itemsTemplate") {
		t.Fatalf("third error = %q, want itemsTemplate", msg)
	}

	rec = postJSON(t, handler, `{"dataSourceId": "x", "urlTemplate": "u", "itemsTemplate": "i"}`)
	if msg := decodeError(t, rec); !strings.Contains(msg, "formContext") {
		t.Fatalf("fourth error = %q, want formContext", msg)
	}
}

func TestHandler_TypeMismatch(t *testing.T) {
	t.Parallel()

	handler := dsproxy.Handler()
	rec := postJSON(t, handler, `{"dataSourceId": 42}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg := decodeError(t, rec); !strings.Contains(msg, "dataSourceId") {
		t.Fatalf("error = %q", msg)
	}
}

func TestHandler_MalformedJSON(t *testing.T) {
	t.Parallel()

	handler := dsproxy.Handler()
	rec := postJSON(t, handler, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandler_UnknownCredentials(t *testing.T) {
	t.Parallel()

	handler := dsproxy.Handler(
		dsproxy.WithCredentials(dsproxy.NewStaticCredentials(nil)),
	)
	rec := postJSON(t, handler, proxyBody(nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg := decodeError(t, rec); !strings.Contains(msg, "countries") {
		t.Fatalf("error does not name the data source: %q", msg)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	handler := dsproxy.Handler()
	req := httptest.NewRequest(http.MethodGet, "/data-source/proxy", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != http.MethodPost {
		t.Fatalf("Allow = %q", got)
	}
}

func TestHandler_GuardRejects(t *testing.T) {
	t.Parallel()

	handler := dsproxy.Handler(
		dsproxy.WithGuard(func(r *http.Request) error {
			if r.Header.Get("X-Session") == "" {
				return dsproxy.StatusError{Code: http.StatusUnauthorized}
			}
			return nil
		}),
	)
	rec := postJSON(t, handler, proxyBody(nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandler_UpstreamFailure(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	handler := dsproxy.Handler(
		dsproxy.WithCredentials(dsproxy.NewStaticCredentials(map[string]descriptor.AuthConfig{
			"countries": {Kind: descriptor.AuthBearer, Token: "t"},
		})),
	)
	rec := postJSON(t, handler, proxyBody(map[string]any{
		"formContext": map[string]any{"upstream": upstream.URL},
	}))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPopinHandler_ReturnsObjectVerbatim(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Api-Key"); got != "k3y" {
			t.Errorf("X-Api-Key = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"street": "Main St", "zip": "75001"})
	}))
	defer upstream.Close()

	handler := dsproxy.PopinHandler(
		dsproxy.WithCredentials(dsproxy.NewStaticCredentials(map[string]descriptor.AuthConfig{
			"addresses": {Kind: descriptor.AuthAPIKey, Header: "X-Api-Key", Value: "k3y"},
		})),
	)

	body, _ := json.Marshal(map[string]any{
		"dataSourceId": "addresses",
		"urlTemplate":  "{{ upstream }}/address",
		"blockId":      "address-block",
		"formContext":  map[string]any{"upstream": upstream.URL},
	})
	rec := postJSON(t, handler, string(body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["street"] != "Main St" || payload["zip"] != "75001" {
		t.Fatalf("payload: %#v", payload)
	}
}

func TestPopinHandler_ArrayResponseIsServerError(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{{"street": "Main St"}})
	}))
	defer upstream.Close()

	handler := dsproxy.PopinHandler(
		dsproxy.WithCredentials(dsproxy.NewStaticCredentials(map[string]descriptor.AuthConfig{
			"addresses": {Kind: descriptor.AuthBearer, Token: "t"},
		})),
	)

	body, _ := json.Marshal(map[string]any{
		"dataSourceId": "addresses",
		"urlTemplate":  "{{ upstream }}/address",
		"blockId":      "address-block",
		"formContext":  map[string]any{"upstream": upstream.URL},
	})
	rec := postJSON(t, handler, string(body))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for array payload", rec.Code)
	}
	if msg := decodeError(t, rec); !strings.Contains(msg, "expected an object") {
		t.Fatalf("error = %q", msg)
	}
}

func TestPopinHandler_RequiresBlockID(t *testing.T) {
	t.Parallel()

	handler := dsproxy.PopinHandler()
	body, _ := json.Marshal(map[string]any{
		"dataSourceId": "addresses",
		"urlTemplate":  "u",
		"formContext":  map[string]any{},
	})
	rec := postJSON(t, handler, string(body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg := decodeError(t, rec); !strings.Contains(msg, "blockId") {
		t.Fatalf("error = %q", msg)
	}
}

func TestRegisterRoutes(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	proxyPattern, popinPattern, err := dsproxy.RegisterRoutes(mux, "/api/forms")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if proxyPattern != "/api/forms/data-source/proxy" {
		t.Fatalf("proxy pattern = %q", proxyPattern)
	}
	if popinPattern != "/api/forms/data-source/popin-load-proxy" {
		t.Fatalf("popin pattern = %q", popinPattern)
	}

	req := httptest.NewRequest(http.MethodGet, proxyPattern, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("mounted handler status = %d", rec.Code)
	}
}
