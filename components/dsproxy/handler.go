// Package dsproxy provides the server side of the data-source contract: a
// net/http component that evaluates URL templates, injects stored credentials
// by data source ID, calls the upstream service, and shapes the response. The
// client never sees the credential, only the DataSourceID naming it.
package dsproxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/goliatone/go-formflow/pkg/datasource"
	"github.com/goliatone/go-formflow/pkg/template"
)

type HTTPError interface {
	error
	StatusCode() int
}

type StatusError struct {
	Code int
	Err  error
}

func (e StatusError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e StatusError) Unwrap() error { return e.Err }

func (e StatusError) StatusCode() int {
	if e.Code <= 0 {
		return http.StatusInternalServerError
	}
	return e.Code
}

type errorResponse struct {
	Error string `json:"error"`
}

type itemsResponse struct {
	Items any `json:"items"`
}

// Handler builds the proxy handler with default options plus any overrides.
func Handler(fns ...OptionFn) http.Handler {
	opts := NewOptions(fns...)
	return HandlerWithOptions(opts)
}

// HandlerWithOptions builds the proxy handler from a pre-constructed Options
// value. Callers are expected to pass an Options value produced by NewOptions
// so defaults apply.
func HandlerWithOptions(opts Options) http.Handler {
	opts = NewOptions(func(o *Options) { *o = opts })
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r == nil {
			writeError(w, StatusError{Code: http.StatusBadRequest})
			return
		}
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, StatusError{Code: http.StatusMethodNotAllowed})
			return
		}
		if opts.Guard != nil {
			if err := opts.Guard(r); err != nil {
				writeGuardError(w, err)
				return
			}
		}

		body, err := decodeBody(r)
		if err != nil {
			writeError(w, err)
			return
		}

		req, err := parseProxyRequest(body)
		if err != nil {
			writeError(w, err)
			return
		}

		items, err := serveProxy(r, opts, req)
		if err != nil {
			opts.Logger.Warn("data-source proxy failed", "dataSourceId", req.dataSourceID, "error", err)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, itemsResponse{Items: items})
	})
}

type parsedProxyRequest struct {
	dataSourceID  string
	urlTemplate   string
	itemsTemplate string
	evaluatedURL  string
	blockID       string
	formContext   map[string]any
}

// decodeBody reads the request body into a generic map so field checks can
// report presence and type mismatches in the documented order.
func decodeBody(r *http.Request) (map[string]any, error) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, StatusError{Code: http.StatusBadRequest, Err: fmt.Errorf("dsproxy: malformed JSON body: %w", err)}
	}
	return body, nil
}

// parseProxyRequest validates fields in order: dataSourceId, urlTemplate,
// itemsTemplate, formContext. The first failing field determines the error.
func parseProxyRequest(body map[string]any) (parsedProxyRequest, error) {
	req := parsedProxyRequest{}
	var err error

	if req.dataSourceID, err = stringField(body, "dataSourceId"); err != nil {
		return req, err
	}
	if req.urlTemplate, err = stringField(body, "urlTemplate"); err != nil {
		return req, err
	}
	if req.itemsTemplate, err = stringField(body, "itemsTemplate"); err != nil {
		return req, err
	}
	if req.formContext, err = objectField(body, "formContext"); err != nil {
		return req, err
	}
	return req, nil
}

func stringField(body map[string]any, name string) (string, error) {
	raw, ok := body[name]
	if !ok || raw == nil {
		return "", StatusError{Code: http.StatusBadRequest, Err: fmt.Errorf("dsproxy: missing required field %q", name)}
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", StatusError{Code: http.StatusBadRequest, Err: fmt.Errorf("dsproxy: field %q must be a non-empty string", name)}
	}
	return value, nil
}

func objectField(body map[string]any, name string) (map[string]any, error) {
	raw, ok := body[name]
	if !ok || raw == nil {
		return nil, StatusError{Code: http.StatusBadRequest, Err: fmt.Errorf("dsproxy: missing required field %q", name)}
	}
	value, ok := raw.(map[string]any)
	if !ok {
		return nil, StatusError{Code: http.StatusBadRequest, Err: fmt.Errorf("dsproxy: field %q must be an object", name)}
	}
	return value, nil
}

func serveProxy(r *http.Request, opts Options, req parsedProxyRequest) (any, error) {
	payload, err := callUpstream(r, opts, req.dataSourceID, req.urlTemplate, "", req.formContext)
	if err != nil {
		return nil, err
	}

	items, err := datasource.TransformItems(opts.Evaluator, req.itemsTemplate, "", payload, req.formContext)
	if err != nil {
		return nil, StatusError{Code: http.StatusInternalServerError, Err: err}
	}
	return items, nil
}

// callUpstream resolves credentials, evaluates the URL template (unless the
// caller already evaluated it), and issues the authenticated GET.
func callUpstream(r *http.Request, opts Options, dataSourceID, urlTemplate, evaluatedURL string, formContext map[string]any) (any, error) {
	if opts.Credentials == nil {
		return nil, StatusError{Code: http.StatusInternalServerError, Err: errors.New("dsproxy: no credential store configured")}
	}
	auth, ok := opts.Credentials.Credentials(dataSourceID)
	if !ok {
		return nil, StatusError{Code: http.StatusNotFound, Err: fmt.Errorf("dsproxy: credentials for %q not found", dataSourceID)}
	}

	target := evaluatedURL
	if target == "" {
		var err error
		target, err = template.EvaluateString(opts.Evaluator, urlTemplate, formContext)
		if err != nil {
			return nil, StatusError{Code: http.StatusBadRequest, Err: fmt.Errorf("dsproxy: url template: %w", err)}
		}
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		return nil, StatusError{Code: http.StatusBadRequest, Err: fmt.Errorf("dsproxy: build upstream request: %w", err)}
	}
	upstreamReq.Header.Set("Accept", "application/json")
	if err := applyAuth(upstreamReq, dataSourceID, auth); err != nil {
		return nil, StatusError{Code: http.StatusBadRequest, Err: err}
	}

	resp, err := opts.Upstream.Do(upstreamReq)
	if err != nil {
		return nil, StatusError{Code: http.StatusInternalServerError, Err: fmt.Errorf("dsproxy: upstream call: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, StatusError{Code: http.StatusInternalServerError, Err: fmt.Errorf("dsproxy: upstream status %d", resp.StatusCode)}
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, StatusError{Code: http.StatusInternalServerError, Err: fmt.Errorf("dsproxy: decode upstream response: %w", err)}
	}
	return payload, nil
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	if w == nil {
		return
	}
	code := http.StatusInternalServerError
	var httpErr HTTPError
	if errors.As(err, &httpErr) && httpErr != nil {
		code = httpErr.StatusCode()
	}
	message := http.StatusText(code)
	if err != nil && err.Error() != "" {
		message = err.Error()
	}
	writeJSON(w, code, errorResponse{Error: message})
}

func writeGuardError(w http.ResponseWriter, err error) {
	if err == nil {
		writeError(w, StatusError{Code: http.StatusForbidden})
		return
	}
	var httpErr HTTPError
	if errors.As(err, &httpErr) && httpErr != nil {
		writeError(w, err)
		return
	}
	writeError(w, StatusError{Code: http.StatusForbidden, Err: err})
}
