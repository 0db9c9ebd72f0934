package dsproxy

import (
	"fmt"
	"net/http"
)

// PopinHandler builds the popin-load variant of the proxy. It targets
// upstreams returning a single object to be merged into the form context
// rather than an option list: no items transform runs, the raw object is
// returned verbatim, and an array or non-object upstream response is a hard
// error.
func PopinHandler(fns ...OptionFn) http.Handler {
	opts := NewOptions(fns...)
	return PopinHandlerWithOptions(opts)
}

// PopinHandlerWithOptions builds the popin-load handler from a pre-built
// Options value.
func PopinHandlerWithOptions(opts Options) http.Handler {
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

		req, err := parsePopinRequest(body)
		if err != nil {
			writeError(w, err)
			return
		}

		payload, err := callUpstream(r, opts, req.dataSourceID, req.urlTemplate, req.evaluatedURL, req.formContext)
		if err != nil {
			opts.Logger.Warn("popin-load proxy failed", "dataSourceId", req.dataSourceID, "blockId", req.blockID, "error", err)
			writeError(w, err)
			return
		}

		object, ok := payload.(map[string]any)
		if !ok {
			err := StatusError{Code: http.StatusInternalServerError, Err: fmt.Errorf("dsproxy: upstream returned %T, expected an object", payload)}
			opts.Logger.Warn("popin-load proxy failed", "dataSourceId", req.dataSourceID, "blockId", req.blockID, "error", err)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, object)
	})
}

// parsePopinRequest validates fields in order: dataSourceId, urlTemplate,
// blockId, formContext. evaluatedUrl is optional; when present it skips the
// server-side template evaluation.
func parsePopinRequest(body map[string]any) (parsedProxyRequest, error) {
	req := parsedProxyRequest{}
	var err error

	if req.dataSourceID, err = stringField(body, "dataSourceId"); err != nil {
		return req, err
	}
	if req.urlTemplate, err = stringField(body, "urlTemplate"); err != nil {
		return req, err
	}
	if req.blockID, err = stringField(body, "blockId"); err != nil {
		return req, err
	}
	if req.formContext, err = objectField(body, "formContext"); err != nil {
		return req, err
	}
	if raw, ok := body["evaluatedUrl"]; ok && raw != nil {
		if value, ok := raw.(string); ok {
			req.evaluatedURL = value
		}
	}
	return req, nil
}
