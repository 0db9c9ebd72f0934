// Package descriptorapi exposes the descriptor-serving side of the engine's
// HTTP contract: GET /global-descriptor returns the raw global descriptor
// (sub-form references included; clients resolve) and POST /rules/context
// answers a case context with the matching rules overlay.
package descriptorapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-formflow/pkg/casecontext"
)

type errorResponse struct {
	Error string `json:"error"`
}

// DescriptorHandler serves the global descriptor.
func DescriptorHandler(fns ...OptionFn) http.Handler {
	opts := NewOptions(fns...)
	return descriptorHandlerWithOptions(opts)
}

func descriptorHandlerWithOptions(opts Options) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", http.MethodGet+", "+http.MethodHead)
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: http.StatusText(http.StatusMethodNotAllowed)})
			return
		}

		global, ok := opts.Library.Global()
		if !ok {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "descriptorapi: no global descriptor loaded"})
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(true)
		_ = enc.Encode(global)
	})
}

// RulesHandler answers case contexts with rules overlays.
func RulesHandler(fns ...OptionFn) http.Handler {
	opts := NewOptions(fns...)
	return rulesHandlerWithOptions(opts)
}

func rulesHandlerWithOptions(opts Options) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: http.StatusText(http.StatusMethodNotAllowed)})
			return
		}

		var ctx casecontext.Context
		if err := json.NewDecoder(r.Body).Decode(&ctx); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("descriptorapi: malformed case context: %v", err)})
			return
		}

		overlay := opts.Rules.Match(ctx)
		writeJSON(w, http.StatusOK, overlay)
	})
}

// Mux is the minimal interface required to register net/http handlers.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// RegisterRoutes mounts both handlers under basePath and reports the mounted
// patterns (descriptor, rules).
func RegisterRoutes(mux Mux, basePath string, fns ...OptionFn) (string, string, error) {
	if mux == nil {
		return "", "", fmt.Errorf("descriptorapi: missing mux")
	}
	opts := NewOptions(fns...)

	descriptorPattern := mountPath(basePath, opts.DescriptorRoutePath)
	rulesPattern := mountPath(basePath, opts.RulesRoutePath)
	mux.Handle(descriptorPattern, descriptorHandlerWithOptions(opts))
	mux.Handle(rulesPattern, rulesHandlerWithOptions(opts))
	return descriptorPattern, rulesPattern, nil
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(payload)
}

func mountPath(basePath, routePath string) string {
	basePath = strings.TrimSpace(basePath)
	routePath = strings.TrimSpace(routePath)

	if routePath == "" {
		routePath = "/"
	}
	if !strings.HasPrefix(routePath, "/") {
		routePath = "/" + routePath
	}

	if basePath == "" || basePath == "/" {
		return routePath
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimRight(basePath, "/")
	return basePath + routePath
}
