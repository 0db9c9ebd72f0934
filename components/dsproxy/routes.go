package dsproxy

import (
	"fmt"
	"net/http"
	"strings"
)

// Mux is the minimal interface required to register a net/http handler.
// It is satisfied by *http.ServeMux and by chi routers.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// RegisterRoutes mounts both proxy variants under basePath on mux and reports
// the two mounted patterns (proxy, popin).
func RegisterRoutes(mux Mux, basePath string, fns ...OptionFn) (string, string, error) {
	opts := NewOptions(fns...)
	return RegisterRoutesWithOptions(mux, basePath, opts)
}

// RegisterRoutesWithOptions mounts both proxy variants using a pre-built
// Options value.
func RegisterRoutesWithOptions(mux Mux, basePath string, opts Options) (string, string, error) {
	if mux == nil {
		return "", "", fmt.Errorf("dsproxy: missing mux")
	}
	opts = NewOptions(func(o *Options) { *o = opts })

	proxyPattern := mountPath(basePath, opts.RoutePath)
	popinPattern := mountPath(basePath, opts.PopinRoutePath)
	mux.Handle(proxyPattern, HandlerWithOptions(opts))
	mux.Handle(popinPattern, PopinHandlerWithOptions(opts))
	return proxyPattern, popinPattern, nil
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
