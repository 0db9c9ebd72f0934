package dsproxy

import (
	"log/slog"
	"net/http"

	"github.com/goliatone/go-formflow/pkg/template"
)

// HTTPClient is the upstream client surface. *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type GuardFunc func(r *http.Request) error

type Options struct {
	RoutePath      string
	PopinRoutePath string
	Credentials    CredentialStore
	Upstream       HTTPClient
	Evaluator      template.Evaluator
	Guard          GuardFunc
	Logger         *slog.Logger
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{
		RoutePath:      "/data-source/proxy",
		PopinRoutePath: "/data-source/popin-load-proxy",
		Upstream:       http.DefaultClient,
	}
}

func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn(&opts)
	}
	if opts.RoutePath == "" {
		opts.RoutePath = "/data-source/proxy"
	}
	if opts.PopinRoutePath == "" {
		opts.PopinRoutePath = "/data-source/popin-load-proxy"
	}
	if opts.Upstream == nil {
		opts.Upstream = http.DefaultClient
	}
	if opts.Evaluator == nil {
		opts.Evaluator = template.NewPongo()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts
}

func WithRoutePath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.RoutePath = path
	}
}

func WithPopinRoutePath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.PopinRoutePath = path
	}
}

func WithCredentials(store CredentialStore) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Credentials = store
	}
}

func WithUpstream(client HTTPClient) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Upstream = client
	}
}

func WithEvaluator(ev template.Evaluator) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Evaluator = ev
	}
}

func WithGuard(guard GuardFunc) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Guard = guard
	}
}

func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Logger = logger
	}
}
