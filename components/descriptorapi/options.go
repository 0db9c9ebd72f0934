package descriptorapi

import (
	"log/slog"

	"github.com/goliatone/go-formflow/pkg/descriptor"
	"github.com/goliatone/go-formflow/pkg/rulestore"
)

type Options struct {
	DescriptorRoutePath string
	RulesRoutePath      string
	Library             *descriptor.Library
	Rules               *rulestore.Store
	Logger              *slog.Logger
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{
		DescriptorRoutePath: "/global-descriptor",
		RulesRoutePath:      "/rules/context",
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
	if opts.DescriptorRoutePath == "" {
		opts.DescriptorRoutePath = "/global-descriptor"
	}
	if opts.RulesRoutePath == "" {
		opts.RulesRoutePath = "/rules/context"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts
}

func WithLibrary(library *descriptor.Library) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Library = library
	}
}

func WithRules(store *rulestore.Store) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Rules = store
	}
}

func WithDescriptorRoutePath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.DescriptorRoutePath = path
	}
}

func WithRulesRoutePath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.RulesRoutePath = path
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
