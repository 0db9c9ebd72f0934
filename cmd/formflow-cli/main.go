package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/goliatone/go-formflow/pkg/casecontext"
	"github.com/goliatone/go-formflow/pkg/descriptor"
	"github.com/goliatone/go-formflow/pkg/engine"
	"github.com/goliatone/go-formflow/pkg/openapi"
	"github.com/goliatone/go-formflow/pkg/rehydrate"
	"github.com/goliatone/go-formflow/pkg/rulestore"
	"github.com/goliatone/go-formflow/pkg/tui"
)

func main() {
	descriptorDir := flag.String("descriptors", "descriptors", "directory of form descriptor documents")
	openapiPath := flag.String("openapi", "", "import the form from an OpenAPI document instead")
	operationID := flag.String("operation", "", "operation ID to import (with -openapi)")
	rulesDir := flag.String("rules", "", "directory of rule set documents (optional)")
	rulesURL := flag.String("rules-url", "", "remote rules endpoint (optional, overrides -rules)")
	prefillPath := flag.String("prefill", "", "case context prefill JSON file (optional)")
	output := flag.String("output", "", "output file (stdout if empty)")
	submit := flag.Bool("submit", false, "submit the collected form data")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx := context.Background()
	if err := run(ctx, logger, *descriptorDir, *openapiPath, *operationID, *rulesDir, *rulesURL, *prefillPath, *output, *submit); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, descriptorDir, openapiPath, operationID, rulesDir, rulesURL, prefillPath, output string, submit bool) error {
	global, subForms, err := loadForm(ctx, descriptorDir, openapiPath, operationID)
	if err != nil {
		return err
	}

	fetcher, err := buildFetcher(rulesDir, rulesURL)
	if err != nil {
		return err
	}

	var prefill casecontext.Prefill
	if prefillPath != "" {
		data, err := os.ReadFile(prefillPath)
		if err != nil {
			return fmt.Errorf("read prefill: %w", err)
		}
		if err := json.Unmarshal(data, &prefill); err != nil {
			return fmt.Errorf("parse prefill: %w", err)
		}
	}

	opts := []engine.Option{engine.WithLogger(logger)}
	if fetcher != nil {
		opts = append(opts, engine.WithRulesFetcher(fetcher))
	}
	eng := engine.New(opts...)
	defer eng.Stop()

	if err := eng.Prepare(ctx, global, subForms, prefill); err != nil {
		return err
	}

	filler := tui.New()
	formData, err := filler.Fill(ctx, eng, nil)
	if err != nil {
		return err
	}

	if submit {
		if err := eng.Submit(ctx, formData); err != nil {
			return fmt.Errorf("submit: %w", err)
		}
	}

	encoded, err := json.MarshalIndent(formData, "", "  ")
	if err != nil {
		return err
	}
	if output != "" {
		return os.WriteFile(output, encoded, 0o644)
	}
	_, err = fmt.Fprintln(os.Stdout, string(encoded))
	return err
}

func loadForm(ctx context.Context, descriptorDir, openapiPath, operationID string) (descriptor.GlobalFormDescriptor, map[string]descriptor.SubFormDescriptor, error) {
	if openapiPath != "" {
		if operationID == "" {
			return descriptor.GlobalFormDescriptor{}, nil, fmt.Errorf("-operation is required with -openapi")
		}
		data, err := os.ReadFile(openapiPath)
		if err != nil {
			return descriptor.GlobalFormDescriptor{}, nil, fmt.Errorf("read OpenAPI document: %w", err)
		}
		global, err := openapi.Import(ctx, data, operationID)
		if err != nil {
			return descriptor.GlobalFormDescriptor{}, nil, err
		}
		return global, nil, nil
	}

	library, err := descriptor.LoadFS(os.DirFS(descriptorDir))
	if err != nil {
		return descriptor.GlobalFormDescriptor{}, nil, fmt.Errorf("load descriptors from %q: %w", descriptorDir, err)
	}
	global, ok := library.Global()
	if !ok {
		return descriptor.GlobalFormDescriptor{}, nil, fmt.Errorf("no global descriptor found under %q", descriptorDir)
	}
	return global, library.SubForms(), nil
}

// buildFetcher wires rule rehydration either against a local rule set
// directory or a remote endpoint speaking the rules/context contract.
func buildFetcher(rulesDir, rulesURL string) (rehydrate.Fetcher, error) {
	if rulesURL != "" {
		return remoteFetcher(rulesURL), nil
	}
	if rulesDir == "" {
		return nil, nil
	}
	store, err := rulestore.LoadFS(os.DirFS(rulesDir))
	if err != nil {
		return nil, fmt.Errorf("load rules from %q: %w", rulesDir, err)
	}
	return rehydrate.FetcherFunc(func(ctx context.Context, cc casecontext.Context) (*descriptor.RulesObject, error) {
		overlay := store.Match(cc)
		return &overlay, nil
	}), nil
}

func remoteFetcher(url string) rehydrate.Fetcher {
	return rehydrate.FetcherFunc(func(ctx context.Context, cc casecontext.Context) (*descriptor.RulesObject, error) {
		payload, err := json.Marshal(cc)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return nil, fmt.Errorf("rules endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		}
		var overlay descriptor.RulesObject
		if err := json.NewDecoder(resp.Body).Decode(&overlay); err != nil {
			return nil, err
		}
		return &overlay, nil
	})
}
