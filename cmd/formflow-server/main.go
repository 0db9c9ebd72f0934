package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formflow/components/descriptorapi"
	"github.com/goliatone/go-formflow/components/dsproxy"
	"github.com/goliatone/go-formflow/pkg/descriptor"
	"github.com/goliatone/go-formflow/pkg/rulestore"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	descriptorDir := flag.String("descriptors", "descriptors", "directory of form descriptor documents")
	rulesDir := flag.String("rules", "", "directory of rule set documents (optional)")
	credentialsPath := flag.String("credentials", "", "data source credentials file (optional)")
	basePath := flag.String("base-path", "/api/forms", "mount prefix for all routes")
	corsOrigins := flag.String("cors-origins", "*", "comma-separated allowed CORS origins")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger, *addr, *descriptorDir, *rulesDir, *credentialsPath, *basePath, *corsOrigins); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, addr, descriptorDir, rulesDir, credentialsPath, basePath, corsOrigins string) error {
	library, err := descriptor.LoadFS(os.DirFS(descriptorDir))
	if err != nil {
		return fmt.Errorf("load descriptors from %q: %w", descriptorDir, err)
	}
	logger.Info("descriptors loaded", "dir", descriptorDir, "subForms", len(library.SubFormIDs()))

	rules := rulestore.New(nil)
	if rulesDir != "" {
		rules, err = rulestore.LoadFS(os.DirFS(rulesDir))
		if err != nil {
			return fmt.Errorf("load rules from %q: %w", rulesDir, err)
		}
		logger.Info("rule sets loaded", "dir", rulesDir, "count", rules.Len())
	}

	credentials := dsproxy.NewStaticCredentials(nil)
	if credentialsPath != "" {
		creds, err := loadCredentials(credentialsPath)
		if err != nil {
			return fmt.Errorf("load credentials from %q: %w", credentialsPath, err)
		}
		credentials = dsproxy.NewStaticCredentials(creds)
		logger.Info("data source credentials loaded", "count", len(creds))
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: splitOrigins(corsOrigins),
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	descriptorPattern, rulesPattern, err := descriptorapi.RegisterRoutes(router, basePath,
		descriptorapi.WithLibrary(library),
		descriptorapi.WithRules(rules),
		descriptorapi.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	logger.Info("descriptor routes mounted", "descriptor", descriptorPattern, "rules", rulesPattern)

	proxyPattern, popinPattern, err := dsproxy.RegisterRoutes(router, basePath,
		dsproxy.WithCredentials(credentials),
		dsproxy.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	logger.Info("proxy routes mounted", "proxy", proxyPattern, "popin", popinPattern)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}

// loadCredentials reads a dataSourceID -> auth config map. JSON is tried
// first, then YAML, matching how descriptor documents are parsed.
func loadCredentials(path string) (map[string]descriptor.AuthConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := map[string]descriptor.AuthConfig{}
	if jsonErr := json.Unmarshal(data, &out); jsonErr != nil {
		if yamlErr := yaml.Unmarshal(data, &out); yamlErr != nil {
			return nil, fmt.Errorf("parse as JSON (%v) or YAML: %w", jsonErr, yamlErr)
		}
	}
	return out, nil
}

func splitOrigins(raw string) []string {
	var out []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}
