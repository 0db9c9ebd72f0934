// Package datasource resolves dynamic option lists for fields: it evaluates
// the configured URL template, fetches the payload (directly or through the
// credential-injecting proxy), shapes the response into items, and caches the
// result per field and evaluated parameters.
package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/goliatone/go-formflow/pkg/descriptor"
	"github.com/goliatone/go-formflow/pkg/template"
)

// HTTPClient is the minimal client surface the loader needs. *http.Client
// satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customises the Loader.
type Option func(*Loader)

// WithHTTPClient overrides the HTTP client used for fetches.
func WithHTTPClient(client HTTPClient) Option {
	return func(l *Loader) {
		if client != nil {
			l.client = client
		}
	}
}

// WithProxyURL sets the endpoint the loader POSTs to when a field's data
// source names a DataSourceID. Defaults to "/data-source/proxy".
func WithProxyURL(url string) Option {
	return func(l *Loader) {
		if url != "" {
			l.proxyURL = url
		}
	}
}

// Loader fetches and caches dynamic options. Loads for different fields are
// fully independent; same-field reloads follow last-issued-wins, so a stale
// slow response never overwrites a fresher cache entry.
type Loader struct {
	evaluator template.Evaluator
	client    HTTPClient
	proxyURL  string

	mu     sync.Mutex
	cache  map[string][]descriptor.FieldItem
	issued map[string]uint64
}

// New constructs a Loader around the given evaluator.
func New(evaluator template.Evaluator, options ...Option) *Loader {
	l := &Loader{
		evaluator: evaluator,
		client:    http.DefaultClient,
		proxyURL:  "/data-source/proxy",
		cache:     make(map[string][]descriptor.FieldItem),
		issued:    make(map[string]uint64),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(l)
	}
	return l
}

// Load resolves options for field against formContext. Results are cached by
// field ID plus the evaluated parameters, so repeated loads for an unchanged
// context are served without a fetch.
func (l *Loader) Load(ctx context.Context, field descriptor.FieldDescriptor, formContext map[string]any) ([]descriptor.FieldItem, error) {
	cfg := field.DataSource
	if cfg == nil {
		return nil, fmt.Errorf("datasource: field %q has no data source", field.ID)
	}

	evaluatedURL, err := template.EvaluateString(l.evaluator, cfg.URL, formContext)
	if err != nil {
		return nil, fmt.Errorf("datasource: field %q url template: %w", field.ID, err)
	}

	key := cacheKey(field.ID, cfg.DataSourceID, evaluatedURL, formContext)
	l.mu.Lock()
	if items, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return items, nil
	}
	l.issued[field.ID]++
	token := l.issued[field.ID]
	l.mu.Unlock()

	var items []descriptor.FieldItem
	if cfg.DataSourceID != "" {
		items, err = l.loadViaProxy(ctx, cfg, formContext)
	} else {
		items, err = l.loadDirect(ctx, cfg, evaluatedURL, formContext)
	}
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	if l.issued[field.ID] == token {
		l.cache[key] = items
	}
	l.mu.Unlock()
	return items, nil
}

// Invalidate drops cached entries for a field, forcing the next Load to
// fetch. Used when the form context feeding the field's templates changes.
func (l *Loader) Invalidate(fieldID string) {
	prefix := fieldID + "|"
	l.mu.Lock()
	for key := range l.cache {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(l.cache, key)
		}
	}
	l.mu.Unlock()
}

func (l *Loader) loadDirect(ctx context.Context, cfg *descriptor.DataSourceConfig, url string, formContext map[string]any) ([]descriptor.FieldItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("datasource: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("datasource: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("datasource: fetch %s: status %d", url, resp.StatusCode)
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("datasource: decode response: %w", err)
	}

	return TransformItems(l.evaluator, cfg.ItemsTemplate, cfg.IteratorTemplate, payload, formContext)
}

// proxyRequest is the body POSTed to the data-source proxy. The proxy
// evaluates the templates itself so credentials and upstream traffic stay
// server-side.
type proxyRequest struct {
	DataSourceID  string         `json:"dataSourceId"`
	URLTemplate   string         `json:"urlTemplate"`
	ItemsTemplate string         `json:"itemsTemplate"`
	FormContext   map[string]any `json:"formContext"`
}

type proxyResponse struct {
	Items []descriptor.FieldItem `json:"items"`
	Error string                 `json:"error,omitempty"`
}

func (l *Loader) loadViaProxy(ctx context.Context, cfg *descriptor.DataSourceConfig, formContext map[string]any) ([]descriptor.FieldItem, error) {
	body, err := json.Marshal(proxyRequest{
		DataSourceID:  cfg.DataSourceID,
		URLTemplate:   cfg.URL,
		ItemsTemplate: cfg.ItemsTemplate,
		FormContext:   formContext,
	})
	if err != nil {
		return nil, fmt.Errorf("datasource: encode proxy request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.proxyURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("datasource: build proxy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("datasource: proxy call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("datasource: read proxy response: %w", err)
	}

	var decoded proxyResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("datasource: decode proxy response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Error != "" {
			return nil, fmt.Errorf("datasource: proxy: %s", decoded.Error)
		}
		return nil, fmt.Errorf("datasource: proxy: status %d", resp.StatusCode)
	}
	return decoded.Items, nil
}

// cacheKey digests the inputs that reach the wire: field identity, the data
// source ID for proxied loads, the evaluated URL (which embeds every template
// parameter), and the form context feeding the item templates.
func cacheKey(fieldID, dataSourceID, evaluatedURL string, formContext map[string]any) string {
	digest := fnv.New64a()
	io.WriteString(digest, dataSourceID)
	io.WriteString(digest, "\x00")
	io.WriteString(digest, evaluatedURL)
	io.WriteString(digest, "\x00")
	io.WriteString(digest, ContextDigest(formContext))
	return fieldID + "|" + strconv.FormatUint(digest.Sum64(), 16)
}

// ContextDigest hashes a form context deterministically.
func ContextDigest(formContext map[string]any) string {
	keys := make([]string, 0, len(formContext))
	for key := range formContext {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	digest := fnv.New64a()
	for _, key := range keys {
		io.WriteString(digest, key)
		io.WriteString(digest, "=")
		fmt.Fprintf(digest, "%v", formContext[key])
		io.WriteString(digest, ";")
	}
	return strconv.FormatUint(digest.Sum64(), 16)
}
