package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

// Pongo is the default Evaluator, backed by a pongo2 template set. Compiled
// templates are cached by content so repeated status evaluations against a
// changing context stay cheap.
type Pongo struct {
	mu        sync.RWMutex
	set       *pongo2.TemplateSet
	templates map[string]*pongo2.Template
}

var _ Evaluator = (*Pongo)(nil)

// NewPongo constructs a Pongo evaluator with an empty template cache.
func NewPongo() *Pongo {
	return &Pongo{
		set:       pongo2.NewSet("formflow", nil),
		templates: make(map[string]*pongo2.Template),
	}
}

// Evaluate renders tpl against ctx. Strings with no template markers pass
// through untouched. Rendered output that decodes as JSON is returned as the
// decoded value so templates can produce arrays, objects, numbers, and
// booleans; everything else stays a string.
func (p *Pongo) Evaluate(tpl string, ctx map[string]any) (any, error) {
	if !IsTemplate(tpl) {
		return tpl, nil
	}

	// A template that is one bare variable reference resolves to the native
	// value, so iterator templates can return arrays and objects instead of
	// their text rendering.
	if path, ok := singleVariable(tpl); ok {
		if value, found := lookupPath(ctx, path); found {
			return value, nil
		}
	}

	tmpl, err := p.compile(tpl)
	if err != nil {
		return nil, fmt.Errorf("template: parse %q: %w", tpl, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(pongo2.Context(ctx), &buf); err != nil {
		return nil, fmt.Errorf("template: execute %q: %w", tpl, err)
	}

	return decodeRendered(buf.String()), nil
}

// IsTemplate reports whether s contains template markers worth evaluating.
func IsTemplate(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "{%")
}

func (p *Pongo) compile(tpl string) (*pongo2.Template, error) {
	p.mu.RLock()
	cached, ok := p.templates[tpl]
	p.mu.RUnlock()
	if ok {
		return cached, nil
	}

	compiled, err := p.set.FromString(tpl)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.templates[tpl] = compiled
	p.mu.Unlock()
	return compiled, nil
}

var singleVariablePattern = regexp.MustCompile(`^\{\{\s*([A-Za-z_][\w.]*)\s*\}\}$`)

func singleVariable(tpl string) (string, bool) {
	match := singleVariablePattern.FindStringSubmatch(strings.TrimSpace(tpl))
	if match == nil {
		return "", false
	}
	return match[1], true
}

func lookupPath(ctx map[string]any, path string) (any, bool) {
	current := any(ctx)
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// decodeRendered re-decodes JSON-shaped output so structured template results
// round-trip as values. Plain text, including bare words, stays a string;
// only unambiguous JSON literals and containers convert.
func decodeRendered(rendered string) any {
	trimmed := strings.TrimSpace(rendered)
	if trimmed == "" {
		return ""
	}
	switch trimmed[0] {
	case '{', '[', '"', 't', 'f', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var value any
		if err := json.Unmarshal([]byte(trimmed), &value); err == nil {
			return value
		}
	}
	return trimmed
}
