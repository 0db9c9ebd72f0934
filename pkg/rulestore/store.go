// Package rulestore serves rules overlays for case contexts. Rule sets are
// declarative: each carries a `when` clause matched against the incoming
// context and the RulesObject to apply when every clause holds. It backs the
// POST /rules/context endpoint.
package rulestore

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formflow/pkg/casecontext"
	"github.com/goliatone/go-formflow/pkg/descriptor"
)

// RuleSet pairs a match clause with the overlay it contributes. A scalar
// `when` value requires equality with the context entry; a list value matches
// when the context entry (or any element of a context array) is a member.
// A missing context key never matches.
type RuleSet struct {
	Name  string                 `json:"name,omitempty" yaml:"name,omitempty"`
	When  map[string]any         `json:"when" yaml:"when"`
	Rules descriptor.RulesObject `json:"rules" yaml:"rules"`
}

// Store holds rule sets in file order. Immutable after construction.
type Store struct {
	sets []RuleSet
}

// New builds a store from the given rule sets.
func New(sets []RuleSet) *Store {
	return &Store{sets: append([]RuleSet{}, sets...)}
}

// Len reports the number of loaded rule sets.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.sets)
}

type ruleFile struct {
	RuleSets []RuleSet `json:"ruleSets" yaml:"ruleSets"`
}

// LoadFS walks the filesystem and parses JSON/YAML rule-set files. Files are
// visited in lexical order, so later files override earlier ones per block or
// field ID at match time.
func LoadFS(fsys fs.FS) (*Store, error) {
	store := &Store{}
	if fsys == nil {
		return store, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isRuleFile(path) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("rulestore: read %s: %w", path, err)
		}

		var doc ruleFile
		if jsonErr := json.Unmarshal(data, &doc); jsonErr != nil {
			if yamlErr := yaml.Unmarshal(data, &doc); yamlErr != nil {
				return fmt.Errorf("rulestore: parse %s: invalid JSON or YAML", path)
			}
		}
		for _, set := range doc.RuleSets {
			if len(set.When) == 0 {
				return fmt.Errorf("rulestore: file %s declares a rule set without a when clause", path)
			}
			store.sets = append(store.sets, set)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Match merges every rule set whose when clause matches ctx into one overlay.
// Later sets win per block/field ID. A context matching nothing yields an
// empty overlay, which merges as a no-op.
func (s *Store) Match(ctx casecontext.Context) descriptor.RulesObject {
	merged := descriptor.RulesObject{}
	if s == nil {
		return merged
	}

	blockIndex := make(map[string]int)
	fieldIndex := make(map[string]int)

	for _, set := range s.sets {
		if !matches(set.When, ctx) {
			continue
		}
		for _, rule := range set.Rules.Blocks {
			if i, ok := blockIndex[rule.ID]; ok {
				merged.Blocks[i] = rule
				continue
			}
			blockIndex[rule.ID] = len(merged.Blocks)
			merged.Blocks = append(merged.Blocks, rule)
		}
		for _, rule := range set.Rules.Fields {
			if i, ok := fieldIndex[rule.ID]; ok {
				merged.Fields[i] = rule
				continue
			}
			fieldIndex[rule.ID] = len(merged.Fields)
			merged.Fields = append(merged.Fields, rule)
		}
	}
	return merged
}

func matches(when map[string]any, ctx casecontext.Context) bool {
	for key, expected := range when {
		actual, ok := ctx[key]
		if !ok {
			return false
		}
		if !valueMatches(expected, actual) {
			return false
		}
	}
	return true
}

func valueMatches(expected, actual any) bool {
	if options, ok := toSlice(expected); ok {
		return memberOf(options, actual)
	}
	if elements, ok := toSlice(actual); ok {
		for _, element := range elements {
			if scalarEqual(expected, element) {
				return true
			}
		}
		return false
	}
	return scalarEqual(expected, actual)
}

func memberOf(options []any, actual any) bool {
	if elements, ok := toSlice(actual); ok {
		for _, element := range elements {
			if memberOf(options, element) {
				return true
			}
		}
		return false
	}
	for _, option := range options {
		if scalarEqual(option, actual) {
			return true
		}
	}
	return false
}

// scalarEqual compares scalars across the numeric types JSON and YAML
// decoders produce.
func scalarEqual(a, b any) bool {
	if numA, okA := toFloat(a); okA {
		numB, okB := toFloat(b)
		return okB && numA == numB
	}
	return a == b
}

func toSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func isRuleFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
