// Package rules merges server-computed rule overlays into a base descriptor.
// Merging is copy-on-write: untouched blocks and fields are shared with the
// base, touched ones are replaced, and the base is never mutated.
package rules

import (
	"github.com/goliatone/go-formflow/pkg/descriptor"
)

// Merge applies overlay onto base and returns the merged descriptor. A nil
// overlay returns base unchanged. Block and field status objects are replaced
// wholesale when the rule supplies one; a rule omitting status leaves the
// prior status intact. Field validation arrays are likewise replaced
// wholesale when present. Rule IDs with no matching block or field are
// ignored: rules may reference fields absent from some descriptor variants.
func Merge(base descriptor.GlobalFormDescriptor, overlay *descriptor.RulesObject) descriptor.GlobalFormDescriptor {
	if overlay == nil || (len(overlay.Blocks) == 0 && len(overlay.Fields) == 0) {
		return base
	}

	blockRules := make(map[string]descriptor.BlockRule, len(overlay.Blocks))
	for _, rule := range overlay.Blocks {
		blockRules[rule.ID] = rule
	}
	fieldRules := make(map[string]descriptor.FieldRule, len(overlay.Fields))
	for _, rule := range overlay.Fields {
		fieldRules[rule.ID] = rule
	}

	out := base
	out.Blocks = make([]descriptor.BlockDescriptor, len(base.Blocks))
	for i, block := range base.Blocks {
		out.Blocks[i] = mergeBlock(block, blockRules, fieldRules)
	}
	return out
}

func mergeBlock(block descriptor.BlockDescriptor, blockRules map[string]descriptor.BlockRule, fieldRules map[string]descriptor.FieldRule) descriptor.BlockDescriptor {
	merged := block

	if rule, ok := blockRules[block.ID]; ok && rule.Status != nil {
		status := *rule.Status
		merged.Status = &status
	}

	touched := false
	for _, field := range block.Fields {
		if _, ok := fieldRules[field.ID]; ok {
			touched = true
			break
		}
	}
	if !touched {
		return merged
	}

	merged.Fields = make([]descriptor.FieldDescriptor, len(block.Fields))
	for i, field := range block.Fields {
		merged.Fields[i] = mergeField(field, fieldRules)
	}
	return merged
}

func mergeField(field descriptor.FieldDescriptor, fieldRules map[string]descriptor.FieldRule) descriptor.FieldDescriptor {
	rule, ok := fieldRules[field.ID]
	if !ok {
		return field
	}

	merged := field
	if rule.Validation != nil {
		merged.Validation = append([]descriptor.ValidationRule{}, rule.Validation...)
	}
	if rule.Status != nil {
		status := *rule.Status
		merged.Status = &status
	}
	return merged
}
