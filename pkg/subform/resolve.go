// Package subform flattens descriptor graphs: placeholder blocks referencing
// reusable sub-form fragments are replaced in place by the fragment's blocks,
// with IDs prefixed so multiple instances of one fragment can coexist.
package subform

import (
	"sort"

	"github.com/goliatone/go-formflow/pkg/descriptor"
)

// Resolve expands every sub-form reference in d into concrete blocks and
// returns the flattened descriptor. Blocks without a reference pass through
// unchanged, preserving order; resolved fragment blocks are spliced in at the
// placeholder's position. A descriptor with no references is returned as-is.
//
// Block IDs become {subFormID}_{instanceID}_{blockID} when the placeholder
// carries an instance ID, {subFormID}_{blockID} otherwise. Field IDs become
// {instanceID}.{fieldID} with an instance ID and stay untouched without one,
// so instance-less fragments may only coexist when their field IDs are
// already unique.
func Resolve(d descriptor.GlobalFormDescriptor, subForms map[string]descriptor.SubFormDescriptor) (descriptor.GlobalFormDescriptor, error) {
	if !hasRefs(d.Blocks) {
		return d, nil
	}

	blocks, err := resolveBlocks(d.Blocks, subForms, nil)
	if err != nil {
		return descriptor.GlobalFormDescriptor{}, err
	}

	out := d
	out.Blocks = blocks
	return out, nil
}

func hasRefs(blocks []descriptor.BlockDescriptor) bool {
	for _, block := range blocks {
		if block.SubFormRef != "" {
			return true
		}
	}
	return false
}

// resolveBlocks walks blocks in order, expanding placeholders depth-first.
// path is the stack of sub-form IDs currently being expanded; it is copied on
// descent so sibling expansions never share it.
func resolveBlocks(blocks []descriptor.BlockDescriptor, subForms map[string]descriptor.SubFormDescriptor, path []string) ([]descriptor.BlockDescriptor, error) {
	out := make([]descriptor.BlockDescriptor, 0, len(blocks))
	for _, block := range blocks {
		if block.SubFormRef == "" {
			out = append(out, block.Clone())
			continue
		}

		expanded, err := expand(block.SubFormRef, block.SubFormInstanceID, subForms, path)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

func expand(ref, instanceID string, subForms map[string]descriptor.SubFormDescriptor, path []string) ([]descriptor.BlockDescriptor, error) {
	for _, seen := range path {
		if seen == ref {
			cycle := append(append([]string{}, path...), ref)
			return nil, &CycleError{Path: cycle}
		}
	}

	sub, ok := subForms[ref]
	if !ok {
		return nil, &NotFoundError{Ref: ref, Available: sortedIDs(subForms)}
	}

	next := append(append([]string{}, path...), ref)
	inner, err := resolveBlocks(sub.Blocks, subForms, next)
	if err != nil {
		return nil, err
	}

	for i := range inner {
		prefixBlock(&inner[i], ref, instanceID)
	}
	return inner, nil
}

func prefixBlock(block *descriptor.BlockDescriptor, subFormID, instanceID string) {
	if instanceID != "" {
		block.ID = subFormID + "_" + instanceID + "_" + block.ID
	} else {
		block.ID = subFormID + "_" + block.ID
	}
	block.SubFormRef = ""
	block.SubFormInstanceID = ""

	if instanceID == "" {
		return
	}
	for i := range block.Fields {
		block.Fields[i].ID = instanceID + "." + block.Fields[i].ID
	}
}

func sortedIDs(subForms map[string]descriptor.SubFormDescriptor) []string {
	ids := make([]string, 0, len(subForms))
	for id := range subForms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
