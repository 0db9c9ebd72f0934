package descriptor

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// sanitizeText strips any markup from descriptor-provided copy. Labels and
// descriptions end up in rendered output, so they are treated as untrusted.
func sanitizeText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(textSanitizer().Sanitize(trimmed))
}

func textSanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}

func sanitizeGlobal(d *GlobalFormDescriptor) {
	d.Title = sanitizeText(d.Title)
	sanitizeBlocks(d.Blocks)
}

func sanitizeSubForm(d *SubFormDescriptor) {
	d.Title = sanitizeText(d.Title)
	sanitizeBlocks(d.Blocks)
}

func sanitizeBlocks(blocks []BlockDescriptor) {
	for i := range blocks {
		blocks[i].Title = sanitizeText(blocks[i].Title)
		blocks[i].Description = sanitizeText(blocks[i].Description)
		for j := range blocks[i].Fields {
			field := &blocks[i].Fields[j]
			field.Label = sanitizeText(field.Label)
			field.Description = sanitizeText(field.Description)
		}
	}
}
