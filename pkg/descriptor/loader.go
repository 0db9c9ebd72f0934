package descriptor

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Library holds a parsed descriptor set: at most one global descriptor plus
// the sub-forms it may reference. Treated as immutable after construction; it
// is then safe for concurrent readers.
type Library struct {
	global   *GlobalFormDescriptor
	subForms map[string]SubFormDescriptor
}

// Global returns the global descriptor, or false when the library holds none.
func (l *Library) Global() (GlobalFormDescriptor, bool) {
	if l == nil || l.global == nil {
		return GlobalFormDescriptor{}, false
	}
	return l.global.Clone(), true
}

// SubForm looks up a sub-form fragment by ID.
func (l *Library) SubForm(id string) (SubFormDescriptor, bool) {
	if l == nil {
		return SubFormDescriptor{}, false
	}
	sub, ok := l.subForms[id]
	return sub, ok
}

// SubFormIDs lists the registered sub-form IDs in no particular order.
func (l *Library) SubFormIDs() []string {
	if l == nil || len(l.subForms) == 0 {
		return nil
	}
	ids := make([]string, 0, len(l.subForms))
	for id := range l.subForms {
		ids = append(ids, id)
	}
	return ids
}

// SubForms returns the sub-form map keyed by ID. Callers must not mutate the
// returned map.
func (l *Library) SubForms() map[string]SubFormDescriptor {
	if l == nil {
		return nil
	}
	return l.subForms
}

type documentFile struct {
	Global   *GlobalFormDescriptor `json:"global" yaml:"global"`
	SubForms []SubFormDescriptor   `json:"subForms" yaml:"subForms"`
}

// LoadFS walks the provided filesystem and parses JSON/YAML descriptor files
// into a Library. Each file declares a "global" descriptor, a "subForms"
// list, or both. Duplicate sub-form IDs and multiple global descriptors are
// errors, as are structurally invalid descriptors.
func LoadFS(fsys fs.FS) (*Library, error) {
	library := &Library{subForms: make(map[string]SubFormDescriptor)}
	if fsys == nil {
		return library, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isDescriptorFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("descriptor: read %s: %w", path, err)
		}

		doc, err := parseDocument(data, path)
		if err != nil {
			return err
		}

		if doc.Global != nil {
			if library.global != nil {
				return fmt.Errorf("descriptor: file %s declares a second global descriptor", path)
			}
			global := doc.Global.Clone()
			if err := ValidateGlobal(global); err != nil {
				return fmt.Errorf("descriptor: file %s: %w", path, err)
			}
			sanitizeGlobal(&global)
			library.global = &global
		}

		for _, sub := range doc.SubForms {
			id := strings.TrimSpace(sub.ID)
			if id == "" {
				return fmt.Errorf("descriptor: file %s declares a sub-form without an id", path)
			}
			if _, exists := library.subForms[id]; exists {
				return fmt.Errorf("descriptor: duplicate sub-form %q (file %s)", id, path)
			}
			if err := ValidateSubForm(sub); err != nil {
				return fmt.Errorf("descriptor: file %s: %w", path, err)
			}
			sanitizeSubForm(&sub)
			library.subForms[id] = sub
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return library, nil
}

// ParseGlobal decodes and validates a single global descriptor payload.
func ParseGlobal(data []byte) (GlobalFormDescriptor, error) {
	doc, err := parseDocument(data, "payload")
	if err != nil {
		return GlobalFormDescriptor{}, err
	}
	if doc.Global == nil {
		// Accept a bare descriptor without the document wrapper.
		var global GlobalFormDescriptor
		if jsonErr := json.Unmarshal(data, &global); jsonErr != nil || len(global.Blocks) == 0 {
			return GlobalFormDescriptor{}, fmt.Errorf("descriptor: payload holds no global descriptor")
		}
		doc.Global = &global
	}
	global := doc.Global.Clone()
	if err := ValidateGlobal(global); err != nil {
		return GlobalFormDescriptor{}, err
	}
	sanitizeGlobal(&global)
	return global, nil
}

func parseDocument(data []byte, source string) (documentFile, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return documentFile{}, fmt.Errorf("descriptor: file %s is empty", source)
	}

	var doc documentFile
	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}
	return documentFile{}, fmt.Errorf("descriptor: parse %s: invalid JSON or YAML", source)
}

func isDescriptorFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
