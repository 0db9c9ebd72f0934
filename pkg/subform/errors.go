package subform

import (
	"fmt"
	"strings"
)

// NotFoundError reports a sub-form reference that has no entry in the
// supplied sub-form map. Available lists the IDs that were registered so the
// failure is actionable without re-running with extra logging.
type NotFoundError struct {
	Ref       string
	Available []string
}

func (e *NotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("subform: %q not found (no sub-forms registered)", e.Ref)
	}
	return fmt.Sprintf("subform: %q not found (available: %s)", e.Ref, strings.Join(e.Available, ", "))
}

// CycleError reports a circular sub-form reference chain. Path holds the full
// cycle, ending with the ID that closed it (for example [A B A]).
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("subform: circular reference %s", strings.Join(e.Path, " -> "))
}
