package submission

import (
	"encoding/json"
	"fmt"
)

// FieldError is one field-scoped failure reported by the backend. Type is
// always "server" so form bindings can distinguish it from local validation.
type FieldError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorSink receives field-level errors. Form state containers implement it
// to surface backend failures next to the offending inputs.
type ErrorSink interface {
	SetError(field string, err FieldError)
}

// BackendError is the structured failure body a submission endpoint returns:
// a general message plus optional per-field entries.
type BackendError struct {
	Message string
	Fields  []BackendFieldError
}

// BackendFieldError pairs a field ID with its message.
type BackendFieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *BackendError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("submission: backend rejected: %s", e.Message)
	}
	return fmt.Sprintf("submission: backend rejected: %s (%d field errors)", e.Message, len(e.Fields))
}

// Apply maps every field entry onto sink as a server-typed error. Entries
// without a field name are skipped; they stay on the general message.
func (e *BackendError) Apply(sink ErrorSink) {
	if sink == nil {
		return
	}
	for _, entry := range e.Fields {
		if entry.Field == "" {
			continue
		}
		sink.SetError(entry.Field, FieldError{Type: "server", Message: entry.Message})
	}
}

type backendErrorBody struct {
	Error  string              `json:"error"`
	Errors []BackendFieldError `json:"errors,omitempty"`
}

// ParseBackendError decodes a non-2xx submission response body. A body that
// is not the structured shape still yields a BackendError carrying the status
// code, so callers always get a general submission failure to surface.
func ParseBackendError(statusCode int, body []byte) *BackendError {
	var decoded backendErrorBody
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error != "" {
		return &BackendError{Message: decoded.Error, Fields: decoded.Errors}
	}
	return &BackendError{Message: fmt.Sprintf("status %d", statusCode)}
}
