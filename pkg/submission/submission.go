// Package submission turns a SubmissionConfig plus collected form data into
// an HTTP request, and maps structured backend validation failures onto
// fields. Plain payloads go out as JSON; the presence of any file value
// switches the encoding to multipart.
package submission

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"

	"github.com/goliatone/go-formflow/pkg/descriptor"
	"github.com/goliatone/go-formflow/pkg/template"
)

// FileValue is a binary form value. Its presence anywhere in the form data
// forces a multipart submission.
type FileValue struct {
	Name        string
	ContentType string
	Content     []byte
}

// payloadFieldName carries the evaluated payload inside multipart bodies.
const payloadFieldName = "payload"

// Build assembles the submission request. With a payload template the body is
// its evaluated result as JSON; otherwise the raw form data is serialized.
// When any value is a FileValue the body becomes multipart: every raw value
// is written as a part, and the evaluated payload is embedded as a side field
// only if it evaluates to a non-array object.
func Build(ctx context.Context, cfg descriptor.SubmissionConfig, formData map[string]any, ev template.Evaluator) (*http.Request, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("submission: url is required")
	}
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodPost
	}

	var payload any
	if cfg.PayloadTemplate != "" {
		evaluated, err := ev.Evaluate(cfg.PayloadTemplate, formData)
		if err != nil {
			return nil, fmt.Errorf("submission: payload template: %w", err)
		}
		payload = evaluated
	}

	var req *http.Request
	var err error
	if hasFileValue(formData) {
		req, err = buildMultipart(ctx, method, cfg.URL, formData, payload)
	} else {
		req, err = buildJSON(ctx, method, cfg.URL, formData, payload)
	}
	if err != nil {
		return nil, err
	}

	for name, value := range cfg.Headers {
		req.Header.Set(name, value)
	}
	if cfg.Auth != nil {
		if err := applyAuth(req, cfg.Auth); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func buildJSON(ctx context.Context, method, url string, formData map[string]any, payload any) (*http.Request, error) {
	body := payload
	if body == nil {
		body = formData
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("submission: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("submission: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func buildMultipart(ctx context.Context, method, url string, formData map[string]any, payload any) (*http.Request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(formData))
	for key := range formData {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := writePart(writer, key, formData[key]); err != nil {
			return nil, err
		}
	}

	// Only an object-shaped payload travels alongside the parts; arrays and
	// scalars are dropped rather than coerced.
	if object, ok := payload.(map[string]any); ok {
		encoded, err := json.Marshal(object)
		if err != nil {
			return nil, fmt.Errorf("submission: encode payload field: %w", err)
		}
		if err := writer.WriteField(payloadFieldName, string(encoded)); err != nil {
			return nil, fmt.Errorf("submission: write payload field: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("submission: finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("submission: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

func writePart(writer *multipart.Writer, name string, value any) error {
	switch v := value.(type) {
	case FileValue:
		return writeFilePart(writer, name, v)
	case *FileValue:
		if v == nil {
			return nil
		}
		return writeFilePart(writer, name, *v)
	case nil:
		return writer.WriteField(name, "")
	case string:
		return writer.WriteField(name, v)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("submission: encode part %q: %w", name, err)
		}
		return writer.WriteField(name, string(encoded))
	default:
		return writer.WriteField(name, fmt.Sprint(v))
	}
}

func writeFilePart(writer *multipart.Writer, name string, file FileValue) error {
	filename := file.Name
	if filename == "" {
		filename = name
	}
	part, err := writer.CreateFormFile(name, filename)
	if err != nil {
		return fmt.Errorf("submission: create file part %q: %w", name, err)
	}
	if _, err := part.Write(file.Content); err != nil {
		return fmt.Errorf("submission: write file part %q: %w", name, err)
	}
	return nil
}

func hasFileValue(formData map[string]any) bool {
	for _, value := range formData {
		switch value.(type) {
		case FileValue, *FileValue:
			return true
		}
	}
	return false
}

func applyAuth(req *http.Request, auth *descriptor.AuthConfig) error {
	switch auth.Kind {
	case descriptor.AuthBearer:
		if auth.Token == "" {
			return fmt.Errorf("submission: bearer auth missing token")
		}
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	case descriptor.AuthAPIKey:
		if auth.Header == "" || auth.Value == "" {
			return fmt.Errorf("submission: apikey auth missing header or value")
		}
		req.Header.Set(auth.Header, auth.Value)
	case descriptor.AuthBasic:
		if auth.Username == "" {
			return fmt.Errorf("submission: basic auth missing username")
		}
		encoded := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password))
		req.Header.Set("Authorization", "Basic "+encoded)
	default:
		return fmt.Errorf("submission: unsupported auth kind %q", auth.Kind)
	}
	return nil
}
