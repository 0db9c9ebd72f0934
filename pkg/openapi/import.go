// Package openapi imports form descriptors from OpenAPI documents. It maps a
// single operation's request body onto blocks and fields: each object-typed
// top-level property becomes a block, remaining scalar properties collect
// into a general block. Vendor extensions opt fields into formflow features
// the schema language cannot express.
package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formflow/pkg/descriptor"
)

const (
	// discriminantExtensionKey marks a field whose edits trigger rehydration.
	discriminantExtensionKey = "x-formflow-discriminant"
	// dataSourceExtensionKey configures a dynamic option source on a field.
	dataSourceExtensionKey = "x-formflow-datasource"
	// defaultExtensionKey supplies a template-typed default value.
	defaultExtensionKey = "x-formflow-default"

	generalBlockID = "general"
)

// Import parses an OpenAPI document and converts the named operation into a
// global form descriptor. The operation must carry a JSON request body with
// an object schema.
func Import(ctx context.Context, data []byte, operationID string) (descriptor.GlobalFormDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return descriptor.GlobalFormDescriptor{}, err
	}
	if len(data) == 0 {
		return descriptor.GlobalFormDescriptor{}, errors.New("openapi: document payload is empty")
	}
	if operationID == "" {
		return descriptor.GlobalFormDescriptor{}, errors.New("openapi: operation id is required")
	}

	loader := &openapi3.Loader{Context: ctx}
	spec, err := loader.LoadFromData(data)
	if err != nil {
		return descriptor.GlobalFormDescriptor{}, fmt.Errorf("openapi: load document: %w", err)
	}

	method, path, operation, err := findOperation(spec, operationID)
	if err != nil {
		return descriptor.GlobalFormDescriptor{}, err
	}

	schema, err := requestSchema(operation)
	if err != nil {
		return descriptor.GlobalFormDescriptor{}, fmt.Errorf("openapi: operation %q: %w", operationID, err)
	}

	blocks, err := blocksFromSchema(schema)
	if err != nil {
		return descriptor.GlobalFormDescriptor{}, fmt.Errorf("openapi: operation %q: %w", operationID, err)
	}

	return descriptor.GlobalFormDescriptor{
		ID:     operationID,
		Title:  operation.Summary,
		Blocks: blocks,
		Submission: descriptor.SubmissionConfig{
			URL:    path,
			Method: method,
		},
	}, nil
}

func findOperation(spec *openapi3.T, operationID string) (method, path string, op *openapi3.Operation, err error) {
	if spec.Paths == nil {
		return "", "", nil, errors.New("openapi: document does not contain any paths")
	}
	for pathKey, item := range spec.Paths.Map() {
		if item == nil {
			continue
		}
		for methodKey, candidate := range item.Operations() {
			if candidate != nil && candidate.OperationID == operationID {
				return methodKey, pathKey, candidate, nil
			}
		}
	}
	return "", "", nil, fmt.Errorf("openapi: operation %q not found", operationID)
}

func requestSchema(op *openapi3.Operation) (*openapi3.Schema, error) {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil, errors.New("no request body")
	}
	media := op.RequestBody.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return nil, errors.New("no JSON request schema")
	}
	schema := media.Schema.Value
	if !schemaIs(schema, "object") {
		return nil, fmt.Errorf("request schema is %q, want object", firstType(schema))
	}
	return schema, nil
}

// blocksFromSchema walks the top-level properties in name order for
// deterministic output. Object properties become their own blocks; scalars
// accumulate into a trailing general block.
func blocksFromSchema(schema *openapi3.Schema) ([]descriptor.BlockDescriptor, error) {
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	var blocks []descriptor.BlockDescriptor
	general := descriptor.BlockDescriptor{ID: generalBlockID, Title: "General"}

	for _, name := range names {
		ref := schema.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		property := ref.Value

		if schemaIs(property, "object") {
			block, err := blockFromObject(name, property)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
			continue
		}

		field, err := fieldFromSchema(name, property, required(schema, name))
		if err != nil {
			return nil, err
		}
		general.Fields = append(general.Fields, field)
	}

	if len(general.Fields) > 0 {
		blocks = append(blocks, general)
	}
	if len(blocks) == 0 {
		return nil, errors.New("request schema has no usable properties")
	}
	return blocks, nil
}

func blockFromObject(name string, schema *openapi3.Schema) (descriptor.BlockDescriptor, error) {
	block := descriptor.BlockDescriptor{
		ID:          name,
		Title:       schema.Title,
		Description: schema.Description,
	}
	if block.Title == "" {
		block.Title = name
	}

	fieldNames := make([]string, 0, len(schema.Properties))
	for fieldName := range schema.Properties {
		fieldNames = append(fieldNames, fieldName)
	}
	sort.Strings(fieldNames)

	for _, fieldName := range fieldNames {
		ref := schema.Properties[fieldName]
		if ref == nil || ref.Value == nil {
			continue
		}
		field, err := fieldFromSchema(name+"."+fieldName, ref.Value, required(schema, fieldName))
		if err != nil {
			return descriptor.BlockDescriptor{}, err
		}
		block.Fields = append(block.Fields, field)
	}
	return block, nil
}

func fieldFromSchema(id string, schema *openapi3.Schema, isRequired bool) (descriptor.FieldDescriptor, error) {
	field := descriptor.FieldDescriptor{
		ID:          id,
		Type:        fieldType(schema),
		Label:       schema.Title,
		Description: schema.Description,
	}
	if field.Label == "" {
		field.Label = id
	}
	if schema.Default != nil {
		field.DefaultValue = schema.Default
	}

	for _, option := range schema.Enum {
		text := fmt.Sprint(option)
		field.Items = append(field.Items, descriptor.FieldItem{Label: text, Value: text})
	}

	field.Validation = validationRules(schema, isRequired)

	if err := applyExtensions(&field, schema.Extensions); err != nil {
		return descriptor.FieldDescriptor{}, fmt.Errorf("field %q: %w", id, err)
	}
	if len(field.Items) > 0 && field.DataSource != nil {
		return descriptor.FieldDescriptor{}, fmt.Errorf("field %q: enum and %s are mutually exclusive", id, dataSourceExtensionKey)
	}
	return field, nil
}

func fieldType(schema *openapi3.Schema) descriptor.FieldType {
	if len(schema.Enum) > 0 {
		return descriptor.FieldTypeDropdown
	}
	switch firstType(schema) {
	case "boolean":
		return descriptor.FieldTypeCheckbox
	case "number", "integer":
		return descriptor.FieldTypeNumber
	case "string":
		switch schema.Format {
		case "date", "date-time":
			return descriptor.FieldTypeDate
		case "binary", "byte":
			return descriptor.FieldTypeFile
		default:
			return descriptor.FieldTypeText
		}
	default:
		return descriptor.FieldTypeText
	}
}

func validationRules(schema *openapi3.Schema, isRequired bool) []descriptor.ValidationRule {
	var out []descriptor.ValidationRule
	if isRequired {
		out = append(out, descriptor.ValidationRule{Kind: descriptor.ValidationRuleRequired})
	}
	if schema.MinLength != 0 {
		out = append(out, descriptor.ValidationRule{
			Kind:  descriptor.ValidationRuleMinLength,
			Value: strconv.FormatUint(schema.MinLength, 10),
		})
	}
	if schema.MaxLength != nil {
		out = append(out, descriptor.ValidationRule{
			Kind:  descriptor.ValidationRuleMaxLength,
			Value: strconv.FormatUint(*schema.MaxLength, 10),
		})
	}
	if schema.Pattern != "" {
		out = append(out, descriptor.ValidationRule{
			Kind:    descriptor.ValidationRulePattern,
			Pattern: schema.Pattern,
		})
	}
	return out
}

func applyExtensions(field *descriptor.FieldDescriptor, extensions map[string]any) error {
	if len(extensions) == 0 {
		return nil
	}

	if raw, ok := extensions[discriminantExtensionKey]; ok {
		flag, ok := raw.(bool)
		if !ok {
			return fmt.Errorf("%s must be a boolean", discriminantExtensionKey)
		}
		field.IsDiscriminant = flag
	}

	if raw, ok := extensions[defaultExtensionKey]; ok {
		tpl, ok := raw.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", defaultExtensionKey)
		}
		field.DefaultValue = tpl
	}

	if raw, ok := extensions[dataSourceExtensionKey]; ok {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", dataSourceExtensionKey, err)
		}
		var cfg descriptor.DataSourceConfig
		if err := json.Unmarshal(encoded, &cfg); err != nil {
			return fmt.Errorf("%s: %w", dataSourceExtensionKey, err)
		}
		if cfg.URL == "" {
			return fmt.Errorf("%s requires a url", dataSourceExtensionKey)
		}
		field.DataSource = &cfg
	}
	return nil
}

func required(schema *openapi3.Schema, name string) bool {
	for _, entry := range schema.Required {
		if entry == name {
			return true
		}
	}
	return false
}

func schemaIs(schema *openapi3.Schema, kind string) bool {
	return firstType(schema) == kind
}

func firstType(schema *openapi3.Schema) string {
	if schema.Type == nil {
		return ""
	}
	values := schema.Type.Slice()
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
