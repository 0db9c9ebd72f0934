package descriptor

// FieldType enumerates the input kinds a renderer can be asked to produce.
type FieldType string

const (
	FieldTypeText         FieldType = "text"
	FieldTypeDropdown     FieldType = "dropdown"
	FieldTypeAutocomplete FieldType = "autocomplete"
	FieldTypeRadio        FieldType = "radio"
	FieldTypeCheckbox     FieldType = "checkbox"
	FieldTypeDate         FieldType = "date"
	FieldTypeFile         FieldType = "file"
	FieldTypeNumber       FieldType = "number"
)

const (
	ValidationRuleRequired  = "required"
	ValidationRuleMinLength = "minLength"
	ValidationRuleMaxLength = "maxLength"
	ValidationRulePattern   = "pattern"
	ValidationRuleCustom    = "custom"
)

// ValidationRule is a single constraint attached to a field. Kind selects one
// of the ValidationRule* constants; Value carries the threshold for length
// rules (or a template for custom rules) and Pattern the expression for
// pattern rules. Message, when set, overrides the renderer's default text.
type ValidationRule struct {
	Kind    string `json:"kind" validate:"required,oneof=required minLength maxLength pattern custom" yaml:"kind"`
	Value   string `json:"value,omitempty" yaml:"value,omitempty"`
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// StatusTemplates hold template strings that evaluate to boolean-like values
// ("true"/"false") controlling presentation state for a block or field.
type StatusTemplates struct {
	Hidden   string `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Disabled string `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Readonly string `json:"readonly,omitempty" yaml:"readonly,omitempty"`
}

// FieldItem is one selectable option for dropdown/radio/autocomplete fields.
type FieldItem struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// AuthKind enumerates the credential strategies the data-source proxy can
// inject on behalf of a client.
type AuthKind string

const (
	AuthBearer AuthKind = "bearer"
	AuthAPIKey AuthKind = "apikey"
	AuthBasic  AuthKind = "basic"
)

// AuthConfig describes credentials for an upstream data source. It lives
// server-side only; descriptors sent to clients carry a DataSourceID instead
// so the secret never leaves the proxy.
type AuthConfig struct {
	Kind     AuthKind `json:"kind" validate:"omitempty,oneof=bearer apikey basic" yaml:"kind"`
	Token    string   `json:"token,omitempty" yaml:"token,omitempty"`
	Header   string   `json:"header,omitempty" yaml:"header,omitempty"`
	Value    string   `json:"value,omitempty" yaml:"value,omitempty"`
	Username string   `json:"username,omitempty" yaml:"username,omitempty"`
	Password string   `json:"password,omitempty" yaml:"password,omitempty"`
}

// DataSourceConfig tells the loader how to fetch and shape dynamic options.
// URL and ItemsTemplate are template strings evaluated against the form
// context; IteratorTemplate optionally re-roots the response before item
// iteration. When DataSourceID is set the request is routed through the
// credential-injecting proxy.
type DataSourceConfig struct {
	URL              string      `json:"url" validate:"required" yaml:"url"`
	ItemsTemplate    string      `json:"itemsTemplate,omitempty" yaml:"itemsTemplate,omitempty"`
	IteratorTemplate string      `json:"iteratorTemplate,omitempty" yaml:"iteratorTemplate,omitempty"`
	DataSourceID     string      `json:"dataSourceId,omitempty" yaml:"dataSourceId,omitempty"`
	Auth             *AuthConfig `json:"auth,omitempty" yaml:"auth,omitempty"`
}

// FieldDescriptor models one input inside a block. IDs are unique within a
// fully resolved descriptor. Items and DataSource are mutually exclusive;
// the loader rejects descriptors declaring both.
type FieldDescriptor struct {
	ID             string            `json:"id" validate:"required" yaml:"id"`
	Type           FieldType         `json:"type" validate:"required,oneof=text dropdown autocomplete radio checkbox date file number" yaml:"type"`
	Label          string            `json:"label" yaml:"label"`
	Description    string            `json:"description,omitempty" yaml:"description,omitempty"`
	DefaultValue   any               `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Items          []FieldItem       `json:"items,omitempty" yaml:"items,omitempty"`
	DataSource     *DataSourceConfig `json:"dataSource,omitempty" yaml:"dataSource,omitempty"`
	Validation     []ValidationRule  `json:"validation,omitempty" validate:"dive" yaml:"validation,omitempty"`
	IsDiscriminant bool              `json:"isDiscriminant,omitempty" yaml:"isDiscriminant,omitempty"`
	Status         *StatusTemplates  `json:"status,omitempty" yaml:"status,omitempty"`
}

// BlockDescriptor groups fields under a titled section. A block carrying a
// SubFormRef is a placeholder: it owns no real fields and is resolved away
// before the descriptor reaches rendering.
type BlockDescriptor struct {
	ID                string            `json:"id" validate:"required" yaml:"id"`
	Title             string            `json:"title" yaml:"title"`
	Description       string            `json:"description,omitempty" yaml:"description,omitempty"`
	Fields            []FieldDescriptor `json:"fields,omitempty" validate:"dive" yaml:"fields,omitempty"`
	Status            *StatusTemplates  `json:"status,omitempty" yaml:"status,omitempty"`
	SubFormRef        string            `json:"subFormRef,omitempty" yaml:"subFormRef,omitempty"`
	SubFormInstanceID string            `json:"subFormInstanceId,omitempty" yaml:"subFormInstanceId,omitempty"`
}

// SubmissionConfig drives the final form submission request. PayloadTemplate,
// when present, is evaluated against the form data to build the body.
type SubmissionConfig struct {
	URL             string            `json:"url" validate:"required" yaml:"url"`
	Method          string            `json:"method,omitempty" yaml:"method,omitempty"`
	PayloadTemplate string            `json:"payloadTemplate,omitempty" yaml:"payloadTemplate,omitempty"`
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Auth            *AuthConfig       `json:"auth,omitempty" yaml:"auth,omitempty"`
}

// GlobalFormDescriptor is the root form definition. Once resolved it contains
// no remaining sub-form references. Instances are treated as immutable
// values; every transform returns a new descriptor.
type GlobalFormDescriptor struct {
	ID         string            `json:"id,omitempty" yaml:"id,omitempty"`
	Title      string            `json:"title,omitempty" yaml:"title,omitempty"`
	Version    string            `json:"version,omitempty" yaml:"version,omitempty"`
	Blocks     []BlockDescriptor `json:"blocks" validate:"dive" yaml:"blocks"`
	Submission SubmissionConfig  `json:"submission" yaml:"submission"`
}

// SubFormDescriptor is a reusable fragment keyed by ID. Sub-forms may
// themselves reference other sub-forms.
type SubFormDescriptor struct {
	ID         string            `json:"id" validate:"required" yaml:"id"`
	Title      string            `json:"title" yaml:"title"`
	Version    string            `json:"version,omitempty" yaml:"version,omitempty"`
	Blocks     []BlockDescriptor `json:"blocks" validate:"dive" yaml:"blocks"`
	Submission *SubmissionConfig `json:"submission,omitempty" yaml:"submission,omitempty"`
}

// BlockRule is a sparse status override for one block.
type BlockRule struct {
	ID     string           `json:"id" yaml:"id"`
	Status *StatusTemplates `json:"status,omitempty" yaml:"status,omitempty"`
}

// FieldRule is a sparse validation/status override for one field.
type FieldRule struct {
	ID         string           `json:"id" yaml:"id"`
	Validation []ValidationRule `json:"validation,omitempty" yaml:"validation,omitempty"`
	Status     *StatusTemplates `json:"status,omitempty" yaml:"status,omitempty"`
}

// RulesObject is the server-computed overlay merged into a base descriptor
// after rehydration. IDs reference the already-flattened descriptor.
type RulesObject struct {
	Blocks []BlockRule `json:"blocks,omitempty" yaml:"blocks,omitempty"`
	Fields []FieldRule `json:"fields,omitempty" yaml:"fields,omitempty"`
}
