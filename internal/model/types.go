package model

// FieldType is the simplified enum for form-friendly field kinds.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeInteger FieldType = "integer"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeArray   FieldType = "array"
	FieldTypeObject  FieldType = "object"
)

const (
	ValidationRuleMin       = "min"
	ValidationRuleMax       = "max"
	ValidationRuleMinLength = "minLength"
	ValidationRuleMaxLength = "maxLength"
	ValidationRulePattern   = "pattern"
)

// ValidationRule represents a single validation constraint applied to a
// field. Numeric bounds and length limits encode their threshold in
// Params["value"] while pattern rules preserve the original expression in
// Params["pattern"].
type ValidationRule struct {
	Kind   string            `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
}

// Field models an individual input inside a portal form. Struct fields are
// annotated so renderers can serialise them directly when needed.
type Field struct {
	Name        string            `json:"name"`
	Type        FieldType         `json:"type"`
	Format      string            `json:"format,omitempty"`
	Required    bool              `json:"required"`
	Label       string            `json:"label,omitempty"`
	Placeholder string            `json:"placeholder,omitempty"`
	Description string            `json:"description,omitempty"`
	Default     any               `json:"default,omitempty"`
	Enum        []any             `json:"enum,omitempty"`
	Nested      []Field           `json:"nested,omitempty"`
	Items       *Field            `json:"items,omitempty"`
	Validations []ValidationRule  `json:"validations,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	UIHints     map[string]string `json:"uiHints,omitempty"`

	// Panel names the field group this field belongs to (for example
	// "miri"). Empty means the field renders outside any panel.
	Panel string `json:"panel,omitempty"`

	// VisibilityRule is an expression evaluated against submitted values;
	// false means the field's panel starts collapsed.
	VisibilityRule string `json:"visibilityRule,omitempty"`
}

// Panel is a named group of fields toggled together, typically one per
// science instrument.
type Panel struct {
	Name       string  `json:"name"`
	Label      string  `json:"label,omitempty"`
	Instrument string  `json:"instrument,omitempty"`
	Rule       string  `json:"rule,omitempty"`
	Fields     []Field `json:"fields"`
}

// FormModel is the top-level representation renderers consume.
type FormModel struct {
	OperationID string            `json:"operationId"`
	Endpoint    string            `json:"endpoint"`
	Method      string            `json:"method"`
	Summary     string            `json:"summary,omitempty"`
	Description string            `json:"description,omitempty"`
	Fields      []Field           `json:"fields"`
	Panels      []Panel           `json:"panels,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (f *Field) ensureMetadata() map[string]string {
	if f.Metadata == nil {
		f.Metadata = make(map[string]string)
	}
	return f.Metadata
}

func (f *Field) ensureUIHints() map[string]string {
	if f.UIHints == nil {
		f.UIHints = make(map[string]string)
	}
	return f.UIHints
}

func (f *Field) normalizeMetadata() {
	if len(f.Metadata) == 0 {
		f.Metadata = nil
	}
}

func (f *Field) normalizeUIHints() {
	if len(f.UIHints) == 0 {
		f.UIHints = nil
	}
}
