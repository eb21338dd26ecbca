package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	pkgopenapi "github.com/observatory/quicklook/pkg/openapi"
)

// Vendor extension keys the portal schema uses to drive form behaviour.
const (
	extWidget      = "x-quicklook-widget"
	extPanel       = "x-quicklook-panel"
	extInstrument  = "x-quicklook-instrument"
	extVisibleWhen = "x-quicklook-visible-when"
	extPlaceholder = "x-quicklook-placeholder"
	extOptionKind  = "x-quicklook-options"
	extTogglePanel = "x-quicklook-toggle-panel"
)

// Builder converts schema operations into form models.
type Builder struct {
	opts Options
}

// New creates a Builder with the supplied options.
func New(options Options) *Builder {
	opts := defaultOptions()
	if options.Labeler != nil {
		opts.Labeler = options.Labeler
	}
	return &Builder{opts: opts}
}

// Build transforms an operation into a FormModel suitable for rendering.
// Fields tagged with a panel extension are grouped into Panels after the
// flat field list is assembled.
func (b *Builder) Build(op pkgopenapi.Operation) (FormModel, error) {
	if err := validateOperation(op); err != nil {
		return FormModel{}, err
	}

	form := FormModel{
		OperationID: op.ID,
		Endpoint:    op.Path,
		Method:      strings.ToUpper(op.Method),
		Summary:     op.Summary,
		Description: op.Description,
	}

	fields, err := b.fieldsFromSchema("", op.RequestBody, true)
	if err != nil {
		return FormModel{}, err
	}
	form.Fields = fields
	form.Panels = groupPanels(fields, b.opts.Labeler)

	return form, nil
}

func validateOperation(op pkgopenapi.Operation) error {
	if op.ID == "" {
		return errors.New("model builder: operation id is required")
	}
	if op.Path == "" {
		return errors.New("model builder: operation path is required")
	}
	if op.Method == "" {
		return errors.New("model builder: operation method is required")
	}
	return nil
}

func (b *Builder) fieldsFromSchema(name string, schema pkgopenapi.Schema, required bool) ([]Field, error) {
	if schema.Ref != "" && schema.Type == "" && len(schema.Properties) == 0 {
		// Unresolved reference; capture metadata for consumers to handle.
		field := Field{
			Name:        name,
			Type:        FieldTypeObject,
			Required:    required,
			Label:       b.opts.Labeler(name),
			Description: schema.Description,
		}
		field.ensureMetadata()["$ref"] = schema.Ref
		applyExtensions(&field, schema.Extensions)
		field.normalizeMetadata()
		field.normalizeUIHints()
		return []Field{field}, nil
	}

	switch schema.Type {
	case "object", "":
		return b.fieldsFromObject(name, schema, required)
	case "array":
		field, err := b.fieldFromArray(name, schema, required)
		if err != nil {
			return nil, err
		}
		return []Field{field}, nil
	default:
		return []Field{b.fieldFromPrimitive(name, schema, required)}, nil
	}
}

func (b *Builder) fieldsFromObject(name string, schema pkgopenapi.Schema, required bool) ([]Field, error) {
	var fields []Field
	requiredSet := make(map[string]struct{}, len(schema.Required))
	for _, item := range schema.Required {
		requiredSet[item] = struct{}{}
	}

	propNames := make([]string, 0, len(schema.Properties))
	for propName := range schema.Properties {
		propNames = append(propNames, propName)
	}
	sort.Strings(propNames)

	for _, propName := range propNames {
		propSchema := schema.Properties[propName]
		_, isRequired := requiredSet[propName]
		converted, err := b.fieldsFromSchema(propName, propSchema, isRequired)
		if err != nil {
			return nil, err
		}
		fields = append(fields, converted...)
	}

	if name != "" {
		// Wrap nested properties inside a parent object field.
		parent := Field{
			Name:        name,
			Type:        FieldTypeObject,
			Label:       b.opts.Labeler(name),
			Description: schema.Description,
			Required:    required,
			Nested:      fields,
		}
		if schema.Default != nil {
			parent.Default = schema.Default
		}
		applyValidations(&parent, schema)
		applyExtensions(&parent, schema.Extensions)
		parent.normalizeMetadata()
		parent.normalizeUIHints()
		return []Field{parent}, nil
	}

	return fields, nil
}

func (b *Builder) fieldFromArray(name string, schema pkgopenapi.Schema, required bool) (Field, error) {
	if schema.Items == nil {
		return Field{}, fmt.Errorf("model builder: array field %q missing items", name)
	}
	nested, err := b.fieldsFromSchema(name+"Item", *schema.Items, false)
	if err != nil {
		return Field{}, err
	}
	var itemField *Field
	if len(nested) > 0 {
		item := nested[0]
		itemField = &item
	}

	field := Field{
		Name:        name,
		Type:        FieldTypeArray,
		Label:       b.opts.Labeler(name),
		Description: schema.Description,
		Required:    required,
		Items:       itemField,
	}
	if schema.Default != nil {
		field.Default = schema.Default
	}
	// Enum on the items schema is what the checkbox-group renders.
	if schema.Items != nil && len(schema.Items.Enum) > 0 {
		field.Enum = append([]any(nil), schema.Items.Enum...)
	}
	applyValidations(&field, schema)
	applyExtensions(&field, schema.Extensions)
	field.normalizeMetadata()
	field.normalizeUIHints()
	return field, nil
}

func (b *Builder) fieldFromPrimitive(name string, schema pkgopenapi.Schema, required bool) Field {
	field := Field{
		Name:        name,
		Type:        fieldTypeFromSchema(schema.Type),
		Format:      schema.Format,
		Required:    required,
		Label:       b.opts.Labeler(name),
		Description: schema.Description,
	}
	if schema.Default != nil {
		field.Default = schema.Default
	}
	if len(schema.Enum) > 0 {
		field.Enum = append([]any(nil), schema.Enum...)
	}
	applyValidations(&field, schema)
	applyExtensions(&field, schema.Extensions)
	field.normalizeMetadata()
	field.normalizeUIHints()
	return field
}

func fieldTypeFromSchema(raw string) FieldType {
	switch raw {
	case "integer":
		return FieldTypeInteger
	case "number":
		return FieldTypeNumber
	case "boolean":
		return FieldTypeBoolean
	case "array":
		return FieldTypeArray
	case "object":
		return FieldTypeObject
	default:
		return FieldTypeString
	}
}

func applyExtensions(field *Field, extensions map[string]any) {
	if len(extensions) == 0 {
		return
	}
	if widget := stringExtension(extensions, extWidget); widget != "" {
		field.ensureMetadata()["widget"] = widget
	}
	if panel := stringExtension(extensions, extPanel); panel != "" {
		field.Panel = panel
	}
	if inst := stringExtension(extensions, extInstrument); inst != "" {
		field.ensureMetadata()["instrument"] = inst
	}
	if rule := stringExtension(extensions, extVisibleWhen); rule != "" {
		field.VisibilityRule = rule
	}
	if placeholder := stringExtension(extensions, extPlaceholder); placeholder != "" {
		field.Placeholder = placeholder
	}
	if kind := stringExtension(extensions, extOptionKind); kind != "" {
		field.ensureMetadata()["options"] = kind
	}
	if panel := stringExtension(extensions, extTogglePanel); panel != "" {
		field.ensureUIHints()["togglePanel"] = panel
	}
}

func stringExtension(extensions map[string]any, key string) string {
	raw, ok := extensions[key]
	if !ok {
		return ""
	}
	value, ok := raw.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
