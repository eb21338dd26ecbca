package catalog

import (
	"github.com/observatory/quicklook/pkg/model"
)

// Decorator returns a form decorator that fills catalog-backed fields with
// their option values. A field opts in through Metadata["options"] naming
// the option kind; the instrument comes from Metadata["instrument"] or,
// when absent, from the panel the field belongs to.
func (c *Catalog) Decorator() model.Decorator {
	return model.DecoratorFunc(func(form *model.FormModel) error {
		if form == nil {
			return nil
		}
		form.Fields = c.decorateFields(form.Fields, "")
		for i := range form.Panels {
			form.Panels[i].Fields = c.decorateFields(form.Panels[i].Fields, form.Panels[i].Instrument)
		}
		return nil
	})
}

func (c *Catalog) decorateFields(fields []model.Field, instrument string) []model.Field {
	for i := range fields {
		fields[i] = c.decorateField(fields[i], instrument)
	}
	return fields
}

func (c *Catalog) decorateField(field model.Field, instrument string) model.Field {
	if len(field.Nested) > 0 {
		field.Nested = c.decorateFields(field.Nested, instrument)
	}

	kind := field.Metadata["options"]
	if kind == "" {
		return field
	}
	if own := field.Metadata["instrument"]; own != "" {
		instrument = own
	}

	values := c.Options(instrument, Kind(kind))
	if len(values) == 0 {
		return field
	}

	enum := make([]any, 0, len(values))
	for _, value := range values {
		enum = append(enum, value)
	}

	// Renderers read field.Enum for both selects and checkbox groups; the
	// item schema mirrors it so array validation sees the same values.
	field.Enum = enum
	if field.Type == model.FieldTypeArray && field.Items != nil {
		item := *field.Items
		item.Enum = enum
		field.Items = &item
	}
	return field
}
