package html

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/observatory/quicklook/pkg/model"
	"github.com/observatory/quicklook/pkg/render"
	"github.com/observatory/quicklook/pkg/widgets"
)

// fieldRenderer builds control markup per widget. Values and errors come
// from render options so failed submissions keep user input visible.
type fieldRenderer struct {
	values map[string]any
	errors map[string][]string
	policy *bluemonday.Policy
}

func newFieldRenderer(options render.RenderOptions) *fieldRenderer {
	return &fieldRenderer{
		values: options.Values,
		errors: options.Errors,
		policy: bluemonday.StrictPolicy(),
	}
}

func (r *fieldRenderer) render(field model.Field) (string, error) {
	widget := field.Metadata["widget"]
	if widget == "" {
		widget = widgets.WidgetInput
	}

	var control string
	switch widget {
	case widgets.WidgetCheckboxGroup:
		control = r.checkboxGroup(field)
	case widgets.WidgetDateRange:
		control = r.dateRange(field)
	case widgets.WidgetSelect:
		control = r.selectBox(field)
	case widgets.WidgetToggle:
		control = r.toggle(field)
	case widgets.WidgetTextarea:
		control = r.textarea(field)
	case widgets.WidgetMnemonicLookup:
		control = r.mnemonicLookup(field)
	case widgets.WidgetInput:
		control = r.input(field)
	default:
		return "", fmt.Errorf("html renderer: widget %q not supported for field %q", widget, field.Name)
	}

	return r.chrome(field, widget, control), nil
}

// chrome wraps a control with label, description and inline errors.
func (r *fieldRenderer) chrome(field model.Field, widget, control string) string {
	var b strings.Builder
	b.Grow(len(control) + 256)

	b.WriteString(`<div class="ql-field ql-field-`)
	b.WriteString(html.EscapeString(widget))
	b.WriteString(`" data-field="`)
	b.WriteString(html.EscapeString(field.Name))
	b.WriteString(`">`)

	if field.Label != "" && widget != widgets.WidgetToggle {
		b.WriteString(`<label class="ql-label"`)
		if labelSupportsFor(widget) {
			b.WriteString(` for="`)
			b.WriteString(controlID(field.Name))
			b.WriteString(`"`)
		}
		b.WriteString(`>`)
		b.WriteString(html.EscapeString(field.Label))
		if field.Required {
			b.WriteString(`<span class="ql-required">*</span>`)
		}
		b.WriteString(`</label>`)
	}

	b.WriteString(control)

	if field.Description != "" {
		b.WriteString(`<p class="ql-help">`)
		b.WriteString(html.EscapeString(field.Description))
		b.WriteString(`</p>`)
	}

	for _, message := range r.errors[field.Name] {
		b.WriteString(`<p class="ql-field-error" role="alert">`)
		b.WriteString(html.EscapeString(message))
		b.WriteString(`</p>`)
	}

	b.WriteString(`</div>`)
	return b.String()
}

func (r *fieldRenderer) input(field model.Field) string {
	inputType := "text"
	switch field.Type {
	case model.FieldTypeInteger, model.FieldTypeNumber:
		inputType = "number"
	}
	switch strings.ToLower(field.Format) {
	case "date":
		inputType = "date"
	case "date-time":
		inputType = "datetime-local"
	}

	var b strings.Builder
	b.WriteString(`<input class="ql-input" type="`)
	b.WriteString(inputType)
	b.WriteString(`" id="`)
	b.WriteString(controlID(field.Name))
	b.WriteString(`" name="`)
	b.WriteString(html.EscapeString(field.Name))
	b.WriteString(`"`)
	if value := r.stringValue(field.Name, field.Default); value != "" {
		b.WriteString(` value="`)
		b.WriteString(html.EscapeString(value))
		b.WriteString(`"`)
	}
	if field.Placeholder != "" {
		b.WriteString(` placeholder="`)
		b.WriteString(html.EscapeString(field.Placeholder))
		b.WriteString(`"`)
	}
	writeValidationAttrs(&b, field)
	if field.Required {
		b.WriteString(` required`)
	}
	b.WriteString(`>`)
	return b.String()
}

func (r *fieldRenderer) textarea(field model.Field) string {
	var b strings.Builder
	b.WriteString(`<textarea class="ql-textarea" id="`)
	b.WriteString(controlID(field.Name))
	b.WriteString(`" name="`)
	b.WriteString(html.EscapeString(field.Name))
	b.WriteString(`"`)
	if field.Placeholder != "" {
		b.WriteString(` placeholder="`)
		b.WriteString(html.EscapeString(field.Placeholder))
		b.WriteString(`"`)
	}
	if field.Required {
		b.WriteString(` required`)
	}
	b.WriteString(`>`)
	b.WriteString(html.EscapeString(r.stringValue(field.Name, field.Default)))
	b.WriteString(`</textarea>`)
	return b.String()
}

func (r *fieldRenderer) mnemonicLookup(field model.Field) string {
	var b strings.Builder
	b.WriteString(`<input class="ql-input ql-mnemonic" type="text" id="`)
	b.WriteString(controlID(field.Name))
	b.WriteString(`" name="`)
	b.WriteString(html.EscapeString(field.Name))
	b.WriteString(`" data-lookup="mnemonic" autocomplete="off" spellcheck="false"`)
	if value := r.stringValue(field.Name, field.Default); value != "" {
		b.WriteString(` value="`)
		b.WriteString(html.EscapeString(value))
		b.WriteString(`"`)
	}
	if field.Placeholder != "" {
		b.WriteString(` placeholder="`)
		b.WriteString(html.EscapeString(field.Placeholder))
		b.WriteString(`"`)
	}
	writeValidationAttrs(&b, field)
	if field.Required {
		b.WriteString(` required`)
	}
	b.WriteString(`>`)
	return b.String()
}

func (r *fieldRenderer) selectBox(field model.Field) string {
	current := r.stringValue(field.Name, field.Default)

	var b strings.Builder
	b.WriteString(`<select class="ql-select" id="`)
	b.WriteString(controlID(field.Name))
	b.WriteString(`" name="`)
	b.WriteString(html.EscapeString(field.Name))
	b.WriteString(`"`)
	if field.Required {
		b.WriteString(` required`)
	}
	b.WriteString(`>`)
	if !field.Required {
		b.WriteString(`<option value=""></option>`)
	}
	for _, option := range field.Enum {
		value := fmt.Sprint(option)
		b.WriteString(`<option value="`)
		b.WriteString(html.EscapeString(value))
		b.WriteString(`"`)
		if value == current {
			b.WriteString(` selected`)
		}
		b.WriteString(`>`)
		b.WriteString(html.EscapeString(value))
		b.WriteString(`</option>`)
	}
	b.WriteString(`</select>`)
	return b.String()
}

func (r *fieldRenderer) checkboxGroup(field model.Field) string {
	selected := r.sliceValue(field.Name)

	var b strings.Builder
	b.WriteString(`<fieldset class="ql-checkbox-group" id="`)
	b.WriteString(controlID(field.Name))
	b.WriteString(`">`)
	for _, option := range field.Enum {
		value := fmt.Sprint(option)
		b.WriteString(`<label class="ql-checkbox"><input type="checkbox" name="`)
		b.WriteString(html.EscapeString(field.Name))
		b.WriteString(`" value="`)
		b.WriteString(html.EscapeString(value))
		b.WriteString(`"`)
		if _, ok := selected[value]; ok {
			b.WriteString(` checked`)
		}
		b.WriteString(`> `)
		b.WriteString(html.EscapeString(value))
		b.WriteString(`</label>`)
	}
	b.WriteString(`</fieldset>`)
	return b.String()
}

func (r *fieldRenderer) toggle(field model.Field) string {
	checked := false
	if raw, ok := lookupValue(r.values, field.Name); ok {
		checked = truthyValue(raw)
	} else if def, ok := field.Default.(bool); ok {
		checked = def
	}

	var b strings.Builder
	b.WriteString(`<label class="ql-toggle"><input type="checkbox" id="`)
	b.WriteString(controlID(field.Name))
	b.WriteString(`" name="`)
	b.WriteString(html.EscapeString(field.Name))
	b.WriteString(`" value="true"`)
	if checked {
		b.WriteString(` checked`)
	}
	if panel := field.UIHints["togglePanel"]; panel != "" {
		b.WriteString(` data-toggle-panel="`)
		b.WriteString(html.EscapeString(panel))
		b.WriteString(`"`)
	}
	b.WriteString(`> `)
	b.WriteString(html.EscapeString(field.Label))
	b.WriteString(`</label>`)
	return b.String()
}

func (r *fieldRenderer) dateRange(field model.Field) string {
	start := r.stringValue(field.Name+"_start", nil)
	end := r.stringValue(field.Name+"_end", nil)

	var b strings.Builder
	b.WriteString(`<div class="ql-date-range" id="`)
	b.WriteString(controlID(field.Name))
	b.WriteString(`"><input class="ql-input" type="date" name="`)
	b.WriteString(html.EscapeString(field.Name))
	b.WriteString(`_start"`)
	if start != "" {
		b.WriteString(` value="`)
		b.WriteString(html.EscapeString(start))
		b.WriteString(`"`)
	}
	b.WriteString(`><span class="ql-date-range-sep">to</span><input class="ql-input" type="date" name="`)
	b.WriteString(html.EscapeString(field.Name))
	b.WriteString(`_end"`)
	if end != "" {
		b.WriteString(` value="`)
		b.WriteString(html.EscapeString(end))
		b.WriteString(`"`)
	}
	b.WriteString(`></div>`)
	return b.String()
}

// stringValue resolves the display value for a control, sanitising anything
// that came from a submission before it is echoed back.
func (r *fieldRenderer) stringValue(name string, fallback any) string {
	if raw, ok := lookupValue(r.values, name); ok {
		return r.policy.Sanitize(fmt.Sprint(raw))
	}
	if fallback == nil {
		return ""
	}
	return fmt.Sprint(fallback)
}

func (r *fieldRenderer) sliceValue(name string) map[string]struct{} {
	out := make(map[string]struct{})
	raw, ok := lookupValue(r.values, name)
	if !ok {
		return out
	}
	switch v := raw.(type) {
	case []string:
		for _, item := range v {
			out[r.policy.Sanitize(item)] = struct{}{}
		}
	case []any:
		for _, item := range v {
			out[r.policy.Sanitize(fmt.Sprint(item))] = struct{}{}
		}
	case string:
		if v != "" {
			out[r.policy.Sanitize(v)] = struct{}{}
		}
	}
	return out
}

func writeValidationAttrs(b *strings.Builder, field model.Field) {
	for _, rule := range field.Validations {
		switch rule.Kind {
		case model.ValidationRuleMin:
			fmt.Fprintf(b, ` min="%s"`, html.EscapeString(rule.Params["value"]))
		case model.ValidationRuleMax:
			fmt.Fprintf(b, ` max="%s"`, html.EscapeString(rule.Params["value"]))
		case model.ValidationRuleMinLength:
			fmt.Fprintf(b, ` minlength="%s"`, html.EscapeString(rule.Params["value"]))
		case model.ValidationRuleMaxLength:
			fmt.Fprintf(b, ` maxlength="%s"`, html.EscapeString(rule.Params["value"]))
		case model.ValidationRulePattern:
			fmt.Fprintf(b, ` pattern="%s"`, html.EscapeString(rule.Params["pattern"]))
		}
	}
}
