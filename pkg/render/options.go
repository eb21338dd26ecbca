package render

import theme "github.com/goliatone/go-theme"

// RenderOptions describe per-request data that renderers use to customise
// their output without mutating the form model pipeline.
type RenderOptions struct {
	// Method overrides the HTTP method declared by the form model.
	Method string

	// Values pre-populates rendered controls keyed by field name. Submitted
	// values flow back through here so failed validations keep the user's
	// input.
	Values map[string]any

	// Errors surfaces server-side validation feedback keyed by field name.
	// The HTML renderer maps these into inline messages next to the control.
	Errors map[string][]string

	// FormErrors lists messages not attributable to a single field; the HTML
	// renderer shows them in a banner above the form.
	FormErrors []string

	// Hidden lists extra hidden inputs (CSRF token, method override) emitted
	// inside the form element, sorted by name for deterministic output.
	Hidden map[string]string

	// Theme carries the resolved theme configuration (partial overrides,
	// tokens, asset resolver). Nil means unthemed output.
	Theme *theme.RendererConfig
}
