package html

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/observatory/quicklook/pkg/model"
	"github.com/observatory/quicklook/pkg/render"
	rendertemplate "github.com/observatory/quicklook/pkg/render/template"
	"github.com/observatory/quicklook/pkg/render/template/pongo"
	"github.com/observatory/quicklook/pkg/visibility"
	"github.com/observatory/quicklook/pkg/visibility/expr"
)

type Option func(*config)

type config struct {
	templateFS       fs.FS
	templateRenderer rendertemplate.TemplateRenderer
	evaluator        visibility.Evaluator
}

// WithTemplatesFS supplies an alternate template bundle via fs.FS.
func WithTemplatesFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templateFS = files
	}
}

// WithTemplatesDir loads templates from a directory on disk.
func WithTemplatesDir(path string) Option {
	return func(cfg *config) {
		if path == "" {
			return
		}
		cfg.templateFS = os.DirFS(path)
	}
}

// WithTemplateRenderer injects a custom template renderer implementation.
func WithTemplateRenderer(renderer rendertemplate.TemplateRenderer) Option {
	return func(cfg *config) {
		if renderer != nil {
			cfg.templateRenderer = renderer
		}
	}
}

// WithVisibilityEvaluator overrides the evaluator used to pre-collapse
// panels during server-side rendering.
func WithVisibilityEvaluator(evaluator visibility.Evaluator) Option {
	return func(cfg *config) {
		if evaluator != nil {
			cfg.evaluator = evaluator
		}
	}
}

// Renderer produces the portal's HTML form markup: a flat field section plus
// per-instrument panels carrying data attributes the embedded runtime script
// uses to toggle visibility client-side.
type Renderer struct {
	templates rendertemplate.TemplateRenderer
	evaluator visibility.Evaluator
}

// New constructs the HTML renderer applying any provided options.
func New(options ...Option) (*Renderer, error) {
	cfg := config{templateFS: TemplatesFS()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	if cfg.templateFS == nil {
		cfg.templateFS = TemplatesFS()
	}
	if cfg.evaluator == nil {
		cfg.evaluator = expr.New()
	}

	renderer := cfg.templateRenderer
	if renderer == nil {
		engine, err := pongo.New(
			pongo.WithFS(cfg.templateFS),
			pongo.WithExtension(".tmpl"),
		)
		if err != nil {
			return nil, fmt.Errorf("html renderer: configure template renderer: %w", err)
		}
		renderer = engine
	}

	return &Renderer{templates: renderer, evaluator: cfg.evaluator}, nil
}

func (r *Renderer) Name() string { return "html" }

func (r *Renderer) ContentType() string { return "text/html; charset=utf-8" }

// Render executes the form template with pre-rendered field and panel
// markup. Output is deterministic for a given model and options.
func (r *Renderer) Render(_ context.Context, form model.FormModel, options render.RenderOptions) ([]byte, error) {
	if r.templates == nil {
		return nil, fmt.Errorf("html renderer: template renderer is nil")
	}

	fields := newFieldRenderer(options)

	panelled := make(map[string]struct{})
	for _, panel := range form.Panels {
		for _, field := range panel.Fields {
			panelled[field.Name] = struct{}{}
		}
	}

	var body strings.Builder
	for _, field := range form.Fields {
		if _, ok := panelled[field.Name]; ok {
			continue
		}
		markup, err := fields.render(field)
		if err != nil {
			return nil, err
		}
		body.WriteString(markup)
	}

	panels := make([]map[string]any, 0, len(form.Panels))
	for _, panel := range form.Panels {
		rendered, err := r.renderPanel(panel, fields, options)
		if err != nil {
			return nil, err
		}
		panels = append(panels, rendered)
	}

	method, override := browserMethod(form, options)
	hidden := options.Hidden
	if override != "" {
		hidden = render.MergeHiddenFields(hidden, render.MethodOverride(override))
	}

	data := map[string]any{
		"form": map[string]any{
			"operationId": form.OperationID,
			"endpoint":    form.Endpoint,
			"method":      method,
			"summary":     form.Summary,
			"description": form.Description,
		},
		"hidden":     hiddenFieldData(hidden),
		"formErrors": options.FormErrors,
		"body":       body.String(),
		"panels":     panels,
		"theme":      themeData(options.Theme),
	}

	result, err := r.templates.RenderTemplate("templates/form.tmpl", data)
	if err != nil {
		return nil, fmt.Errorf("html renderer: render template: %w", err)
	}
	return []byte(result), nil
}

func (r *Renderer) renderPanel(panel model.Panel, fields *fieldRenderer, options render.RenderOptions) (map[string]any, error) {
	var markup strings.Builder
	for _, field := range panel.Fields {
		rendered, err := fields.render(field)
		if err != nil {
			return nil, err
		}
		markup.WriteString(rendered)
	}

	hidden := false
	if panel.Rule != "" {
		visible, err := r.evaluator.Eval(panel.Name, panel.Rule, visibility.Context{Values: options.Values})
		if err != nil {
			return nil, fmt.Errorf("html renderer: panel %q rule: %w", panel.Name, err)
		}
		hidden = !visible
	}

	return map[string]any{
		"name":       panel.Name,
		"label":      panel.Label,
		"instrument": panel.Instrument,
		"rule":       panel.Rule,
		"hidden":     hidden,
		"body":       markup.String(),
	}, nil
}

// browserMethod translates verbs browsers cannot submit into POST plus a
// hidden override input.
func browserMethod(form model.FormModel, options render.RenderOptions) (method, override string) {
	method = strings.ToUpper(strings.TrimSpace(options.Method))
	if method == "" {
		method = strings.ToUpper(form.Method)
	}
	switch method {
	case "", "GET":
		return "GET", ""
	case "POST":
		return "POST", ""
	default:
		return "POST", method
	}
}

func hiddenFieldData(hidden map[string]string) []map[string]string {
	sorted := render.SortedHiddenFields(hidden)
	out := make([]map[string]string, 0, len(sorted))
	for _, field := range sorted {
		out = append(out, map[string]string{"name": field.Name, "value": field.Value})
	}
	return out
}
