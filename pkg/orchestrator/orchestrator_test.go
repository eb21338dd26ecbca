package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	theme "github.com/goliatone/go-theme"

	pkgmodel "github.com/observatory/quicklook/pkg/model"
	pkgopenapi "github.com/observatory/quicklook/pkg/openapi"
	"github.com/observatory/quicklook/pkg/render"
)

func TestGenerateUsesDefaultRenderer(t *testing.T) {
	renderer := &captureRenderer{}
	registry := render.NewRegistry()
	registry.MustRegister(renderer)

	orch := New(
		WithParser(stubParser{operations: map[string]pkgopenapi.Operation{
			"submitQuery": pkgopenapi.MustNewOperation("submitQuery", "POST", "/query", pkgopenapi.Schema{}),
		}}),
		WithModelBuilder(stubBuilder{form: pkgmodel.FormModel{OperationID: "submitQuery"}}),
		WithRegistry(registry),
		WithDefaultRenderer(renderer.Name()),
	)

	doc := pkgopenapi.MustNewDocument(stubSource{}, []byte("{}"))
	out, err := orch.Generate(context.Background(), Request{
		Document:    &doc,
		OperationID: "submitQuery",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if string(out) != "submitQuery" {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestGenerateRequiresOperationID(t *testing.T) {
	orch := New()
	doc := pkgopenapi.MustNewDocument(stubSource{}, []byte("{}"))
	_, err := orch.Generate(context.Background(), Request{Document: &doc})
	if err == nil || !strings.Contains(err.Error(), "operation id") {
		t.Fatalf("expected operation id error, got %v", err)
	}
}

func TestGenerateUnknownOperation(t *testing.T) {
	orch := New(
		WithParser(stubParser{operations: map[string]pkgopenapi.Operation{}}),
	)
	doc := pkgopenapi.MustNewDocument(stubSource{}, []byte("{}"))
	_, err := orch.Generate(context.Background(), Request{
		Document:    &doc,
		OperationID: "missing",
	})
	if err == nil || !strings.Contains(err.Error(), `operation "missing" not found`) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestGenerateRunsDecoratorsInOrder(t *testing.T) {
	var order []string
	decorate := func(tag string) pkgmodel.Decorator {
		return pkgmodel.DecoratorFunc(func(form *pkgmodel.FormModel) error {
			order = append(order, tag)
			return nil
		})
	}

	renderer := &captureRenderer{}
	registry := render.NewRegistry()
	registry.MustRegister(renderer)

	orch := New(
		WithParser(stubParser{operations: map[string]pkgopenapi.Operation{
			"submitQuery": pkgopenapi.MustNewOperation("submitQuery", "POST", "/query", pkgopenapi.Schema{}),
		}}),
		WithModelBuilder(stubBuilder{form: pkgmodel.FormModel{OperationID: "submitQuery"}}),
		WithRegistry(registry),
		WithDefaultRenderer(renderer.Name()),
		WithDecorators(decorate("catalog"), decorate("panels")),
	)

	doc := pkgopenapi.MustNewDocument(stubSource{}, []byte("{}"))
	if _, err := orch.Generate(context.Background(), Request{Document: &doc, OperationID: "submitQuery"}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(order) != 2 || order[0] != "catalog" || order[1] != "panels" {
		t.Fatalf("unexpected decorator order: %v", order)
	}
}

func TestWidgetResolutionSeesDecoratedEnums(t *testing.T) {
	form := pkgmodel.FormModel{
		OperationID: "submitQuery",
		Fields: []pkgmodel.Field{
			{Name: "miri_filters", Type: pkgmodel.FieldTypeArray,
				Items: &pkgmodel.Field{Type: pkgmodel.FieldTypeString}},
		},
	}
	injectOptions := pkgmodel.DecoratorFunc(func(form *pkgmodel.FormModel) error {
		form.Fields[0].Enum = []any{"F770W", "F1130W"}
		return nil
	})

	orch := New(
		WithParser(stubParser{operations: map[string]pkgopenapi.Operation{
			"submitQuery": pkgopenapi.MustNewOperation("submitQuery", "POST", "/query", pkgopenapi.Schema{}),
		}}),
		WithModelBuilder(stubBuilder{form: form}),
		WithDecorators(injectOptions),
	)

	doc := pkgopenapi.MustNewDocument(stubSource{}, []byte("{}"))
	built, err := orch.BuildModel(context.Background(), Request{Document: &doc, OperationID: "submitQuery"})
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	if got := built.Fields[0].Metadata["widget"]; got != "checkbox-group" {
		t.Fatalf("widget = %q, want checkbox-group", got)
	}
}

func TestGenerateDecoratorErrorPropagates(t *testing.T) {
	boom := errors.New("catalog unavailable")
	orch := New(
		WithParser(stubParser{operations: map[string]pkgopenapi.Operation{
			"submitQuery": pkgopenapi.MustNewOperation("submitQuery", "POST", "/query", pkgopenapi.Schema{}),
		}}),
		WithModelBuilder(stubBuilder{form: pkgmodel.FormModel{OperationID: "submitQuery"}}),
		WithDecorators(pkgmodel.DecoratorFunc(func(*pkgmodel.FormModel) error { return boom })),
	)

	doc := pkgopenapi.MustNewDocument(stubSource{}, []byte("{}"))
	_, err := orch.Generate(context.Background(), Request{Document: &doc, OperationID: "submitQuery"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected decorator error, got %v", err)
	}
}

func TestBuildModelFiltersHiddenFields(t *testing.T) {
	form := pkgmodel.FormModel{
		OperationID: "submitQuery",
		Fields: []pkgmodel.Field{
			{Name: "rootname", Type: pkgmodel.FieldTypeString},
			{Name: "advanced_filter", Type: pkgmodel.FieldTypeString, VisibilityRule: "show_advanced == true"},
		},
	}

	orch := New(
		WithParser(stubParser{operations: map[string]pkgopenapi.Operation{
			"submitQuery": pkgopenapi.MustNewOperation("submitQuery", "POST", "/query", pkgopenapi.Schema{}),
		}}),
		WithModelBuilder(stubBuilder{form: form}),
	)

	doc := pkgopenapi.MustNewDocument(stubSource{}, []byte("{}"))

	built, err := orch.BuildModel(context.Background(), Request{Document: &doc, OperationID: "submitQuery"})
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	if len(built.Fields) != 1 || built.Fields[0].Name != "rootname" {
		t.Fatalf("expected hidden field dropped, got %+v", built.Fields)
	}

	built, err = orch.BuildModel(context.Background(), Request{
		Document:    &doc,
		OperationID: "submitQuery",
		RenderOptions: render.RenderOptions{
			Values: map[string]any{"show_advanced": "true"},
		},
	})
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	if len(built.Fields) != 2 {
		t.Fatalf("expected both fields visible, got %+v", built.Fields)
	}
}

func TestBuildModelKeepsPanelledFields(t *testing.T) {
	form := pkgmodel.FormModel{
		OperationID: "submitQuery",
		Fields: []pkgmodel.Field{
			{Name: "miri_detector", Panel: "miri", VisibilityRule: "instruments.miri == true"},
		},
	}

	orch := New(
		WithParser(stubParser{operations: map[string]pkgopenapi.Operation{
			"submitQuery": pkgopenapi.MustNewOperation("submitQuery", "POST", "/query", pkgopenapi.Schema{}),
		}}),
		WithModelBuilder(stubBuilder{form: form}),
	)

	doc := pkgopenapi.MustNewDocument(stubSource{}, []byte("{}"))
	built, err := orch.BuildModel(context.Background(), Request{Document: &doc, OperationID: "submitQuery"})
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	if len(built.Fields) != 1 {
		t.Fatalf("panelled field should survive filtering, got %+v", built.Fields)
	}
}

func TestGeneratePassesThemeConfigToRenderer(t *testing.T) {
	manifest := &theme.Manifest{
		Name:    "quicklook",
		Version: "1.0.0",
		Tokens: map[string]string{
			"accent": "#1c5f8a",
		},
		Templates: map[string]string{
			"forms.input": "themes/quicklook/input.tmpl",
		},
		Assets: theme.Assets{
			Prefix: "/static/themes/quicklook",
			Files: map[string]string{
				"stylesheet": "theme.css",
			},
		},
		Variants: map[string]theme.Variant{
			"dark": {
				Tokens: map[string]string{
					"accent": "#58a6ff",
				},
				Assets: theme.Assets{
					Files: map[string]string{
						"stylesheet": "theme.dark.css",
					},
				},
			},
		},
	}

	selector, err := NewManifestSelector("quicklook", "dark", manifest)
	if err != nil {
		t.Fatalf("selector: %v", err)
	}

	renderer := &captureRenderer{}
	registry := render.NewRegistry()
	registry.MustRegister(renderer)

	orch := New(
		WithParser(stubParser{operations: map[string]pkgopenapi.Operation{
			"submitQuery": pkgopenapi.MustNewOperation("submitQuery", "POST", "/query", pkgopenapi.Schema{}),
		}}),
		WithModelBuilder(stubBuilder{form: pkgmodel.FormModel{OperationID: "submitQuery"}}),
		WithRegistry(registry),
		WithDefaultRenderer(renderer.Name()),
		WithThemeSelector(selector),
	)

	doc := pkgopenapi.MustNewDocument(stubSource{}, []byte("{}"))
	if _, err := orch.Generate(context.Background(), Request{Document: &doc, OperationID: "submitQuery"}); err != nil {
		t.Fatalf("generate: %v", err)
	}

	cfg := renderer.options.Theme
	if cfg == nil {
		t.Fatalf("expected theme config passed to renderer")
	}
	if cfg.Theme != "quicklook" || cfg.Variant != "dark" {
		t.Fatalf("unexpected selection: %s/%s", cfg.Theme, cfg.Variant)
	}
	if cfg.Partials["forms.input"] != "themes/quicklook/input.tmpl" {
		t.Fatalf("expected manifest partial override, got %s", cfg.Partials["forms.input"])
	}
	if cfg.Partials["forms.textarea"] != defaultThemeFallbacks()["forms.textarea"] {
		t.Fatalf("fallback partial not applied, got %s", cfg.Partials["forms.textarea"])
	}
	if cfg.Tokens["accent"] != "#58a6ff" {
		t.Fatalf("variant token not merged, got %s", cfg.Tokens["accent"])
	}
	if cfg.CSSVars["--accent"] != "#58a6ff" {
		t.Fatalf("css vars not derived from tokens, got %s", cfg.CSSVars["--accent"])
	}
	if cfg.AssetURL == nil {
		t.Fatalf("expected asset resolver")
	}
	if got := cfg.AssetURL("stylesheet"); got != "/static/themes/quicklook/theme.dark.css" {
		t.Fatalf("unexpected stylesheet url: %s", got)
	}
}

func TestManifestSelectorUnknownTheme(t *testing.T) {
	selector, err := NewManifestSelector("", "")
	if err != nil {
		t.Fatalf("selector: %v", err)
	}
	if _, err := selector.Select("missing", ""); err == nil {
		t.Fatalf("expected unknown theme error")
	}
}

type stubSource struct{}

func (stubSource) Kind() pkgopenapi.SourceKind { return pkgopenapi.SourceKindFile }
func (stubSource) Location() string            { return "stub" }

type stubParser struct {
	operations map[string]pkgopenapi.Operation
	err        error
}

func (s stubParser) Operations(_ context.Context, _ pkgopenapi.Document) (map[string]pkgopenapi.Operation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.operations, nil
}

type stubBuilder struct {
	form pkgmodel.FormModel
	err  error
}

func (s stubBuilder) Build(pkgopenapi.Operation) (pkgmodel.FormModel, error) {
	if s.err != nil {
		return pkgmodel.FormModel{}, s.err
	}
	return s.form, nil
}

type captureRenderer struct {
	options render.RenderOptions
}

func (r *captureRenderer) Name() string        { return "capture" }
func (r *captureRenderer) ContentType() string { return "text/plain" }

func (r *captureRenderer) Render(_ context.Context, form pkgmodel.FormModel, opts render.RenderOptions) ([]byte, error) {
	r.options = opts
	return []byte(form.OperationID), nil
}
