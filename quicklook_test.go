package quicklook

import (
	"context"
	"strings"
	"testing"

	"github.com/observatory/quicklook/internal/catalog"
	"github.com/observatory/quicklook/pkg/orchestrator"
	"github.com/observatory/quicklook/pkg/render"
)

func TestGenerateHTMLSubmitQuery(t *testing.T) {
	cat, err := catalog.New()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	out, err := GenerateHTML(context.Background(), OpSubmitQuery,
		orchestrator.WithDecorators(cat.Decorator()))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	markup := string(out)
	if !strings.Contains(markup, `action="/query"`) {
		t.Fatalf("expected query form action, got:\n%s", markup)
	}
	for _, instrument := range []string{"fgs", "miri", "nircam", "niriss", "nirspec"} {
		if !strings.Contains(markup, `data-panel="`+instrument+`"`) {
			t.Fatalf("missing %s panel", instrument)
		}
		if !strings.Contains(markup, `name="instruments.`+instrument+`"`) {
			t.Fatalf("missing %s toggle", instrument)
		}
	}

	// Catalog enums flow into the panel checkbox groups.
	if !strings.Contains(markup, `value="F770W"`) {
		t.Fatalf("miri filter options not rendered")
	}

	// Panels start collapsed until their instrument toggle is checked.
	if !strings.Contains(markup, "hidden") {
		t.Fatalf("expected collapsed panels in default render")
	}
}

func TestGenerateHTMLPanelVisibleWithValues(t *testing.T) {
	gen := NewOrchestrator()
	out, err := gen.Generate(context.Background(), orchestrator.Request{
		Source:      PortalSource(),
		OperationID: OpSubmitQuery,
		RenderOptions: render.RenderOptions{
			Values: map[string]any{"instruments.miri": "true"},
		},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	markup := string(out)
	idx := strings.Index(markup, `data-panel="miri"`)
	if idx < 0 {
		t.Fatalf("missing miri panel")
	}
	section := markup[idx : strings.Index(markup[idx:], ">")+idx]
	if strings.Contains(section, "hidden") {
		t.Fatalf("miri panel should be visible when its toggle is set: %s", section)
	}
}

func TestGenerateHTMLEDBForms(t *testing.T) {
	for _, op := range []string{OpSearchMnemonic, OpQueryMnemonic, OpExploreInventory} {
		out, err := GenerateHTML(context.Background(), op)
		if err != nil {
			t.Fatalf("generate %s: %v", op, err)
		}
		if !strings.Contains(string(out), "<form") {
			t.Fatalf("%s did not render a form", op)
		}
	}
	out, err := GenerateHTML(context.Background(), OpQueryMnemonic)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(string(out), `data-lookup="mnemonic"`) {
		t.Fatalf("mnemonic lookup widget not rendered")
	}
}

func TestGenerateHTMLUnknownOperation(t *testing.T) {
	if _, err := GenerateHTML(context.Background(), "nope"); err == nil {
		t.Fatalf("expected unknown operation error")
	}
}
