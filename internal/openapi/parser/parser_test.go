package parser

import (
	"context"
	"strings"
	"testing"

	pkgopenapi "github.com/observatory/quicklook/pkg/openapi"
)

const portalSchema = `
openapi: 3.0.3
info:
  title: Test Portal
  version: 1.0.0
paths:
  /query:
    post:
      operationId: submitQuery
      summary: Query the archive
      requestBody:
        required: true
        content:
          application/x-www-form-urlencoded:
            schema:
              type: object
              required: [sort_order]
              properties:
                instruments.miri:
                  type: boolean
                  x-quicklook-toggle-panel: miri
                sort_order:
                  type: string
                  enum: [ascending, descending, recent]
                  default: ascending
                search:
                  type: string
                  minLength: 2
                miri_filters:
                  type: array
                  x-quicklook-panel: miri
                  items:
                    type: string
                    enum: [F770W, F1130W]
      responses:
        '200':
          description: results
  /edb:
    get:
      summary: landing page
      responses:
        '200':
          description: page
`

func testDocument(t *testing.T, payload string) pkgopenapi.Document {
	t.Helper()
	doc, err := pkgopenapi.NewDocument(pkgopenapi.SourceFromFS("schema.yaml"), []byte(payload))
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	return doc
}

func TestOperations(t *testing.T) {
	parser := New(pkgopenapi.ParserOptions{})
	operations, err := parser.Operations(context.Background(), testDocument(t, portalSchema))
	if err != nil {
		t.Fatalf("Operations: %v", err)
	}

	op, ok := operations["submitQuery"]
	if !ok {
		t.Fatalf("submitQuery missing, got %v", keys(operations))
	}
	if op.Method != "POST" || op.Path != "/query" {
		t.Errorf("operation = %s %s", op.Method, op.Path)
	}
	if op.Summary != "Query the archive" {
		t.Errorf("summary = %q", op.Summary)
	}

	body := op.RequestBody
	if body.Type != "object" {
		t.Fatalf("request body type = %q", body.Type)
	}
	if len(body.Required) != 1 || body.Required[0] != "sort_order" {
		t.Errorf("required = %v", body.Required)
	}

	toggle := body.Properties["instruments.miri"]
	if toggle.Type != "boolean" {
		t.Errorf("toggle type = %q", toggle.Type)
	}
	if got := toggle.Extensions["x-quicklook-toggle-panel"]; got != "miri" {
		t.Errorf("toggle extension = %v", got)
	}

	search := body.Properties["search"]
	if search.MinLength == nil || *search.MinLength != 2 {
		t.Errorf("search minLength = %v", search.MinLength)
	}

	filters := body.Properties["miri_filters"]
	if filters.Items == nil || len(filters.Items.Enum) != 2 {
		t.Errorf("filters items = %+v", filters.Items)
	}
	if got := filters.Extensions["x-quicklook-panel"]; got != "miri" {
		t.Errorf("filters panel extension = %v", got)
	}
}

func TestOperationsSynthesisesMissingID(t *testing.T) {
	parser := New(pkgopenapi.ParserOptions{})
	operations, err := parser.Operations(context.Background(), testDocument(t, portalSchema))
	if err != nil {
		t.Fatalf("Operations: %v", err)
	}
	if _, ok := operations["get:/edb"]; !ok {
		t.Errorf("synthesised id missing, got %v", keys(operations))
	}
}

func TestOperationsEmptyDocument(t *testing.T) {
	parser := New(pkgopenapi.ParserOptions{})
	_, err := parser.Operations(context.Background(), pkgopenapi.Document{})
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("Operations error = %v", err)
	}
}

func TestOperationsNoPaths(t *testing.T) {
	payload := "openapi: 3.0.3\ninfo:\n  title: empty\n  version: 1.0.0\npaths: {}\n"
	parser := New(pkgopenapi.ParserOptions{})
	_, err := parser.Operations(context.Background(), testDocument(t, payload))
	if err == nil || !strings.Contains(err.Error(), "paths") {
		t.Fatalf("Operations error = %v", err)
	}
}

func TestOperationsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	parser := New(pkgopenapi.ParserOptions{})
	if _, err := parser.Operations(ctx, testDocument(t, portalSchema)); err == nil {
		t.Fatal("Operations with cancelled context succeeded")
	}
}

func keys(operations map[string]pkgopenapi.Operation) []string {
	out := make([]string, 0, len(operations))
	for key := range operations {
		out = append(out, key)
	}
	return out
}
