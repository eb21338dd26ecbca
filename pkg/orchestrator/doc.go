// Package orchestrator coordinates the full form pipeline: it loads the
// schema document, parses operations, builds the form model, runs decorators
// (widgets, catalog enums, visibility), resolves the active theme, and hands
// the result to a registered renderer.
//
// The zero-configuration path covers the portal's needs:
//
//	gen := orchestrator.New()
//	html, err := gen.Generate(ctx, orchestrator.Request{
//	    Source:      quicklook.PortalSchema(),
//	    OperationID: "submitQuery",
//	})
//
// Every stage accepts injection through Option values so the server can swap
// in its catalog-aware decorators and shared renderer registry.
package orchestrator
