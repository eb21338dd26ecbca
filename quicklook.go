// Package quicklook is the top-level facade for the observation quality
// portal. It bundles the portal's form schema and re-exports the pipeline
// constructors so embedding applications need a single import.
package quicklook

import (
	"context"
	"embed"
	"io/fs"

	internalloader "github.com/observatory/quicklook/internal/openapi/loader"
	internalparser "github.com/observatory/quicklook/internal/openapi/parser"
	pkgopenapi "github.com/observatory/quicklook/pkg/openapi"
	"github.com/observatory/quicklook/pkg/orchestrator"
	"github.com/observatory/quicklook/pkg/render"
	"github.com/observatory/quicklook/pkg/renderers/html"
)

//go:embed portal/openapi.yaml
var portalFS embed.FS

// Portal form operation ids defined in the embedded schema.
const (
	OpSubmitQuery      = "submitQuery"
	OpSearchMnemonic   = "searchMnemonic"
	OpQueryMnemonic    = "queryMnemonic"
	OpExploreInventory = "exploreInventory"
)

// PortalSchemaFS exposes the embedded schema bundle.
func PortalSchemaFS() fs.FS {
	return portalFS
}

// PortalSource identifies the embedded portal schema for the loader
// returned by NewPortalLoader.
func PortalSource() pkgopenapi.Source {
	return pkgopenapi.SourceFromFS("portal/openapi.yaml")
}

// NewLoader constructs a loader using the internal implementation while
// keeping the concrete type hidden from consumers.
func NewLoader(options ...pkgopenapi.LoaderOption) pkgopenapi.Loader {
	cfg := pkgopenapi.NewLoaderOptions(options...)
	return internalloader.New(cfg)
}

// NewPortalLoader returns a loader bound to the embedded schema bundle.
func NewPortalLoader() pkgopenapi.Loader {
	return NewLoader(pkgopenapi.WithFileSystem(portalFS))
}

// NewParser constructs a parser backed by the internal implementation.
func NewParser(options ...pkgopenapi.ParserOption) pkgopenapi.Parser {
	cfg := pkgopenapi.NewParserOptions(options...)
	return internalparser.New(cfg)
}

// RenderOptions is re-exported for callers driving the orchestrator through
// this facade.
type RenderOptions = render.RenderOptions

// NewOrchestrator builds an orchestrator preconfigured with the embedded
// portal schema loader, so requests only need an operation id.
func NewOrchestrator(options ...orchestrator.Option) *orchestrator.Orchestrator {
	base := []orchestrator.Option{orchestrator.WithLoader(NewPortalLoader())}
	return orchestrator.New(append(base, options...)...)
}

// GenerateHTML renders a portal form for the given operation using the
// default HTML renderer.
func GenerateHTML(ctx context.Context, operationID string, options ...orchestrator.Option) ([]byte, error) {
	gen := NewOrchestrator(options...)
	return gen.Generate(ctx, orchestrator.Request{
		Source:      PortalSource(),
		OperationID: operationID,
	})
}

// RuntimeAssetsFS exposes the renderer's embedded stylesheet and
// panel-toggle script for serving under a static route.
func RuntimeAssetsFS() fs.FS {
	return html.AssetsFS()
}
