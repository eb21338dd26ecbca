// Package server is the portal's HTTP layer: form pages, the JSON archive
// API, cached CSV downloads, and operational endpoints.
package server

import (
	"embed"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/observatory/quicklook"
	"github.com/observatory/quicklook/internal/archive"
	"github.com/observatory/quicklook/internal/cache"
	"github.com/observatory/quicklook/internal/catalog"
	"github.com/observatory/quicklook/internal/edb"
	"github.com/observatory/quicklook/pkg/orchestrator"
	"github.com/observatory/quicklook/pkg/render/template/pongo"
)

//go:embed templates/*.tmpl
var pageTemplates embed.FS

// Server wires the form pipeline, stores, and cache behind a chi router.
type Server struct {
	logger    *zap.Logger
	generator *orchestrator.Orchestrator
	catalog   *catalog.Catalog
	archive   *archive.Store
	edb       *edb.Store
	cache     *cache.Cache
	pages     *pongo.Engine
	csrf      *csrfSigner
	metrics   *metrics

	theme        string
	themeVariant string
}

// Options collects the server's dependencies. Catalog, Archive and EDB are
// required; the rest default.
type Options struct {
	Logger  *zap.Logger
	Catalog *catalog.Catalog
	Archive *archive.Store
	EDB     *edb.Store
	Cache   *cache.Cache

	// Generator overrides the default orchestrator. Tests inject one with
	// stub stages.
	Generator *orchestrator.Orchestrator

	// ThemeSelector enables themed rendering when non-nil.
	ThemeSelector *orchestrator.ManifestSelector
	Theme         string
	ThemeVariant  string

	// CSRFSecret signs form tokens; empty generates a per-process secret.
	CSRFSecret string
}

// New builds the portal server.
func New(opts Options) (*Server, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("server: catalog is required")
	}
	if opts.Archive == nil {
		return nil, fmt.Errorf("server: archive store is required")
	}
	if opts.EDB == nil {
		return nil, fmt.Errorf("server: edb store is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	generator := opts.Generator
	if generator == nil {
		genOpts := []orchestrator.Option{
			orchestrator.WithDecorators(opts.Catalog.Decorator()),
		}
		if opts.ThemeSelector != nil {
			genOpts = append(genOpts, orchestrator.WithThemeSelector(opts.ThemeSelector))
		}
		generator = quicklook.NewOrchestrator(genOpts...)
	}

	pages, err := pongo.New(
		pongo.WithFS(pageTemplates),
		pongo.WithExtension(".tmpl"),
	)
	if err != nil {
		return nil, fmt.Errorf("server: page templates: %w", err)
	}

	signer, err := newCSRFSigner(opts.CSRFSecret)
	if err != nil {
		return nil, err
	}

	return &Server{
		logger:    logger,
		generator: generator,
		catalog:   opts.Catalog,
		archive:   opts.Archive,
		edb:       opts.EDB,
		cache:     opts.Cache,
		pages:     pages,
		csrf:      signer,
		metrics:   newMetrics(),

		theme:        opts.Theme,
		themeVariant: opts.ThemeVariant,
	}, nil
}

// Router assembles the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	r.Use(s.metrics.Middleware)
	r.Use(recoverer(s.logger))

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/query", http.StatusFound)
	})

	r.Get("/query", s.handleQueryPage)
	r.Post("/query", s.handleQuerySubmit)
	r.Get("/explore", s.handleExplore)
	r.Get("/edb", s.handleEDBPage)
	r.Post("/edb/search", s.handleMnemonicSearch)
	r.Post("/edb/query", s.handleMnemonicQuery)
	r.Post("/edb/explore", s.handleInventoryExplore)

	r.Route("/api", func(r chi.Router) {
		r.Get("/proposals", s.apiProposals)
		r.Get("/{instrument:fgs|miri|nircam|niriss|nirspec}/proposals", s.apiInstrumentProposals)
		r.Get("/{proposal:[0-9]+}/filenames", s.apiFilenamesByProposal)
		r.Get("/{rootname:jw.+}/filenames", s.apiFilenamesByRootname)
		r.Get("/{proposal:[0-9]+}/preview_images", s.apiPreviewImagesByProposal)
		r.Get("/{rootname:jw.+}/preview_images", s.apiPreviewImagesByRootname)
		r.Get("/{proposal:[0-9]+}/thumbnails", s.apiThumbnailsByProposal)
		r.Get("/{rootname:jw.+}/thumbnails", s.apiThumbnailByRootname)
	})

	r.Get("/download/{token}", s.handleDownload)
	r.Handle("/metrics", s.metrics.Handler())
	r.Handle("/static/*", http.StripPrefix("/static/",
		http.FileServerFS(quicklook.RuntimeAssetsFS())))

	return r
}

// renderPage executes a page template and writes it with the given status.
func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data map[string]any) {
	out, err := s.pages.RenderTemplate("templates/"+name, data)
	if err != nil {
		s.logger.Error("render page failed", zap.String("template", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(out))
}

func (s *Server) renderError(w http.ResponseWriter, status int, message string) {
	s.renderPage(w, status, "error.tmpl", map[string]any{
		"status":  status,
		"title":   http.StatusText(status),
		"message": message,
	})
}
