package orchestrator

import (
	"fmt"
	"strings"
	"sync"

	theme "github.com/goliatone/go-theme"
)

// defaultThemeFallbacks lists the partial templates renderers fall back to
// when the selected theme does not override them.
func defaultThemeFallbacks() map[string]string {
	return map[string]string{
		"forms.form":     "form.tmpl",
		"forms.input":    "form.tmpl",
		"forms.select":   "form.tmpl",
		"forms.checkbox": "form.tmpl",
		"forms.textarea": "form.tmpl",
	}
}

func (o *Orchestrator) resolveTheme(name, variant string) (*theme.RendererConfig, error) {
	selection, err := o.selector.Select(name, variant)
	if err != nil {
		return nil, err
	}
	if selection == nil {
		return nil, nil
	}
	return rendererConfigFromSelection(selection, o.themeFallbacks), nil
}

// rendererConfigFromSelection flattens a theme selection into the renderer
// configuration contract: base manifest values first, then variant
// overrides, with fallback partials filling any gaps.
func rendererConfigFromSelection(selection *theme.Selection, fallbacks map[string]string) *theme.RendererConfig {
	cfg := &theme.RendererConfig{
		Theme:    selection.Theme,
		Variant:  selection.Variant,
		Partials: map[string]string{},
		Tokens:   map[string]string{},
		CSSVars:  map[string]string{},
	}

	for key, value := range fallbacks {
		cfg.Partials[key] = value
	}

	manifest := selection.Manifest
	if manifest == nil {
		cfg.AssetURL = func(string) string { return "" }
		return cfg
	}

	for key, value := range manifest.Templates {
		cfg.Partials[key] = value
	}
	for key, value := range manifest.Tokens {
		cfg.Tokens[key] = value
	}

	prefix := manifest.Assets.Prefix
	files := map[string]string{}
	for key, value := range manifest.Assets.Files {
		files[key] = value
	}

	if variant, ok := manifest.Variants[selection.Variant]; ok {
		for key, value := range variant.Templates {
			cfg.Partials[key] = value
		}
		for key, value := range variant.Tokens {
			cfg.Tokens[key] = value
		}
		if variant.Assets.Prefix != "" {
			prefix = variant.Assets.Prefix
		}
		for key, value := range variant.Assets.Files {
			files[key] = value
		}
	}

	for key, value := range cfg.Tokens {
		cfg.CSSVars["--"+key] = value
	}

	cfg.AssetURL = assetResolver(prefix, files)
	return cfg
}

func assetResolver(prefix string, files map[string]string) func(string) string {
	return func(name string) string {
		file, ok := files[name]
		if !ok || file == "" {
			return ""
		}
		if prefix == "" {
			return file
		}
		return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(file, "/")
	}
}

// ManifestSelector is a ThemeSelector backed by an in-memory set of
// manifests. The portal registers its bundled themes here and points the
// orchestrator at the result.
type ManifestSelector struct {
	mu             sync.RWMutex
	manifests      map[string]*theme.Manifest
	defaultTheme   string
	defaultVariant string
}

// NewManifestSelector builds a selector with the given defaults and initial
// manifests. Manifests are validated through the go-theme registry so
// malformed bundles fail at startup rather than at request time.
func NewManifestSelector(defaultTheme, defaultVariant string, manifests ...*theme.Manifest) (*ManifestSelector, error) {
	s := &ManifestSelector{
		manifests:      map[string]*theme.Manifest{},
		defaultTheme:   defaultTheme,
		defaultVariant: defaultVariant,
	}

	registry := theme.NewRegistry()
	for _, manifest := range manifests {
		if manifest == nil || manifest.Name == "" {
			return nil, fmt.Errorf("orchestrator: theme manifest requires a name")
		}
		if err := registry.Register(manifest); err != nil {
			return nil, fmt.Errorf("orchestrator: register theme %q: %w", manifest.Name, err)
		}
		s.manifests[manifest.Name] = manifest
	}
	return s, nil
}

// Select resolves a theme and variant, applying the selector defaults when
// either is empty.
func (s *ManifestSelector) Select(name, variant string, _ ...theme.QueryOption) (*theme.Selection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if name == "" {
		name = s.defaultTheme
	}
	if variant == "" {
		variant = s.defaultVariant
	}
	if name == "" {
		return nil, nil
	}

	manifest, ok := s.manifests[name]
	if !ok {
		return nil, fmt.Errorf("orchestrator: theme %q not registered", name)
	}

	return &theme.Selection{
		Theme:    manifest.Name,
		Variant:  variant,
		Manifest: manifest,
	}, nil
}
