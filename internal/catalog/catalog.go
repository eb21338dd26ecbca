// Package catalog holds the per-instrument option sets (anomalies,
// apertures, detectors, exposure types, filters, read patterns, subarrays)
// that drive the query form's checkbox groups and server-side validation.
//
// A compiled-in YAML document provides the defaults; deployments can point
// the catalog at an on-disk file instead and have it hot-reload on change.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Kind identifies one option set within an instrument's catalog entry.
type Kind string

const (
	KindAnomalies     Kind = "anomalies"
	KindApertures     Kind = "apertures"
	KindDetectors     Kind = "detectors"
	KindExposureTypes Kind = "exposure_types"
	KindFilters       Kind = "filters"
	KindReadPatterns  Kind = "read_patterns"
	KindSubarrays     Kind = "subarrays"
)

// Kinds lists every option set in stable order.
func Kinds() []Kind {
	return []Kind{
		KindAnomalies,
		KindApertures,
		KindDetectors,
		KindExposureTypes,
		KindFilters,
		KindReadPatterns,
		KindSubarrays,
	}
}

type document struct {
	Instruments map[string]map[string][]string `yaml:"instruments"`
}

type snapshot struct {
	instruments map[string]map[Kind][]string
	order       []string
}

// Catalog is a concurrency-safe view over the instrument option sets.
type Catalog struct {
	mu     sync.RWMutex
	snap   snapshot
	path   string
	logger *zap.Logger
}

// Option configures catalog construction.
type Option func(*Catalog)

// WithFile replaces the embedded defaults with an on-disk YAML document.
// The file becomes the reload source for Watch.
func WithFile(path string) Option {
	return func(c *Catalog) {
		c.path = path
	}
}

// WithLogger attaches a logger used by the watch loop.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New loads the catalog from the embedded defaults, or from the configured
// file when WithFile is given.
func New(options ...Option) (*Catalog, error) {
	c := &Catalog{logger: zap.NewNop()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the catalog source and swaps the snapshot atomically.
// Readers holding stale option slices keep them; new calls see the fresh
// data.
func (c *Catalog) Reload() error {
	raw := defaultsYAML
	if c.path != "" {
		data, err := os.ReadFile(c.path)
		if err != nil {
			return fmt.Errorf("catalog: read %s: %w", c.path, err)
		}
		raw = data
	}

	snap, err := parse(raw)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
	return nil
}

func parse(raw []byte) (snapshot, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return snapshot{}, fmt.Errorf("catalog: parse yaml: %w", err)
	}
	if len(doc.Instruments) == 0 {
		return snapshot{}, fmt.Errorf("catalog: no instruments defined")
	}

	snap := snapshot{instruments: make(map[string]map[Kind][]string, len(doc.Instruments))}
	for name, kinds := range doc.Instruments {
		entry := make(map[Kind][]string, len(kinds))
		for kind, values := range kinds {
			if !validKind(Kind(kind)) {
				return snapshot{}, fmt.Errorf("catalog: instrument %s: unknown option kind %q", name, kind)
			}
			entry[Kind(kind)] = append([]string(nil), values...)
		}
		snap.instruments[name] = entry
		snap.order = append(snap.order, name)
	}
	sort.Strings(snap.order)
	return snap, nil
}

func validKind(kind Kind) bool {
	for _, known := range Kinds() {
		if kind == known {
			return true
		}
	}
	return false
}

// Instruments returns the instrument names in sorted order.
func (c *Catalog) Instruments() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.snap.order...)
}

// Options returns the option values for an instrument and kind. An empty
// instrument returns the sorted union across all instruments, which backs
// catalog fields that are not tied to a single panel.
func (c *Catalog) Options(instrument string, kind Kind) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if instrument != "" {
		entry, ok := c.snap.instruments[instrument]
		if !ok {
			return nil
		}
		return append([]string(nil), entry[kind]...)
	}

	seen := map[string]struct{}{}
	var union []string
	for _, name := range c.snap.order {
		for _, value := range c.snap.instruments[name][kind] {
			if _, ok := seen[value]; ok {
				continue
			}
			seen[value] = struct{}{}
			union = append(union, value)
		}
	}
	sort.Strings(union)
	return union
}

// Valid reports whether value is a known option for the instrument and
// kind. An empty instrument checks against every instrument.
func (c *Catalog) Valid(instrument string, kind Kind, value string) bool {
	for _, candidate := range c.Options(instrument, kind) {
		if candidate == value {
			return true
		}
	}
	return false
}

// Watch reloads the catalog when its backing file changes. It blocks until
// the context is cancelled and is a no-op for the embedded defaults.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.path == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(c.path); err != nil {
		return fmt.Errorf("catalog: watch %s: %w", c.path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := c.Reload(); err != nil {
				// Keep serving the previous snapshot on a bad edit.
				c.logger.Warn("catalog reload failed",
					zap.String("path", c.path),
					zap.Error(err))
				continue
			}
			c.logger.Info("catalog reloaded", zap.String("path", c.path))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("catalog watcher error", zap.Error(err))
		}
	}
}
