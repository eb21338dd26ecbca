// Package model defines the typed form model consumed by renderers. Builders
// reside in internal/model but return the types defined here. Validation
// rules expose canonical identifiers (min/max, minLength/maxLength, pattern)
// with string parameters so renderers can map constraints onto HTML
// attributes or runtime validators without sacrificing deterministic JSON
// snapshots. Schema extensions under the `x-quicklook` namespace flow into
// Field metadata, Panel grouping, and visibility rules; renderers rely on
// these instead of parsing raw extension payloads.
package model
