// Package openapi defines the public wrappers around the portal's form
// schema document. The portal declares every form it serves (instrument
// query, EDB mnemonic search, EDB range query, inventory exploration) as
// operations in a single OpenAPI 3 document; this package keeps kin-openapi
// out of the public surface so downstream packages only deal with Document,
// Operation and Schema.
package openapi
