// Package serialization converts domain events to and from their JSON payloads.
//
// A Registry is built once at startup from one sample value per event type. Building it fails fast
// when it is empty, when two types share a name, or when an event type has fields that JSON cannot
// round-trip (unexported fields, fields tagged `json:"-"`, funcs, channels, complex numbers).
// Every offending field is listed in the error instead of silently dropping data.
//
// Type names come from domain.TypedEvent when implemented and default to the full Go type name
// ("github.com/acme/library/core.BookCopyLentToReader"). Deserialize resolves the exact name first and
// falls back to the short forms "BookCopyLentToReader" and "core.BookCopyLentToReader" when they are unambiguous.
package serialization
