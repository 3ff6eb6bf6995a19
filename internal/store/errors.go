package store

import "errors"

// ErrContention is returned when another process holds write access to the
// store. Retrying later is the caller's responsibility.
var ErrContention = errors.New("store is locked by another writer")

// ErrCorrupt is returned when persisted state violates a store invariant
// (e.g. a perplexity recorded on a pending unit). Never auto-repaired.
var ErrCorrupt = errors.New("store state is corrupt")

// ErrInvalidQuery is returned for contradictory query filters, before the
// database is touched.
var ErrInvalidQuery = errors.New("invalid query")

// ErrNotFound is returned by OpenReadOnly when the database file does not
// exist. Readers treat this as "zero results", not a failure.
var ErrNotFound = errors.New("store does not exist")
