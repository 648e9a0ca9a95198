// Package storage is the cleaner's durable backlog: a bbolt-backed record
// of which nodes each execution context touched, surviving a controller
// restart so an in-flight cleanup is never silently forgotten.
package storage

import "time"

// ContextRecord is one context's cleanup bookkeeping entry.
type ContextRecord struct {
	ContextID string
	// NodeIDs is the set of worker ids known to have observed an
	// artifact for this context, still pending a successful cleanup
	// call.
	NodeIDs map[string]bool
	// CreatedAt is when the context was first tracked (algorithm start).
	CreatedAt time.Time
	// ReleasedAt is when the controller finished the request this
	// context belongs to; zero while the request is still in flight.
	// The grace period is measured from this timestamp.
	ReleasedAt time.Time
}

// Store is the persistence interface pkg/cleaner depends on. BoltStore is
// its only implementation.
type Store interface {
	// Put upserts a context record.
	Put(record ContextRecord) error
	// Get returns a context's record, or ok=false if untracked.
	Get(contextID string) (ContextRecord, bool, error)
	// Delete removes a context record once its node set is empty.
	Delete(contextID string) error
	// List returns every tracked context record, for the sweep loop.
	List() ([]ContextRecord, error)
	// Close releases the underlying database handle.
	Close() error
}
