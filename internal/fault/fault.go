// Package fault defines the stable error kinds shared across layers.
//
// Every internal package classifies its failures into one of these
// sentinels at the boundary where the failure is first observed (the cloud
// adapter maps vendor codes, the store maps SQL results), so higher layers
// and callers only ever branch on errors.Is against this small taxonomy.
// The root package re-exports these constants as part of the public API.
package fault

import "github.com/kbforge/indexpool/internal/sentinel"

const (
	// ErrNoCapacity is returned when no AVAILABLE index exists to reserve.
	// The condition is retryable: a reconcile cycle refills the pool.
	ErrNoCapacity = sentinel.Error("no available vector index")

	// ErrNotFound is returned when the target entity does not exist for
	// the caller.
	ErrNotFound = sentinel.Error("not found")

	// ErrConflict is returned when an operation is forbidden by a state
	// invariant, e.g. deleting a document still attached to a knowledge
	// base.
	ErrConflict = sentinel.Error("conflicting state")

	// ErrInconsistent is returned when the database and the remote
	// service disagree, e.g. a PROVISIONING row vanished before finalize.
	// The periodic sweep is the backstop for reclaiming the remote side.
	ErrInconsistent = sentinel.Error("database and remote state are inconsistent")

	// ErrTransientCloud marks a cloud failure that is expected to clear
	// on its own (throttling, timeouts, 5xx). Cycles retry on the next
	// wake; it is never fatal to a worker.
	ErrTransientCloud = sentinel.Error("transient cloud error")

	// ErrPermanentCloud marks a cloud failure that will not clear without
	// intervention (validation, conflicts). The affected record moves to
	// FAILED and the cleanup cycle reclaims it.
	ErrPermanentCloud = sentinel.Error("permanent cloud error")

	// ErrConfig marks missing or rejected credentials, ARNs or endpoints.
	// Not recoverable at runtime.
	ErrConfig = sentinel.Error("cloud configuration error")

	// ErrShuttingDown is returned by operations invoked after Shutdown.
	ErrShuttingDown = sentinel.Error("service is shutting down")

	// ErrNotInitialized is returned by operations invoked before
	// Initialize has completed.
	ErrNotInitialized = sentinel.Error("service not initialized")
)
