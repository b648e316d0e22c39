package indexpool

import "github.com/kbforge/indexpool/internal/fault"

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain comparison.
const (
	// ErrNoCapacity is returned by CreateKnowledgeBase when no AVAILABLE
	// index exists to reserve. Retryable: the creation attempt itself
	// triggers a reconcile cycle that refills the pool.
	ErrNoCapacity = fault.ErrNoCapacity

	// ErrNotFound is returned when the target knowledge base or document
	// does not exist for the calling user.
	ErrNotFound = fault.ErrNotFound

	// ErrConflict is returned when an operation violates a state
	// invariant, e.g. creating a knowledge base with a name the user
	// already uses.
	ErrConflict = fault.ErrConflict

	// ErrInconsistent is returned when the database and the vector store
	// disagree about an index. The daily sweep reconciles the remote side.
	ErrInconsistent = fault.ErrInconsistent

	// ErrTransientCloud marks a cloud failure expected to clear on its
	// own (throttling, timeouts, 5xx responses).
	ErrTransientCloud = fault.ErrTransientCloud

	// ErrPermanentCloud marks a cloud failure that will not clear without
	// intervention (validation or conflict responses).
	ErrPermanentCloud = fault.ErrPermanentCloud

	// ErrConfig marks missing or rejected credentials, ARNs or endpoints.
	ErrConfig = fault.ErrConfig

	// ErrShuttingDown is returned by operations invoked after Shutdown.
	ErrShuttingDown = fault.ErrShuttingDown

	// ErrNotInitialized is returned by operations invoked before
	// Initialize has completed.
	ErrNotInitialized = fault.ErrNotInitialized
)
