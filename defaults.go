package indexpool

import "time"

// Default configuration values for New. These constants are exported so
// callers can reference the defaults when building custom configurations
// relative to them (e.g., 2 * DefaultStuckThreshold).
const (
	// DefaultMinPool is the number of AVAILABLE indexes reconciliation
	// keeps ready for assignment. Indexes already in flight
	// (fresh PROVISIONING) count toward the floor.
	DefaultMinPool = 3

	// DefaultMaxProvisioners caps concurrent remote index create and
	// delete calls within one cycle.
	DefaultMaxProvisioners = 4

	// DefaultStuckThreshold is the age past which a PROVISIONING record
	// is presumed abandoned: it stops counting toward pool capacity and
	// becomes a cleanup candidate.
	DefaultStuckThreshold = 10 * time.Minute

	// DefaultReconcileInterval is the periodic wake of the reconcile
	// worker, the backstop when no knowledge-base creation triggers it.
	DefaultReconcileInterval = 5 * time.Minute

	// DefaultCleanupAt is the local wall-clock time ("HH:MM") of the
	// daily cleanup sweep.
	DefaultCleanupAt = "08:03"

	// DefaultEmbeddingDimension is the vector dimension of new indexes.
	// Must match the embedding model feeding the ingestion pipeline.
	DefaultEmbeddingDimension = 1024

	// DefaultListLimit is the page size applied when a list call passes
	// a non-positive limit. It is also the maximum; larger limits are
	// clamped to it.
	DefaultListLimit = 100

	// DefaultReceiveWait is the long-poll duration for queue receives.
	DefaultReceiveWait = 20 * time.Second
)
