package store

import "time"

// IndexStatus is the lifecycle state of a vector-index record. Transitions
// are monotonic: PROVISIONING → AVAILABLE → ASSIGNED → CLEANUP → (removed),
// with FAILED as the rollback sink. DESTROYED is reserved for a future
// soft-delete; the cleanup path currently hard-deletes the row.
type IndexStatus string

const (
	StatusProvisioning IndexStatus = "PROVISIONING"
	StatusAvailable    IndexStatus = "AVAILABLE"
	StatusAssigned     IndexStatus = "ASSIGNED"
	StatusCleanup      IndexStatus = "CLEANUP"
	StatusDestroyed    IndexStatus = "DESTROYED"
	StatusFailed       IndexStatus = "FAILED"
)

// VectorIndex is one remote vector index tracked by the pool. IndexARN is
// assigned once at insert and never mutated.
type VectorIndex struct {
	ID        int64       `db:"id"`
	IndexARN  string      `db:"index_arn"`
	BucketARN string      `db:"bucket_arn"`
	Status    IndexStatus `db:"status"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

// PoolStats are per-status counts over vector_indexes. When queried with a
// freshness window, Provisioning counts only rows young enough to still be
// treated as in-flight; older ones are presumed stuck and excluded from
// pool capacity.
type PoolStats struct {
	Total        int64 `db:"total"`
	Available    int64 `db:"available_count"`
	Provisioning int64 `db:"provisioning_count"`
	Failed       int64 `db:"failed_count"`
	Cleanup      int64 `db:"cleanup_count"`
	Destroyed    int64 `db:"destroyed_count"`
}

// KnowledgeBase is a tenant-owned container bound to exactly one
// vector index.
type KnowledgeBase struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	IndexID   int64     `db:"index_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// KBDocument is one document's membership in a knowledge base, joined with
// the registry fields list callers need.
type KBDocument struct {
	KBDocID  int64  `db:"kb_doc_id"`
	DocID    int64  `db:"doc_id"`
	FileName string `db:"file_name"`
	Status   string `db:"status"`
}
