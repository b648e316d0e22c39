package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kbforge/indexpool/internal/fault"
)

const indexColumns = `id, index_arn, bucket_arn, status, created_at, updated_at`

// reserveQuery atomically claims one AVAILABLE row. The SKIP LOCKED
// sub-select guarantees at most one caller wins per row; ORDER BY random()
// spreads contention away from the lowest ids.
const reserveQuery = `
UPDATE vector_indexes
SET status = 'ASSIGNED', updated_at = now()
WHERE id = (
	SELECT id FROM vector_indexes
	WHERE status = 'AVAILABLE'
	ORDER BY random()
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING ` + indexColumns

// ReserveAvailableIndex transitions one AVAILABLE index to ASSIGNED and
// returns it. Returns fault.ErrNoCapacity when the pool is empty.
func (s *Store) ReserveAvailableIndex(ctx context.Context) (VectorIndex, error) {
	var idx VectorIndex
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var txErr error
		idx, txErr = reserveAvailableIndexTx(ctx, tx)
		return txErr
	})
	return idx, err
}

// reserveAvailableIndexTx is the reservation primitive shared with the
// knowledge-base create transaction.
func reserveAvailableIndexTx(ctx context.Context, tx *sqlx.Tx) (VectorIndex, error) {
	var idx VectorIndex
	if err := tx.GetContext(ctx, &idx, reserveQuery); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return VectorIndex{}, fault.ErrNoCapacity
		}
		return VectorIndex{}, fmt.Errorf("reserving available index: %w", err)
	}
	return idx, nil
}

// InsertProvisioning inserts a PROVISIONING row for a remote index about to
// be created and returns its id.
func (s *Store) InsertProvisioning(ctx context.Context, indexARN, bucketARN string) (int64, error) {
	const q = `
INSERT INTO vector_indexes (index_arn, bucket_arn, status)
VALUES ($1, $2, 'PROVISIONING')
RETURNING id`

	var id int64
	if err := s.db.GetContext(ctx, &id, q, indexARN, bucketARN); err != nil {
		return 0, fmt.Errorf("inserting provisioning index: %w", mapConstraint(err))
	}
	return id, nil
}

// MarkAvailable finalizes a provisioned index. The status guard makes the
// update a compare-and-set: when the row has vanished or left PROVISIONING
// in the meantime, the caller gets fault.ErrInconsistent and must reclaim
// the remote index itself.
func (s *Store) MarkAvailable(ctx context.Context, id int64) error {
	const q = `
UPDATE vector_indexes
SET status = 'AVAILABLE', updated_at = now()
WHERE id = $1 AND status = 'PROVISIONING'`

	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("marking index %d available: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking index %d available: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: provisioning row %d vanished before finalize", fault.ErrInconsistent, id)
	}
	return nil
}

// MarkFailed parks an index record for the cleanup sweep.
func (s *Store) MarkFailed(ctx context.Context, id int64) error {
	return s.setStatus(ctx, id, StatusFailed)
}

// MarkCleanup flags an index record for teardown.
func (s *Store) MarkCleanup(ctx context.Context, id int64) error {
	return s.setStatus(ctx, id, StatusCleanup)
}

func (s *Store) setStatus(ctx context.Context, id int64, status IndexStatus) error {
	const q = `UPDATE vector_indexes SET status = $2, updated_at = now() WHERE id = $1`

	res, err := s.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return fmt.Errorf("setting index %d to %s: %w", id, status, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: vector index %d", fault.ErrNotFound, id)
	}
	return nil
}

// DeleteIndex removes an index row. Deleting an already-removed row is not
// an error so the cleanup sweep stays idempotent.
func (s *Store) DeleteIndex(ctx context.Context, id int64) error {
	const q = `DELETE FROM vector_indexes WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("deleting index row %d: %w", id, err)
	}
	return nil
}

// ListForCleanup returns the records the sweep may tear down: FAILED rows,
// PROVISIONING rows older than stuckBefore, and CLEANUP rows no knowledge
// base references anymore. Rows still referenced by a knowledge base are
// never candidates.
func (s *Store) ListForCleanup(ctx context.Context, stuckBefore time.Time) ([]VectorIndex, error) {
	const q = `
SELECT DISTINCT vi.id, vi.index_arn, vi.bucket_arn, vi.status, vi.created_at, vi.updated_at
FROM vector_indexes vi
LEFT JOIN knowledge_bases kb ON kb.index_id = vi.id
WHERE vi.status = 'FAILED'
   OR (vi.status = 'PROVISIONING' AND vi.created_at < $1)
   OR (vi.status = 'CLEANUP' AND kb.id IS NULL)`

	var rows []VectorIndex
	if err := s.db.SelectContext(ctx, &rows, q, stuckBefore); err != nil {
		return nil, fmt.Errorf("listing cleanup candidates: %w", err)
	}
	return rows, nil
}

// PoolStats counts records per status. A positive freshness counts
// PROVISIONING rows only when created within the window; zero disables the
// filter.
func (s *Store) PoolStats(ctx context.Context, freshness time.Duration) (PoolStats, error) {
	const q = `
SELECT
	count(*) AS total,
	count(*) FILTER (WHERE status = 'AVAILABLE')  AS available_count,
	count(*) FILTER (WHERE status = 'PROVISIONING'
		AND ($1 <= 0 OR created_at >= now() - make_interval(secs => $1))) AS provisioning_count,
	count(*) FILTER (WHERE status = 'FAILED')    AS failed_count,
	count(*) FILTER (WHERE status = 'CLEANUP')   AS cleanup_count,
	count(*) FILTER (WHERE status = 'DESTROYED') AS destroyed_count
FROM vector_indexes`

	var stats PoolStats
	if err := s.db.GetContext(ctx, &stats, q, freshness.Seconds()); err != nil {
		return PoolStats{}, fmt.Errorf("querying pool stats: %w", err)
	}
	return stats, nil
}
