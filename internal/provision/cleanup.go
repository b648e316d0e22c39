package provision

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/kbforge/indexpool/internal/store"
)

// cleanup runs one teardown cycle over the current candidate set: FAILED
// rows, PROVISIONING rows older than the stuck threshold, and CLEANUP rows
// no knowledge base references. Candidates are processed under the same
// concurrency cap as provisioning; errors are aggregated and surfaced
// while the worker keeps running.
func (m *Manager) cleanup(ctx context.Context) error {
	stuckBefore := time.Now().Add(-m.cfg.StuckThreshold)
	candidates, err := m.store.ListForCleanup(ctx, stuckBefore)
	if err != nil {
		return fmt.Errorf("querying cleanup candidates: %w", err)
	}
	if len(candidates) == 0 {
		m.log.Debug("no indexes to clean up")
		return nil
	}
	m.log.Info("found indexes for cleanup", "count", len(candidates))

	sem := make(chan struct{}, m.cfg.MaxProvisioners)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	record := func(err error) {
		mu.Lock()
		errs = multierr.Append(errs, err)
		mu.Unlock()
	}

	for _, idx := range candidates {
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				record(ctx.Err())
				return
			}

			err := m.cleanupOne(ctx, idx)
			m.metrics.observeCleanup(err)
			if err != nil {
				record(err)
			}
		}()
	}
	wg.Wait()

	if errs != nil {
		m.log.Error("cleanup cycle finished with errors",
			"errors", len(multierr.Errors(errs)))
		return fmt.Errorf("cleanup cycle: %w", errs)
	}
	m.log.Info("index cleanup cycle finished", "cleaned", len(candidates))
	return nil
}

// cleanupOne tears down a single record: remote first, then the row.
// Ordering matters — the row must survive a failed remote delete so the
// next cycle retries, and a failed row delete after a successful remote
// delete is safe to retry because the remote delete is idempotent.
func (m *Manager) cleanupOne(ctx context.Context, idx store.VectorIndex) error {
	if err := m.cloud.DeleteIndex(ctx, idx.IndexARN); err != nil {
		m.log.Error("failed to drop remote index, will retry next cycle",
			"index_arn", idx.IndexARN, "status", idx.Status, "error", err)
		return fmt.Errorf("dropping remote index %s: %w", idx.IndexARN, err)
	}

	if err := m.store.DeleteIndex(ctx, idx.ID); err != nil {
		// The remote index is gone but the row remains. The next sweep
		// re-issues the idempotent remote delete and retries this removal.
		m.log.Error("remote index deleted but record removal failed",
			"record_id", idx.ID, "index_arn", idx.IndexARN, "error", err)
		return fmt.Errorf("removing index record %d: %w", idx.ID, err)
	}
	m.log.Info("cleaned up vector index", "record_id", idx.ID, "index_arn", idx.IndexARN)
	return nil
}
