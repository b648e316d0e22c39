package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/kbforge/indexpool/internal/cloud"
	"github.com/kbforge/indexpool/internal/fault"
)

// indexNamePrefix namespaces this service's indexes within the shared
// vector bucket.
const indexNamePrefix = "kb-idx-"

// newIndexName generates a fresh index name. UUIDs carry enough entropy
// that a collision with an existing index is not a practical concern; the
// unique constraint on index_arn is the backstop.
func newIndexName() string {
	return indexNamePrefix + uuid.NewString()
}

// reconcile runs one pool-fill cycle: read pool statistics, compute the
// shortfall against the floor, and provision that many indexes under the
// concurrency cap. All tasks are waited for; failures are aggregated and
// returned, never fatal to the worker.
func (m *Manager) reconcile(ctx context.Context) error {
	stats, err := m.store.PoolStats(ctx, m.cfg.StuckThreshold)
	if err != nil {
		return fmt.Errorf("reading pool stats: %w", err)
	}
	m.metrics.observeStats(stats)

	effective := stats.Available + stats.Provisioning
	if effective >= int64(m.cfg.MinPool) {
		m.log.Debug("pool at floor, nothing to do",
			"available", stats.Available, "provisioning", stats.Provisioning)
		return nil
	}
	need := int(int64(m.cfg.MinPool) - effective)
	m.log.Info("reconciling index pool",
		"available", stats.Available, "provisioning", stats.Provisioning, "need", need)

	// Channel-based counting semaphore caps concurrent remote creates.
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

	for range need {
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

			err := m.provisionOne(ctx)
			m.metrics.observeProvision(err)
			if err != nil {
				m.log.Error("failed to provision new index", "error", err)
				record(err)
				return
			}
			m.log.Info("provisioned new vector index")
		}()
	}
	wg.Wait()

	if errs != nil {
		return fmt.Errorf("reconciliation provisioned %d of %d indexes: %w",
			need-len(multierr.Errors(errs)), need, errs)
	}
	m.log.Info("index reconciliation cycle finished", "provisioned", need)
	return nil
}

// provisionOne creates a single index in three phases. Phase A reserves a
// PROVISIONING row so the record exists before any remote resource does.
// Phase B creates the remote index; on failure the row is deleted as the
// compensating action. Phase C finalizes the row to AVAILABLE with a
// status guard; if the row vanished in between, the remote index is
// deleted immediately so no orphan survives outside the sweep's view.
func (m *Manager) provisionOne(ctx context.Context) error {
	name := newIndexName()
	indexARN := cloud.IndexARN(m.cfg.BucketARN, name)

	id, err := m.store.InsertProvisioning(ctx, indexARN, m.cfg.BucketARN)
	if err != nil {
		return fmt.Errorf("reserving provisioning record: %w", err)
	}
	m.log.Debug("initiated vector index creation", "index_name", name, "record_id", id)

	if err := m.cloud.CreateIndex(ctx, cloud.CreateIndexInput{
		Name:                      name,
		Dimension:                 m.cfg.Dimension,
		NonFilterableMetadataKeys: m.cfg.NonFilterableMetadataKeys,
	}); err != nil {
		// Compensation runs even when ctx is already cancelled; the row
		// must not stay PROVISIONING for a remote index that never existed.
		if delErr := m.store.DeleteIndex(context.WithoutCancel(ctx), id); delErr != nil {
			m.log.Error("failed to roll back provisioning record, sweep will reclaim it",
				"record_id", id, "error", delErr)
		} else {
			m.log.Info("rolled back provisioning record after remote create failure",
				"record_id", id)
		}
		return fmt.Errorf("creating remote index %s: %w", name, err)
	}

	if err := m.store.MarkAvailable(ctx, id); err != nil {
		if errors.Is(err, fault.ErrInconsistent) {
			// The row is gone, so the sweep can never find this index.
			// Reclaim the remote side now; the delete is idempotent.
			if delErr := m.cloud.DeleteIndex(context.WithoutCancel(ctx), indexARN); delErr != nil {
				m.log.Error("orphaned remote index could not be reclaimed",
					"index_arn", indexARN, "error", delErr)
			}
		}
		return fmt.Errorf("finalizing index %s: %w", name, err)
	}
	return nil
}
