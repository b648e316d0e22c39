package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kbforge/indexpool/internal/cloud"
	"github.com/kbforge/indexpool/internal/logging"
	"github.com/kbforge/indexpool/internal/store"
)

// IndexStore is the slice of the persistence layer the control loop needs.
// Satisfied by *store.Store and by test fakes.
type IndexStore interface {
	InsertProvisioning(ctx context.Context, indexARN, bucketARN string) (int64, error)
	MarkAvailable(ctx context.Context, id int64) error
	DeleteIndex(ctx context.Context, id int64) error
	ListForCleanup(ctx context.Context, stuckBefore time.Time) ([]store.VectorIndex, error)
	PoolStats(ctx context.Context, freshness time.Duration) (store.PoolStats, error)
}

// CloudIndexes is the slice of the cloud adapter the control loop needs.
// Satisfied by *cloud.Client and by test fakes.
type CloudIndexes interface {
	CreateIndex(ctx context.Context, in cloud.CreateIndexInput) error
	DeleteIndex(ctx context.Context, indexARN string) error
}

// Config tunes the control loop. All fields are required; Validate reports
// the first violation.
type Config struct {
	// MinPool is the AVAILABLE + fresh-PROVISIONING floor reconciliation
	// maintains.
	MinPool int

	// MaxProvisioners caps concurrent remote create and delete calls.
	MaxProvisioners int

	// StuckThreshold is the age past which a PROVISIONING row is presumed
	// dead and handed to the cleanup sweep.
	StuckThreshold time.Duration

	// ReconcileInterval is the periodic wake of the reconcile worker, the
	// backstop when no trigger arrives.
	ReconcileInterval time.Duration

	// BucketARN is the vector bucket new indexes are created in.
	BucketARN string

	// Dimension is the embedding dimension of new indexes.
	Dimension int32

	// NonFilterableMetadataKeys are passed through to index creation.
	NonFilterableMetadataKeys []string
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.MinPool < 0:
		return fmt.Errorf("min pool must not be negative, got %d", c.MinPool)
	case c.MaxProvisioners <= 0:
		return fmt.Errorf("max provisioners must be greater than 0, got %d", c.MaxProvisioners)
	case c.StuckThreshold <= 0:
		return fmt.Errorf("stuck threshold must be greater than 0, got %v", c.StuckThreshold)
	case c.ReconcileInterval <= 0:
		return fmt.Errorf("reconcile interval must be greater than 0, got %v", c.ReconcileInterval)
	case c.BucketARN == "":
		return fmt.Errorf("bucket ARN must not be empty")
	case c.Dimension <= 0:
		return fmt.Errorf("embedding dimension must be greater than 0, got %d", c.Dimension)
	}
	return nil
}

// Manager owns the vector_indexes status transitions on the provisioner
// side (PROVISIONING, AVAILABLE, FAILED, row removal). The request facade
// owns AVAILABLE→ASSIGNED and ASSIGNED→CLEANUP; no other component mutates
// status.
//
// Safe for concurrent use: triggers may be fired from any goroutine while
// the workers run.
type Manager struct {
	cfg     Config
	store   IndexStore
	cloud   CloudIndexes
	metrics *Metrics
	log     *slog.Logger

	// reconcileTrigger and cleanupTrigger are single-slot channels.
	// Offering to a full channel is a no-op, which coalesces any number
	// of pending wakes into one cycle.
	reconcileTrigger chan struct{}
	cleanupTrigger   chan struct{}
}

// NewManager wires the control loop. Panics if cfg.Validate() reports an
// error: configuration values are startup constants, so an invalid value
// is a programmer error rather than a runtime condition.
func NewManager(cfg Config, st IndexStore, cl CloudIndexes, metrics *Metrics) *Manager {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("indexpool: invalid provisioner config: %v", err))
	}
	if st == nil || cl == nil || metrics == nil {
		panic("indexpool: NewManager dependencies must not be nil")
	}
	return &Manager{
		cfg:              cfg,
		store:            st,
		cloud:            cl,
		metrics:          metrics,
		log:              logging.Logger(),
		reconcileTrigger: make(chan struct{}, 1),
		cleanupTrigger:   make(chan struct{}, 1),
	}
}

// TriggerReconcile requests a pool-fill cycle. Non-blocking; a request
// while one is already pending is coalesced into it.
func (m *Manager) TriggerReconcile() {
	select {
	case m.reconcileTrigger <- struct{}{}:
		m.log.Debug("reconcile triggered")
	default:
		m.log.Debug("reconcile already pending, trigger coalesced")
	}
}

// TriggerCleanup requests a teardown cycle. Non-blocking; a request while
// one is already pending is coalesced into it.
func (m *Manager) TriggerCleanup() {
	select {
	case m.cleanupTrigger <- struct{}{}:
		m.log.Debug("cleanup triggered")
	default:
		m.log.Debug("cleanup already pending, trigger coalesced")
	}
}

// drain empties a trigger channel so wakes posted while a cycle was
// already scheduled do not cause extra cycles.
func drain(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// Prime runs one synchronous reconciliation pass. Called at process start
// so the pool is warm before traffic arrives.
func (m *Manager) Prime(ctx context.Context) error {
	m.log.Info("priming index pool", "min_pool", m.cfg.MinPool)
	if err := m.reconcile(ctx); err != nil {
		return fmt.Errorf("priming index pool: %w", err)
	}
	return nil
}

// RunReconcileWorker drives pool-fill cycles until ctx is cancelled. It
// runs one cycle immediately, then waits for a trigger or the periodic
// interval. Cycle errors are logged and the loop continues.
func (m *Manager) RunReconcileWorker(ctx context.Context) {
	m.log.Info("reconcile worker started", "interval", m.cfg.ReconcileInterval)

	if err := m.reconcile(ctx); err != nil && ctx.Err() == nil {
		m.log.Error("initial reconciliation failed, worker continues", "error", err)
	}

	timer := time.NewTimer(m.cfg.ReconcileInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("reconcile worker stopped")
			return
		case <-m.reconcileTrigger:
			drain(m.reconcileTrigger)
			m.log.Debug("reconcile worker woken by trigger")
		case <-timer.C:
			m.log.Debug("starting periodic reconciliation")
		}

		if err := m.reconcile(ctx); err != nil && ctx.Err() == nil {
			m.log.Error("reconciliation cycle failed", "error", err)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(m.cfg.ReconcileInterval)
	}
}

// RunCleanupWorker drives teardown cycles until ctx is cancelled. It wakes
// only on triggers; the periodic sweep arrives through ScheduledCleanup.
func (m *Manager) RunCleanupWorker(ctx context.Context) {
	m.log.Info("cleanup worker started")

	for {
		select {
		case <-ctx.Done():
			m.log.Info("cleanup worker stopped")
			return
		case <-m.cleanupTrigger:
			drain(m.cleanupTrigger)
			m.log.Debug("cleanup worker woken by trigger")
		}

		if err := m.cleanup(ctx); err != nil && ctx.Err() == nil {
			m.log.Error("cleanup cycle failed", "error", err)
		}
	}
}

// ScheduledCleanup is the entry point for the periodic scheduler. It runs
// one cleanup cycle synchronously.
func (m *Manager) ScheduledCleanup(ctx context.Context) error {
	m.log.Info("starting scheduled cleanup sweep")
	return m.cleanup(ctx)
}
