package indexpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbforge/indexpool/internal/cloud"
	"github.com/kbforge/indexpool/internal/fault"
	"github.com/kbforge/indexpool/internal/logging"
	"github.com/kbforge/indexpool/internal/provision"
	"github.com/kbforge/indexpool/internal/schedule"
	"github.com/kbforge/indexpool/internal/store"
)

// Service lifecycle states. Transitions are monotonic:
// created → ready → shuttingDown.
const (
	stateCreated int32 = iota
	stateReady
	stateShuttingDown
)

// knowledgeBaseStore is the slice of the persistence layer the facade
// needs. Satisfied by *store.Store and by test fakes.
type knowledgeBaseStore interface {
	CreateKnowledgeBase(ctx context.Context, userID int64, name string) (store.CreatedKnowledgeBase, error)
	DeleteKnowledgeBase(ctx context.Context, userID, kbID int64) error
	GetKnowledgeBase(ctx context.Context, userID, kbID int64) (store.KnowledgeBase, string, error)
	ListKnowledgeBases(ctx context.Context, userID int64, limit, offset int) ([]store.KnowledgeBase, int64, error)
	ListKnowledgeBaseDocuments(ctx context.Context, userID, kbID int64, limit, offset int) ([]store.KBDocument, int64, error)
	AttachDocuments(ctx context.Context, kbID int64, docIDs []int64) ([]store.KBDocument, error)
	DetachDocuments(ctx context.Context, kbID int64, kbDocIDs []int64) ([]store.KBDocument, error)
	PoolStats(ctx context.Context, freshness time.Duration) (store.PoolStats, error)
}

// ingestionQueue is the slice of the cloud adapter the facade needs.
type ingestionQueue interface {
	SendMessage(ctx context.Context, m cloud.Message) error
}

// poolTriggers wakes the provisioner's workers. Satisfied by
// *provision.Manager and by test fakes.
type poolTriggers interface {
	TriggerReconcile()
	TriggerCleanup()
}

// Service is the public entry point: it owns the index pool provisioner,
// the ingestion queue producer and the knowledge-base operations backed by
// them.
//
// Lifecycle: New builds the service, Initialize connects the backends and
// primes the pool, Start runs the background workers until its context is
// cancelled, Shutdown stops everything and releases the database pool.
// All knowledge-base operations require Initialize to have completed and
// are safe for concurrent use.
type Service struct {
	cfg Config

	state atomic.Int32

	db       *store.Store
	kb       knowledgeBaseStore
	queue    ingestionQueue
	pool     *provision.Manager
	triggers poolTriggers
	sched    *schedule.Daily

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Service from cfg with opts applied on top. Zero-valued
// tunables are filled from the Default* constants before validation; all
// validation failures wrap ErrConfig. This performs no I/O; call
// Initialize before using the service.
func New(cfg Config, opts ...Option) (*Service, error) {
	cfg = cfg.withDefaults()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{cfg: cfg}, nil
}

// Initialize connects the database, ensures the schema, builds the cloud
// client and primes the index pool. It must complete before Start or any
// knowledge-base operation. A priming failure is logged, not fatal: the
// reconcile worker retries on its next cycle.
func (s *Service) Initialize(ctx context.Context) error {
	log := logging.Logger()
	if s.state.Load() != stateCreated {
		if s.state.Load() == stateShuttingDown {
			return fault.ErrShuttingDown
		}
		log.Warn("Initialize called more than once; ignoring")
		return nil
	}

	db, err := store.Connect(ctx, s.cfg.DatabaseURI)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			log.Error("closing database after failed schema setup", "error", closeErr)
		}
		return fmt.Errorf("ensuring schema: %w", err)
	}

	cl, err := cloud.NewClient(ctx, cloud.Config{
		Region:           s.cfg.Region,
		VectorBucketARN:  s.cfg.VectorBucketARN,
		VectorBucketName: s.cfg.VectorBucketName,
		QueueURL:         s.cfg.QueueURL,
	})
	if err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			log.Error("closing database after failed cloud setup", "error", closeErr)
		}
		return fmt.Errorf("initializing cloud client: %w", err)
	}

	pool := provision.NewManager(provision.Config{
		MinPool:                   s.cfg.MinPool,
		MaxProvisioners:           s.cfg.MaxProvisioners,
		StuckThreshold:            s.cfg.StuckThreshold,
		ReconcileInterval:         s.cfg.ReconcileInterval,
		BucketARN:                 s.cfg.VectorBucketARN,
		Dimension:                 s.cfg.EmbeddingDimension,
		NonFilterableMetadataKeys: s.cfg.NonFilterableMetadataKeys,
	}, db, cl, provision.NewMetrics(s.cfg.Registerer))

	sched, err := schedule.NewDaily(s.cfg.CleanupAt, pool.ScheduledCleanup)
	if err != nil {
		// Validate already vetted CleanupAt; reaching this is a bug.
		return fmt.Errorf("building cleanup schedule: %w", err)
	}

	if err := pool.Prime(ctx); err != nil {
		log.Error("initial pool priming failed, reconcile worker will retry", "error", err)
	}

	s.db = db
	s.kb = db
	s.queue = cl
	s.pool = pool
	s.triggers = pool
	s.sched = sched
	s.state.Store(stateReady)
	log.Info("service initialized", "min_pool", s.cfg.MinPool)
	return nil
}

// Start runs the reconcile worker, the cleanup worker and the daily sweep
// schedule, blocking until ctx is cancelled or Shutdown is called. Worker
// cycle errors are logged internally and never end Start.
func (s *Service) Start(ctx context.Context) error {
	if err := s.requireReady(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()
	defer close(done)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		s.pool.RunReconcileWorker(gctx)
		return nil
	})
	g.Go(func() error {
		s.pool.RunCleanupWorker(gctx)
		return nil
	})
	g.Go(func() error {
		s.sched.Run(gctx)
		return nil
	})
	return g.Wait()
}

// Shutdown stops the background workers, waits for Start to return and
// closes the database pool. Safe to call more than once; later calls are
// no-ops. Operations invoked after Shutdown return ErrShuttingDown.
func (s *Service) Shutdown() error {
	if !s.state.CompareAndSwap(stateReady, stateShuttingDown) {
		if s.state.CompareAndSwap(stateCreated, stateShuttingDown) {
			return nil
		}
		return nil
	}
	logging.Logger().Info("shutting down")

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// requireReady maps the lifecycle state to the sentinel the caller should
// see.
func (s *Service) requireReady() error {
	switch s.state.Load() {
	case stateReady:
		return nil
	case stateShuttingDown:
		return fault.ErrShuttingDown
	default:
		return fault.ErrNotInitialized
	}
}
