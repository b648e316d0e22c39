package provision

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kbforge/indexpool/internal/cloud"
	"github.com/kbforge/indexpool/internal/fault"
	"github.com/kbforge/indexpool/internal/store"
)

// testConfig returns a valid provisioner configuration for tests.
func testConfig() Config {
	return Config{
		MinPool:                   3,
		MaxProvisioners:           4,
		StuckThreshold:            10 * time.Minute,
		ReconcileInterval:         time.Hour,
		BucketARN:                 "arn:aws:s3vectors:eu-west-1:123:bucket/kb-vectors",
		Dimension:                 1024,
		NonFilterableMetadataKeys: []string{"raw_text"},
	}
}

// newTestManager wires a Manager with fakes and a throwaway metrics
// registry.
func newTestManager(cfg Config, st IndexStore, cl CloudIndexes) *Manager {
	return NewManager(cfg, st, cl, NewMetrics(prometheus.NewRegistry()))
}

// fakeStore is an in-memory IndexStore that mirrors the real repository's
// semantics: status transitions, freshness-filtered stats and the cleanup
// candidate rules, including the no-KB-reference guard.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*store.VectorIndex
	kbRefs map[int64]bool

	insertErr error
	deleteErr error
	statsErr  error
	listErr   error

	statsCalls atomic.Int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:   make(map[int64]*store.VectorIndex),
		kbRefs: make(map[int64]bool),
	}
}

// addRow seeds a record directly, bypassing the provisioning path.
func (f *fakeStore) addRow(status store.IndexStatus, indexARN string, createdAt time.Time) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.rows[f.nextID] = &store.VectorIndex{
		ID:        f.nextID,
		IndexARN:  indexARN,
		BucketARN: "arn:b",
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	return f.nextID
}

func (f *fakeStore) reference(indexID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kbRefs[indexID] = true
}

func (f *fakeStore) row(id int64) (store.VectorIndex, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return store.VectorIndex{}, false
	}
	return *r, true
}

func (f *fakeStore) removeRow(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
}

func (f *fakeStore) countByStatus(status store.IndexStatus) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.Status == status {
			n++
		}
	}
	return n
}

func (f *fakeStore) InsertProvisioning(_ context.Context, indexARN, bucketARN string) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	now := time.Now()
	f.rows[f.nextID] = &store.VectorIndex{
		ID:        f.nextID,
		IndexARN:  indexARN,
		BucketARN: bucketARN,
		Status:    store.StatusProvisioning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return f.nextID, nil
}

func (f *fakeStore) MarkAvailable(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || r.Status != store.StatusProvisioning {
		return fault.ErrInconsistent
	}
	r.Status = store.StatusAvailable
	return nil
}

func (f *fakeStore) DeleteIndex(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeStore) ListForCleanup(_ context.Context, stuckBefore time.Time) ([]store.VectorIndex, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.VectorIndex
	for _, r := range f.rows {
		switch {
		case r.Status == store.StatusFailed:
		case r.Status == store.StatusProvisioning && r.CreatedAt.Before(stuckBefore):
		case r.Status == store.StatusCleanup && !f.kbRefs[r.ID]:
		default:
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeStore) PoolStats(_ context.Context, freshness time.Duration) (store.PoolStats, error) {
	f.statsCalls.Add(1)
	if f.statsErr != nil {
		return store.PoolStats{}, f.statsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats store.PoolStats
	cutoff := time.Now().Add(-freshness)
	for _, r := range f.rows {
		stats.Total++
		switch r.Status {
		case store.StatusAvailable:
			stats.Available++
		case store.StatusProvisioning:
			if freshness <= 0 || !r.CreatedAt.Before(cutoff) {
				stats.Provisioning++
			}
		case store.StatusFailed:
			stats.Failed++
		case store.StatusCleanup:
			stats.Cleanup++
		case store.StatusDestroyed:
			stats.Destroyed++
		case store.StatusAssigned:
		}
	}
	return stats, nil
}

// fakeCloud is an in-memory CloudIndexes with programmable failures, an
// optional per-create hook and an optional gate for concurrency tests.
type fakeCloud struct {
	mu sync.Mutex

	createErr error
	deleteErr error
	createFn  func(in cloud.CreateIndexInput) error

	created []string
	deleted []string

	// block, when non-nil, parks CreateIndex until the channel is closed.
	block chan struct{}

	inflight    atomic.Int64
	maxInflight atomic.Int64
}

func (f *fakeCloud) CreateIndex(_ context.Context, in cloud.CreateIndexInput) error {
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		prev := f.maxInflight.Load()
		if cur <= prev || f.maxInflight.CompareAndSwap(prev, cur) {
			break
		}
	}
	if f.block != nil {
		<-f.block
	}
	if f.createFn != nil {
		if err := f.createFn(in); err != nil {
			return err
		}
	}
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in.Name)
	return nil
}

func (f *fakeCloud) DeleteIndex(_ context.Context, indexARN string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, indexARN)
	return nil
}

func (f *fakeCloud) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *fakeCloud) deletedARNs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}
