package provision

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kbforge/indexpool/internal/cloud"
	"github.com/kbforge/indexpool/internal/fault"
	"github.com/kbforge/indexpool/internal/store"
)

func TestPrimeFillsEmptyPool(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	cl := &fakeCloud{}
	m := newTestManager(testConfig(), st, cl)

	if err := m.Prime(context.Background()); err != nil {
		t.Fatalf("Prime() error = %v", err)
	}

	if got := st.countByStatus(store.StatusAvailable); got != 3 {
		t.Errorf("available rows = %d, want 3", got)
	}
	if got := cl.createdCount(); got != 3 {
		t.Errorf("remote creates = %d, want 3", got)
	}
}

func TestReconcileAtFloorIsNoop(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	for range 3 {
		st.addRow(store.StatusAvailable, "arn:b/index/seed", time.Now())
	}
	cl := &fakeCloud{}
	m := newTestManager(testConfig(), st, cl)

	if err := m.reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile() error = %v", err)
	}
	if got := cl.createdCount(); got != 0 {
		t.Errorf("remote creates = %d, want 0", got)
	}
}

func TestReconcileIgnoresStuckProvisioning(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.addRow(store.StatusAvailable, "arn:b/index/a", time.Now())
	// Fresh PROVISIONING counts toward the floor; stuck does not.
	st.addRow(store.StatusProvisioning, "arn:b/index/fresh", time.Now())
	st.addRow(store.StatusProvisioning, "arn:b/index/stuck", time.Now().Add(-20*time.Minute))

	cl := &fakeCloud{}
	m := newTestManager(testConfig(), st, cl)

	if err := m.reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile() error = %v", err)
	}
	// effective = 1 available + 1 fresh provisioning, floor 3 → one create.
	if got := cl.createdCount(); got != 1 {
		t.Errorf("remote creates = %d, want 1", got)
	}
}

func TestReconcileRemoteCreateFailureRollsBack(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.addRow(store.StatusAvailable, "arn:b/index/a", time.Now())
	st.addRow(store.StatusAvailable, "arn:b/index/b", time.Now())
	cl := &fakeCloud{createErr: fault.ErrPermanentCloud}
	m := newTestManager(testConfig(), st, cl)

	err := m.reconcile(context.Background())
	if !errors.Is(err, fault.ErrPermanentCloud) {
		t.Fatalf("reconcile() error = %v, want ErrPermanentCloud", err)
	}

	// The compensating delete removed the PROVISIONING row; no AVAILABLE
	// row was ever produced for the failed index.
	if got := st.countByStatus(store.StatusProvisioning); got != 0 {
		t.Errorf("provisioning rows = %d, want 0 after rollback", got)
	}
	if got := st.countByStatus(store.StatusAvailable); got != 2 {
		t.Errorf("available rows = %d, want 2", got)
	}
}

func TestReconcileCompensationFailureLeavesRowForSweep(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.deleteErr = errors.New("db briefly down")
	cl := &fakeCloud{createErr: fault.ErrTransientCloud}
	cfg := testConfig()
	cfg.MinPool = 1
	m := newTestManager(cfg, st, cl)

	if err := m.reconcile(context.Background()); err == nil {
		t.Fatal("reconcile() expected error")
	}
	// The row stays PROVISIONING and ages into the stuck branch of the
	// cleanup query.
	if got := st.countByStatus(store.StatusProvisioning); got != 1 {
		t.Errorf("provisioning rows = %d, want 1", got)
	}
}

func TestProvisionOneReclaimsOrphanOnVanishedRow(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	cl := &fakeCloud{}
	// Simulate a concurrent actor removing the row between the remote
	// create and the finalize update.
	cl.createFn = func(in cloud.CreateIndexInput) error {
		st.mu.Lock()
		defer st.mu.Unlock()
		for id, r := range st.rows {
			if strings.HasSuffix(r.IndexARN, in.Name) {
				delete(st.rows, id)
			}
		}
		return nil
	}
	m := newTestManager(testConfig(), st, cl)

	err := m.provisionOne(context.Background())
	if !errors.Is(err, fault.ErrInconsistent) {
		t.Fatalf("provisionOne() error = %v, want ErrInconsistent", err)
	}

	deleted := cl.deletedARNs()
	if len(deleted) != 1 {
		t.Fatalf("remote deletes = %d, want 1 (orphan reclaim)", len(deleted))
	}
	if !strings.HasPrefix(deleted[0], testConfig().BucketARN+"/index/"+indexNamePrefix) {
		t.Errorf("reclaimed ARN = %q", deleted[0])
	}
}

func TestReconcileRespectsProvisionerCap(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	cl := &fakeCloud{block: make(chan struct{})}
	cfg := testConfig()
	cfg.MinPool = 6
	cfg.MaxProvisioners = 2
	m := newTestManager(cfg, st, cl)

	done := make(chan error, 1)
	go func() { done <- m.reconcile(context.Background()) }()

	// Wait until the cap is reached, then verify no third task starts.
	deadline := time.Now().Add(5 * time.Second)
	for cl.inflight.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for in-flight creates")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if got := cl.inflight.Load(); got != 2 {
		t.Errorf("in-flight creates = %d, want 2", got)
	}

	close(cl.block)
	if err := <-done; err != nil {
		t.Fatalf("reconcile() error = %v", err)
	}
	if got := cl.maxInflight.Load(); got > 2 {
		t.Errorf("max concurrent creates = %d, want <= 2", got)
	}
	if got := st.countByStatus(store.StatusAvailable); got != 6 {
		t.Errorf("available rows = %d, want 6", got)
	}
}

func TestReconcileAggregatesPartialFailures(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	failing := true
	cl := &fakeCloud{}
	cl.createFn = func(cloud.CreateIndexInput) error {
		// Alternate success and failure across tasks.
		st.mu.Lock()
		defer st.mu.Unlock()
		failing = !failing
		if failing {
			return fault.ErrTransientCloud
		}
		return nil
	}
	m := newTestManager(testConfig(), st, cl)

	err := m.reconcile(context.Background())
	if err == nil {
		t.Fatal("reconcile() expected aggregated error")
	}
	if !errors.Is(err, fault.ErrTransientCloud) {
		t.Errorf("reconcile() error = %v, want to contain ErrTransientCloud", err)
	}
	// Successful tasks still landed despite sibling failures.
	if got := st.countByStatus(store.StatusAvailable); got == 0 {
		t.Error("expected at least one AVAILABLE row from successful tasks")
	}
}

func TestNewIndexNameIsUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for range 100 {
		name := newIndexName()
		if !strings.HasPrefix(name, indexNamePrefix) {
			t.Fatalf("name %q missing prefix", name)
		}
		if _, dup := seen[name]; dup {
			t.Fatalf("duplicate generated name %q", name)
		}
		seen[name] = struct{}{}
	}
}
