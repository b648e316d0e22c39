package provision

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kbforge/indexpool/internal/store"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		mutate  func(*Config)
		wantErr string
	}{
		"valid": {
			mutate: func(*Config) {},
		},
		"zero min pool is allowed": {
			mutate: func(c *Config) { c.MinPool = 0 },
		},
		"negative min pool": {
			mutate:  func(c *Config) { c.MinPool = -1 },
			wantErr: "min pool",
		},
		"zero max provisioners": {
			mutate:  func(c *Config) { c.MaxProvisioners = 0 },
			wantErr: "max provisioners",
		},
		"zero stuck threshold": {
			mutate:  func(c *Config) { c.StuckThreshold = 0 },
			wantErr: "stuck threshold",
		},
		"zero reconcile interval": {
			mutate:  func(c *Config) { c.ReconcileInterval = 0 },
			wantErr: "reconcile interval",
		},
		"empty bucket ARN": {
			mutate:  func(c *Config) { c.BucketARN = "" },
			wantErr: "bucket ARN",
		},
		"zero dimension": {
			mutate:  func(c *Config) { c.Dimension = 0 },
			wantErr: "dimension",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestNewManagerPanicsOnInvalidConfig(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for invalid config")
		}
	}()
	cfg := testConfig()
	cfg.MaxProvisioners = 0
	NewManager(cfg, newFakeStore(), &fakeCloud{}, nil)
}

func TestNewManagerPanicsOnNilDependencies(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil store")
		}
	}()
	newTestManager(testConfig(), nil, &fakeCloud{})
}

func TestTriggersNeverBlock(t *testing.T) {
	t.Parallel()

	m := newTestManager(testConfig(), newFakeStore(), &fakeCloud{})

	// No worker is running; repeated triggers must still return instantly.
	for range 10 {
		m.TriggerReconcile()
		m.TriggerCleanup()
	}
}

func TestPendingTriggersCoalesceIntoOneCycle(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	m := newTestManager(testConfig(), st, &fakeCloud{})

	// Three wakes posted before the worker starts collapse into a single
	// pending trigger.
	m.TriggerReconcile()
	m.TriggerReconcile()
	m.TriggerReconcile()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.RunReconcileWorker(ctx)
	}()

	// Initial cycle plus exactly one triggered cycle; the 1h interval keeps
	// the periodic timer out of the picture.
	deadline := time.Now().Add(5 * time.Second)
	for st.statsCalls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for triggered cycle")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	if got := st.statsCalls.Load(); got != 2 {
		t.Errorf("reconcile cycles = %d, want 2 (initial + one coalesced)", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}

func TestCleanupWorkerRunsOnTriggerAndStops(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	id := st.addRow(store.StatusFailed, "arn:b/index/failed", time.Now())
	cl := &fakeCloud{}
	m := newTestManager(testConfig(), st, cl)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.RunCleanupWorker(ctx)
	}()

	m.TriggerCleanup()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := st.row(id); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for triggered cleanup")
		}
		time.Sleep(time.Millisecond)
	}
	if got := len(cl.deletedARNs()); got != 1 {
		t.Errorf("remote deletes = %d, want 1", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}

func TestScheduledCleanupRunsOneSweep(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	id := st.addRow(store.StatusFailed, "arn:b/index/failed", time.Now())
	m := newTestManager(testConfig(), st, &fakeCloud{})

	if err := m.ScheduledCleanup(context.Background()); err != nil {
		t.Fatalf("ScheduledCleanup() error = %v", err)
	}
	if _, ok := st.row(id); ok {
		t.Error("failed row should have been swept")
	}
}
