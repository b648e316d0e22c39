package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in         string
		wantHour   int
		wantMinute int
		wantErr    bool
	}{
		"morning":        {in: "08:03", wantHour: 8, wantMinute: 3},
		"midnight":       {in: "00:00"},
		"last minute":    {in: "23:59", wantHour: 23, wantMinute: 59},
		"empty":          {in: "", wantErr: true},
		"missing minute": {in: "08", wantErr: true},
		"out of range":   {in: "25:00", wantErr: true},
		"twelve hour":    {in: "8:03 AM", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			hour, minute, err := ParseTimeOfDay(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseTimeOfDay(%q) expected error", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q) error = %v", tc.in, err)
			}
			if hour != tc.wantHour || minute != tc.wantMinute {
				t.Errorf("ParseTimeOfDay(%q) = %d:%d, want %d:%d",
					tc.in, hour, minute, tc.wantHour, tc.wantMinute)
			}
		})
	}
}

func TestNewDailyRejectsNilJob(t *testing.T) {
	t.Parallel()

	if _, err := NewDaily("08:03", nil); err == nil {
		t.Fatal("expected error for nil job")
	}
}

func TestNextFireComputation(t *testing.T) {
	t.Parallel()

	d, err := NewDaily("08:03", func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("NewDaily() error = %v", err)
	}

	tests := map[string]struct {
		from time.Time
		want time.Time
	}{
		"before today's fire": {
			from: time.Date(2024, 5, 10, 6, 0, 0, 0, time.UTC),
			want: time.Date(2024, 5, 10, 8, 3, 0, 0, time.UTC),
		},
		"after today's fire rolls over": {
			from: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC),
			want: time.Date(2024, 5, 11, 8, 3, 0, 0, time.UTC),
		},
		"exactly at the fire instant rolls over": {
			from: time.Date(2024, 5, 10, 8, 3, 0, 0, time.UTC),
			want: time.Date(2024, 5, 11, 8, 3, 0, 0, time.UTC),
		},
		"month boundary": {
			from: time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC),
			want: time.Date(2024, 6, 1, 8, 3, 0, 0, time.UTC),
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if got := d.next(tc.from); !got.Equal(tc.want) {
				t.Errorf("next(%v) = %v, want %v", tc.from, got, tc.want)
			}
		})
	}
}

func TestRunFiresAndStops(t *testing.T) {
	t.Parallel()

	var fired atomic.Int64
	d, err := NewDaily("08:03", func(context.Context) error {
		fired.Add(1)
		return errors.New("job errors must not stop the schedule")
	})
	if err != nil {
		t.Fatalf("NewDaily() error = %v", err)
	}
	// Pin now just before the fire instant so the timer goes off almost
	// immediately, once per loop iteration.
	d.now = func() time.Time {
		return time.Date(2024, 5, 10, 8, 2, 59, int(999 * time.Millisecond), time.UTC)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for fired.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for scheduled fires")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
