// Package schedule runs a job once a day at a fixed local wall-clock time.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kbforge/indexpool/internal/logging"
)

// Job is the unit of scheduled work. Errors are logged, never fatal to
// the schedule.
type Job func(ctx context.Context) error

// Daily fires a job at the same wall-clock time every day. Runs missed
// while the process was down are not backfilled; the next fire is always
// computed from the current time.
type Daily struct {
	hour   int
	minute int
	job    Job
	log    *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// ParseTimeOfDay parses a "HH:MM" 24-hour wall-clock time.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q, want HH:MM: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NewDaily builds a schedule firing at the given "HH:MM" local time.
func NewDaily(at string, job Job) (*Daily, error) {
	hour, minute, err := ParseTimeOfDay(at)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("schedule job must not be nil")
	}
	return &Daily{
		hour:   hour,
		minute: minute,
		job:    job,
		log:    logging.Logger(),
		now:    time.Now,
	}, nil
}

// next returns the first instant strictly after from at which the
// schedule fires.
func (d *Daily) next(from time.Time) time.Time {
	fire := time.Date(from.Year(), from.Month(), from.Day(), d.hour, d.minute, 0, 0, from.Location())
	if !fire.After(from) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}

// Run blocks, firing the job at each scheduled instant, until ctx is
// cancelled. The job runs synchronously, so a long run simply delays the
// next fire; fires never overlap.
func (d *Daily) Run(ctx context.Context) {
	d.log.Info("daily schedule started",
		"at", fmt.Sprintf("%02d:%02d", d.hour, d.minute))

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		fire := d.next(d.now())
		timer.Reset(fire.Sub(d.now()))
		d.log.Debug("next scheduled run", "at", fire)

		select {
		case <-ctx.Done():
			d.log.Info("daily schedule stopped")
			return
		case <-timer.C:
		}

		if err := d.job(ctx); err != nil && ctx.Err() == nil {
			d.log.Error("scheduled job failed", "error", err)
		}
	}
}
