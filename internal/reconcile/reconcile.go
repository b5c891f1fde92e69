// Package reconcile is the seam for an orphan-blob consistency job. An upload
// that stores bytes in the channel but fails the metadata commit leaves an
// orphaned message behind; the gateway does not compensate. A Sweeper plugged
// into the Runner is where a cleanup job would reconcile the two sides.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Sweeper reconciles remote channel messages against the metadata table.
// None ships with the gateway; deployments register their own.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// Runner invokes a registered sweeper on a cron schedule.
type Runner struct {
	logger   *slog.Logger
	schedule string
	cron     *cron.Cron
	sweeper  Sweeper
}

// NewRunner creates a runner for the given cron schedule. An empty schedule
// disables it.
func NewRunner(log *slog.Logger, schedule string) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		logger:   log.With(slog.String("service", "reconcile")),
		schedule: schedule,
	}
}

// SetSweeper registers the sweeper to run. Must be called before Start.
func (r *Runner) SetSweeper(s Sweeper) {
	r.sweeper = s
}

// Start begins periodic sweeps. It is a no-op when no sweeper is registered
// or the schedule is empty.
func (r *Runner) Start() error {
	if r.sweeper == nil || r.schedule == "" {
		r.logger.Debug("reconcile runner idle", slog.Bool("sweeper", r.sweeper != nil))
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(r.schedule, func() {
		if err := r.sweeper.Sweep(context.Background()); err != nil {
			r.logger.Error("sweep failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("reconcile schedule %q: %w", r.schedule, err)
	}
	c.Start()
	r.cron = c
	r.logger.Info("reconcile runner started", slog.String("schedule", r.schedule))
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}
	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
