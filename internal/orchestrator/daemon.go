package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Daemon runs the Orchestrator on a recurring Schedule, adapted from the
// teacher's runtime/scheduler.go ticker-poll loop: there the poll woke
// persistent chat agents, here each tick runs a synthesis pass for
// yesterday's date (the pipeline has no long-lived agent state to wake,
// only dated stages to (re)run).
type Daemon struct {
	orch     *Orchestrator
	schedule Schedule
	logger   zerolog.Logger
}

// NewDaemon creates a Daemon that runs orch each time schedule fires.
func NewDaemon(orch *Orchestrator, schedule Schedule, logger zerolog.Logger) *Daemon {
	return &Daemon{orch: orch, schedule: schedule, logger: logger.With().Str("component", "daemon").Logger()}
}

// Start blocks, running the orchestrator at each scheduled tick until ctx
// is cancelled. Unlike the teacher's fixed-interval ticker, the next wake
// time is recomputed from the Schedule after every run so cron expressions
// (not just constant delays) are honored.
func (d *Daemon) Start(ctx context.Context) {
	d.logger.Info().Msg("daemon starting")

	for {
		now := time.Now()
		next := d.schedule.Next(now)
		wait := next.Sub(now)
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.logger.Info().Msg("daemon stopped: context cancelled")
			return
		case <-timer.C:
			d.runOnce(ctx, next)
		}
	}
}

func (d *Daemon) runOnce(ctx context.Context, scheduledFor time.Time) {
	date := scheduledFor.AddDate(0, 0, -1).Format("2006-01-02")
	d.logger.Info().Str("date", date).Msg("daemon: running scheduled pass")

	runCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	report, err := d.orch.Run(runCtx, RunRequest{StartDate: date, EndDate: date})
	if err != nil {
		d.logger.Error().Err(err).Str("date", date).Msg("daemon: scheduled pass failed")
		return
	}
	d.logger.Info().Interface("report", report).Msg("daemon: scheduled pass complete")
}
