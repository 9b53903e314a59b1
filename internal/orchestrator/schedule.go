// Package orchestrator is the top-level coordinator (spec.md §2): for a
// requested date range it runs Parsers -> Normalizer -> (Analyzer <-> Memory)
// -> Journal Synthesizer -> Blog Context Builder -> Blog Synthesizer ->
// Publishers in topological order, with State short-circuiting completed
// work.
package orchestrator

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule wraps a cron.Schedule and exposes only the Next step the
// orchestrator's daemon mode needs, adapted from the teacher's
// agent/schedule.go (same dual cron-expression/Go-duration parsing).
type Schedule interface {
	Next(time.Time) time.Time
}

type cronSchedule struct {
	schedule cron.Schedule
}

func (cs *cronSchedule) Next(t time.Time) time.Time {
	return cs.schedule.Next(t)
}

// ParseSchedule parses a daily/weekly run schedule, supporting cron
// expressions ("0 0 6 * * *") and Go duration strings ("24h") for the
// simple "every N" case.
func ParseSchedule(schedule string) (Schedule, error) {
	if schedule == "" {
		return nil, fmt.Errorf("schedule string is empty")
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cronSched, err := parser.Parse(schedule)
	if err == nil {
		return &cronSchedule{schedule: cronSched}, nil
	}

	duration, err := time.ParseDuration(schedule)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q as cron expression or duration: %w", schedule, err)
	}
	return &cronSchedule{schedule: cron.ConstantDelaySchedule{Delay: duration}}, nil
}

// ComputeNextRun computes the next run time from a schedule string given a
// base time.
func ComputeNextRun(schedule string, baseTime time.Time) (time.Time, error) {
	s, err := ParseSchedule(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(baseTime), nil
}
