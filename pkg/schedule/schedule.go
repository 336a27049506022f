// Package schedule decides whether a flow's cron schedule is due.
package schedule

import (
	"time"

	"github.com/routinehq/routine/pkg/log"
	"github.com/routinehq/routine/pkg/models"
)

// newFlowWindow is the reference window applied when a flow has never run:
// the next occurrence is computed from one minute ago, so a brand-new flow
// whose schedule matches the current minute fires immediately instead of
// waiting a full period.
const newFlowWindow = time.Minute

var logger = log.WithModule("schedule")

// IsDue reports whether the next occurrence of expr after the last run
// (or after now-60s when the flow has never run) has arrived. All cron
// arithmetic happens in UTC.
//
// An unparseable expression is treated as never due and logged, never
// propagated: the scheduler sweep must keep making progress past one
// malformed flow.
func IsDue(expr string, lastRunAt *time.Time, now time.Time) bool {
	parsed, err := models.CronParser.Parse(expr)
	if err != nil {
		logger.Warn("Unparseable cron expression, treating flow as never due",
			"schedule", expr,
			"error", err)

		return false
	}

	now = now.UTC()

	reference := now.Add(-newFlowWindow)
	if lastRunAt != nil {
		reference = lastRunAt.UTC()
	}

	next := parsed.Next(reference)

	return !next.After(now)
}

// Validate reports whether expr parses as a 5-field cron expression.
func Validate(expr string) error {
	_, err := models.CronParser.Parse(expr)

	return err
}
