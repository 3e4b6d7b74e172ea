package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// DailyJob triggers fn once per day at a fixed local wall-clock time. The
// settlement date passed to fn is the day that just ended, so the midnight
// run settles yesterday's views.
type DailyJob struct {
	Hour     int
	Minute   int
	Location *time.Location
	Logger   *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewDailyJob creates a daily trigger at hour:minute in loc.
func NewDailyJob(hour, minute int, loc *time.Location, logger *slog.Logger) *DailyJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyJob{Hour: hour, Minute: minute, Location: loc, Logger: logger, now: time.Now}
}

// Run sleeps until each next firing time and invokes fn. Failures are logged;
// the schedule continues.
func (j *DailyJob) Run(ctx context.Context, fn func(ctx context.Context, settlementDate time.Time) error) error {
	for {
		fireAt := j.NextRun(j.now())
		timer := time.NewTimer(fireAt.Sub(j.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		settlementDate := fireAt.AddDate(0, 0, -1)
		j.Logger.Info("daily_settlement_triggered",
			"fire_at", fireAt.Format(time.RFC3339), "settlement_date", settlementDate.Format("2006-01-02"))
		if err := fn(ctx, settlementDate); err != nil {
			j.Logger.Error("daily_settlement_failed", "settlement_date", settlementDate.Format("2006-01-02"), "err", err)
		}
	}
}

// NextRun returns the next firing time strictly after now.
func (j *DailyJob) NextRun(now time.Time) time.Time {
	local := now.In(j.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), j.Hour, j.Minute, 0, 0, j.Location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
