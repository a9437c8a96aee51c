package dispatcher

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alpes214/crawler/internal/apperrors"
	"github.com/alpes214/crawler/internal/config"
)

// TickFunc returns a function suitable for New's tickFn parameter: a fixed
// duration if cfg.CronExpr is empty, or the delay until the next match of
// cfg.CronExpr otherwise. This lets dispatcher.interval be expressed either
// as a plain Duration or as a cron expression when an operator wants
// calendar-shaped cadence (e.g. "off-hours only") instead of a bare tick.
func TickFunc(cfg config.DispatcherConfig) (func() time.Duration, error) {
	if cfg.CronExpr == "" {
		interval := cfg.Interval
		if interval <= 0 {
			interval = 10 * time.Second
		}
		return func() time.Duration { return interval }, nil
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cfg.CronExpr)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Validation, "invalid dispatcher.cron_expr", err)
	}
	return func() time.Duration {
		now := time.Now()
		next := schedule.Next(now)
		return next.Sub(now)
	}, nil
}
