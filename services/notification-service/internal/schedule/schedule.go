package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Job func(ctx context.Context) error

// Start registers job on spec in location tz and starts the scheduler. Runs never overlap.
// The returned stop function waits for a running job to finish.
func Start(ctx context.Context, spec string, tz string, logger *slog.Logger, job Job) (func(), error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load schedule location %q: %w", tz, err)
	}
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(spec, func() {
		if err := job(ctx); err != nil {
			logger.Error("scheduled job failed", "err", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	c.Start()
	logger.Info("schedule started", "spec", spec, "tz", tz)

	return func() { <-c.Stop().Done() }, nil
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "err", err)...)
}
