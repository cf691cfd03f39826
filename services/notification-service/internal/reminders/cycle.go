package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/message"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/metrics"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/model"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/sms"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/timewindow"
	"golang.org/x/sync/errgroup"
)

// MaxConcurrentSends caps in-flight dispatches within one cycle.
const MaxConcurrentSends = 2

type Store interface {
	DueAppointments(ctx context.Context, start, end time.Time) ([]model.DueAppointment, error)
	MarkNotified(ctx context.Context, ids []string) (*model.UpdateResult, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, appointmentID, phone, message string) sms.Result
}

type Config struct {
	BufferHours int
	TimeZone    string
	// LookbackDays widens the query window backwards so reminders that failed late on
	// a previous UTC day are retried. Zero keeps the window to today.
	LookbackDays int
}

type Cycle struct {
	store      Store
	dispatcher Dispatcher
	logger     *slog.Logger
	cfg        Config
	now        func() time.Time
}

func NewCycle(store Store, dispatcher Dispatcher, logger *slog.Logger, cfg Config) *Cycle {
	if cfg.TimeZone == "" {
		cfg.TimeZone = "Asia/Dhaka"
	}
	if cfg.BufferHours < 0 {
		cfg.BufferHours = 0
	}
	if cfg.LookbackDays < 0 {
		cfg.LookbackDays = 0
	}
	return &Cycle{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Summary is what the trigger reports. Resp is nil when nothing was marked.
type Summary struct {
	Resp    *model.UpdateResult
	Sent    int
	Failed  int
	Skipped int
}

type task struct {
	id      string
	phone   string
	message string
}

// Run executes one reminder cycle. Individual dispatch failures are logged and left
// unnotified; only store errors are returned. Once started, a cycle ignores the
// caller's cancellation so sends already accepted by the gateway are still marked.
func (c *Cycle) Run(ctx context.Context) (Summary, error) {
	ctx = context.WithoutCancel(ctx)
	started := time.Now()
	defer func() { metrics.CycleDuration.Observe(time.Since(started).Seconds()) }()

	now := c.now()
	start, end := DayBounds(now)
	start = start.AddDate(0, 0, -c.cfg.LookbackDays)

	candidates, err := c.store.DueAppointments(ctx, start, end)
	if err != nil {
		return Summary{}, fmt.Errorf("query due appointments: %w", err)
	}

	var summary Summary
	tasks := make([]task, 0, len(candidates))
	for _, appt := range candidates {
		startTime, ok := timewindow.StartOf(appt.Time)
		if ok {
			_, _, ok = timewindow.ParseClock(startTime)
		}
		if appt.PatientPhone == "" || appt.DoctorName == "" || appt.Location == "" || !ok {
			summary.Skipped++
			metrics.RemindersSkipped.Inc()
			continue
		}

		due := timewindow.IsDue(now, appt.Time, c.cfg.BufferHours, c.cfg.TimeZone)
		c.logger.Debug("reminder window evaluated", "appointment_id", appt.ID, "due", due)

		tasks = append(tasks, task{
			id:    appt.ID,
			phone: appt.PatientPhone,
			message: message.Format(message.Details{
				DoctorName: appt.DoctorName,
				Date:       appt.Date.Format(message.DateLayout),
				Time:       startTime,
				Fee:        appt.Fee,
				Address:    appt.Location,
			}),
		})
	}

	results := c.dispatchAll(ctx, tasks)

	var succeeded []string
	for _, res := range results {
		if !res.Success {
			summary.Failed++
			metrics.RemindersDispatched.WithLabelValues("failed").Inc()
			c.logger.Error("reminder dispatch failed", "appointment_id", res.AppointmentID, "err", res.Err)
			continue
		}
		summary.Sent++
		metrics.RemindersDispatched.WithLabelValues("sent").Inc()
		succeeded = append(succeeded, res.AppointmentID)
	}

	if len(succeeded) > 0 {
		resp, err := c.store.MarkNotified(ctx, succeeded)
		if err != nil {
			return summary, fmt.Errorf("mark appointments notified: %w", err)
		}
		summary.Resp = resp
	}

	c.logger.Info("reminder cycle finished",
		"candidates", len(candidates),
		"sent", summary.Sent,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

// dispatchAll runs tasks with a limiter owned by this call. Workers never return an
// error, so one failure does not cancel its siblings.
func (c *Cycle) dispatchAll(ctx context.Context, tasks []task) []sms.Result {
	results := make([]sms.Result, len(tasks))
	var g errgroup.Group
	g.SetLimit(MaxConcurrentSends)
	for i, t := range tasks {
		g.Go(func() error {
			results[i] = c.dispatcher.Dispatch(ctx, t.id, t.phone, t.message)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// DayBounds returns the first and last instant of now's UTC calendar day.
func DayBounds(now time.Time) (time.Time, time.Time) {
	u := now.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond)
}
