package main

import (
	"context"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/medserial/libs/config"
	"github.com/md-rashed-zaman/medserial/libs/db"
	"github.com/md-rashed-zaman/medserial/libs/httpx"
	"github.com/md-rashed-zaman/medserial/libs/kafkax"
	"github.com/md-rashed-zaman/medserial/libs/metrics"
	otelx "github.com/md-rashed-zaman/medserial/libs/otel"
	"github.com/md-rashed-zaman/medserial/libs/outbox"
	"github.com/md-rashed-zaman/medserial/libs/runtime"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/confirmation"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/consumer"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/handlers"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/inbox"
	notifmetrics "github.com/md-rashed-zaman/medserial/services/notification-service/internal/metrics"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/reminders"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/schedule"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/sms"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.Service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}
	metrics.Init(notifmetrics.Collectors()...)

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository()
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   cfg.Brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	dispatcher := sms.NewDispatcher(cfg.smsSender(), cfg.SMSRatePerSec)
	cycle := reminders.NewCycle(
		storage.NewAppointmentRepository(pool, outboxRepo),
		dispatcher,
		logger,
		cfg.Reminders,
	)
	logger.Info("reminder cycle configured", "sms_provider", dispatcher.ProviderID(), "tz", cfg.Reminders.TimeZone)

	if cfg.CronSpec != "" {
		stopSchedule, err := schedule.Start(ctx, cfg.CronSpec, cfg.Reminders.TimeZone, logger, func(ctx context.Context) error {
			_, err := cycle.Run(ctx)
			return err
		})
		if err != nil {
			panic(err)
		}
		defer stopSchedule()
	}

	if len(kafkax.SplitBrokers(cfg.Brokers)) > 0 {
		notifier := confirmation.NewNotifier(email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom), logger)
		eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: cfg.Brokers,
			GroupID: cfg.GroupID,
			Topic:   cfg.ConsumeTopic,
		}, notifier.Handle)
		go eventConsumer.Run(ctx)
	} else {
		logger.Warn("booking confirmation consumer disabled (no kafka brokers configured)")
	}

	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if cfg.Brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.Brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/api/cron/reminders", metrics.Middleware(handlers.NewTriggerHandler(cycle, cfg.CronSecret, logger)))

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
