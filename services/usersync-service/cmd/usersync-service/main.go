package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/medserial/libs/config"
	"github.com/md-rashed-zaman/medserial/libs/db"
	"github.com/md-rashed-zaman/medserial/libs/httpx"
	"github.com/md-rashed-zaman/medserial/libs/kafkax"
	"github.com/md-rashed-zaman/medserial/libs/metrics"
	otelx "github.com/md-rashed-zaman/medserial/libs/otel"
	"github.com/md-rashed-zaman/medserial/libs/outbox"
	"github.com/md-rashed-zaman/medserial/libs/runtime"
	"github.com/md-rashed-zaman/medserial/services/usersync-service/internal/forwarder"
	"github.com/md-rashed-zaman/medserial/services/usersync-service/internal/handlers"
	syncmetrics "github.com/md-rashed-zaman/medserial/services/usersync-service/internal/metrics"
	"github.com/md-rashed-zaman/medserial/services/usersync-service/internal/storage"
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
	metrics.Init(syncmetrics.Collectors()...)

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxConns: 4})
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

	var fwd handlers.Forwarder
	if cfg.Forward.URL != "" {
		fwd = forwarder.New(cfg.Forward)
		logger.Info("user forwarding enabled", "url", cfg.Forward.URL)
	}
	webhookHandler := handlers.NewWebhookHandler(storage.NewUserRepository(pool, outboxRepo), fwd, cfg.WebhookSecret, logger)

	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if cfg.Brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.Brokers)})
	}

	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/healthz", runtime.HealthHandler)
	r.Method(http.MethodGet, "/readyz", runtime.ReadyHandler(readyChecks...))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Post("/webhooks/auth/users", webhookHandler.Users)

	handler := httpx.Chain(r,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(cfg.BodyLimit),
	)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(handler, "usersync"),
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
