package main

import (
	"context"
	"net"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/medserial/libs/config"
	"github.com/md-rashed-zaman/medserial/libs/db"
	"github.com/md-rashed-zaman/medserial/libs/grpcx"
	"github.com/md-rashed-zaman/medserial/libs/httpx"
	"github.com/md-rashed-zaman/medserial/libs/kafkax"
	"github.com/md-rashed-zaman/medserial/libs/metrics"
	otelx "github.com/md-rashed-zaman/medserial/libs/otel"
	"github.com/md-rashed-zaman/medserial/libs/outbox"
	"github.com/md-rashed-zaman/medserial/libs/runtime"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/handlers"
	apimetrics "github.com/md-rashed-zaman/medserial/services/api-service/internal/metrics"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/serial"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/storage"
	"github.com/redis/go-redis/v9"
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
	metrics.Init(apimetrics.Collectors()...)

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = rdb.Close() }()

	outboxRepo := outbox.NewRepository()
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   cfg.Brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	users := storage.NewUserRepository(pool)
	doctors := storage.NewDoctorRepository(pool)
	appointments := storage.NewAppointmentRepository(pool, outboxRepo)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	}
	if cfg.Brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.Brokers)})
	}

	serialHandler := handlers.NewSerialHandler(
		serial.NewStore(rdb, cfg.SerialTTL, logger),
		doctors,
		cfg.ClinicTZ,
		cfg.CORSOrigins,
		logger,
	)
	router := newRouter(routeDeps{
		JWTSecret:      cfg.JWTSecret,
		RequestTimeout: cfg.RequestTimeout,
		ReadyChecks:    readyChecks,
		Auth:           handlers.NewAuthHandler(users, cfg.JWTSecret, cfg.JWTTTL, logger),
		Doctors:        handlers.NewDoctorHandler(doctors, logger),
		Appointments:   handlers.NewAppointmentHandler(appointments, users, doctors, logger),
		Serial:         serialHandler,
		Payments:       handlers.NewPaymentHandler(appointments, cfg.Stripe, logger),
	})

	var rateLimitMW httpx.Middleware
	if cfg.RateLimitBackend == "redis" {
		rl := httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "rl:api")
		rateLimitMW = rl.Middleware(logger, cfg.RateLimitFailOpen)
		logger.Info("rate limiting enabled (redis)", "per_minute", cfg.RateLimitPerMinute, "redis_addr", cfg.RedisAddr)
	} else {
		rateLimitMW = httpx.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute).Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", cfg.RateLimitPerMinute)
	}

	handler := httpx.Chain(router,
		httpx.WithCORS(httpx.DefaultCORSPolicy(cfg.CORSOrigins)),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(cfg.BodyLimit),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "api")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv.RegisterOnShutdown(serialHandler.Shutdown)

	if cfg.GRPCPort != "" {
		grpcSrv := grpcx.NewServer(logger)
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			logger.Error("grpc listen failed", "err", err)
			panic(err)
		}
		go grpcSrv.WatchReadiness(ctx, 10*time.Second, db.ReadyCheck(pool))
		go func() {
			logger.Info("grpc server starting", "addr", lis.Addr().String())
			if err := grpcSrv.Serve(lis); err != nil {
				logger.Error("grpc server error", "err", err)
			}
		}()
		defer grpcSrv.Stop()
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
