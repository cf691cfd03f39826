package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/medserial/libs/config"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/handlers"
)

type appConfig struct {
	Service     string
	Port        string
	GRPCPort    string
	DatabaseURL string
	Brokers     string

	JWTSecret string
	JWTTTL    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SerialTTL     time.Duration
	ClinicTZ      *time.Location

	RateLimitPerMinute int
	RateLimitBackend   string
	RateLimitFailOpen  bool

	CORSOrigins    []string
	BodyLimit      int64
	RequestTimeout time.Duration

	Stripe handlers.StripeConfig
}

func loadConfig() (appConfig, error) {
	cfg := appConfig{
		Service:            config.String("SERVICE_NAME", "api-service"),
		DatabaseURL:        config.String("DATABASE_URL", ""),
		Brokers:            config.String("KAFKA_BROKERS", ""),
		JWTSecret:          strings.TrimSpace(config.String("JWT_SECRET", "")),
		JWTTTL:             time.Duration(config.Int("JWT_TTL_MINUTES", 60)) * time.Minute,
		RedisAddr:          config.String("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      config.String("REDIS_PASSWORD", ""),
		SerialTTL:          config.Duration("SERIAL_TTL", 48*time.Hour),
		RateLimitPerMinute: config.Int("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitBackend:   strings.ToLower(config.String("RATE_LIMIT_BACKEND", "memory")),
		RateLimitFailOpen:  config.Bool("RATE_LIMIT_FAIL_OPEN", true),
		CORSOrigins:        config.List("CORS_ALLOWED_ORIGINS", ""),
		BodyLimit:          int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)),
		RequestTimeout:     config.Duration("REQUEST_TIMEOUT", 10*time.Second),
		Stripe: handlers.StripeConfig{
			SecretKey:        config.String("STRIPE_SECRET_KEY", ""),
			WebhookSecret:    config.String("STRIPE_WEBHOOK_SECRET", ""),
			Currency:         strings.ToLower(config.String("STRIPE_CURRENCY", "bdt")),
			SuccessURL:       config.String("STRIPE_SUCCESS_URL", "http://localhost:3000/dashboard/appointments?paid=1"),
			CancelURL:        config.String("STRIPE_CANCEL_URL", "http://localhost:3000/dashboard/appointments"),
			WebhookTolerance: config.Duration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
		},
	}

	port, err := config.Port("PORT", "8080")
	if err != nil {
		return cfg, err
	}
	cfg.Port = port
	if v := config.String("GRPC_PORT", ""); v != "" {
		if cfg.GRPCPort, err = config.Port("GRPC_PORT", ""); err != nil {
			return cfg, err
		}
	}

	// REDIS_DB 0 is valid, so config.Int's positive-only rule does not fit.
	if _, err := fmt.Sscan(config.String("REDIS_DB", "0"), &cfg.RedisDB); err != nil || cfg.RedisDB < 0 {
		return cfg, fmt.Errorf("REDIS_DB must be a non-negative integer")
	}

	tz := config.String("CLINIC_TIMEZONE", "Asia/Dhaka")
	if cfg.ClinicTZ, err = time.LoadLocation(tz); err != nil {
		return cfg, fmt.Errorf("CLINIC_TIMEZONE: %w", err)
	}

	switch cfg.RateLimitBackend {
	case "memory", "redis":
	default:
		return cfg, fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis (got %q)", cfg.RateLimitBackend)
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}
