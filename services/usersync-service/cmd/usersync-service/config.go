package main

import (
	"errors"
	"time"

	"github.com/md-rashed-zaman/medserial/libs/config"
	"github.com/md-rashed-zaman/medserial/services/usersync-service/internal/forwarder"
)

type appConfig struct {
	Service       string
	Port          string
	DatabaseURL   string
	Brokers       string
	WebhookSecret string
	BodyLimit     int64
	Forward       forwarder.Config
}

func loadConfig() (appConfig, error) {
	cfg := appConfig{
		Service:     config.String("SERVICE_NAME", "usersync-service"),
		DatabaseURL: config.String("DATABASE_URL", ""),
		Brokers:     config.String("KAFKA_BROKERS", ""),
		BodyLimit:   int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 256<<10)),
		Forward: forwarder.Config{
			URL:     config.String("USERSYNC_FORWARD_URL", ""),
			Token:   config.String("USERSYNC_FORWARD_TOKEN", ""),
			Timeout: config.Duration("USERSYNC_FORWARD_TIMEOUT", 5*time.Second),
		},
	}

	port, err := config.Port("PORT", "8083")
	if err != nil {
		return cfg, err
	}
	cfg.Port = port

	if cfg.WebhookSecret, err = config.RequiredString("USERSYNC_WEBHOOK_SECRET"); err != nil {
		return cfg, err
	}
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}
	return cfg, nil
}
