package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/medserial/libs/config"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/reminders"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/sms"
)

type appConfig struct {
	Service     string
	Port        string
	DatabaseURL string
	Brokers     string

	SMSProvider   string
	Gateway       sms.GatewayConfig
	Twilio        sms.TwilioConfig
	SMSRatePerSec float64

	Reminders    reminders.Config
	CronSpec     string
	CronSecret   string
	ConsumeTopic string
	GroupID      string

	SMTPHost string
	SMTPPort string
	SMTPFrom string
}

// loadConfig fails closed on missing SMS credentials unless SKIP_ENV_VALIDATION is set.
func loadConfig() (appConfig, error) {
	cfg := appConfig{
		Service:     config.String("SERVICE_NAME", "notification-service"),
		DatabaseURL: config.String("DATABASE_URL", ""),
		Brokers:     config.String("KAFKA_BROKERS", ""),
		SMSProvider: strings.ToLower(config.String("SMS_PROVIDER", "gateway")),
		Gateway: sms.GatewayConfig{
			URL:      config.String("SMS_GATEWAY_URL", "http://localhost:8090/api/externalApiSendTextMessage.php"),
			Username: strings.TrimSpace(config.String("SMS_USERNAME", "")),
			Password: strings.TrimSpace(config.String("SMS_PASSWORD", "")),
			Timeout:  config.Duration("SMS_TIMEOUT", 10*time.Second),
		},
		Twilio: sms.TwilioConfig{
			AccountSID: config.String("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  config.String("TWILIO_AUTH_TOKEN", ""),
			From:       config.String("TWILIO_FROM_NUMBER", ""),
		},
		SMSRatePerSec: config.Float("SMS_RATE_PER_SECOND", 0),
		Reminders: reminders.Config{
			BufferHours:  config.Int("REMINDER_BUFFER_HOURS", 2),
			TimeZone:     config.String("REMINDER_TIMEZONE", "Asia/Dhaka"),
			LookbackDays: config.Int("REMINDER_LOOKBACK_DAYS", 0),
		},
		CronSpec:     strings.TrimSpace(config.String("REMINDER_CRON", "")),
		CronSecret:   config.String("CRON_SECRET", ""),
		ConsumeTopic: config.String("KAFKA_CONSUME_TOPIC", "booking.appointment.booked.v1"),
		GroupID:      config.String("KAFKA_GROUP_ID", "notification-service"),
		SMTPHost:     config.String("SMTP_HOST", "mailpit"),
		SMTPPort:     config.String("SMTP_PORT", "1025"),
		SMTPFrom:     config.String("SMTP_FROM", "no-reply@medserial.local"),
	}

	port, err := config.Port("PORT", "8085")
	if err != nil {
		return cfg, err
	}
	cfg.Port = port

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	switch cfg.SMSProvider {
	case "gateway", "twilio", "noop":
	default:
		return cfg, fmt.Errorf("SMS_PROVIDER must be gateway, twilio or noop (got %q)", cfg.SMSProvider)
	}

	if config.Bool("SKIP_ENV_VALIDATION", false) {
		return cfg, nil
	}
	var missing []string
	if cfg.Gateway.Username == "" {
		missing = append(missing, "SMS_USERNAME")
	}
	if cfg.Gateway.Password == "" {
		missing = append(missing, "SMS_PASSWORD")
	}
	if len(missing) > 0 {
		return cfg, fmt.Errorf("missing required environment: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func (c appConfig) smsSender() sms.Sender {
	switch c.SMSProvider {
	case "twilio":
		return sms.NewTwilioSender(c.Twilio)
	case "noop":
		return sms.NewNoopSender()
	default:
		return sms.NewGatewaySender(c.Gateway)
	}
}
