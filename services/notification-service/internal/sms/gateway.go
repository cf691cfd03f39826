package sms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// GatewayConfig is built once at startup and handed to NewGatewaySender.
type GatewayConfig struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// GatewaySender talks to an externalApiSendTextMessage.php style HTTP gateway.
type GatewaySender struct {
	cfg  GatewayConfig
	http *http.Client
}

const maxResponseBytes = 64 << 10

func NewGatewaySender(cfg GatewayConfig) *GatewaySender {
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &GatewaySender{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (s *GatewaySender) ProviderID() string {
	return "sms-gateway"
}

// Send issues exactly one GET; the receiver and message are passed through unmodified.
func (s *GatewaySender) Send(ctx context.Context, to string, body string) (string, error) {
	if s.cfg.URL == "" {
		return "", errors.New("sms gateway url not configured")
	}
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse sms gateway url: %w", err)
	}
	q := u.Query()
	q.Set("masking", "NOMASK")
	q.Set("MsgType", "TEXT")
	q.Set("userName", s.cfg.Username)
	q.Set("password", s.cfg.Password)
	q.Set("receiver", to)
	q.Set("message", body)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read sms gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return string(raw), nil
}
