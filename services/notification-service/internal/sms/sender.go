package sms

import (
	"context"
)

// Sender delivers one message and returns the provider's raw response.
type Sender interface {
	Send(ctx context.Context, to string, body string) (string, error)
	ProviderID() string
}

type NoopSender struct{}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

func (s *NoopSender) ProviderID() string {
	return "sms-noop"
}

func (s *NoopSender) Send(_ context.Context, _ string, _ string) (string, error) {
	return "noop", nil
}
