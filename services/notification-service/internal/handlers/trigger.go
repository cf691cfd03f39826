package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/medserial/libs/httpx"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/model"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/reminders"
)

type CycleRunner interface {
	Run(ctx context.Context) (reminders.Summary, error)
}

type TriggerHandler struct {
	cycle  CycleRunner
	secret string
	logger *slog.Logger
}

// NewTriggerHandler requires "Authorization: Bearer <secret>" when secret is non-empty.
func NewTriggerHandler(cycle CycleRunner, secret string, logger *slog.Logger) *TriggerHandler {
	return &TriggerHandler{cycle: cycle, secret: strings.TrimSpace(secret), logger: logger}
}

type triggerResponse struct {
	Resp   *model.UpdateResult `json:"resp"`
	Sent   int                 `json:"sent,omitempty"`
	Failed int                 `json:"failed,omitempty"`
}

// ServeHTTP accepts any method; schedulers differ in what they send.
func (h *TriggerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	summary, err := h.cycle.Run(r.Context())
	if err != nil {
		h.logger.Error("reminder cycle failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		http.Error(w, "reminder cycle failed", http.StatusInternalServerError)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, triggerResponse{
		Resp:   summary.Resp,
		Sent:   summary.Sent,
		Failed: summary.Failed,
	})
}

func (h *TriggerHandler) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(h.secret)) == 1
}
