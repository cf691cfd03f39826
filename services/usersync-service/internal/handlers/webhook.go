package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/medserial/libs/httpx"
	"github.com/md-rashed-zaman/medserial/services/usersync-service/internal/metrics"
	"github.com/md-rashed-zaman/medserial/services/usersync-service/internal/storage"
	"github.com/md-rashed-zaman/medserial/services/usersync-service/internal/webhook"
)

type UserStore interface {
	Upsert(ctx context.Context, action string, u storage.User) (storage.User, error)
	SoftDelete(ctx context.Context, action, authUID string) (storage.User, bool, error)
}

type Forwarder interface {
	Forward(ctx context.Context, eventType string, u storage.User) error
}

type WebhookHandler struct {
	users   UserStore
	forward Forwarder
	secret  string
	logger  *slog.Logger
}

// NewWebhookHandler accepts a nil forward when no downstream is configured.
func NewWebhookHandler(users UserStore, forward Forwarder, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{users: users, forward: forward, secret: secret, logger: logger}
}

type syncResponse struct {
	Status string `json:"status"`
	UserID string `json:"user_id,omitempty"`
}

func (h *WebhookHandler) Users(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if err := webhook.Verify(h.secret, body, r.Header.Get(webhook.SignatureHeader)); err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "unauthorized").Inc()
		h.logger.Warn("user webhook rejected", "err", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	evt, err := webhook.Parse(body)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid").Inc()
		http.Error(w, "invalid event payload", http.StatusBadRequest)
		return
	}

	switch evt.Type {
	case webhook.TypeUserCreated, webhook.TypeUserUpdated:
		h.upsert(w, r, evt)
	case webhook.TypeUserDeleted:
		h.delete(w, r, evt)
	default:
		metrics.WebhookEvents.WithLabelValues(evt.Type, "ignored").Inc()
		httpx.WriteJSON(w, http.StatusOK, syncResponse{Status: "ignored"})
	}
}

func (h *WebhookHandler) upsert(w http.ResponseWriter, r *http.Request, evt webhook.Event) {
	user := storage.User{
		AuthUID:  evt.Data.ID,
		Name:     evt.Data.FullName(),
		Email:    evt.Data.PrimaryEmail(),
		Phone:    evt.Data.PrimaryPhone(),
		ImageURL: evt.Data.ImageURL,
	}
	if user.Email == "" {
		metrics.WebhookEvents.WithLabelValues(evt.Type, "invalid").Inc()
		http.Error(w, "user has no email address", http.StatusBadRequest)
		return
	}

	saved, err := h.users.Upsert(r.Context(), evt.Type, user)
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			metrics.WebhookEvents.WithLabelValues(evt.Type, "conflict").Inc()
			h.logger.Warn("user webhook email conflict", "auth_uid", user.AuthUID)
			http.Error(w, "email already registered to another account", http.StatusConflict)
			return
		}
		metrics.WebhookEvents.WithLabelValues(evt.Type, "error").Inc()
		h.logger.Error("user upsert failed", "auth_uid", user.AuthUID, "err", err)
		http.Error(w, "failed to sync user", http.StatusInternalServerError)
		return
	}
	metrics.WebhookEvents.WithLabelValues(evt.Type, "synced").Inc()
	h.logger.Info("user synced", "type", evt.Type, "user_id", saved.ID, "auth_uid", saved.AuthUID)

	h.forwardUser(r.Context(), evt.Type, saved)
	httpx.WriteJSON(w, http.StatusOK, syncResponse{Status: "synced", UserID: saved.ID})
}

func (h *WebhookHandler) delete(w http.ResponseWriter, r *http.Request, evt webhook.Event) {
	deleted, changed, err := h.users.SoftDelete(r.Context(), evt.Type, evt.Data.ID)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(evt.Type, "error").Inc()
		h.logger.Error("user delete failed", "auth_uid", evt.Data.ID, "err", err)
		http.Error(w, "failed to delete user", http.StatusInternalServerError)
		return
	}
	if !changed {
		metrics.WebhookEvents.WithLabelValues(evt.Type, "ignored").Inc()
		httpx.WriteJSON(w, http.StatusOK, syncResponse{Status: "ignored"})
		return
	}
	metrics.WebhookEvents.WithLabelValues(evt.Type, "synced").Inc()
	h.logger.Info("user deleted", "user_id", deleted.ID, "auth_uid", deleted.AuthUID)

	h.forwardUser(r.Context(), evt.Type, deleted)
	httpx.WriteJSON(w, http.StatusOK, syncResponse{Status: "deleted", UserID: deleted.ID})
}

// forwardUser never fails the webhook; the mirror is already committed.
func (h *WebhookHandler) forwardUser(ctx context.Context, eventType string, u storage.User) {
	if h.forward == nil {
		return
	}
	if err := h.forward.Forward(context.WithoutCancel(ctx), eventType, u); err != nil {
		metrics.Forwards.WithLabelValues("failed").Inc()
		h.logger.Warn("user forward failed", "user_id", u.ID, "type", eventType, "err", err)
		return
	}
	metrics.Forwards.WithLabelValues("ok").Inc()
}
