package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/medserial/libs/httpx"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/metrics"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/model"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/storage"
	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

type PaymentStore interface {
	Get(ctx context.Context, id string) (model.Appointment, error)
	SetCheckoutSession(ctx context.Context, id, sessionID string) error
	MarkPaid(ctx context.Context, id, sessionID string) (bool, error)
}

type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	Currency         string
	SuccessURL       string
	CancelURL        string
	WebhookTolerance time.Duration
}

type PaymentHandler struct {
	appts      PaymentStore
	cfg        StripeConfig
	logger     *slog.Logger
	newSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewPaymentHandler(appts PaymentStore, cfg StripeConfig, logger *slog.Logger) *PaymentHandler {
	if cfg.Currency == "" {
		cfg.Currency = "bdt"
	}
	if cfg.WebhookTolerance <= 0 {
		cfg.WebhookTolerance = webhook.DefaultTolerance
	}
	if cfg.SecretKey != "" {
		stripe.Key = cfg.SecretKey
	}
	return &PaymentHandler{appts: appts, cfg: cfg, logger: logger, newSession: checkoutsession.New}
}

type checkoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// Checkout opens a Stripe Checkout session for the appointment fee.
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(h.cfg.SecretKey) == "" {
		http.Error(w, "payments not configured", http.StatusNotImplemented)
		return
	}

	appt, err := h.appts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppointmentError(w, h.logger, err)
		return
	}
	userID, _ := identity(r)
	if appt.PatientUserID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	switch {
	case appt.Status == model.StatusCancelled:
		http.Error(w, "appointment is cancelled", http.StatusConflict)
		return
	case appt.Paid:
		http.Error(w, "appointment already paid", http.StatusConflict)
		return
	case appt.Fee <= 0:
		http.Error(w, "appointment has no fee to pay", http.StatusConflict)
		return
	}

	sess, err := h.newSession(h.checkoutParams(appt))
	if err != nil {
		h.logger.Error("stripe checkout session failed", "appointment_id", appt.ID, "err", err)
		http.Error(w, "failed to create checkout session", http.StatusBadGateway)
		return
	}
	if err := h.appts.SetCheckoutSession(r.Context(), appt.ID, sess.ID); err != nil {
		h.logger.Warn("failed to store checkout session id", "appointment_id", appt.ID, "err", err)
	}
	httpx.WriteJSON(w, http.StatusCreated, checkoutResponse{SessionID: sess.ID, URL: sess.URL})
}

func (h *PaymentHandler) checkoutParams(appt model.Appointment) *stripe.CheckoutSessionParams {
	metadata := map[string]string{"appointment_id": appt.ID}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(h.cfg.SuccessURL),
		CancelURL:         stripe.String(h.cfg.CancelURL),
		ClientReferenceID: stripe.String(appt.ID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(h.cfg.Currency)),
					UnitAmount: stripe.Int64(minorUnits(appt.Fee)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Consultation with Dr. %s (serial %d, %s)",
							appt.DoctorName, appt.Serial, appt.Date.Format(model.DateLayout))),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	params.IdempotencyKey = stripe.String("checkout:" + appt.ID + ":" + time.Now().UTC().Format("2006010215"))
	return params
}

// minorUnits converts a fee to the currency's smallest unit (paisa, cents).
func minorUnits(fee float64) int64 {
	return int64(math.Round(fee * 100))
}

// StripeWebhook needs no JWT; the Stripe-Signature header is the authentication.
func (h *PaymentHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(h.cfg.WebhookSecret) == "" {
		http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
		return
	}
	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := webhook.ConstructEventWithOptions(body, sigHeader, h.cfg.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                h.cfg.WebhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}
	h.logger.Info("stripe event received", "provider_event_id", evt.ID, "event_type", string(evt.Type))

	if evt.Type != stripe.EventTypeCheckoutSessionCompleted {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
		h.logger.Error("stripe: invalid checkout session payload", "err", err)
		http.Error(w, "invalid checkout session payload", http.StatusBadRequest)
		return
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		metrics.PaymentsCompleted.WithLabelValues("unpaid").Inc()
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	appointmentID := strings.TrimSpace(session.Metadata["appointment_id"])
	if appointmentID == "" {
		appointmentID = strings.TrimSpace(session.ClientReferenceID)
	}
	if appointmentID == "" {
		h.logger.Warn("stripe: checkout session without appointment_id", "session_id", session.ID)
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	changed, err := h.appts.MarkPaid(r.Context(), appointmentID, session.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Acknowledge so Stripe stops retrying an event we can never apply.
			h.logger.Warn("stripe: unknown appointment", "appointment_id", appointmentID, "session_id", session.ID)
			httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "unknown_appointment"})
			return
		}
		h.logger.Error("stripe: mark paid failed", "appointment_id", appointmentID, "err", err)
		http.Error(w, "failed to record payment", http.StatusInternalServerError)
		return
	}
	if !changed {
		metrics.PaymentsCompleted.WithLabelValues("duplicate").Inc()
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}
	metrics.PaymentsCompleted.WithLabelValues("paid").Inc()
	h.logger.Info("appointment paid", "appointment_id", appointmentID, "session_id", session.ID)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
