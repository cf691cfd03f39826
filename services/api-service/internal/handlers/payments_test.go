package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/md-rashed-zaman/medserial/libs/auth"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const testWebhookSecret = "whsec_test"

func payableAppointment() model.Appointment {
	return model.Appointment{
		ID:            "a1",
		PatientUserID: "pu1",
		DoctorName:    "Karim",
		Date:          time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		Fee:           750.5,
		Serial:        3,
		Status:        model.StatusBooked,
	}
}

func TestCheckoutNotConfigured(t *testing.T) {
	h := NewPaymentHandler(newFakeAppointments(payableAppointment()), StripeConfig{}, discardLogger())
	rec := httptest.NewRecorder()
	h.Checkout(rec, withURLParam(asUser(httptest.NewRequest(http.MethodPost, "/", nil), "pu1", auth.RolePatient), "id", "a1"))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestCheckoutBuildsPaymentSession(t *testing.T) {
	store := newFakeAppointments(payableAppointment())
	h := NewPaymentHandler(store, StripeConfig{
		SecretKey:  "sk_test_123",
		SuccessURL: "https://clinic.example.com/paid",
		CancelURL:  "https://clinic.example.com/cancel",
	}, discardLogger())

	var got *stripe.CheckoutSessionParams
	h.newSession = func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		got = p
		return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}, nil
	}

	rec := httptest.NewRecorder()
	h.Checkout(rec, withURLParam(asUser(httptest.NewRequest(http.MethodPost, "/", nil), "pu1", auth.RolePatient), "id", "a1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.NotNil(t, got)
	assert.Equal(t, string(stripe.CheckoutSessionModePayment), *got.Mode)
	require.Len(t, got.LineItems, 1)
	assert.Equal(t, "bdt", *got.LineItems[0].PriceData.Currency)
	assert.Equal(t, int64(75050), *got.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "a1", got.Metadata["appointment_id"])
	assert.Equal(t, "cs_test_1", store.sessions["a1"])

	var resp checkoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cs_test_1", resp.SessionID)
}

func TestCheckoutRejects(t *testing.T) {
	paid := payableAppointment()
	paid.Paid = true
	cancelled := payableAppointment()
	cancelled.Status = model.StatusCancelled

	cases := []struct {
		name   string
		appt   model.Appointment
		userID string
		err    error
		want   int
	}{
		{"not owner", payableAppointment(), "pu2", nil, http.StatusForbidden},
		{"already paid", paid, "pu1", nil, http.StatusConflict},
		{"cancelled", cancelled, "pu1", nil, http.StatusConflict},
		{"stripe down", payableAppointment(), "pu1", errors.New("boom"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewPaymentHandler(newFakeAppointments(tc.appt), StripeConfig{SecretKey: "sk_test_123"}, discardLogger())
			h.newSession = func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
				if tc.err != nil {
					return nil, tc.err
				}
				return &stripe.CheckoutSession{ID: "cs"}, nil
			}
			rec := httptest.NewRecorder()
			h.Checkout(rec, withURLParam(asUser(httptest.NewRequest(http.MethodPost, "/", nil), tc.userID, auth.RolePatient), "id", "a1"))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func signedWebhook(t *testing.T, secret string, payload []byte) *http.Request {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func checkoutCompleted(t *testing.T, appointmentID, paymentStatus string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":          "evt_test_1",
		"object":      "event",
		"type":        "checkout.session.completed",
		"api_version": stripe.APIVersion,
		"created":     time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":             "cs_test_1",
				"object":         "checkout.session",
				"payment_status": paymentStatus,
				"metadata":       map[string]string{"appointment_id": appointmentID},
			},
		},
	})
	require.NoError(t, err)
	return b
}

func TestStripeWebhookMarksPaidOnce(t *testing.T) {
	store := newFakeAppointments(payableAppointment())
	h := NewPaymentHandler(store, StripeConfig{WebhookSecret: testWebhookSecret}, discardLogger())

	statuses := []string{"ok", "duplicate"}
	for _, want := range statuses {
		rec := httptest.NewRecorder()
		h.StripeWebhook(rec, signedWebhook(t, testWebhookSecret, checkoutCompleted(t, "a1", "paid")))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, want, body["status"])
	}
	assert.Equal(t, "cs_test_1", store.paid["a1"])
}

func TestStripeWebhookRejectsAndIgnores(t *testing.T) {
	store := newFakeAppointments(payableAppointment())
	h := NewPaymentHandler(store, StripeConfig{WebhookSecret: testWebhookSecret}, discardLogger())

	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, signedWebhook(t, "whsec_other", checkoutCompleted(t, "a1", "paid")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.StripeWebhook(rec, signedWebhook(t, testWebhookSecret, checkoutCompleted(t, "a1", "unpaid")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.paid)

	rec = httptest.NewRecorder()
	h.StripeWebhook(rec, signedWebhook(t, testWebhookSecret, checkoutCompleted(t, "missing", "paid")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown_appointment")

	unconfigured := NewPaymentHandler(store, StripeConfig{}, discardLogger())
	rec = httptest.NewRecorder()
	unconfigured.StripeWebhook(rec, signedWebhook(t, testWebhookSecret, checkoutCompleted(t, "a1", "paid")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
