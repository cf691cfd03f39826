package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

func TestBuildEventJSONVerifiesAsCheckoutCompleted(t *testing.T) {
	now := time.Now().UTC()
	payload, err := buildEventJSON("evt_test_1", now, "appt-42", "paid")
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: now,
		Scheme:    "v1",
	})
	evt, err := webhook.ConstructEvent(payload, signed.Header, "whsec_test")
	require.NoError(t, err)
	assert.Equal(t, stripe.EventTypeCheckoutSessionCompleted, evt.Type)

	var sess stripe.CheckoutSession
	require.NoError(t, json.Unmarshal(evt.Data.Raw, &sess))
	assert.Equal(t, stripe.CheckoutSessionPaymentStatusPaid, sess.PaymentStatus)
	assert.Equal(t, "appt-42", sess.Metadata["appointment_id"])
}
