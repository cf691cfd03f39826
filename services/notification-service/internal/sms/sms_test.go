package sms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

func TestGatewaySenderQuery(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/externalApiSendTextMessage.php", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "NOMASK", q.Get("masking"))
		assert.Equal(t, "TEXT", q.Get("MsgType"))
		assert.Equal(t, "clinic", q.Get("userName"))
		assert.Equal(t, "s3cret", q.Get("password"))
		assert.Equal(t, "+8801700000000", q.Get("receiver"))
		assert.Equal(t, "Dr. Rahman\nFee: 500.00 Taka & more", q.Get("message"))
		_, _ = w.Write([]byte(`{"status":"SENT"}`))
	}))
	defer srv.Close()

	s := NewGatewaySender(GatewayConfig{
		URL:      srv.URL + "/api/externalApiSendTextMessage.php",
		Username: "clinic",
		Password: "s3cret",
	})
	payload, err := s.Send(context.Background(), "+8801700000000", "Dr. Rahman\nFee: 500.00 Taka & more")
	require.NoError(t, err)
	assert.Equal(t, `{"status":"SENT"}`, payload)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGatewaySenderNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewGatewaySender(GatewayConfig{URL: srv.URL})
	_, err := s.Send(context.Background(), "1", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

type fakeSender struct {
	payload string
	err     error
	panics  bool
}

func (f fakeSender) ProviderID() string { return "fake" }

func (f fakeSender) Send(context.Context, string, string) (string, error) {
	if f.panics {
		panic("gateway exploded")
	}
	return f.payload, f.err
}

func TestDispatcherResults(t *testing.T) {
	ok := NewDispatcher(fakeSender{payload: "accepted"}, 0).Dispatch(context.Background(), "a1", "p", "m")
	assert.Equal(t, Result{AppointmentID: "a1", Success: true, Payload: "accepted"}, ok)

	failed := NewDispatcher(fakeSender{err: errors.New("timeout")}, 0).Dispatch(context.Background(), "a2", "p", "m")
	assert.False(t, failed.Success)
	assert.Equal(t, "a2", failed.AppointmentID)
	assert.EqualError(t, failed.Err, "timeout")

	var res Result
	assert.NotPanics(t, func() {
		res = NewDispatcher(fakeSender{panics: true}, 0).Dispatch(context.Background(), "a3", "p", "m")
	})
	assert.False(t, res.Success)
	assert.Equal(t, "a3", res.AppointmentID)
	assert.ErrorContains(t, res.Err, "gateway exploded")
}

func TestDispatcherRateLimitWaits(t *testing.T) {
	d := NewDispatcher(fakeSender{payload: "ok"}, 20)
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.True(t, d.Dispatch(context.Background(), "a", "p", "m").Success)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := d.Dispatch(ctx, "a", "p", "m")
	assert.False(t, res.Success)
}

type fakeTwilio struct {
	params *twilioApi.CreateMessageParams
}

func (f *fakeTwilio) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = params
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioSender(t *testing.T) {
	api := &fakeTwilio{}
	s := &TwilioSender{api: api, from: "+15550000000"}
	sid, err := s.Send(context.Background(), "+8801700000000", "hello")
	require.NoError(t, err)
	assert.Equal(t, "SM123", sid)
	require.NotNil(t, api.params.To)
	assert.Equal(t, "+8801700000000", *api.params.To)
	assert.Equal(t, "+15550000000", *api.params.From)
	assert.Equal(t, "hello", *api.params.Body)
}
