package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/medserial/libs/auth"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/model"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAppointmentFixture(appts ...model.Appointment) (*AppointmentHandler, *fakeAppointments, *fakeUsers) {
	users := newFakeUsers()
	users.byID["pu1"] = modelUser("pu1", "p1@example.com", "")
	users.patients["pu1"] = "p1"
	doctors := newFakeDoctors(model.Doctor{ID: "d1", UserID: "du1", Active: true})
	store := newFakeAppointments(appts...)
	h := NewAppointmentHandler(store, users, doctors, discardLogger())
	h.now = func() time.Time { return time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC) }
	return h, store, users
}

func TestCreateAppointment(t *testing.T) {
	h, store, _ := newAppointmentFixture()

	rec := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"doctor_id":"d1","date":"2026-03-10"}`)), "pu1", auth.RolePatient)
	h.Create(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp createAppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Serial)
	assert.Equal(t, "2026-03-10", resp.Date)
	require.Len(t, store.booked, 1)
	assert.Equal(t, "p1", store.booked[0].PatientID)
}

func TestCreateAppointmentRejects(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		userID  string
		bookErr error
		want    int
	}{
		{"past date", `{"doctor_id":"d1","date":"2026-03-09"}`, "pu1", nil, http.StatusBadRequest},
		{"bad date", `{"doctor_id":"d1","date":"10/03/2026"}`, "pu1", nil, http.StatusBadRequest},
		{"missing doctor", `{"date":"2026-03-11"}`, "pu1", nil, http.StatusBadRequest},
		{"no patient profile", `{"doctor_id":"d1","date":"2026-03-11"}`, "stranger", nil, http.StatusForbidden},
		{"unknown doctor", `{"doctor_id":"dx","date":"2026-03-11"}`, "pu1", storage.ErrNotFound, http.StatusNotFound},
		{"inactive doctor", `{"doctor_id":"d1","date":"2026-03-11"}`, "pu1", storage.ErrDoctorInactive, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, store, _ := newAppointmentFixture()
			store.bookErr = tc.bookErr
			rec := httptest.NewRecorder()
			h.Create(rec, asUser(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body)), tc.userID, auth.RolePatient))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestListAppointmentsScopesByRole(t *testing.T) {
	appts := []model.Appointment{
		{ID: "a1", PatientID: "p1", DoctorID: "d1", Status: model.StatusBooked},
		{ID: "a2", PatientID: "p2", DoctorID: "d1", Status: model.StatusBooked},
		{ID: "a3", PatientID: "p2", DoctorID: "d2", Status: model.StatusBooked},
	}
	cases := []struct {
		userID, role, query string
		wantCount           int
		wantLimit           int
	}{
		{"pu1", auth.RolePatient, "", 1, 50},
		{"du1", auth.RoleDoctor, "?limit=10", 2, 10},
		{"admin", auth.RoleAdmin, "?limit=5000", 3, 200},
	}
	for _, tc := range cases {
		t.Run(tc.role, func(t *testing.T) {
			h, store, _ := newAppointmentFixture(appts...)
			rec := httptest.NewRecorder()
			h.List(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/appointments"+tc.query, nil), tc.userID, tc.role))
			require.Equal(t, http.StatusOK, rec.Code)

			var body struct {
				Items []appointmentResponse `json:"items"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Len(t, body.Items, tc.wantCount)
			assert.Equal(t, tc.wantLimit, store.lastList.Limit)
		})
	}

	h, _, _ := newAppointmentFixture(appts...)
	rec := httptest.NewRecorder()
	h.List(rec, asUser(httptest.NewRequest(http.MethodGet, "/?limit=0", nil), "admin", auth.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelAppointment(t *testing.T) {
	appt := model.Appointment{ID: "a1", PatientID: "p1", PatientUserID: "pu1", DoctorID: "d1", Status: model.StatusBooked}

	t.Run("owner cancels twice", func(t *testing.T) {
		h, store, _ := newAppointmentFixture(appt)
		for range 2 {
			rec := httptest.NewRecorder()
			req := withURLParam(asUser(httptest.NewRequest(http.MethodPost, "/", nil), "pu1", auth.RolePatient), "id", "a1")
			h.Cancel(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp appointmentResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, model.StatusCancelled, resp.Status)
			assert.NotEmpty(t, resp.CancelledAt)
		}
		assert.Equal(t, 1, store.cancelled)
	})

	t.Run("other patient forbidden", func(t *testing.T) {
		h, store, _ := newAppointmentFixture(appt)
		rec := httptest.NewRecorder()
		req := withURLParam(asUser(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"x"}`)), "pu2", auth.RolePatient), "id", "a1")
		h.Cancel(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Zero(t, store.cancelled)
	})

	t.Run("admin cancels", func(t *testing.T) {
		h, store, _ := newAppointmentFixture(appt)
		rec := httptest.NewRecorder()
		req := withURLParam(asUser(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"doctor unavailable"}`)), "admin", auth.RoleAdmin), "id", "a1")
		h.Cancel(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, store.cancelled)
	})

	t.Run("unknown appointment", func(t *testing.T) {
		h, _, _ := newAppointmentFixture()
		rec := httptest.NewRecorder()
		h.Cancel(rec, withURLParam(asUser(httptest.NewRequest(http.MethodPost, "/", nil), "pu1", auth.RolePatient), "id", "nope"))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
