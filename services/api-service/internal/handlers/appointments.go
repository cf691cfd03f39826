package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/medserial/libs/auth"
	"github.com/md-rashed-zaman/medserial/libs/httpx"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/metrics"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/model"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type AppointmentStore interface {
	Book(ctx context.Context, patientID, doctorID string, date time.Time) (model.Appointment, error)
	Get(ctx context.Context, id string) (model.Appointment, error)
	List(ctx context.Context, f model.ListFilter) ([]model.Appointment, error)
	Cancel(ctx context.Context, id, reason string) (model.Appointment, bool, error)
}

type PatientLookup interface {
	PatientIDForUser(ctx context.Context, userID string) (string, error)
}

type DoctorLookup interface {
	Get(ctx context.Context, id string) (model.Doctor, error)
	GetByUserID(ctx context.Context, userID string) (model.Doctor, error)
}

type AppointmentHandler struct {
	appts    AppointmentStore
	patients PatientLookup
	doctors  DoctorLookup
	logger   *slog.Logger
	now      func() time.Time
}

func NewAppointmentHandler(appts AppointmentStore, patients PatientLookup, doctors DoctorLookup, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{appts: appts, patients: patients, doctors: doctors, logger: logger, now: time.Now}
}

type createAppointmentRequest struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"date"`
}

type createAppointmentResponse struct {
	AppointmentID string  `json:"appointment_id"`
	Serial        int     `json:"serial"`
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	Fee           float64 `json:"fee"`
	Location      string  `json:"location"`
}

type appointmentResponse struct {
	ID          string  `json:"id"`
	PatientID   string  `json:"patient_id"`
	PatientName string  `json:"patient_name"`
	DoctorID    string  `json:"doctor_id"`
	DoctorName  string  `json:"doctor_name"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Fee         float64 `json:"fee"`
	Location    string  `json:"location"`
	Serial      int     `json:"serial"`
	Status      string  `json:"status"`
	Notified    bool    `json:"notified"`
	Paid        bool    `json:"paid"`
	CancelledAt string  `json:"cancelled_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func toAppointmentResponse(a model.Appointment) appointmentResponse {
	resp := appointmentResponse{
		ID:          a.ID,
		PatientID:   a.PatientID,
		PatientName: a.PatientName,
		DoctorID:    a.DoctorID,
		DoctorName:  a.DoctorName,
		Date:        a.Date.Format(model.DateLayout),
		Time:        a.Time,
		Fee:         a.Fee,
		Location:    a.Location,
		Serial:      a.Serial,
		Status:      a.Status,
		Notified:    a.Notified,
		Paid:        a.Paid,
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if a.CancelledAt != nil {
		resp.CancelledAt = a.CancelledAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	if req.DoctorID == "" || strings.TrimSpace(req.Date) == "" {
		http.Error(w, "doctor_id and date required", http.StatusBadRequest)
		return
	}
	date, err := time.Parse(model.DateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	now := h.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if date.Before(today) {
		http.Error(w, "date must not be in the past", http.StatusBadRequest)
		return
	}

	userID, _ := identity(r)
	patientID, err := h.patients.PatientIDForUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "patient profile not found", http.StatusForbidden)
			return
		}
		h.logger.Error("patient lookup failed", "err", err)
		http.Error(w, "failed to lookup patient", http.StatusInternalServerError)
		return
	}

	appt, err := h.appts.Book(r.Context(), patientID, req.DoctorID, date)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			http.Error(w, "doctor not found", http.StatusNotFound)
		case errors.Is(err, storage.ErrDoctorInactive):
			http.Error(w, "doctor is not accepting appointments", http.StatusConflict)
		default:
			h.logger.Error("booking failed", "err", err, "doctor_id", req.DoctorID)
			http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		}
		return
	}
	metrics.AppointmentsBooked.Inc()
	h.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"doctor_id", appt.DoctorID,
		"date", req.Date,
		"serial", appt.Serial,
	)

	httpx.WriteJSON(w, http.StatusCreated, createAppointmentResponse{
		AppointmentID: appt.ID,
		Serial:        appt.Serial,
		Date:          appt.Date.Format(model.DateLayout),
		Time:          appt.Time,
		Fee:           appt.Fee,
		Location:      appt.Location,
	})
}

// List scopes results by role: patients and doctors see their own appointments, admins see all.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}
	filter := model.ListFilter{Limit: limit}

	userID, role := identity(r)
	switch role {
	case auth.RolePatient:
		patientID, err := h.patients.PatientIDForUser(r.Context(), userID)
		if err != nil {
			h.writeScopeError(w, err)
			return
		}
		filter.PatientID = patientID
	case auth.RoleDoctor:
		d, err := h.doctors.GetByUserID(r.Context(), userID)
		if err != nil {
			h.writeScopeError(w, err)
			return
		}
		filter.DoctorID = d.ID
	case auth.RoleAdmin:
	default:
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	appts, err := h.appts.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list appointments failed", "err", err)
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	items := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentResponse(a))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	appt, err := h.appts.Get(r.Context(), id)
	if err != nil {
		writeAppointmentError(w, h.logger, err)
		return
	}
	if !canActOnAppointment(r, appt) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	appt, changed, err := h.appts.Cancel(r.Context(), id, strings.TrimSpace(req.Reason))
	if err != nil {
		writeAppointmentError(w, h.logger, err)
		return
	}
	if changed {
		metrics.AppointmentsCancelled.Inc()
		h.logger.Info("appointment cancelled", "appointment_id", appt.ID, "by", r.Header.Get(HeaderUserID))
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

// canActOnAppointment allows the owning patient and admins.
func canActOnAppointment(r *http.Request, appt model.Appointment) bool {
	userID, role := identity(r)
	switch role {
	case auth.RoleAdmin:
		return true
	case auth.RolePatient:
		return userID != "" && userID == appt.PatientUserID
	default:
		return false
	}
}

func (h *AppointmentHandler) writeScopeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "profile not found", http.StatusForbidden)
		return
	}
	h.logger.Error("profile lookup failed", "err", err)
	http.Error(w, "failed to lookup profile", http.StatusInternalServerError)
}

func writeAppointmentError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return
	}
	logger.Error("appointment lookup failed", "err", err)
	http.Error(w, "failed to load appointment", http.StatusInternalServerError)
}
