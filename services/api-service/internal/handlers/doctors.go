package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/medserial/libs/httpx"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/model"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/storage"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/visiting"
)

type DoctorStore interface {
	Create(ctx context.Context, user model.User, d model.Doctor) (model.Doctor, error)
	Update(ctx context.Context, d model.Doctor) (model.Doctor, error)
	Deactivate(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (model.Doctor, error)
	GetByUserID(ctx context.Context, userID string) (model.Doctor, error)
	List(ctx context.Context, activeOnly bool) ([]model.Doctor, error)
}

type DoctorHandler struct {
	doctors DoctorStore
	logger  *slog.Logger
}

func NewDoctorHandler(doctors DoctorStore, logger *slog.Logger) *DoctorHandler {
	return &DoctorHandler{doctors: doctors, logger: logger}
}

type doctorRequest struct {
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	Password      string   `json:"password"`
	Specialty     string   `json:"specialty"`
	Location      string   `json:"location"`
	Fee           *float64 `json:"fee"`
	VisitingHours string   `json:"visiting_hours"`
}

func (req *doctorRequest) normalize() {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Specialty = strings.TrimSpace(req.Specialty)
	req.Location = strings.TrimSpace(req.Location)
	req.VisitingHours = strings.TrimSpace(req.VisitingHours)
}

// validateRoster checks the fields shared by create and update.
func (req *doctorRequest) validateRoster() string {
	if req.Name == "" {
		return "name required"
	}
	if req.Location == "" {
		return "location required"
	}
	if req.Fee == nil || *req.Fee < 0 {
		return "fee must be a non-negative number"
	}
	if err := visiting.Validate(req.VisitingHours); err != nil {
		return err.Error()
	}
	return ""
}

func (req *doctorRequest) doctor(id string) model.Doctor {
	return model.Doctor{
		ID:            id,
		Name:          req.Name,
		Phone:         req.Phone,
		Specialty:     req.Specialty,
		Location:      req.Location,
		Fee:           *req.Fee,
		VisitingHours: req.VisitingHours,
	}
}

func (h *DoctorHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

// ListAll includes deactivated doctors and is mounted under the admin routes.
func (h *DoctorHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *DoctorHandler) list(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	doctors, err := h.doctors.List(r.Context(), activeOnly)
	if err != nil {
		h.logger.Error("list doctors failed", "err", err)
		http.Error(w, "failed to list doctors", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": doctors})
}

func (h *DoctorHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.doctors.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, d)
}

func (h *DoctorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req doctorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.normalize()
	if msg := validateAccount(req.Name, req.Email, req.Password); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	if msg := req.validateRoster(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}
	d, err := h.doctors.Create(r.Context(), model.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
	}, req.doctor(""))
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		h.logger.Error("create doctor failed", "err", err)
		http.Error(w, "failed to create doctor", http.StatusInternalServerError)
		return
	}
	h.logger.Info("doctor created", "doctor_id", d.ID, "admin_id", r.Header.Get(HeaderUserID))
	httpx.WriteJSON(w, http.StatusCreated, d)
}

func (h *DoctorHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req doctorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.normalize()
	if msg := req.validateRoster(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	d, err := h.doctors.Update(r.Context(), req.doctor(chi.URLParam(r, "id")))
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, d)
}

func (h *DoctorHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.doctors.Deactivate(r.Context(), id); err != nil {
		h.writeLookupError(w, err)
		return
	}
	h.logger.Info("doctor deactivated", "doctor_id", id, "admin_id", r.Header.Get(HeaderUserID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *DoctorHandler) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "doctor not found", http.StatusNotFound)
		return
	}
	h.logger.Error("doctor lookup failed", "err", err)
	http.Error(w, "failed to load doctor", http.StatusInternalServerError)
}
