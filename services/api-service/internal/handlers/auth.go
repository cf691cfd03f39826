package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/md-rashed-zaman/medserial/libs/auth"
	"github.com/md-rashed-zaman/medserial/libs/httpx"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/model"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

type UserStore interface {
	CreatePatient(ctx context.Context, user model.User) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
}

type AuthHandler struct {
	users  UserStore
	secret string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewAuthHandler(users UserStore, secret string, ttl time.Duration, logger *slog.Logger) *AuthHandler {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AuthHandler{users: users, secret: secret, ttl: ttl, logger: logger, now: time.Now}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	UserID      string `json:"user_id,omitempty"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type meResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if msg := validateAccount(req.Name, req.Email, req.Password); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}
	user, err := h.users.CreatePatient(r.Context(), model.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		h.logger.Error("register failed", "err", err)
		http.Error(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	resp, err := h.issue(user)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	resp.UserID = user.ID
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		http.Error(w, "email and password required", http.StatusBadRequest)
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.Error("login lookup failed", "err", err)
		http.Error(w, "failed to lookup user", http.StatusInternalServerError)
		return
	}
	// Users mirrored from the auth provider have no local password.
	if user.PasswordHash == "" || verifyPassword(user.PasswordHash, req.Password) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	resp, err := h.issue(user)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity(r)
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to lookup user", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, meResponse{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
		Email:  user.Email,
		Phone:  user.Phone,
	})
}

func (h *AuthHandler) issue(user model.User) (tokenResponse, error) {
	token, err := auth.SignHS256(auth.NewClaims(user.ID, user.Role, h.ttl, h.now()), h.secret)
	if err != nil {
		return tokenResponse{}, err
	}
	return tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.ttl / time.Second),
	}, nil
}

// validateAccount returns a client-facing message, or "" when the fields are acceptable.
func validateAccount(name, email, password string) string {
	if name == "" || email == "" || password == "" {
		return "name, email and password required"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "invalid email"
	}
	if len(password) < minPasswordLen {
		return "password must be at least 6 characters"
	}
	return ""
}

func hashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
