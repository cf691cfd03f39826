package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/medserial/libs/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := hashPassword("pass123")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NoError(t, verifyPassword(hash, "pass123"))
	assert.Error(t, verifyPassword(hash, "wrong-pass"))
}

func TestRegisterLoginMe(t *testing.T) {
	users := newFakeUsers()
	h := NewAuthHandler(users, testSecret, 30*time.Minute, discardLogger())

	body := `{"name":"Rahim","email":"rahim@example.com","phone":"01700000000","password":"secret1"}`
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var registered tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))
	assert.Equal(t, "Bearer", registered.TokenType)
	assert.Equal(t, int64(1800), registered.ExpiresIn)
	claims, err := auth.ParseAndVerifyHS256(registered.AccessToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, claims.Sub)
	assert.Equal(t, auth.RolePatient, claims.Role)

	rec = httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"RAHIM@example.com","password":"secret1"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"rahim@example.com","password":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.Me(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil), registered.UserID, auth.RolePatient))
	require.Equal(t, http.StatusOK, rec.Code)
	var me meResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "Rahim", me.Name)
	assert.Equal(t, auth.RolePatient, me.Role)
}

func TestRegisterValidation(t *testing.T) {
	h := NewAuthHandler(newFakeUsers(), testSecret, time.Hour, discardLogger())
	cases := map[string]string{
		"short password": `{"name":"A","email":"a@example.com","password":"12345"}`,
		"bad email":      `{"name":"A","email":"not-an-email","password":"123456"}`,
		"missing name":   `{"email":"a@example.com","password":"123456"}`,
		"not json":       `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Register(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestLoginRejectsMirroredUserWithoutPassword(t *testing.T) {
	users := newFakeUsers()
	users.byID["u-ext"] = modelUser("u-ext", "ext@example.com", "")
	h := NewAuthHandler(users, testSecret, time.Hour, discardLogger())

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"ext@example.com","password":"anything"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
