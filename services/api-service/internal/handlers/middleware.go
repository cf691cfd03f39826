package handlers

import (
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/medserial/libs/auth"
	"github.com/md-rashed-zaman/medserial/libs/httpx"
)

const (
	HeaderUserID = "X-User-Id"
	HeaderRole   = "X-Role"
)

// RequireAuth verifies the bearer token and forwards its identity as X-User-Id/X-Role.
// Client-supplied identity headers are always discarded.
func RequireAuth(secret string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del(HeaderUserID)
			r.Header.Del(HeaderRole)

			token, ok := bearerToken(r)
			if !ok {
				http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := auth.ParseAndVerifyHS256(token, secret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			r.Header.Set(HeaderUserID, claims.Sub)
			r.Header.Set(HeaderRole, claims.Role)
			next.ServeHTTP(w, r)
		})
	}
}

func RequireRole(roles ...string) httpx.Middleware {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[r.Header.Get(HeaderRole)]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func identity(r *http.Request) (userID, role string) {
	return r.Header.Get(HeaderUserID), r.Header.Get(HeaderRole)
}
