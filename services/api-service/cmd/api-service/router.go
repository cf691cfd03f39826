package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/medserial/libs/auth"
	"github.com/md-rashed-zaman/medserial/libs/httpx"
	"github.com/md-rashed-zaman/medserial/libs/metrics"
	"github.com/md-rashed-zaman/medserial/libs/runtime"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/handlers"
)

type routeDeps struct {
	JWTSecret      string
	RequestTimeout time.Duration
	ReadyChecks    []runtime.ReadyCheck

	Auth         *handlers.AuthHandler
	Doctors      *handlers.DoctorHandler
	Appointments *handlers.AppointmentHandler
	Serial       *handlers.SerialHandler
	Payments     *handlers.PaymentHandler
}

func newRouter(d routeDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)

	r.Get("/healthz", runtime.HealthHandler)
	r.Method(http.MethodGet, "/readyz", runtime.ReadyHandler(d.ReadyChecks...))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	authenticated := handlers.RequireAuth(d.JWTSecret)
	role := handlers.RequireRole

	r.Route("/api/v1", func(r chi.Router) {
		// The live serial stream is a long-lived hijacked connection; the request timeout
		// would cut it off, so it is mounted outside the timeout group.
		r.Get("/doctors/{id}/serial/stream", d.Serial.Stream)

		r.Group(func(r chi.Router) {
			if d.RequestTimeout > 0 {
				r.Use(httpx.WithTimeout(d.RequestTimeout))
			}

			r.Post("/auth/register", d.Auth.Register)
			r.Post("/auth/login", d.Auth.Login)
			r.With(authenticated).Get("/auth/me", d.Auth.Me)

			r.Get("/doctors", d.Doctors.List)
			r.Get("/doctors/{id}", d.Doctors.Get)
			r.Get("/doctors/{id}/serial", d.Serial.Get)
			staff := r.With(authenticated, role(auth.RoleDoctor, auth.RoleAdmin))
			staff.Post("/doctors/{id}/serial/next", d.Serial.Next)
			staff.Post("/doctors/{id}/serial/prev", d.Serial.Prev)
			staff.Post("/doctors/{id}/serial/reset", d.Serial.Reset)

			r.Post("/payments/webhooks/stripe", d.Payments.StripeWebhook)

			r.Group(func(r chi.Router) {
				r.Use(authenticated)
				r.With(role(auth.RolePatient)).Post("/appointments", d.Appointments.Create)
				r.Get("/appointments", d.Appointments.List)
				r.With(role(auth.RolePatient, auth.RoleAdmin)).Post("/appointments/{id}/cancel", d.Appointments.Cancel)
				r.With(role(auth.RolePatient)).Post("/appointments/{id}/checkout", d.Payments.Checkout)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(authenticated, role(auth.RoleAdmin))
				r.Get("/doctors", d.Doctors.ListAll)
				r.Post("/doctors", d.Doctors.Create)
				r.Put("/doctors/{id}", d.Doctors.Update)
				r.Delete("/doctors/{id}", d.Doctors.Deactivate)
			})
		})
	})
	return r
}
