// Package server assembles the HTTP surface of the certificate service.
package server

import (
	"context"
	"net/http"
	"time"

	analytics_api "github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/analytics/api"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/attendance/attendance_api"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/certificate/certificate_api"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/metrics"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/registration/registration_api"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	Registration *registration_api.Handler
	Attendance   *attendance_api.Handler
	Certificate  *certificate_api.Handler
	Analytics    *analytics_api.Handler
}

// HealthCheck reports component status; a non-nil error marks the service unhealthy.
type HealthCheck func(ctx context.Context) (map[string]string, error)

type Options struct {
	Handlers  Handlers
	AdminAuth func(http.Handler) http.Handler
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
	Health    HealthCheck
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer(opts.Logger))
	r.Use(RequestLogger(opts.Logger, opts.Metrics))

	r.Get("/health", healthHandler(opts.Health))
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	// --- Public Routes ---
	h := opts.Handlers
	h.Registration.RegisterPublicRoutes(r)
	h.Attendance.RegisterPublicRoutes(r)
	h.Certificate.RegisterPublicRoutes(r)
	opts.Logger.Info("ROUTER", "Public routes registered")

	// --- Admin Routes ---
	r.Group(func(r chi.Router) {
		r.Use(opts.AdminAuth)
		h.Registration.RegisterAdminRoutes(r)
		h.Attendance.RegisterAdminRoutes(r)
		h.Certificate.RegisterAdminRoutes(r)
		h.Analytics.RegisterRoutes(r)
	})
	opts.Logger.Info("ROUTER", "Admin routes registered")

	return r
}

func healthHandler(check HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]string{}
		status := http.StatusOK
		state := "ok"

		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			var err error
			components, err = check(ctx)
			if components == nil {
				components = map[string]string{}
			}
			if err != nil {
				status = http.StatusServiceUnavailable
				state = "degraded"
				components["error"] = err.Error()
			}
		}

		utils.WriteJSON(w, status, map[string]interface{}{
			"status":     state,
			"components": components,
			"timestamp":  time.Now().UTC(),
		})
	}
}
