package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/allotter/internal/app"
	"github.com/shrimpsizemoose/allotter/internal/metrics"
)

// NewRouter mounts the whole HTTP surface.
func NewRouter(service *app.Service) http.Handler {
	allotments := NewAllotmentHandler(service)
	auth := NewAuthHandler(service)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(measure)

	r.Get("/healthz", allotments.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/google", auth.HandleGoogleLogin)

		r.Group(func(r chi.Router) {
			r.Use(RequireTeacher(service.Auth))

			r.Post("/auth/logout", auth.HandleLogout)
			r.Get("/auth/me", auth.HandleMe)

			r.Get("/allotments", allotments.HandleList)
			r.Post("/sync", allotments.HandleSync)
			r.Post("/update-allotment", allotments.HandleUpdate)
			r.Get("/debug/sheet", allotments.HandleDebugSheet)
		})
	})

	return r
}

func measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.APIRequestDuration.WithLabelValues(
			path,
			r.Method,
			strconv.Itoa(status),
		).Observe(time.Since(start).Seconds())
	})
}

type ctxKey struct{}

// RequireTeacher resolves the teacher email or answers 401.
func RequireTeacher(auth *app.Auth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, err := auth.Authenticate(r)
			if err != nil {
				logger.Debug.Printf("Auth failed: %v", err)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, email)))
		})
	}
}

func teacherEmail(r *http.Request) string {
	email, _ := r.Context().Value(ctxKey{}).(string)
	return email
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debug.Printf("Error encoding response: %v", err)
	}
}
