package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"recruithub/internal/common/metrics"
	"recruithub/internal/models"
)

type contextKey string

const principalKey contextKey = "principal"

// principalFrom returns the principal resolved for the request, or nil for
// anonymous callers.
func principalFrom(r *http.Request) *models.Principal {
	p, _ := r.Context().Value(principalKey).(*models.Principal)
	return p
}

// sessionToken extracts the caller's token from the Authorization header or
// the session cookie.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
	}
	if c, err := r.Cookie("session"); err == nil {
		return c.Value
	}
	return ""
}

// principalMiddleware resolves the session token into a principal and stores
// it on the request context. Resolution failures surface as 403 only on
// role-gated handlers; anonymous requests pass through.
func (s *Server) principalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token != "" {
			principal, err := s.sessions.Resolve(r.Context(), token)
			if err != nil {
				s.logger.Warn("session resolution failed", map[string]interface{}{
					"error": err.Error(),
				})
			} else if principal != nil {
				r = r.WithContext(context.WithValue(r.Context(), principalKey, principal))
			}
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware records request counts and durations per route template.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
