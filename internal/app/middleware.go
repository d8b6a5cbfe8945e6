package app

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/platform/httpx"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/shared"
)

// SecureHeaders applies baseline security headers to every response.
func SecureHeaders() func(http.Handler) http.Handler {
	return secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "no-referrer",
	}).Handler
}

// RateLimiter caps requests per client IP per minute.
func RateLimiter(limit int) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = 300
	}
	return httprate.LimitByIP(limit, time.Minute)
}

// RequestLogger emits one structured log line per completed request.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// TenantContext resolves the tenant and actor from trusted gateway headers
// and stores them in the request context. Requests without a tenant are
// rejected before they reach any handler.
func TenantContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := strconv.ParseInt(r.Header.Get("X-Tenant-ID"), 10, 64)
		if err != nil || tenantID <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Missing tenant", "the X-Tenant-ID header is required")
			return
		}
		ctx := shared.ContextWithTenant(r.Context(), tenantID)
		if actorID, err := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64); err == nil && actorID > 0 {
			ctx = shared.ContextWithActor(ctx, actorID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
