package http

import (
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// RequestLogger assigns a request id, builds the request scoped logger and writes
// one access log entry per request. It also records the HTTP metrics, labelled by
// the matched route pattern rather than the raw path.
func RequestLogger(base *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, requestID)

			reqLog := logger.WithTrace(r.Context(), base.With(zap.String("request_id", requestID)))
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context(), reqLog)))

			route := routePattern(r)
			elapsed := time.Since(start)
			m.ObserveHTTP(route, r.Method, rec.status, elapsed)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", elapsed),
			}
			switch {
			case rec.status >= http.StatusInternalServerError:
				reqLog.Error("http_request", fields...)
			case rec.status >= http.StatusBadRequest:
				reqLog.Warn("http_request", fields...)
			default:
				reqLog.Info("http_request", fields...)
			}
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
