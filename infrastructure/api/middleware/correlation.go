package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/helixml/marketbasket/internal/log"
)

// CorrelationHeader carries a caller-supplied correlation ID.
const CorrelationHeader = "X-Correlation-ID"

// Correlation stores the request and correlation IDs in the request context
// so that every log line written while serving the request carries them.
// The correlation ID defaults to the request ID and is echoed back.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := middleware.GetReqID(ctx)

		correlationID := r.Header.Get(CorrelationHeader)
		if correlationID == "" {
			correlationID = requestID
		}

		ctx = log.WithRequestID(ctx, requestID)
		ctx = log.WithCorrelationID(ctx, correlationID)
		if correlationID != "" {
			w.Header().Set(CorrelationHeader, correlationID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
