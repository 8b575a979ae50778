package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	clientIPKey  contextKey = "client_ip"
)

// RequestIDFromContext returns the id assigned by LogRequests.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ClientIPFromContext returns the address resolved by TrustedProxy.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// LoggingMiddleware provides request logging with security context
type LoggingMiddleware struct {
	logger zerolog.Logger
}

// NewLoggingMiddleware creates a new logging middleware
func NewLoggingMiddleware(logger zerolog.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{
		logger: logger.With().Str("component", "http").Logger(),
	}
}

// LogRequests assigns a request id and logs every request once it completes.
func (lm *LoggingMiddleware) LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID))

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		clientIP := ClientIPFromContext(r.Context())
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		event := lm.logger.Info()
		switch {
		case wrapped.statusCode >= http.StatusInternalServerError:
			event = lm.logger.Error()
		case wrapped.statusCode >= http.StatusBadRequest:
			event = lm.logger.Warn()
		}
		event.Str("request_id", requestID).
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("proto", r.Proto).
			Int("status", wrapped.statusCode).
			Int("bytes", wrapped.bytes).
			Dur("duration", time.Since(start)).
			Str("client_ip", clientIP).
			Str("user_agent", r.UserAgent()).
			Msg("request")

		// Log security events
		if wrapped.statusCode == http.StatusTooManyRequests {
			lm.logger.Warn().Str("client_ip", clientIP).Msg("SECURITY: rate limit exceeded")
		}
		if wrapped.statusCode == http.StatusServiceUnavailable || wrapped.statusCode == http.StatusRequestTimeout {
			lm.logger.Warn().Str("client_ip", clientIP).Int("status", wrapped.statusCode).Msg("SECURITY: request timeout")
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	bytes       int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}
