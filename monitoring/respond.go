package monitoring

import (
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/time/rate"

	"serialbridge/session"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps session errors onto HTTP status codes
func statusFor(err error) int {
	var (
		cfgErr  *session.ConfigError
		connErr *session.ConnectionError
		sendErr *session.SendError
	)
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotConnected),
		errors.Is(err, session.ErrConnectInProgress),
		errors.Is(err, session.ErrDisconnectWhileConnecting):
		return http.StatusConflict
	case errors.As(err, &connErr), errors.As(err, &sendErr):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrManagerClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RateLimit rejects requests with 429 once limiter runs dry. There is one
// line behind the API, so the budget is shared by all callers.
func RateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
