package main

import (
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finwire/finwire/internal/apikey"
	"github.com/finwire/finwire/internal/ratelimit"
)

// requestID tags each request with a correlation ID, echoed in the response
// and in log lines.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// logging logs each request with method, path, status, and duration.
func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		log.Printf("%s %s %d %s req=%s", r.Method, r.URL.Path, rw.status,
			time.Since(start).Round(time.Millisecond), rw.Header().Get("X-Request-ID"))
	})
}

// recovery catches panics and returns a 500.
func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("finwire-web: panic: %v", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// rateLimit enforces a per-client token bucket. Clients are keyed by the
// API key prefix when one is presented, falling back to the remote IP, so a
// key keeps its own budget across NAT.
func rateLimit(limiter *ratelimit.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := tokenPrefix(bearerToken(r))
		if client == "" {
			client = clientIP(r)
		}
		if !limiter.Allow(client) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withScope authenticates the request's API key and checks the scope before
// calling the handler. Verification failures all map to 401/403 JSON errors.
func (h *handlers) withScope(scope string, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing api key")
			return
		}

		_, err := h.engine.Keys().Verify(token, clientIP(r), scope)
		switch {
		case err == nil:
		case errors.Is(err, apikey.ErrForbidden):
			writeError(w, http.StatusForbidden, "insufficient scope")
			return
		case errors.Is(err, apikey.ErrIPBlocked):
			writeError(w, http.StatusForbidden, "ip not allowed")
			return
		default:
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}

		fn(w, r)
	})
}

// withAdminSession verifies a JWT admin session issued by `finwire keys
// admin-token`. Key management never accepts plain API keys.
func (h *handlers) withAdminSession(fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.jwtSecret) == 0 {
			writeError(w, http.StatusServiceUnavailable, "admin sessions are not configured")
			return
		}

		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing admin session")
			return
		}
		if _, err := apikey.VerifyAdminToken(h.jwtSecret, token); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid admin session")
			return
		}

		fn(w, r)
	})
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// tokenPrefix returns the display prefix (fw_xxxxxxxx) of an API key token,
// or "" for tokens in any other shape.
func tokenPrefix(token string) string {
	if !strings.HasPrefix(token, "fw_") {
		return ""
	}
	parts := strings.SplitN(token, "_", 3)
	if len(parts) != 3 {
		return ""
	}
	return parts[0] + "_" + parts[1]
}

// clientIP returns the request's remote IP without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
