// Package httphandler is the JSON HTTP driving adapter.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/gamehub/internal/application"
	"github.com/ericfisherdev/gamehub/internal/domain/port/driven"
	"github.com/ericfisherdev/gamehub/internal/metrics"
)

// maxBodyBytes caps request bodies; every endpoint takes a small JSON object.
const maxBodyBytes = 64 << 10

// Handler is the HTTP driving adapter that serves the JSON API.
type Handler struct {
	sessions   *application.SessionService
	views      *application.ViewService
	trustProxy bool
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. When
// trustProxy is set the client address is taken from X-Forwarded-For.
func NewHandler(
	sessions *application.SessionService,
	views *application.ViewService,
	trustProxy bool,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		sessions:   sessions,
		views:      views,
		trustProxy: trustProxy,
		logger:     logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with CORS, logging, metrics and recovery middleware.
func NewServeMux(h *Handler, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth", h.Authenticate)
	mux.HandleFunc("POST /api/session/validate", h.ValidateSession)
	mux.HandleFunc("POST /api/view", h.View)
	mux.HandleFunc("GET /api/health", h.Health)

	// Legacy paths used by older front ends.
	mux.HandleFunc("POST /api/steam/authenticate", h.Authenticate)
	mux.HandleFunc("POST /api/steam/validate", h.ValidateSession)
	mux.HandleFunc("POST /api/steam/user-data", h.View)

	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("/", h.NotFound)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = metricsMiddleware(m, wrapped)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = corsMiddleware(wrapped)

	return wrapped
}

// Authenticate verifies a credential pair and returns a session token.
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.accountID()) == "" || strings.TrimSpace(req.APIKey) == "" {
		writeError(w, http.StatusBadRequest, "account_id and api_key are required")
		return
	}

	res, err := h.sessions.Authenticate(r.Context(), application.AuthRequest{
		AccountID: req.accountID(),
		APIKey:    req.APIKey,
		ClientIP:  h.clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Token:        res.Token,
		ExpiresAt:    res.ExpiresAt.UTC().Format(time.RFC3339),
		SessionToken: res.Token,
		Success:      true,
	})
}

// ValidateSession reports whether a token is currently usable. Session
// errors are reported as valid=false, not as failures.
func (h *Handler) ValidateSession(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	token := strings.TrimSpace(req.token())
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	_, err := h.sessions.Validate(r.Context(), token, h.clientIP(r))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ValidateResponse{Valid: true})
	case isSessionError(err):
		writeJSON(w, http.StatusOK, ValidateResponse{Valid: false})
	default:
		h.writeServiceError(w, r, err)
	}
}

// View returns the assembled view for the session's account.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	token := strings.TrimSpace(req.token())
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	view, err := h.views.FetchUserView(r.Context(), application.ViewRequest{
		Token:     token,
		ClientIP:  h.clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// NotFound answers unknown paths with a JSON error.
func (h *Handler) NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// writeServiceError maps application errors to status codes. Upstream
// failures expose only their stable reason.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *application.ValidationError
		rateErr       *application.RateLimitedError
		credErr       *application.InvalidCredentialsError
	)

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rateErr.RetryAfter.Seconds()))))
		writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
	case errors.As(err, &credErr):
		writeError(w, http.StatusUnauthorized, "invalid credentials: "+application.UpstreamReason(err))
	case errors.Is(err, application.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, "session expired")
	case isSessionError(err):
		writeError(w, http.StatusUnauthorized, "invalid or expired session")
	case errors.Is(err, application.ErrProfileUnavailable):
		writeError(w, http.StatusBadGateway, "upstream unavailable: "+application.UpstreamReason(err))
	case errors.Is(err, driven.ErrStoreCorruption):
		h.logger.Error("credential store corrupted",
			"path", r.URL.Path, "request_id", requestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		h.logger.Error("request failed",
			"path", r.URL.Path, "request_id", requestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func isSessionError(err error) bool {
	return errors.Is(err, application.ErrSessionNotFound) ||
		errors.Is(err, application.ErrSessionExpired) ||
		errors.Is(err, application.ErrSessionRevoked) ||
		errors.Is(err, application.ErrSessionIPMismatch) ||
		errors.Is(err, application.ErrSessionCredentialsMissing)
}

// decodeBody decodes a size-limited JSON body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// clientIP returns the request's source address without port. With
// trustProxy, the first X-Forwarded-For hop wins.
func (h *Handler) clientIP(r *http.Request) string {
	if h.trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
