package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/service"
	"go.uber.org/zap"
)

const (
	maxRequestBodySize    = 1 << 20 // 1MB
	defaultHandlerTimeout = 10 * time.Second
)

func orDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultHandlerTimeout
	}
	return timeout
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("response_encode_failed", zap.Error(err))
	}
}

// respondRaw writes an already encoded JSON payload.
func respondRaw(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// classify maps a service error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// handleError writes err as an ErrorResponse. Server side failures are logged and
// their text is not exposed.
func handleError(w http.ResponseWriter, r *http.Request, fallback *zap.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context(), fallback).Error("request_failed", zap.String("code", code), zap.Error(err))
		respondError(w, status, code, http.StatusText(status))
		return
	}
	respondError(w, status, code, err.Error())
}

// denyAuth renders failures from the auth middleware.
func denyAuth(w http.ResponseWriter, _ *http.Request, status int, err error) {
	code := "unauthorized"
	if status == http.StatusForbidden {
		code = "forbidden"
	}
	respondError(w, status, code, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

// allowSelf reports whether the caller may act on behalf of userID. Admins may act
// for anyone. It writes the error response when access is refused.
func allowSelf(w http.ResponseWriter, r *http.Request, userID string) bool {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", auth.ErrMissingToken.Error())
		return false
	}
	if id.Role == domain.RoleAdmin || id.Email == userID {
		return true
	}
	respondError(w, http.StatusForbidden, "forbidden", "cannot act on behalf of another user")
	return false
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}
