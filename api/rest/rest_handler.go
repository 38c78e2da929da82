package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/zlnvch/flashlist/models"
	"github.com/zlnvch/flashlist/service"
)

// SessionHeader carries the client session id of a mutation so change
// events can be attributed to it.
const SessionHeader = "X-Client-Session"

// Bodies above this are rejected before decoding
const maxBodyBytes = 64 * 1024

type Handler struct {
	Service  *service.Service
	limiters *userLimiters
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Service:  svc,
		limiters: newUserLimiters(requestsPerSecond, requestBurst),
	}
}

func sendResponse[T any](w http.ResponseWriter, status int, message string, data T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := models.Envelope[T]{Code: status, Message: message, Data: data}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func sendError(w http.ResponseWriter, status int, code models.ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := models.Envelope[any]{Code: status, Message: message, Error: code}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

// sendServiceError maps a service error onto its status and error code.
// Unknown errors are logged and reported without their text.
func sendServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidParams):
		sendError(w, http.StatusBadRequest, models.ErrCodeInvalidParams, err.Error())
	case errors.Is(err, service.ErrNotFound):
		sendError(w, http.StatusNotFound, models.ErrCodeItemNotFound, "item not found")
	case errors.Is(err, service.ErrUserNotFound):
		sendError(w, http.StatusNotFound, models.ErrCodeUserNotFound, "user not found")
	case errors.Is(err, service.ErrDuplicateUsername):
		sendError(w, http.StatusConflict, models.ErrCodeDuplicateUsername, "username already taken")
	case errors.Is(err, service.ErrDuplicateEmail):
		sendError(w, http.StatusConflict, models.ErrCodeDuplicateEmail, "email already registered")
	case errors.Is(err, service.ErrConflict):
		sendError(w, http.StatusConflict, models.ErrCodeConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		sendError(w, http.StatusUnauthorized, models.ErrCodeInvalidCredentials, "invalid email or password")
	case errors.Is(err, service.ErrUnauthorized):
		sendError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "invalid or expired token")
	default:
		log.Printf("%s failed: %v", op, err)
		sendError(w, http.StatusInternalServerError, models.ErrCodeInternal, "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		sendError(w, http.StatusBadRequest, models.ErrCodeInvalidParams, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) getTokenFromAuthHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}

	return strings.TrimSpace(authHeader[len(prefix):])
}

// authenticate resolves the bearer token and applies the per-user rate
// limit. On failure the response has already been written.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (models.User, service.TokenClaims, bool) {
	user, claims, err := h.Service.AuthenticateToken(r.Context(), h.getTokenFromAuthHeader(r))
	if err != nil {
		sendServiceError(w, "Authenticate", err)
		return models.User{}, service.TokenClaims{}, false
	}

	if !h.limiters.allow(user.Id) {
		sendError(w, http.StatusTooManyRequests, models.ErrCodeRateLimited, "too many requests")
		return models.User{}, service.TokenClaims{}, false
	}

	return user, claims, true
}
