// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"yamdb/internal/domain"
	"yamdb/internal/policy"
	"yamdb/internal/service"
)

// RateLimiter decides whether a client key is within quota.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// HTTPHandler обслуживает REST API поверх доменных сервисов.
type HTTPHandler struct {
	identity *service.IdentityService
	tokens   *service.TokenService
	catalog  *service.CatalogService
	reviews  *service.ReviewEngine
	limiter  RateLimiter // nil disables rate limiting
	logger   *slog.Logger
}

func NewHTTPHandler(identity *service.IdentityService, tokens *service.TokenService, catalog *service.CatalogService, reviews *service.ReviewEngine, limiter RateLimiter, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{
		identity: identity,
		tokens:   tokens,
		catalog:  catalog,
		reviews:  reviews,
		limiter:  limiter,
		logger:   logger,
	}
}

// --- Вспомогательные функции ---

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if data == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to encode JSON response", slog.String("error", err.Error()), slog.String("path", r.URL.Path))
	}
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.respondJSON(w, r, status, map[string]string{"error": message})
}

type validationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// respondDomainError maps the domain error taxonomy onto HTTP statuses.
func (h *HTTPHandler) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		h.respondJSON(w, r, http.StatusBadRequest, validationResponse{Error: domain.ErrValidation.Error(), Fields: verr.Fields})
	case errors.Is(err, domain.ErrValidation):
		h.respondJSON(w, r, http.StatusBadRequest, validationResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidCredentials):
		h.respondError(w, r, http.StatusBadRequest, "Invalid confirmation code")
	case errors.Is(err, domain.ErrRoleEscalation):
		h.respondError(w, r, http.StatusBadRequest, "You cannot change your own role")
	case errors.Is(err, domain.ErrConflict):
		h.respondError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.respondError(w, r, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrPermissionDenied):
		if !actorFrom(ctx).Authenticated {
			h.respondError(w, r, http.StatusUnauthorized, "Authentication credentials were not provided")
			return
		}
		h.respondError(w, r, http.StatusForbidden, "You do not have permission to perform this action")
	default:
		h.logger.ErrorContext(ctx, "Unhandled error", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads the request body into dst. An empty body leaves dst untouched.
func (h *HTTPHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

// pathID parses a numeric path variable. Route patterns only admit digits, so
// a failure here means an out-of-range id, which cannot exist.
func (h *HTTPHandler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		h.respondError(w, r, http.StatusNotFound, "Not found")
		return 0, false
	}
	return id, true
}

// page reads limit/offset query parameters.
func (h *HTTPHandler) page(w http.ResponseWriter, r *http.Request) (domain.Page, bool) {
	var p domain.Page
	q := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &p.Limit, "offset": &p.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.respondDomainError(w, r, domain.NewValidationError(name, "must be a non-negative integer"))
			return p, false
		}
		*dst = n
	}
	return p.Normalize(), true
}

type listResponse struct {
	Count   int `json:"count"`
	Results any `json:"results"`
}

func actorFrom(ctx context.Context) policy.Actor {
	if a, ok := ctx.Value(ActorKey).(policy.Actor); ok {
		return a
	}
	return policy.Anonymous
}
