// internal/api/middleware.go
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"yamdb/internal/domain"
	"yamdb/internal/logging"
	"yamdb/internal/policy"
)

// ContextKey используется для ключей в контексте запроса.
type ContextKey string

// ActorKey ключ для хранения policy.Actor в контексте.
const ActorKey ContextKey = "actor"

const requestIDHeader = "X-Request-Id"

// RequestIDMiddleware propagates an incoming request id or generates one.
func (h *HTTPHandler) RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := logging.WithRequestID(r.Context(), requestID)
		h.logger.DebugContext(ctx, "HTTP request received", slog.String("method", r.Method), slog.String("path", r.URL.Path))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthMiddleware резолвит Bearer токен в policy.Actor. Запрос без заголовка
// продолжается анонимно; неверный токен отклоняется с 401.
func (h *HTTPHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, ActorKey, policy.Anonymous)))
			return
		}

		// Ожидаем токен в формате "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			h.logger.WarnContext(ctx, "Invalid Authorization header format")
			h.respondError(w, r, http.StatusUnauthorized, "Invalid Authorization header format")
			return
		}

		user, err := h.tokens.Authenticate(ctx, parts[1])
		if err != nil {
			if errors.Is(err, domain.ErrInvalidCredentials) {
				h.respondError(w, r, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			h.respondDomainError(w, r, err)
			return
		}

		actor := policy.ActorFor(user)
		ctx = context.WithValue(ctx, ActorKey, actor)
		h.logger.DebugContext(ctx, "Token validated successfully", slog.Int64("userID", actor.UserID), slog.String("role", string(actor.Role)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimitMiddleware limits anonymous auth endpoints per client IP.
func (h *HTTPHandler) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := clientIP(r)
		if !h.limiter.Allow(r.Context(), "auth:"+key) {
			h.logger.WarnContext(r.Context(), "Rate limit exceeded", slog.String("client", key), slog.String("path", r.URL.Path))
			h.respondError(w, r, http.StatusTooManyRequests, "Too many requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
