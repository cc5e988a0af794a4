package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"fotochallenge-api/pkg/logger"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// ActorIDContextKey carries the acting user's ID
	ActorIDContextKey ContextKey = "actor_id"
	// SessionIDContextKey carries the voting session identity
	SessionIDContextKey ContextKey = "session_id"
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"
)

// Trust-based identity headers. Role switching is a mock, not a security
// boundary: the client names who it is acting as and which browser
// session is voting.
const (
	HeaderUserID    = "X-User-ID"
	HeaderSessionID = "X-Session-ID"
)

// Identity extracts the acting user and session identity from request
// headers into the context. The session identity falls back to the user
// ID, so an identified client votes under its own name by default.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			actorID := r.Header.Get(HeaderUserID)
			if actorID != "" {
				ctx = context.WithValue(ctx, ActorIDContextKey, actorID)
			}

			sessionID := r.Header.Get(HeaderSessionID)
			if sessionID == "" {
				sessionID = actorID
			}
			if sessionID != "" {
				ctx = context.WithValue(ctx, SessionIDContextKey, sessionID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorID returns the acting user ID from the context, if any
func ActorID(r *http.Request) string {
	if id, ok := r.Context().Value(ActorIDContextKey).(string); ok {
		return id
	}
	return ""
}

// SessionID returns the voting session identity from the context, if any
func SessionID(r *http.Request) string {
	if id, ok := r.Context().Value(SessionIDContextKey).(string); ok {
		return id
	}
	return ""
}

// RequestID creates a middleware that tags each request with an ID
func RequestID(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := generateRequestID()

			ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
			r = r.WithContext(ctx)

			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r)
		})
	}
}

// generateRequestID generates a simple request ID
func generateRequestID() string {
	return fmt.Sprintf("%d-%d", time.Now().Unix(), time.Now().Nanosecond())
}
