package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mmynk/syndicate/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// ParticipantKey is the context key for storing the authenticated participant.
const ParticipantKey contextKey = "participant"

// WithParticipant returns a copy of ctx carrying the participant.
func WithParticipant(ctx context.Context, participant uuid.UUID) context.Context {
	return context.WithValue(ctx, ParticipantKey, participant)
}

// GetParticipant extracts the participant from the context.
// Returns false if the request is not authenticated.
func GetParticipant(ctx context.Context) (uuid.UUID, bool) {
	participant, ok := ctx.Value(ParticipantKey).(uuid.UUID)
	if !ok || participant == uuid.Nil {
		return uuid.Nil, false
	}
	return participant, true
}

// bearerParticipant validates the request's bearer token and returns its participant.
func bearerParticipant(jwtManager *auth.JWTManager, header string) (uuid.UUID, error) {
	if header == "" {
		return uuid.Nil, auth.ErrMissingToken
	}

	// Parse Bearer token
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return uuid.Nil, auth.ErrInvalidToken
	}

	claims, err := jwtManager.Validate(parts[1])
	if err != nil {
		return uuid.Nil, err
	}
	return claims.Participant()
}

// RequireAuth returns an interceptor that validates JWT tokens and requires authentication.
// It extracts the token from the Authorization header, validates it, and adds
// the participant to the request context.
func RequireAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			participant, err := bearerParticipant(jwtManager, req.Header().Get("Authorization"))
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			// Call the next handler with enriched context
			return next(WithParticipant(ctx, participant), req)
		}
	}
}

// OptionalAuth returns an interceptor that validates JWT tokens if present, but allows
// requests without authentication. Used by read-only procedures, which behave
// the same for every caller but still log who asked.
func OptionalAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if header := req.Header().Get("Authorization"); header != "" {
				// Ignore errors - optional auth
				if participant, err := bearerParticipant(jwtManager, header); err == nil {
					ctx = WithParticipant(ctx, participant)
				}
			}

			// Call the next handler (with or without participant context)
			return next(ctx, req)
		}
	}
}
