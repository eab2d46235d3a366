package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/benvon/assistant-chat/internal/database"
	"github.com/benvon/assistant-chat/internal/models"
	"github.com/benvon/assistant-chat/internal/services/ai"
	"go.uber.org/zap"
)

type contextKey string

const userContextKey contextKey = "user"

// TokenVerifier validates a bearer token and returns the identity it carries
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.Identity, error)
}

// UserFromContext extracts the user from the request context
func UserFromContext(r *http.Request) *models.User {
	user, ok := r.Context().Value(userContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// SetUserInContext stores the authenticated user on ctx
func SetUserInContext(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// Auth creates authentication middleware that validates JWT tokens.
// When devUser is set, requests without an Authorization header act as that subject.
func Auth(verifier TokenVerifier, users database.UserStore, devUser string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var id *models.Identity
			authHeader := r.Header.Get("Authorization")
			switch {
			case authHeader == "" && devUser != "":
				id = &models.Identity{Subject: devUser, Email: devUser + "@localhost", Name: devUser}
			case authHeader == "":
				writeError(w, r, http.StatusUnauthorized, "Unauthorized", "Missing Authorization header")
				return
			default:
				scheme, token, ok := strings.Cut(authHeader, " ")
				if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
					writeError(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid Authorization header format")
					return
				}
				if verifier == nil {
					writeError(w, r, http.StatusUnauthorized, "Unauthorized", "Token authentication is not configured")
					return
				}

				var err error
				id, err = verifier.Verify(ctx, token)
				if err != nil {
					logger.Info("token_verification_failed", zap.Error(err))
					writeError(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token")
					return
				}
			}

			user, err := users.EnsureUser(ctx, *id)
			if err != nil {
				logger.Error("user_lookup_failed",
					zap.String("user_hash", ai.HashUserID(id.Subject)),
					zap.Error(err),
				)
				writeError(w, r, http.StatusInternalServerError, "Internal Server Error", "Failed to resolve user")
				return
			}

			ctx = SetUserInContext(ctx, user)
			ctx = ai.WithLogFields(ctx, user.ID.String(), "")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
