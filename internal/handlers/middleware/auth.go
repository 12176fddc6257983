package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nkiryanov/contacts/internal/apperrors"
	"github.com/nkiryanov/contacts/internal/handlers/render"
	"github.com/nkiryanov/contacts/internal/handlers/userctx"
	"github.com/nkiryanov/contacts/internal/models"
)

var ErrNoBearerToken = errors.New("authorization bearer token not found")

type authService interface {
	// Decode access token and load its user
	Authenticate(ctx context.Context, access string) (models.User, error)
}

// Read token from 'Authorization: Bearer <token>' header
func BearerToken(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrNoBearerToken
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNoBearerToken
	}
	return token, nil
}

type errorLogger interface {
	Error(msg string, args ...any)
}

// Only bad tokens and vanished users are 401, storage failures are 500
func AuthMiddleware(as authService, l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, err := BearerToken(r)
			if err != nil {
				unauthorized(w)
				return
			}

			user, err := as.Authenticate(r.Context(), access)
			switch {
			case err == nil:
			case errors.Is(err, apperrors.ErrInvalidToken), errors.Is(err, apperrors.ErrUserNotFound):
				unauthorized(w)
				return
			default:
				l.Error("Failed to authenticate request", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	render.ServiceError(w, "Could not validate credentials", http.StatusUnauthorized)
}
