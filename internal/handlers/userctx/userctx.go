package userctx

import (
	"context"
	"net/http"

	"github.com/nkiryanov/contacts/internal/handlers/render"
	"github.com/nkiryanov/contacts/internal/models"
)

type ctxKey struct{}

// Create a new context with the authenticated user
func New(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// Extract the authenticated user from the context
func FromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(models.User)
	return u, ok
}

// Adapt handler that needs the current user
// Responds 401 when the request did not pass the auth middleware
func Handler(fn func(w http.ResponseWriter, r *http.Request, user models.User)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := FromContext(r.Context())
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			render.ServiceError(w, "Not authenticated", http.StatusUnauthorized)
			return
		}
		fn(w, r, user)
	})
}
