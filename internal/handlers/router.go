package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/contacts/internal/handlers/middleware"
	"github.com/nkiryanov/contacts/internal/logger"
	"github.com/nkiryanov/contacts/internal/metrics"
	"github.com/nkiryanov/contacts/internal/models"
	"github.com/nkiryanov/contacts/internal/repository"
	"github.com/nkiryanov/contacts/internal/service/contact"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// All routes live in one mux so middlewares see the matched pattern
func NewRouter(
	authService authService,
	contactService contactService,
	userService userService,
	pinger pinger,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService, logger)

	mux := http.NewServeMux()

	mux.Handle("POST /api/auth/signup", handleSignup(authService, logger))
	mux.Handle("POST /api/auth/login", handleLogin(authService, logger))
	mux.Handle("POST /api/auth/refresh", handleTokenRefresh(authService, logger))
	mux.Handle("GET /api/auth/refresh_token", handleTokenRefresh(authService, logger))
	mux.Handle("POST /api/auth/logout", withAuth(handleLogout(authService, logger)))
	mux.Handle("GET /api/auth/confirmed_email/{token}", handleConfirmEmail(authService, logger))
	mux.Handle("POST /api/auth/request_email", handleRequestEmail(authService, logger))
	mux.Handle("POST /api/auth/reset_password", handleResetPassword(authService, logger))
	mux.Handle("POST /api/auth/change_password/{token}", handleChangePassword(authService, logger))

	mux.Handle("GET /api/users/me", withAuth(handleUserMe()))
	mux.Handle("PATCH /api/users/avatar", withAuth(handleUpdateAvatar(userService, logger)))

	mux.Handle("GET /api/contacts", withAuth(handleListContacts(contactService, logger)))
	mux.Handle("POST /api/contacts", withAuth(handleCreateContact(contactService, logger)))
	mux.Handle("GET /api/contacts/search", withAuth(handleSearchContacts(contactService, logger)))
	mux.Handle("GET /api/contacts/birthdays", withAuth(handleUpcomingBirthdays(contactService, logger)))
	mux.Handle("GET /api/contacts/{id}", withAuth(handleGetContact(contactService, logger)))
	mux.Handle("PUT /api/contacts/{id}", withAuth(handleUpdateContact(contactService, logger)))
	mux.Handle("DELETE /api/contacts/{id}", withAuth(handleDeleteContact(contactService, logger)))

	mux.Handle("GET /api/healthchecker", handleHealthChecker(pinger, logger))
	mux.Handle("GET /metrics", metrics.Handler())

	handler := chain(mux,
		middleware.LoggerMiddleware(logger),
		middleware.MetricsMiddleware(),
	)

	return handler
}

type authService interface {
	// Create unconfirmed user and send verification email
	// Has to return apperrors.ErrEmailTaken if email is registered already
	Register(ctx context.Context, email string, password string) (models.User, error)

	// apperrors.ErrInvalidToken if token can't be accepted, apperrors.ErrUserNotFound for unknown email
	ConfirmEmail(ctx context.Context, token string) error
	RequestVerification(ctx context.Context, email string) error

	// apperrors.ErrInvalidCredentials or apperrors.ErrAccountUnconfirmed on failure
	Login(ctx context.Context, email string, password string) (models.TokenPair, error)

	// apperrors.ErrInvalidToken or apperrors.ErrStaleToken if refresh token can't be rotated
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error

	// Decode access token and return its user
	Authenticate(ctx context.Context, access string) (models.User, error)

	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token string, password string) error
}

type contactService interface {
	Create(ctx context.Context, user *models.User, fields contact.Fields) (models.Contact, error)
	Get(ctx context.Context, user *models.User, contactID uuid.UUID) (models.Contact, error)
	List(ctx context.Context, user *models.User, limit int, offset int) ([]models.Contact, error)
	Update(ctx context.Context, user *models.User, contactID uuid.UUID, fields contact.Fields) (models.Contact, error)
	Delete(ctx context.Context, user *models.User, contactID uuid.UUID) (models.Contact, error)
	Search(ctx context.Context, user *models.User, opts repository.SearchContactsOpts) ([]models.Contact, error)
	UpcomingBirthdays(ctx context.Context, user *models.User) ([]models.Contact, error)
}

type userService interface {
	UpdateAvatar(ctx context.Context, user *models.User, data []byte) (models.User, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}
