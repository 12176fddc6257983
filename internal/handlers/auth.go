package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/nkiryanov/contacts/internal/apperrors"
	"github.com/nkiryanov/contacts/internal/handlers/middleware"
	"github.com/nkiryanov/contacts/internal/handlers/render"
	"github.com/nkiryanov/contacts/internal/handlers/userctx"
	"github.com/nkiryanov/contacts/internal/logger"
	"github.com/nkiryanov/contacts/internal/models"
)

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func newTokenPairResponse(pair models.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
		TokenType:    "bearer",
	}
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Confirmed bool      `json:"confirmed"`
	Avatar    *string   `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		Confirmed: u.Confirmed,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
	}
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email,max=80"`
}

func handleSignup(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email,max=80"`
		Password string `json:"password" validate:"required,min=6,max=72"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, err := authService.Register(r.Context(), data.Email, data.Password)
		switch {
		case err == nil:
			render.JSONWithStatus(w, newUserResponse(user), http.StatusCreated)
		case errors.Is(err, apperrors.ErrEmailTaken):
			render.ServiceError(w, "Account already exists", http.StatusConflict)
		default:
			l.Error("Failed to register user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleLogin(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Login(r.Context(), data.Email, data.Password)
		switch {
		case err == nil:
			render.JSON(w, newTokenPairResponse(pair))
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Incorrect credentials", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrAccountUnconfirmed):
			render.ServiceError(w, "Email not confirmed", http.StatusForbidden)
		default:
			l.Error("Failed to login user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// Refresh token is sent as bearer token
func handleTokenRefresh(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := middleware.BearerToken(r)
		if err != nil {
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			return
		}

		pair, err := authService.Refresh(r.Context(), refresh)
		switch {
		case err == nil:
			render.JSON(w, newTokenPairResponse(pair))
		case errors.Is(err, apperrors.ErrInvalidToken),
			errors.Is(err, apperrors.ErrStaleToken),
			errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "Invalid refresh token", http.StatusUnauthorized)
		default:
			l.Error("Failed to refresh tokens", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleLogout(authService authService, l logger.Logger) http.Handler {
	return userctx.Handler(func(w http.ResponseWriter, r *http.Request, user models.User) {
		err := authService.Logout(r.Context(), user.ID)
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "Could not validate credentials", http.StatusUnauthorized)
		default:
			l.Error("Failed to logout user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleConfirmEmail(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := authService.ConfirmEmail(r.Context(), r.PathValue("token"))
		switch {
		case err == nil:
			render.Message(w, "Email confirmed")
		case errors.Is(err, apperrors.ErrInvalidToken), errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "Verification error", http.StatusBadRequest)
		default:
			l.Error("Failed to confirm email", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// Response is the same for any email so it does not reveal which accounts exist
func handleRequestEmail(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[emailRequest](w, r)
		if err != nil {
			return
		}

		if err := authService.RequestVerification(r.Context(), data.Email); err != nil {
			l.Error("Failed to request verification email", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		render.Message(w, "Check your email for confirmation")
	})
}

func handleResetPassword(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[emailRequest](w, r)
		if err != nil {
			return
		}

		if err := authService.RequestPasswordReset(r.Context(), data.Email); err != nil {
			l.Error("Failed to request password reset", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		render.Message(w, "Check your email for reset password")
	})
}

func handleChangePassword(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Password        string `json:"password" validate:"required,min=6,max=72"`
		ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = authService.ResetPassword(r.Context(), r.PathValue("token"), data.Password)
		switch {
		case err == nil:
			render.Message(w, "Password change done")
		case errors.Is(err, apperrors.ErrInvalidToken):
			render.ServiceError(w, "Password change error", http.StatusBadRequest)
		default:
			l.Error("Failed to change password", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
