package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/nkiryanov/contacts/internal/apperrors"
	"github.com/nkiryanov/contacts/internal/handlers/render"
	"github.com/nkiryanov/contacts/internal/handlers/userctx"
	"github.com/nkiryanov/contacts/internal/logger"
	"github.com/nkiryanov/contacts/internal/models"
	"github.com/nkiryanov/contacts/internal/service/user"
)

// Room for multipart headers on top of the image itself
const avatarRequestOverhead = 64 << 10

func handleUserMe() http.Handler {
	return userctx.Handler(func(w http.ResponseWriter, r *http.Request, user models.User) {
		render.JSON(w, newUserResponse(user))
	})
}

// Avatar is uploaded as multipart form 'file' field
func handleUpdateAvatar(userService userService, l logger.Logger) http.Handler {
	return userctx.Handler(func(w http.ResponseWriter, r *http.Request, u models.User) {
		r.Body = http.MaxBytesReader(w, r.Body, user.MaxAvatarSize+avatarRequestOverhead)
		file, _, err := r.FormFile("file")
		if err != nil {
			render.ServiceError(w, "Form field 'file' with image expected", http.StatusBadRequest)
			return
		}
		defer file.Close() // nolint:errcheck

		data, err := io.ReadAll(io.LimitReader(file, user.MaxAvatarSize+1))
		if err != nil {
			render.ServiceError(w, "Failed to read uploaded file", http.StatusBadRequest)
			return
		}

		updated, err := userService.UpdateAvatar(r.Context(), &u, data)
		switch {
		case err == nil:
			render.JSON(w, newUserResponse(updated))
		case errors.Is(err, apperrors.ErrInvalidAvatar):
			render.ServiceError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrAvatarUnavailable):
			render.ServiceError(w, "Avatar upload is not available", http.StatusServiceUnavailable)
		default:
			l.Error("Failed to update avatar", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
