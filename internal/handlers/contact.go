package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/contacts/internal/apperrors"
	"github.com/nkiryanov/contacts/internal/handlers/render"
	"github.com/nkiryanov/contacts/internal/handlers/userctx"
	"github.com/nkiryanov/contacts/internal/logger"
	"github.com/nkiryanov/contacts/internal/models"
	"github.com/nkiryanov/contacts/internal/repository"
	"github.com/nkiryanov/contacts/internal/service/contact"
)

type contactRequest struct {
	FirstName   string  `json:"first_name" validate:"required,notblank,max=50"`
	LastName    string  `json:"last_name" validate:"required,notblank,max=50"`
	Email       string  `json:"email" validate:"required,email,max=80"`
	PhoneNumber string  `json:"phone_number" validate:"required,phone,max=30"`
	Birthday    string  `json:"birthday" validate:"required,date"`
	ExtraData   *string `json:"extra_data" validate:"omitempty,max=150"`
}

// Birthday format is checked by validator already
func (req contactRequest) fields() contact.Fields {
	birthday, _ := time.Parse(render.DateLayout, req.Birthday)
	return contact.Fields{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Birthday:    birthday,
		ExtraData:   req.ExtraData,
	}
}

type contactResponse struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	Birthday    string    `json:"birthday"`
	ExtraData   *string   `json:"extra_data"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newContactResponse(c models.Contact) contactResponse {
	return contactResponse{
		ID:          c.ID,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		PhoneNumber: c.PhoneNumber,
		Birthday:    c.Birthday.Format(render.DateLayout),
		ExtraData:   c.ExtraData,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func newContactsResponse(contacts []models.Contact) []contactResponse {
	res := make([]contactResponse, 0, len(contacts))
	for _, c := range contacts {
		res = append(res, newContactResponse(c))
	}
	return res
}

// Render error common for all contact handlers
func contactError(w http.ResponseWriter, l logger.Logger, err error) {
	switch {
	case errors.Is(err, apperrors.ErrContactNotFound):
		render.ServiceError(w, "Contact not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrContactExists):
		render.ServiceError(w, "Contact with this email or phone number already exists", http.StatusConflict)
	case errors.Is(err, apperrors.ErrInvalidPage):
		render.ServiceError(w, err.Error(), http.StatusBadRequest)
	default:
		l.Error("Contact request failed", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Read contact id from path. Malformed id can't exist, so it is not found as well
func contactID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Contact not found", http.StatusNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func handleListContacts(contactService contactService, l logger.Logger) http.Handler {
	return userctx.Handler(func(w http.ResponseWriter, r *http.Request, user models.User) {
		limit, err := queryInt(r, "limit", contact.DefaultLimit)
		if err != nil {
			render.ServiceError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil {
			render.ServiceError(w, "Invalid offset", http.StatusBadRequest)
			return
		}

		contacts, err := contactService.List(r.Context(), &user, limit, offset)
		if err != nil {
			contactError(w, l, err)
			return
		}
		render.JSON(w, newContactsResponse(contacts))
	})
}

func handleCreateContact(contactService contactService, l logger.Logger) http.Handler {
	return userctx.Handler(func(w http.ResponseWriter, r *http.Request, user models.User) {
		data, err := render.BindAndValidate[contactRequest](w, r)
		if err != nil {
			return
		}

		c, err := contactService.Create(r.Context(), &user, data.fields())
		if err != nil {
			contactError(w, l, err)
			return
		}
		render.JSONWithStatus(w, newContactResponse(c), http.StatusCreated)
	})
}

func handleGetContact(contactService contactService, l logger.Logger) http.Handler {
	return userctx.Handler(func(w http.ResponseWriter, r *http.Request, user models.User) {
		id, ok := contactID(w, r)
		if !ok {
			return
		}

		c, err := contactService.Get(r.Context(), &user, id)
		if err != nil {
			contactError(w, l, err)
			return
		}
		render.JSON(w, newContactResponse(c))
	})
}

func handleUpdateContact(contactService contactService, l logger.Logger) http.Handler {
	return userctx.Handler(func(w http.ResponseWriter, r *http.Request, user models.User) {
		id, ok := contactID(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[contactRequest](w, r)
		if err != nil {
			return
		}

		c, err := contactService.Update(r.Context(), &user, id, data.fields())
		if err != nil {
			contactError(w, l, err)
			return
		}
		render.JSON(w, newContactResponse(c))
	})
}

func handleDeleteContact(contactService contactService, l logger.Logger) http.Handler {
	return userctx.Handler(func(w http.ResponseWriter, r *http.Request, user models.User) {
		id, ok := contactID(w, r)
		if !ok {
			return
		}

		c, err := contactService.Delete(r.Context(), &user, id)
		if err != nil {
			contactError(w, l, err)
			return
		}
		render.JSON(w, newContactResponse(c))
	})
}

func handleSearchContacts(contactService contactService, l logger.Logger) http.Handler {
	return userctx.Handler(func(w http.ResponseWriter, r *http.Request, user models.User) {
		q := r.URL.Query()
		contacts, err := contactService.Search(r.Context(), &user, repository.SearchContactsOpts{
			FirstName: q.Get("first_name"),
			LastName:  q.Get("last_name"),
			Email:     q.Get("email"),
		})
		if err != nil {
			contactError(w, l, err)
			return
		}
		render.JSON(w, newContactsResponse(contacts))
	})
}

func handleUpcomingBirthdays(contactService contactService, l logger.Logger) http.Handler {
	return userctx.Handler(func(w http.ResponseWriter, r *http.Request, user models.User) {
		contacts, err := contactService.UpcomingBirthdays(r.Context(), &user)
		if err != nil {
			contactError(w, l, err)
			return
		}
		render.JSON(w, newContactsResponse(contacts))
	})
}
