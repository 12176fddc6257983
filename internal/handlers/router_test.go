package handlers

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/contacts/internal/apperrors"
	"github.com/nkiryanov/contacts/internal/logger"
	"github.com/nkiryanov/contacts/internal/models"
	"github.com/nkiryanov/contacts/internal/repository"
	"github.com/nkiryanov/contacts/internal/service/contact"
)

var testUser = models.User{ID: uuid.New(), Email: "nk@example.com", Confirmed: true}

// Auth service that accepts "valid" access token and fails everything else with err
type fakeAuth struct {
	err error
}

func (f fakeAuth) Register(ctx context.Context, email string, password string) (models.User, error) {
	return models.User{}, f.err
}
func (f fakeAuth) ConfirmEmail(ctx context.Context, token string) error { return f.err }
func (f fakeAuth) RequestVerification(ctx context.Context, email string) error {
	return f.err
}
func (f fakeAuth) Login(ctx context.Context, email string, password string) (models.TokenPair, error) {
	return models.TokenPair{}, f.err
}
func (f fakeAuth) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	return models.TokenPair{}, f.err
}
func (f fakeAuth) Logout(ctx context.Context, userID uuid.UUID) error { return f.err }
func (f fakeAuth) Authenticate(ctx context.Context, access string) (models.User, error) {
	if access != "valid" {
		return models.User{}, apperrors.ErrInvalidToken
	}
	return testUser, nil
}
func (f fakeAuth) RequestPasswordReset(ctx context.Context, email string) error { return f.err }
func (f fakeAuth) ResetPassword(ctx context.Context, token string, password string) error {
	return f.err
}

// Contact service where every call fails with err
type fakeContacts struct {
	err error
}

func (f fakeContacts) Create(ctx context.Context, user *models.User, fields contact.Fields) (models.Contact, error) {
	return models.Contact{}, f.err
}
func (f fakeContacts) Get(ctx context.Context, user *models.User, contactID uuid.UUID) (models.Contact, error) {
	return models.Contact{}, f.err
}
func (f fakeContacts) List(ctx context.Context, user *models.User, limit int, offset int) ([]models.Contact, error) {
	return nil, f.err
}
func (f fakeContacts) Update(ctx context.Context, user *models.User, contactID uuid.UUID, fields contact.Fields) (models.Contact, error) {
	return models.Contact{}, f.err
}
func (f fakeContacts) Delete(ctx context.Context, user *models.User, contactID uuid.UUID) (models.Contact, error) {
	return models.Contact{}, f.err
}
func (f fakeContacts) Search(ctx context.Context, user *models.User, opts repository.SearchContactsOpts) ([]models.Contact, error) {
	return nil, f.err
}
func (f fakeContacts) UpcomingBirthdays(ctx context.Context, user *models.User) ([]models.Contact, error) {
	return nil, f.err
}

type avatarFunc func(ctx context.Context, user *models.User, data []byte) (models.User, error)

func (f avatarFunc) UpdateAvatar(ctx context.Context, user *models.User, data []byte) (models.User, error) {
	return f(ctx, user, data)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type routerDeps struct {
	auth     authService
	contacts contactService
	users    userService
	pinger   pinger
}

func serve(t *testing.T, deps routerDeps, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	if deps.auth == nil {
		deps.auth = fakeAuth{}
	}
	if deps.contacts == nil {
		deps.contacts = fakeContacts{}
	}
	if deps.users == nil {
		deps.users = avatarFunc(func(ctx context.Context, user *models.User, data []byte) (models.User, error) {
			return *user, nil
		})
	}
	if deps.pinger == nil {
		deps.pinger = pingFunc(func(ctx context.Context) error { return nil })
	}

	rec := httptest.NewRecorder()
	NewRouter(deps.auth, deps.contacts, deps.users, deps.pinger, logger.NewNoOpLogger()).ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method string, target string, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRouter_AuthErrors(t *testing.T) {
	boom := errors.New("db is down")

	tests := []struct {
		name string
		req  *http.Request
		err  error
		code int
	}{
		{"signup taken", jsonRequest("POST", "/api/auth/signup", `{"email":"a@b.io","password":"secret1"}`), apperrors.ErrEmailTaken, http.StatusConflict},
		{"signup internal", jsonRequest("POST", "/api/auth/signup", `{"email":"a@b.io","password":"secret1"}`), boom, http.StatusInternalServerError},
		{"login wrong password", jsonRequest("POST", "/api/auth/login", `{"email":"a@b.io","password":"x"}`), apperrors.ErrInvalidCredentials, http.StatusUnauthorized},
		{"login unconfirmed", jsonRequest("POST", "/api/auth/login", `{"email":"a@b.io","password":"x"}`), apperrors.ErrAccountUnconfirmed, http.StatusForbidden},
		{"login internal", jsonRequest("POST", "/api/auth/login", `{"email":"a@b.io","password":"x"}`), boom, http.StatusInternalServerError},
		{"confirm expired", httptest.NewRequest("GET", "/api/auth/confirmed_email/token", nil), apperrors.ErrTokenExpired, http.StatusBadRequest},
		{"confirm unknown user", httptest.NewRequest("GET", "/api/auth/confirmed_email/token", nil), apperrors.ErrUserNotFound, http.StatusBadRequest},
		{"request email internal", jsonRequest("POST", "/api/auth/request_email", `{"email":"a@b.io"}`), boom, http.StatusInternalServerError},
		{"reset internal", jsonRequest("POST", "/api/auth/reset_password", `{"email":"a@b.io"}`), boom, http.StatusInternalServerError},
		{"change password bad token", jsonRequest("POST", "/api/auth/change_password/token", `{"password":"secret1","confirm_password":"secret1"}`), apperrors.ErrTokenClassMismatch, http.StatusBadRequest},
		{"change password ok", jsonRequest("POST", "/api/auth/change_password/token", `{"password":"secret1","confirm_password":"secret1"}`), nil, http.StatusOK},
		{"invalid json", jsonRequest("POST", "/api/auth/login", `{`), nil, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, routerDeps{auth: fakeAuth{err: tc.err}}, tc.req)

			assert.Equalf(t, tc.code, rec.Code, "body: %s", rec.Body.String())
		})
	}

	t.Run("refresh stale", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/auth/refresh", nil)
		req.Header.Set("Authorization", "Bearer refresh")

		rec := serve(t, routerDeps{auth: fakeAuth{err: apperrors.ErrStaleToken}}, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("refresh internal", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/auth/refresh", nil)
		req.Header.Set("Authorization", "Bearer refresh")

		rec := serve(t, routerDeps{auth: fakeAuth{err: boom}}, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRouter_ContactErrors(t *testing.T) {
	authorized := func(req *http.Request) *http.Request {
		req.Header.Set("Authorization", "Bearer valid")
		return req
	}
	body := `{"first_name":"John","last_name":"Doe","email":"john@example.com","phone_number":"+380501234567","birthday":"1990-05-17"}`
	id := uuid.NewString()

	tests := []struct {
		name string
		req  *http.Request
		err  error
		code int
	}{
		{"get not found", httptest.NewRequest("GET", "/api/contacts/"+id, nil), apperrors.ErrContactNotFound, http.StatusNotFound},
		{"create exists", jsonRequest("POST", "/api/contacts", body), apperrors.ErrContactExists, http.StatusConflict},
		{"update internal", jsonRequest("PUT", "/api/contacts/"+id, body), errors.New("boom"), http.StatusInternalServerError},
		{"list invalid page", httptest.NewRequest("GET", "/api/contacts?limit=10", nil), apperrors.ErrInvalidPage, http.StatusBadRequest},
		{"search internal", httptest.NewRequest("GET", "/api/contacts/search?first_name=jo", nil), errors.New("boom"), http.StatusInternalServerError},
		{"birthdays ok", httptest.NewRequest("GET", "/api/contacts/birthdays", nil), nil, http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, routerDeps{contacts: fakeContacts{err: tc.err}}, authorized(tc.req))

			assert.Equalf(t, tc.code, rec.Code, "body: %s", rec.Body.String())
		})
	}

	t.Run("empty list is array", func(t *testing.T) {
		rec := serve(t, routerDeps{}, authorized(httptest.NewRequest("GET", "/api/contacts", nil)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func TestRouter_Avatar(t *testing.T) {
	upload := func(t *testing.T, field string, data []byte) *http.Request {
		t.Helper()
		buf := &bytes.Buffer{}
		mw := multipart.NewWriter(buf)
		fw, err := mw.CreateFormFile(field, "avatar.png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest("PATCH", "/api/users/avatar", buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer valid")
		return req
	}

	t.Run("upload ok", func(t *testing.T) {
		var got []byte
		users := avatarFunc(func(ctx context.Context, user *models.User, data []byte) (models.User, error) {
			got = data
			avatar := "https://cdn.example.com/a.png"
			u := *user
			u.Avatar = &avatar
			return u, nil
		})

		rec := serve(t, routerDeps{users: users}, upload(t, "file", []byte("image-bytes")))

		require.Equalf(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
		assert.Equal(t, []byte("image-bytes"), got)
		assert.Contains(t, rec.Body.String(), `"avatar":"https://cdn.example.com/a.png"`)
	})

	t.Run("no file field", func(t *testing.T) {
		rec := serve(t, routerDeps{}, upload(t, "image", []byte("image-bytes")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("service errors", func(t *testing.T) {
		for err, code := range map[error]int{
			apperrors.ErrInvalidAvatar:     http.StatusBadRequest,
			apperrors.ErrAvatarUnavailable: http.StatusServiceUnavailable,
			errors.New("s3 is down"):       http.StatusInternalServerError,
		} {
			users := avatarFunc(func(ctx context.Context, user *models.User, data []byte) (models.User, error) {
				return models.User{}, err
			})

			rec := serve(t, routerDeps{users: users}, upload(t, "file", []byte("image-bytes")))

			assert.Equalf(t, code, rec.Code, "error %v", err)
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		req := upload(t, "file", []byte("image-bytes"))
		req.Header.Del("Authorization")

		rec := serve(t, routerDeps{}, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRouter_HealthChecker(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		rec := serve(t, routerDeps{}, httptest.NewRequest("GET", "/api/healthchecker", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message": "Service is healthy"}`, rec.Body.String())
	})

	t.Run("db down", func(t *testing.T) {
		pinger := pingFunc(func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			require.True(t, ok, "ping must be bounded by timeout")
			return errors.New("connection refused")
		})

		rec := serve(t, routerDeps{pinger: pinger}, httptest.NewRequest("GET", "/api/healthchecker", nil))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error": "service_error", "message": "Error connecting to the database"}`, rec.Body.String())
	})
}

func TestRouter_Metrics(t *testing.T) {
	serve(t, routerDeps{}, httptest.NewRequest("GET", "/api/healthchecker", nil))

	rec := serve(t, routerDeps{}, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="GET /api/healthchecker"`)
}
