package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/contacts/internal/apperrors"
	"github.com/nkiryanov/contacts/internal/models"
	"github.com/nkiryanov/contacts/internal/service/mailer"
)

// In memory user repo with the same semantics as the postgres one
type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]models.User)}
}

func (r *memUserRepo) CreateUser(ctx context.Context, email string, hashedPassword string, avatar *string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email = strings.ToLower(email)
	for _, u := range r.users {
		if u.Email == email {
			return models.User{}, apperrors.ErrEmailTaken
		}
	}

	u := models.User{
		ID:             uuid.New(),
		CreatedAt:      time.Now(),
		Email:          email,
		HashedPassword: hashedPassword,
		Avatar:         avatar,
	}
	r.users[u.ID] = u
	return u, nil
}

func (r *memUserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return u, nil
}

func (r *memUserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, apperrors.ErrUserNotFound
}

func (r *memUserRepo) update(userID uuid.UUID, fn func(u *models.User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	if err := fn(&u); err != nil {
		return err
	}
	r.users[userID] = u
	return nil
}

func (r *memUserRepo) SetConfirmed(ctx context.Context, userID uuid.UUID) error {
	return r.update(userID, func(u *models.User) error {
		u.Confirmed = true
		return nil
	})
}

func (r *memUserRepo) SetRefreshFingerprint(ctx context.Context, userID uuid.UUID, fingerprint *string) error {
	return r.update(userID, func(u *models.User) error {
		u.RefreshFingerprint = fingerprint
		return nil
	})
}

func (r *memUserRepo) SwapRefreshFingerprint(ctx context.Context, userID uuid.UUID, old string, new string) error {
	err := r.update(userID, func(u *models.User) error {
		if u.RefreshFingerprint == nil || *u.RefreshFingerprint != old {
			return apperrors.ErrStaleToken
		}
		u.RefreshFingerprint = &new
		return nil
	})
	if err == apperrors.ErrUserNotFound {
		return apperrors.ErrStaleToken
	}
	return err
}

func (r *memUserRepo) SetPassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error {
	return r.update(userID, func(u *models.User) error {
		u.HashedPassword = hashedPassword
		u.RefreshFingerprint = nil
		return nil
	})
}

func (r *memUserRepo) SetAvatar(ctx context.Context, userID uuid.UUID, avatar *string) (models.User, error) {
	var updated models.User
	err := r.update(userID, func(u *models.User) error {
		u.Avatar = avatar
		updated = *u
		return nil
	})
	return updated, err
}

// Mail queue that keeps messages in memory
type memMailQueue struct {
	mu       sync.Mutex
	messages []mailer.Message
	err      error
}

func (q *memMailQueue) Enqueue(msg mailer.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.err != nil {
		return q.err
	}
	q.messages = append(q.messages, msg)
	return nil
}

func (q *memMailQueue) Messages() []mailer.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]mailer.Message(nil), q.messages...)
}

// Last message sent to the address
func (q *memMailQueue) Last(to string) (mailer.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := len(q.messages) - 1; i >= 0; i-- {
		if q.messages[i].To == to {
			return q.messages[i], true
		}
	}
	return mailer.Message{}, false
}
