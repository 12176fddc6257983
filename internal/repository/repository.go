package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/contacts/internal/models"
)

type Storage interface {
	User() UserRepo
	Contact() ContactRepo

	// Check storage is reachable
	Ping(ctx context.Context) error
}

// User repository interface
// Emails are compared case-insensitively
type UserRepo interface {
	// Create unconfirmed user without active session
	// If user with the email exists already has to return error apperrors.ErrEmailTaken
	CreateUser(ctx context.Context, email string, hashedPassword string, avatar *string) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Mark user email confirmed. There is no way back
	SetConfirmed(ctx context.Context, userID uuid.UUID) error

	// Overwrite refresh token fingerprint unconditionally. nil clears the slot
	SetRefreshFingerprint(ctx context.Context, userID uuid.UUID, fingerprint *string) error

	// Replace fingerprint only if the stored one equals 'old'
	// If it doesn't (token rotated or cleared meanwhile) must return apperrors.ErrStaleToken
	SwapRefreshFingerprint(ctx context.Context, userID uuid.UUID, old string, new string) error

	// Replace password hash and end active session if any
	SetPassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error

	SetAvatar(ctx context.Context, userID uuid.UUID, avatar *string) (models.User, error)
}

type ListContactsOpts struct {
	Limit  int
	Offset int
}

// Empty fields are not used as filters; non empty ones are matched as case-insensitive substrings
type SearchContactsOpts struct {
	FirstName string
	LastName  string
	Email     string
}

// Contacts repository. Every method is scoped by the owner id
// Contact of another user must look exactly like not existed one: apperrors.ErrContactNotFound
type ContactRepo interface {
	// If contact with same email or phone exists for the user has to return apperrors.ErrContactExists
	CreateContact(ctx context.Context, contact models.Contact) (models.Contact, error)
	GetContact(ctx context.Context, userID uuid.UUID, contactID uuid.UUID) (models.Contact, error)
	UpdateContact(ctx context.Context, contact models.Contact) (models.Contact, error)
	DeleteContact(ctx context.Context, userID uuid.UUID, contactID uuid.UUID) (models.Contact, error)

	// List contacts ordered by last and first name
	// Zero limit means no limit
	ListContacts(ctx context.Context, userID uuid.UUID, opts ListContactsOpts) ([]models.Contact, error)
	SearchContacts(ctx context.Context, userID uuid.UUID, opts SearchContactsOpts) ([]models.Contact, error)
}
