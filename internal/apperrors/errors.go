package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrEmailTaken   = errors.New("email already taken")
	ErrUserNotFound = errors.New("user not found")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountUnconfirmed = errors.New("account email is not confirmed")

	// Any token that can't be accepted: malformed, expired or issued for another purpose
	ErrInvalidToken = errors.New("invalid token")

	// Refresh token is well formed but not the one currently stored for the user
	ErrStaleToken = errors.New("refresh token is stale")

	// Token decoding failures. All of them are ErrInvalidToken as well
	ErrTokenExpired       = fmt.Errorf("%w: token is expired", ErrInvalidToken)
	ErrTokenMalformed     = fmt.Errorf("%w: token is malformed", ErrInvalidToken)
	ErrTokenClassMismatch = fmt.Errorf("%w: token class mismatch", ErrInvalidToken)

	ErrContactNotFound = errors.New("contact not found")
	ErrInvalidPage     = errors.New("invalid pagination parameters")
	ErrContactExists   = errors.New("contact with this email or phone already exists")

	ErrMailQueueFull = errors.New("mail queue is full")

	ErrInvalidAvatar     = errors.New("avatar must be png, jpeg, gif or webp image")
	ErrAvatarUnavailable = errors.New("avatar storage is not configured")
)
