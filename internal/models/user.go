package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Email          string
	HashedPassword string
	Confirmed      bool

	// Fingerprint of the only refresh token the user may rotate
	// nil means there is no active session
	RefreshFingerprint *string

	Avatar *string
}

// Whether the user has an active session (refresh token slot is taken)
func (u User) HasSession() bool {
	return u.RefreshFingerprint != nil && *u.RefreshFingerprint != ""
}
