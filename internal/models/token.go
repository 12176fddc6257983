package models

import (
	"time"
)

// Every signed token carries its class, so a token issued for one purpose never passes for another
type TokenClass string

const (
	TokenClassAccess            TokenClass = "access"
	TokenClassRefresh           TokenClass = "refresh"
	TokenClassEmailVerification TokenClass = "email_verification"
	TokenClassPasswordReset     TokenClass = "password_reset"
)

func (c TokenClass) Valid() bool {
	switch c {
	case TokenClassAccess, TokenClassRefresh, TokenClassEmailVerification, TokenClassPasswordReset:
		return true
	default:
		return false
	}
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issues by TokenManager, AuthService
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
