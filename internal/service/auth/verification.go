package auth

import (
	"crypto/subtle"
	"fmt"

	"github.com/nkiryanov/contacts/internal/apperrors"
	"github.com/nkiryanov/contacts/internal/models"
	"github.com/nkiryanov/contacts/internal/service/auth/tokenmanager"
)

// Issues and resolves tokens sent by email
// Tokens are not persisted: signature and class are enough to trust the email inside
type VerificationIssuer struct {
	tokens *tokenmanager.TokenManager
}

func NewVerificationIssuer(tokens *tokenmanager.TokenManager) *VerificationIssuer {
	return &VerificationIssuer{tokens: tokens}
}

// Issue email verification token for the address
func (v *VerificationIssuer) Issue(email string) (models.IssuedToken, error) {
	return v.tokens.Issue(email, models.TokenClassEmailVerification, v.tokens.VerificationTTL())
}

// Resolve email verification token to the address it was issued for
func (v *VerificationIssuer) Resolve(token string) (string, error) {
	claims, err := v.tokens.DecodeAs(token, models.TokenClassEmailVerification)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Issue password reset token bound to the current password digest
// Once the password changes the token stops working
func (v *VerificationIssuer) IssueReset(email string, passwordDigest string) (models.IssuedToken, error) {
	return v.tokens.IssueBound(email, models.TokenClassPasswordReset, v.tokens.ResetTTL(), tokenmanager.Fingerprint(passwordDigest))
}

// Resolve password reset token to the address it was issued for
// currentDigest is the password digest stored now, token issued for another one is rejected
func (v *VerificationIssuer) ResolveReset(token string, currentDigest func(email string) (string, error)) (string, error) {
	claims, err := v.tokens.DecodeAs(token, models.TokenClassPasswordReset)
	if err != nil {
		return "", err
	}

	digest, err := currentDigest(claims.Subject)
	if err != nil {
		return "", err
	}

	want := tokenmanager.Fingerprint(digest)
	if subtle.ConstantTimeCompare([]byte(want), []byte(claims.Binding)) != 1 {
		return "", fmt.Errorf("%w: password reset token is already used", apperrors.ErrInvalidToken)
	}

	return claims.Subject, nil
}
