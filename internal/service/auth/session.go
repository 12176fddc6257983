package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/contacts/internal/apperrors"
	"github.com/nkiryanov/contacts/internal/models"
	"github.com/nkiryanov/contacts/internal/repository"
	"github.com/nkiryanov/contacts/internal/service/auth/tokenmanager"
)

// Interface to create or check user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Check user provided password against known hashedPassword
	// Must be protected against timing attacks
	Check(password string, hashedPassword string) bool
}

// Session manager keeps the single refresh token slot of every user
// Only fingerprint of the latest issued refresh token is stored, every older one is stale
type SessionManager struct {
	tokens *tokenmanager.TokenManager
	hasher PasswordHasher
	users  repository.UserRepo
}

func NewSessionManager(tokens *tokenmanager.TokenManager, hasher PasswordHasher, users repository.UserRepo) *SessionManager {
	return &SessionManager{
		tokens: tokens,
		hasher: hasher,
		users:  users,
	}
}

// Start new session. Previous one (if any) ends
func (s *SessionManager) Login(ctx context.Context, user models.User, password string) (models.TokenPair, error) {
	if !s.hasher.Check(password, user.HashedPassword) {
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	if !user.Confirmed {
		return models.TokenPair{}, apperrors.ErrAccountUnconfirmed
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	fingerprint := tokenmanager.Fingerprint(pair.Refresh.Value)
	if err := s.users.SetRefreshFingerprint(ctx, user.ID, &fingerprint); err != nil {
		return models.TokenPair{}, fmt.Errorf("can't save session. Err: %w", err)
	}

	return pair, nil
}

// Exchange current refresh token for a new pair
// Each refresh token works once: the successful exchange makes it stale
func (s *SessionManager) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	claims, err := s.tokens.DecodeAs(refresh, models.TokenClassRefresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	user, err := s.userFromClaims(ctx, claims)
	if err != nil {
		return models.TokenPair{}, err
	}

	fingerprint := tokenmanager.Fingerprint(refresh)
	if !user.HasSession() || *user.RefreshFingerprint != fingerprint {
		return models.TokenPair{}, apperrors.ErrStaleToken
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	// Concurrent refresh with the same token may have won already, then the swap fails with ErrStaleToken
	err = s.users.SwapRefreshFingerprint(ctx, user.ID, fingerprint, tokenmanager.Fingerprint(pair.Refresh.Value))
	if err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

// End user session. Ok if there is no session
func (s *SessionManager) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.users.SetRefreshFingerprint(ctx, userID, nil)
}

// Return user the access token was issued for
func (s *SessionManager) Authenticate(ctx context.Context, access string) (models.User, error) {
	claims, err := s.tokens.DecodeAs(access, models.TokenClassAccess)
	if err != nil {
		return models.User{}, err
	}

	return s.userFromClaims(ctx, claims)
}

func (s *SessionManager) userFromClaims(ctx context.Context, claims tokenmanager.Claims) (models.User, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: subject is not user id", apperrors.ErrTokenMalformed)
	}

	return s.users.GetUserByID(ctx, userID)
}
