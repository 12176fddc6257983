package auth

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nkiryanov/contacts/internal/apperrors"
	"github.com/nkiryanov/contacts/internal/logger"
	"github.com/nkiryanov/contacts/internal/metrics"
	"github.com/nkiryanov/contacts/internal/models"
	"github.com/nkiryanov/contacts/internal/repository"
	"github.com/nkiryanov/contacts/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/contacts/internal/service/mailer"
)

// Queue that delivers emails in background
type MailQueue interface {
	Enqueue(msg mailer.Message) error
}

type Config struct {
	// Hasher to use during user registration or login process
	// BcryptHasher if not set
	Hasher PasswordHasher
}

// Auth service: registration, email confirmation, sessions and password reset
type AuthService struct {
	hasher       PasswordHasher
	verification *VerificationIssuer
	sessions     *SessionManager

	userRepo repository.UserRepo
	mail     MailQueue
	logger   logger.Logger

	// Hash compared against when user is not found, so unknown email takes as long as wrong password
	dummyHash func() string
}

func NewService(cfg Config, tokens *tokenmanager.TokenManager, userRepo repository.UserRepo, mail MailQueue, logger logger.Logger) (*AuthService, error) {
	if tokens == nil || userRepo == nil || mail == nil {
		return nil, errors.New("token manager, user repo and mail queue must not be nil")
	}

	// Set default bcrypt hasher if not provided by user
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	return &AuthService{
		hasher:       hasher,
		verification: NewVerificationIssuer(tokens),
		sessions:     NewSessionManager(tokens, hasher, userRepo),
		userRepo:     userRepo,
		mail:         mail,
		logger:       logger,
		dummyHash: sync.OnceValue(func() string {
			hash, _ := hasher.Hash(uuid.NewString())
			return hash
		}),
	}, nil
}

// Create unconfirmed user and send verification email
// Failure to send the email doesn't fail registration, user may ask to resend it
func (s *AuthService) Register(ctx context.Context, email string, password string) (user models.User, err error) {
	defer func() { metrics.RecordAuthEvent("register", err) }()

	email = normalizeEmail(email)

	_, err = s.userRepo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return user, apperrors.ErrEmailTaken
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return user, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, error=%w", err)
	}

	avatar := gravatarURL(email)
	user, err = s.userRepo.CreateUser(ctx, email, hash, &avatar)
	if err != nil {
		return user, err
	}

	s.sendVerification(user.Email)

	return user, nil
}

// Confirm email the token was issued for. Confirming twice is ok
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) (err error) {
	defer func() { metrics.RecordAuthEvent("confirm_email", err) }()

	email, err := s.verification.Resolve(token)
	if err != nil {
		return err
	}

	user, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	if user.Confirmed {
		return nil
	}

	return s.userRepo.SetConfirmed(ctx, user.ID)
}

// Send verification email again. Silent if email is unknown or confirmed already
func (s *AuthService) RequestVerification(ctx context.Context, email string) error {
	user, err := s.userRepo.GetUserByEmail(ctx, normalizeEmail(email))
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return nil
	case err != nil:
		return err
	case user.Confirmed:
		return nil
	}

	s.sendVerification(user.Email)
	return nil
}

func (s *AuthService) Login(ctx context.Context, email string, password string) (pair models.TokenPair, err error) {
	defer func() { metrics.RecordAuthEvent("login", err) }()

	user, err := s.userRepo.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, apperrors.ErrUserNotFound) {
		s.hasher.Check(password, s.dummyHash())
		return pair, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return pair, err
	}

	return s.sessions.Login(ctx, user, password)
}

func (s *AuthService) Refresh(ctx context.Context, refresh string) (pair models.TokenPair, err error) {
	defer func() { metrics.RecordAuthEvent("refresh", err) }()
	return s.sessions.Refresh(ctx, refresh)
}

func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) (err error) {
	defer func() { metrics.RecordAuthEvent("logout", err) }()
	return s.sessions.Logout(ctx, userID)
}

func (s *AuthService) Authenticate(ctx context.Context, access string) (models.User, error) {
	return s.sessions.Authenticate(ctx, access)
}

// Send password reset email. Silent if email is unknown
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetUserByEmail(ctx, normalizeEmail(email))
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return nil
	case err != nil:
		return err
	}

	token, err := s.verification.IssueReset(user.Email, user.HashedPassword)
	if err != nil {
		return fmt.Errorf("reset token could not generated, sorry. %w", err)
	}

	s.enqueue(mailer.Message{
		Kind:     mailer.KindPasswordReset,
		To:       user.Email,
		Token:    token.Value,
		ValidFor: s.verification.tokens.ResetTTL(),
	})
	return nil
}

// Set new password by reset token. All user sessions end
func (s *AuthService) ResetPassword(ctx context.Context, token string, password string) (err error) {
	defer func() { metrics.RecordAuthEvent("reset_password", err) }()

	var user models.User
	_, err = s.verification.ResolveReset(token, func(email string) (string, error) {
		u, err := s.userRepo.GetUserByEmail(ctx, email)
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return "", fmt.Errorf("%w: account is gone", apperrors.ErrInvalidToken)
		}
		user = u
		return u.HashedPassword, err
	})
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("can't use this as password, error=%w", err)
	}

	return s.userRepo.SetPassword(ctx, user.ID, hash)
}

func (s *AuthService) sendVerification(email string) {
	token, err := s.verification.Issue(email)
	if err != nil {
		s.logger.Error("Failed to issue verification token", "email", email, "error", err)
		return
	}

	s.enqueue(mailer.Message{
		Kind:     mailer.KindVerification,
		To:       email,
		Token:    token.Value,
		ValidFor: s.verification.tokens.VerificationTTL(),
	})
}

func (s *AuthService) enqueue(msg mailer.Message) {
	if err := s.mail.Enqueue(msg); err != nil {
		s.logger.Error("Failed to enqueue email", "kind", msg.Kind, "to", msg.To, "error", err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Default avatar for the email, see https://docs.gravatar.com/api/avatars/images/
func gravatarURL(email string) string {
	sum := md5.Sum([]byte(email))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?d=identicon"
}
