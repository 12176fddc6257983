package tokenmanager

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/contacts/internal/apperrors"
	"github.com/nkiryanov/contacts/internal/models"
)

const (
	defaultSigningMethod    = "HS256"
	defaultAccessTokenTTL   = 15 * time.Minute
	defaultRefreshTokenTTL  = 7 * 24 * time.Hour
	defaultVerificationTTL  = 24 * time.Hour
	defaultPasswordResetTTL = time.Hour
)

// Claims of every token issued by TokenManager
type Claims struct {
	jwt.RegisteredClaims

	// What the token is good for. Checked by DecodeAs
	Class models.TokenClass `json:"cls"`

	// Optional value the token is bound to. Password reset tokens carry fingerprint of the password digest
	Binding string `json:"bnd,omitempty"`
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Token lifetimes
	// If not set than default is used
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration

	// Clock. time.Now if not set
	Now func() time.Time
}

type TokenManager struct {
	key []byte
	alg jwt.SigningMethod
	now func() time.Time

	accessTTL       time.Duration
	refreshTTL      time.Duration
	verificationTTL time.Duration
	resetTTL        time.Duration
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing method %q, only HMAC ones are allowed", cfg.Alg)
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)
	setDefaultDuration(&cfg.VerificationTTL, defaultVerificationTTL)
	setDefaultDuration(&cfg.ResetTTL, defaultPasswordResetTTL)

	return &TokenManager{
		key:             []byte(cfg.SecretKey),
		alg:             alg,
		now:             cfg.Now,
		accessTTL:       cfg.AccessTTL,
		refreshTTL:      cfg.RefreshTTL,
		verificationTTL: cfg.VerificationTTL,
		resetTTL:        cfg.ResetTTL,
	}, nil
}

func (m *TokenManager) VerificationTTL() time.Duration {
	return m.verificationTTL
}

func (m *TokenManager) ResetTTL() time.Duration {
	return m.resetTTL
}

// Issue signed token of the class for the subject
func (m *TokenManager) Issue(subject string, class models.TokenClass, ttl time.Duration) (models.IssuedToken, error) {
	return m.IssueBound(subject, class, ttl, "")
}

// Issue signed token that additionally carries binding value
func (m *TokenManager) IssueBound(subject string, class models.TokenClass, ttl time.Duration, binding string) (models.IssuedToken, error) {
	switch {
	case subject == "":
		return models.IssuedToken{}, errors.New("token subject must not be empty")
	case !class.Valid():
		return models.IssuedToken{}, fmt.Errorf("unknown token class %q", class)
	case ttl <= 0:
		return models.IssuedToken{}, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(m.alg, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Class:   class,
		Binding: binding,
	})

	signed, err := token.SignedString(m.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing %s token. Err: %w", class, err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Issue access and refresh tokens for the user
func (m *TokenManager) IssuePair(userID uuid.UUID) (models.TokenPair, error) {
	access, err := m.Issue(userID.String(), models.TokenClassAccess, m.accessTTL)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := m.Issue(userID.String(), models.TokenClassRefresh, m.refreshTTL)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Parse and validate token of any class
// Returns ErrTokenExpired or ErrTokenMalformed, both are apperrors.ErrInvalidToken
func (m *TokenManager) Decode(token string) (Claims, error) {
	claims := Claims{}

	_, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(t *jwt.Token) (any, error) {
			return m.key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, apperrors.ErrTokenExpired
	case err != nil:
		return Claims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenMalformed, err)
	case claims.Subject == "" || !claims.Class.Valid():
		return Claims{}, fmt.Errorf("%w: subject or class missing", apperrors.ErrTokenMalformed)
	}

	return claims, nil
}

// Decode token and check it was issued for the class
func (m *TokenManager) DecodeAs(token string, class models.TokenClass) (Claims, error) {
	claims, err := m.Decode(token)
	if err != nil {
		return Claims{}, err
	}

	if claims.Class != class {
		return Claims{}, fmt.Errorf("%w: want %s, got %s", apperrors.ErrTokenClassMismatch, class, claims.Class)
	}

	return claims, nil
}

// Stable fingerprint of the token, safe to persist instead of token itself
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
