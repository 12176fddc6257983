package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/contacts/internal/apperrors"
	"github.com/nkiryanov/contacts/internal/models"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, email, password_hash, confirmed, refresh_fingerprint, avatar`

const createUser = `-- name: CreateUser
INSERT INTO users (id, email, password_hash, avatar)
VALUES ($1, lower($2), $3, $4)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, email string, hashedPassword string, avatar *string) (models.User, error) {
	rows, err := r.DB.Query(ctx, createUser, uuid.New(), email, hashedPassword, avatar)
	if err == nil {
		var user models.User
		user, err = pgx.CollectOneRow(rows, rowToUser)
		if err == nil {
			return user, nil
		}
	}

	if isUniqueViolation(err) {
		return models.User{}, apperrors.ErrEmailTaken
	}
	return models.User{}, fmt.Errorf("db error: %w", err)
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, err := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows, err)
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT ` + userColumns + ` FROM users
WHERE lower(email) = lower($1)
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	rows, err := r.DB.Query(ctx, getUserByEmail, email)
	return collectUser(rows, err)
}

const setConfirmed = `-- name: SetConfirmed
UPDATE users SET confirmed = TRUE
WHERE id = $1
`

func (r *UserRepo) SetConfirmed(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, setConfirmed, userID)
	return affectedOrNotFound(tag, err)
}

const setRefreshFingerprint = `-- name: SetRefreshFingerprint
UPDATE users SET refresh_fingerprint = $2
WHERE id = $1
`

func (r *UserRepo) SetRefreshFingerprint(ctx context.Context, userID uuid.UUID, fingerprint *string) error {
	tag, err := r.DB.Exec(ctx, setRefreshFingerprint, userID, fingerprint)
	return affectedOrNotFound(tag, err)
}

// Compare-and-swap: concurrent rotations of the same token are serialized by the row lock,
// the second one sees the new fingerprint and updates nothing
const swapRefreshFingerprint = `-- name: SwapRefreshFingerprint
UPDATE users SET refresh_fingerprint = $3
WHERE id = $1 AND refresh_fingerprint = $2
`

func (r *UserRepo) SwapRefreshFingerprint(ctx context.Context, userID uuid.UUID, old string, new string) error {
	tag, err := r.DB.Exec(ctx, swapRefreshFingerprint, userID, old, new)

	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrStaleToken
	default:
		return nil
	}
}

const setPassword = `-- name: SetPassword
UPDATE users SET password_hash = $2, refresh_fingerprint = NULL
WHERE id = $1
`

func (r *UserRepo) SetPassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error {
	tag, err := r.DB.Exec(ctx, setPassword, userID, hashedPassword)
	return affectedOrNotFound(tag, err)
}

const setAvatar = `-- name: SetAvatar
UPDATE users SET avatar = $2
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) SetAvatar(ctx context.Context, userID uuid.UUID, avatar *string) (models.User, error) {
	rows, err := r.DB.Query(ctx, setAvatar, userID, avatar)
	return collectUser(rows, err)
}

func collectUser(rows pgx.Rows, err error) (models.User, error) {
	if err != nil {
		return models.User{}, fmt.Errorf("db error: %w", err)
	}
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func affectedOrNotFound(tag pgconn.CommandTag, err error) error {
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrUserNotFound
	default:
		return nil
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Email, &u.HashedPassword, &u.Confirmed, &u.RefreshFingerprint, &u.Avatar)
	return u, err
}
