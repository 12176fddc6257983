package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/contacts/internal/apperrors"
	"github.com/nkiryanov/contacts/internal/testutil"
)

func ptr[T any](v T) *T {
	return &v
}

func Test_UserRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("create user ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			user, err := r.CreateUser(t.Context(), "Alice@Example.com", "hashedpassword123", ptr("https://avatar"))

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, user.ID)
			assert.Equal(t, "alice@example.com", user.Email, "email must be stored lowercased")
			assert.Equal(t, "hashedpassword123", user.HashedPassword)
			assert.False(t, user.Confirmed, "new user must be unconfirmed")
			assert.Nil(t, user.RefreshFingerprint, "new user must not have session")
			assert.Equal(t, "https://avatar", *user.Avatar)
			assert.WithinDuration(t, time.Now(), user.CreatedAt, time.Second, "CreatedAt should be recent")
		})
	})

	t.Run("create user with taken email fail", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			_, err := r.CreateUser(t.Context(), "bob@example.com", "hash", nil)
			require.NoError(t, err)

			_, err = r.CreateUser(t.Context(), "BOB@example.com", "otherhash", nil)

			require.ErrorIs(t, err, apperrors.ErrEmailTaken, "emails must be compared case-insensitively")
		})
	})

	t.Run("get user by id ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), "findbyid@example.com", "hashedpassword123", nil)
			require.NoError(t, err)

			got, err := r.GetUserByID(t.Context(), created.ID)

			require.NoError(t, err)
			assert.Equal(t, created, got)
		})
	})

	t.Run("get user by id not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			_, err := r.GetUserByID(t.Context(), uuid.New())

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound, "should return well known error")
		})
	})

	t.Run("get user by email ignore case", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), "findbyemail@example.com", "hashedpassword123", nil)
			require.NoError(t, err)

			got, err := r.GetUserByEmail(t.Context(), "FindByEmail@Example.COM")

			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)
		})
	})

	t.Run("get user by email not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			_, err := r.GetUserByEmail(t.Context(), "nobody@example.com")

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("set confirmed", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), "confirm@example.com", "hash", nil)
			require.NoError(t, err)

			err = r.SetConfirmed(t.Context(), created.ID)
			require.NoError(t, err)

			got, err := r.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			assert.True(t, got.Confirmed)
		})
	})

	t.Run("set confirmed unknown user", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			err := r.SetConfirmed(t.Context(), uuid.New())

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("set and clear refresh fingerprint", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), "session@example.com", "hash", nil)
			require.NoError(t, err)

			err = r.SetRefreshFingerprint(t.Context(), created.ID, ptr("fp-1"))
			require.NoError(t, err)
			got, err := r.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			require.NotNil(t, got.RefreshFingerprint)
			assert.Equal(t, "fp-1", *got.RefreshFingerprint)

			err = r.SetRefreshFingerprint(t.Context(), created.ID, nil)
			require.NoError(t, err)
			got, err = r.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			assert.Nil(t, got.RefreshFingerprint)
		})
	})

	t.Run("swap refresh fingerprint", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), "swap@example.com", "hash", nil)
			require.NoError(t, err)
			err = r.SetRefreshFingerprint(t.Context(), created.ID, ptr("fp-old"))
			require.NoError(t, err)

			err = r.SwapRefreshFingerprint(t.Context(), created.ID, "fp-old", "fp-new")
			require.NoError(t, err)

			got, err := r.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, "fp-new", *got.RefreshFingerprint)
		})
	})

	t.Run("swap stale refresh fingerprint", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), "stale@example.com", "hash", nil)
			require.NoError(t, err)
			err = r.SetRefreshFingerprint(t.Context(), created.ID, ptr("fp-current"))
			require.NoError(t, err)

			err = r.SwapRefreshFingerprint(t.Context(), created.ID, "fp-previous", "fp-new")

			require.ErrorIs(t, err, apperrors.ErrStaleToken)
			got, err := r.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, "fp-current", *got.RefreshFingerprint, "stale swap must not touch stored fingerprint")
		})
	})

	t.Run("swap when no session", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), "nosession@example.com", "hash", nil)
			require.NoError(t, err)

			err = r.SwapRefreshFingerprint(t.Context(), created.ID, "fp-any", "fp-new")

			require.ErrorIs(t, err, apperrors.ErrStaleToken)
		})
	})

	t.Run("set password", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), "password@example.com", "old-hash", nil)
			require.NoError(t, err)
			err = r.SetRefreshFingerprint(t.Context(), created.ID, ptr("fp"))
			require.NoError(t, err)

			err = r.SetPassword(t.Context(), created.ID, "new-hash")
			require.NoError(t, err)

			got, err := r.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, "new-hash", got.HashedPassword)
			assert.Nil(t, got.RefreshFingerprint, "password change must end session")
		})
	})

	t.Run("set avatar", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), "avatar@example.com", "hash", nil)
			require.NoError(t, err)

			got, err := r.SetAvatar(t.Context(), created.ID, ptr("https://cdn/avatar.png"))

			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)
			assert.Equal(t, "https://cdn/avatar.png", *got.Avatar)
		})
	})

	t.Run("set avatar unknown user", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			_, err := r.SetAvatar(t.Context(), uuid.New(), ptr("https://cdn/avatar.png"))

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})
}
