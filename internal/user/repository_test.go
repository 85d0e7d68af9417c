// AngelaMos | 2026
// repository_test.go

package user

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/authflow/internal/core"
)

var columnNames = []string{
	"id", "email", "username", "password_hash", "name", "bio", "location",
	"website", "avatar", "followers", "following", "posts", "is_active",
	"email_verified", "created_at", "updated_at", "joined_at",
}

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	return NewRepository(sqlx.NewDb(db, "pgx")), mock
}

func userRow(id, email, username string, active bool) *sqlmock.Rows {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return sqlmock.NewRows(columnNames).AddRow(
		id, email, username, "$2a$12$hash", "Ada Lovelace", "bio", "London",
		"https://example.com", "https://ui-avatars.com/api/?name=Ada", 1, 2, 3,
		active, false, now, now, now,
	)
}

func TestRepositoryCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored row", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		u := &User{
			ID:           "u-1",
			Email:        "ada@example.com",
			Username:     "ada_l",
			PasswordHash: "$2a$12$hash",
			Name:         "Ada Lovelace",
			Avatar:       AvatarURL("Ada Lovelace"),
		}

		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("u-1", "ada@example.com", "ada_l", "$2a$12$hash",
				"Ada Lovelace", "", "", "", u.Avatar).
			WillReturnRows(userRow("u-1", "ada@example.com", "ada_l", true))

		require.NoError(t, repo.Create(ctx, u))
		assert.True(t, u.IsActive)
		assert.False(t, u.CreatedAt.IsZero())
	})

	cases := []struct {
		name       string
		constraint string
		want       error
	}{
		{"email constraint", "users_email_key", ErrEmailTaken},
		{"username constraint", "users_username_key", ErrUsernameTaken},
		{"other unique constraint", "users_pkey", core.ErrDuplicateKey},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)

			mock.ExpectQuery(`INSERT INTO users`).
				WillReturnError(&pgconn.PgError{
					Code:           "23505",
					ConstraintName: tc.constraint,
				})

			err := repo.Create(ctx, &User{ID: "u-1"})
			require.ErrorIs(t, err, tc.want)
			require.ErrorIs(t, err, core.ErrDuplicateKey)
		})
	}
}

func TestRepositoryGetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("deactivated accounts remain retrievable", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
			WithArgs("u-1").
			WillReturnRows(userRow("u-1", "ada@example.com", "ada_l", false))

		u, err := repo.GetByID(ctx, "u-1")
		require.NoError(t, err)
		assert.False(t, u.IsActive)
		assert.Equal(t, "ada_l", u.Username)
		assert.Equal(t, 3, u.Posts)
	})

	t.Run("missing row", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(columnNames))

		_, err := repo.GetByID(ctx, "nope")
		require.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestRepositoryExists(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM users WHERE email = \$1\)`).
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM users WHERE username = \$1\)`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.ExistsByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByUsername(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepositoryUpdateProfile(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)

	bio := "new bio"
	mock.ExpectQuery(`UPDATE users\s+SET name = COALESCE`).
		WithArgs("u-1", nil, "new bio", nil, nil).
		WillReturnRows(userRow("u-1", "ada@example.com", "ada_l", true))

	u, err := repo.UpdateProfile(ctx, "u-1", ProfileChanges{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
}

func TestRepositoryDeactivate(t *testing.T) {
	ctx := context.Background()

	t.Run("flips is_active", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`UPDATE users\s+SET is_active = FALSE`).
			WithArgs("u-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Deactivate(ctx, "u-1"))
	})

	t.Run("already inactive", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`UPDATE users\s+SET is_active = FALSE`).
			WithArgs("u-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.ErrorIs(t, repo.Deactivate(ctx, "u-1"), core.ErrNotFound)
	})
}

func TestRepositoryListActive(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE is_active AND \(username ILIKE \$1`).
		WithArgs(`%ada\_%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`WHERE is_active .*ORDER BY created_at DESC\s+LIMIT \$2 OFFSET \$3`).
		WithArgs(`%ada\_%`, 10, 10).
		WillReturnRows(userRow("u-1", "ada@example.com", "ada_l", true))

	users, total, err := repo.ListActive(ctx, ListUsersParams{
		Page:     2,
		PageSize: 10,
		Search:   "ada_",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "ada_l", users[0].Username)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}
