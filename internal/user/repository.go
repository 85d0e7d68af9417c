// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carterperez-dev/templates/authflow/internal/core"
)

const (
	emailConstraint    = "users_email_key"
	usernameConstraint = "users_username_key"
)

var (
	ErrEmailTaken    = fmt.Errorf("email taken: %w", core.ErrDuplicateKey)
	ErrUsernameTaken = fmt.Errorf("username taken: %w", core.ErrDuplicateKey)
)

const userColumns = `id, email, username, password_hash, name, bio, location,
		       website, avatar, followers, following, posts, is_active,
		       email_verified, created_at, updated_at, joined_at`

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	UpdateProfile(ctx context.Context, id string, changes ProfileChanges) (*User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	Deactivate(ctx context.Context, id string) error
	ListActive(ctx context.Context, params ListUsersParams) ([]User, int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, username, password_hash, name, bio,
		                   location, website, avatar)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + userColumns

	err := r.db.GetContext(ctx, user, query,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.Name,
		user.Bio,
		user.Location,
		user.Website,
		user.Avatar,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", mapConstraintError(err))
	}

	return nil
}

// GetByID returns deactivated accounts too; callers decide what inactive
// means for them.
func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user User
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var user User
	err := r.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &user, nil
}

func (r *repository) ExistsByEmail(
	ctx context.Context,
	email string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}

	return exists, nil
}

func (r *repository) ExistsByUsername(
	ctx context.Context,
	username string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, username); err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}

	return exists, nil
}

func (r *repository) UpdateProfile(
	ctx context.Context,
	id string,
	changes ProfileChanges,
) (*User, error) {
	query := `
		UPDATE users
		SET name = COALESCE($2::text, name),
		    bio = COALESCE($3::text, bio),
		    location = COALESCE($4::text, location),
		    website = COALESCE($5::text, website),
		    updated_at = NOW()
		WHERE id = $1 AND is_active
		RETURNING ` + userColumns

	var user User
	err := r.db.GetContext(ctx, &user, query,
		id,
		changes.Name,
		changes.Bio,
		changes.Location,
		changes.Website,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update profile: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return &user, nil
}

func (r *repository) UpdatePasswordHash(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update password hash: %w", core.ErrNotFound)
	}

	return nil
}

// Deactivate is the soft delete: the row stays, is_active goes false.
func (r *repository) Deactivate(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_active`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("deactivate user: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) ListActive(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	conditions := []string{"is_active"}
	var args []any
	argIdx := 1

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(username ILIKE $%d OR name ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM users WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		userColumns, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

// mapConstraintError turns a unique violation into the matching sentinel
// using the constraint name.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}

	switch pgErr.ConstraintName {
	case emailConstraint:
		return ErrEmailTaken
	case usernameConstraint:
		return ErrUsernameTaken
	default:
		return core.ErrDuplicateKey
	}
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
