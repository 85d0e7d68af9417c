// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/authflow/internal/auth"
	"github.com/carterperez-dev/templates/authflow/internal/core"
	"github.com/carterperez-dev/templates/authflow/internal/events"
)

const avatarBaseURL = "https://ui-avatars.com/api/"

type Service struct {
	repo      Repository
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(
	repo Repository,
	publisher events.Publisher,
	logger *slog.Logger,
) *Service {
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.repo.ExistsByEmail(ctx, strings.ToLower(email))
}

func (s *Service) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.repo.ExistsByUsername(ctx, username)
}

// Create inserts the account. The unique constraints decide conflicts that
// slipped past the pre-checks.
func (s *Service) Create(
	ctx context.Context,
	account auth.NewAccount,
) (*auth.UserInfo, error) {
	user := &User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(account.Email),
		Username:     account.Username,
		PasswordHash: account.PasswordHash,
		Name:         account.Name,
		Bio:          account.Bio,
		Location:     account.Location,
		Website:      account.Website,
		Avatar:       AvatarURL(account.Name),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			return nil, fmt.Errorf("%w: %w", auth.ErrEmailExists, err)
		case errors.Is(err, ErrUsernameTaken):
			return nil, fmt.Errorf("%w: %w", auth.ErrUsernameExists, err)
		}
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) UpdatePasswordHash(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePasswordHash(ctx, userID, passwordHash)
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get profile: %w", core.ErrUnauthorized)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("get profile: %w", core.ErrNotFound)
	}

	return user, nil
}

func (s *Service) UpdateProfile(
	ctx context.Context,
	userID string,
	req UpdateProfileRequest,
) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("update profile: %w", core.ErrUnauthorized)
	}

	changes := req.changes()

	user, err := s.repo.UpdateProfile(ctx, userID, changes)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "profile updated", "user_id", userID)

	events.Emit(ctx, s.publisher, s.logger, events.NewEvent(
		events.TypeUserProfileUpdated,
		userID,
		map[string]any{"fields": changedFields(changes)},
	))

	return user, nil
}

func (s *Service) Deactivate(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("deactivate: %w", core.ErrUnauthorized)
	}

	if err := s.repo.Deactivate(ctx, userID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "account deactivated", "user_id", userID)

	events.Emit(ctx, s.publisher, s.logger, events.NewEvent(
		events.TypeUserDeactivated,
		userID,
		nil,
	))

	return nil
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.ListActive(ctx, params)
}

// AvatarURL builds the generated-initials avatar for a display name.
func AvatarURL(name string) string {
	return avatarBaseURL + "?name=" + encodeURIComponent(name) + "&background=random"
}

// encodeURIComponent percent-encodes every UTF-8 byte outside
// A-Z a-z 0-9 and -_.!~*'(), the set browsers leave alone.
func encodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURIUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isURIUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}

func changedFields(c ProfileChanges) []string {
	var fields []string
	if c.Name != nil {
		fields = append(fields, "name")
	}
	if c.Bio != nil {
		fields = append(fields, "bio")
	}
	if c.Location != nil {
		fields = append(fields, "location")
	}
	if c.Website != nil {
		fields = append(fields, "website")
	}
	return fields
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		PasswordHash:  u.PasswordHash,
		Name:          u.Name,
		Bio:           u.Bio,
		Location:      u.Location,
		Website:       u.Website,
		Avatar:        u.Avatar,
		Followers:     u.Followers,
		Following:     u.Following,
		Posts:         u.Posts,
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
		JoinedAt:      u.JoinedAt,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

var _ auth.UserProvider = (*Service)(nil)
