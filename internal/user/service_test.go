// AngelaMos | 2026
// service_test.go

package user

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/authflow/internal/auth"
	"github.com/carterperez-dev/templates/authflow/internal/core"
	"github.com/carterperez-dev/templates/authflow/internal/events"
)

type memoryRepo struct {
	mu        sync.Mutex
	users     map[string]*User
	createErr error
	clock     time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users: make(map[string]*User),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *memoryRepo) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	now := m.tick()
	u.IsActive = true
	u.CreatedAt, u.UpdatedAt, u.JoinedAt = now, now, now
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memoryRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *memoryRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) UpdateProfile(
	_ context.Context,
	id string,
	c ProfileChanges,
) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.IsActive {
		return nil, core.ErrNotFound
	}
	if c.Name != nil {
		u.Name = *c.Name
	}
	if c.Bio != nil {
		u.Bio = *c.Bio
	}
	if c.Location != nil {
		u.Location = *c.Location
	}
	if c.Website != nil {
		u.Website = *c.Website
	}
	u.UpdatedAt = m.tick()
	cp := *u
	return &cp, nil
}

func (m *memoryRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return core.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memoryRepo) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.IsActive {
		return core.ErrNotFound
	}
	u.IsActive = false
	u.UpdatedAt = m.tick()
	return nil
}

func (m *memoryRepo) ListActive(
	_ context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	params.Normalize()

	var active []User
	for _, u := range m.users {
		if u.IsActive {
			active = append(active, *u)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})

	total := len(active)
	start := min(params.Offset(), total)
	end := min(start+params.PageSize, total)
	return active[start:end], total, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestService() (*Service, *memoryRepo, *capturePublisher) {
	repo := newMemoryRepo()
	pub := &capturePublisher{}
	svc := NewService(repo, pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, repo, pub
}

func createAda(t *testing.T, svc *Service) *auth.UserInfo {
	t.Helper()
	info, err := svc.Create(context.Background(), auth.NewAccount{
		Email:        "Ada@Example.com",
		Username:     "ada_l",
		PasswordHash: "$2a$12$hash",
		Name:         "Ada Lovelace",
		Location:     "London",
		Website:      "https://example.com",
	})
	require.NoError(t, err)
	return info
}

func TestAvatarURL(t *testing.T) {
	assert.Equal(t,
		"https://ui-avatars.com/api/?name=Ada%20Lovelace&background=random",
		AvatarURL("Ada Lovelace"),
	)
	assert.Equal(t,
		"https://ui-avatars.com/api/?name=Jos%C3%A9%20%26%20Co&background=random",
		AvatarURL("José & Co"),
	)
	assert.Equal(t,
		"https://ui-avatars.com/api/?name=O'Brien%20(Jr)!&background=random",
		AvatarURL("O'Brien (Jr)!"),
	)
	assert.Equal(t,
		"https://ui-avatars.com/api/?name=a*b~c_d-e.f%2Bg%2Fh%3Fi%23&background=random",
		AvatarURL("a*b~c_d-e.f+g/h?i#"),
	)
}

func TestServiceCreate(t *testing.T) {
	svc, repo, _ := newTestService()

	info := createAda(t, svc)
	assert.Equal(t, "ada@example.com", info.Email)
	assert.Equal(t, AvatarURL("Ada Lovelace"), info.Avatar)
	assert.True(t, info.IsActive)
	assert.Len(t, repo.users, 1)

	t.Run("constraint violations map to auth conflicts", func(t *testing.T) {
		repo.createErr = ErrEmailTaken
		_, err := svc.Create(context.Background(), auth.NewAccount{Email: "x@example.com"})
		require.ErrorIs(t, err, auth.ErrEmailExists)

		repo.createErr = ErrUsernameTaken
		_, err = svc.Create(context.Background(), auth.NewAccount{Email: "y@example.com"})
		require.ErrorIs(t, err, auth.ErrUsernameExists)
	})
}

func TestServiceUpdateProfileBioOnly(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService()
	info := createAda(t, svc)

	before, err := svc.GetProfile(ctx, info.ID)
	require.NoError(t, err)

	bio := "first programmer"
	empty := ""
	updated, err := svc.UpdateProfile(ctx, info.ID, UpdateProfileRequest{
		Bio:  &bio,
		Name: &empty,
	})
	require.NoError(t, err)

	assert.Equal(t, "first programmer", updated.Bio)
	assert.Equal(t, before.Name, updated.Name)
	assert.Equal(t, before.Location, updated.Location)
	assert.Equal(t, before.Website, updated.Website)
	assert.True(t, updated.UpdatedAt.After(before.UpdatedAt))

	require.Equal(t, []string{events.TypeUserProfileUpdated}, pub.types())
	assert.Equal(t, []string{"bio"}, pub.events[0].Data["fields"])
}

func TestServiceDeactivate(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService()
	info := createAda(t, svc)

	require.NoError(t, svc.Deactivate(ctx, info.ID))
	assert.Equal(t, []string{events.TypeUserDeactivated}, pub.types())

	internal, err := svc.GetByID(ctx, info.ID)
	require.NoError(t, err)
	assert.False(t, internal.IsActive)

	_, err = svc.GetProfile(ctx, info.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	users, total, err := svc.ListUsers(ctx, ListUsersParams{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, users)

	require.ErrorIs(t, svc.Deactivate(ctx, info.ID), core.ErrNotFound)
}

func TestServiceRequiresUser(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.GetProfile(context.Background(), "")
	require.ErrorIs(t, err, core.ErrUnauthorized)

	require.ErrorIs(t, svc.Deactivate(context.Background(), ""), core.ErrUnauthorized)
}
