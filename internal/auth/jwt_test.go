// AngelaMos | 2026
// jwt_test.go

package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/authflow/internal/config"
	"github.com/carterperez-dev/templates/authflow/internal/core"
	"github.com/carterperez-dev/templates/authflow/internal/middleware"
)

func newTestJWTManager(t *testing.T) *JWTManager {
	t.Helper()

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")
	require.NoError(t, GenerateKeyPair(privPath, pubPath))

	m, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath: privPath,
		PublicKeyPath:  pubPath,
		SessionTTL:     time.Hour,
		Issuer:         "authflow-test",
		Audience:       "authflow-test-web",
	})
	require.NoError(t, err)
	return m
}

func sampleClaims() middleware.SessionClaims {
	return middleware.SessionClaims{
		UserID:        "5f2b7a0e-4c1d-4f7a-9b7e-3f0c2d1e8a11",
		Email:         "ada@example.com",
		Username:      "ada_l",
		Name:          "Ada Lovelace",
		Avatar:        "https://ui-avatars.com/api/?name=Ada%20Lovelace&background=random",
		Bio:           "engines",
		Location:      "London",
		Website:       "https://example.com",
		JoinedAt:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Followers:     7,
		Following:     3,
		Posts:         42,
		IsActive:      true,
		EmailVerified: true,
	}
}

func TestIssueAndParseSession(t *testing.T) {
	m := newTestJWTManager(t)

	session, err := m.IssueSession(sampleClaims())
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.NotEmpty(t, session.JTI)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, 5*time.Second)

	claims, err := m.ParseSession(session.Token)
	require.NoError(t, err)

	want := sampleClaims()
	assert.Equal(t, session.JTI, claims.JTI)
	assert.Equal(t, want.UserID, claims.UserID)
	assert.Equal(t, want.Email, claims.Email)
	assert.Equal(t, want.Username, claims.Username)
	assert.Equal(t, want.Name, claims.Name)
	assert.Equal(t, want.Avatar, claims.Avatar)
	assert.Equal(t, want.Bio, claims.Bio)
	assert.Equal(t, want.Location, claims.Location)
	assert.Equal(t, want.Website, claims.Website)
	assert.True(t, want.JoinedAt.Equal(claims.JoinedAt))
	assert.Equal(t, 7, claims.Followers)
	assert.Equal(t, 3, claims.Following)
	assert.Equal(t, 42, claims.Posts)
	assert.True(t, claims.IsActive)
	assert.True(t, claims.EmailVerified)
	assert.False(t, claims.ExpiresAt.IsZero())
}

func TestParseSessionExpired(t *testing.T) {
	m := newTestJWTManager(t)
	m.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }

	session, err := m.IssueSession(sampleClaims())
	require.NoError(t, err)

	_, err = m.ParseSession(session.Token)
	require.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestParseSessionTampered(t *testing.T) {
	m := newTestJWTManager(t)

	session, err := m.IssueSession(sampleClaims())
	require.NoError(t, err)

	tampered := session.Token[:len(session.Token)-4] + "AAAA"
	_, err = m.ParseSession(tampered)
	require.ErrorIs(t, err, core.ErrTokenInvalid)

	_, err = m.ParseSession("not-a-token")
	require.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestParseSessionForeignKey(t *testing.T) {
	issuer := newTestJWTManager(t)
	verifier := newTestJWTManager(t)

	session, err := issuer.IssueSession(sampleClaims())
	require.NoError(t, err)

	_, err = verifier.ParseSession(session.Token)
	require.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestKeyIDPublished(t *testing.T) {
	m := newTestJWTManager(t)
	assert.Len(t, m.GetKeyID(), 8)

	rec := httptest.NewRecorder()
	m.GetJWKSHandler()(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"kid":"`+m.GetKeyID()+`"`)
	assert.NotContains(t, rec.Body.String(), `"d":`)
}

func TestKeyIDStableAcrossLoads(t *testing.T) {
	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	require.NoError(t, GenerateKeyPair(privPath, filepath.Join(dir, "public.pem")))

	cfg := config.JWTConfig{
		PrivateKeyPath: privPath,
		SessionTTL:     time.Hour,
		Issuer:         "authflow-test",
		Audience:       "authflow-test-web",
	}

	first, err := NewJWTManager(cfg)
	require.NoError(t, err)
	second, err := NewJWTManager(cfg)
	require.NoError(t, err)

	assert.Equal(t, first.GetKeyID(), second.GetKeyID())

	session, err := first.IssueSession(sampleClaims())
	require.NoError(t, err)
	_, err = second.ParseSession(session.Token)
	assert.NoError(t, err)
}

func TestNewJWTManagerMissingKey(t *testing.T) {
	_, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath: filepath.Join(t.TempDir(), "absent.pem"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read private key")
}
