// AngelaMos | 2026
// entity.go

package auth

import (
	"time"

	"github.com/carterperez-dev/templates/authflow/internal/middleware"
)

// UserInfo is the account view auth needs from the user store. It carries
// the password hash and must never be serialized directly.
type UserInfo struct {
	ID            string
	Email         string
	Username      string
	PasswordHash  string
	Name          string
	Bio           string
	Location      string
	Website       string
	Avatar        string
	Followers     int
	Following     int
	Posts         int
	IsActive      bool
	EmailVerified bool
	JoinedAt      time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewAccount is what registration hands to the user store.
type NewAccount struct {
	Email        string
	Username     string
	PasswordHash string
	Name         string
	Bio          string
	Location     string
	Website      string
}

// Session is an issued session token and its identity.
type Session struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

func (u *UserInfo) sessionClaims() middleware.SessionClaims {
	return middleware.SessionClaims{
		UserID:        u.ID,
		Email:         u.Email,
		Username:      u.Username,
		Name:          u.Name,
		Avatar:        u.Avatar,
		Bio:           u.Bio,
		Location:      u.Location,
		Website:       u.Website,
		JoinedAt:      u.JoinedAt,
		Followers:     u.Followers,
		Following:     u.Following,
		Posts:         u.Posts,
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
	}
}
