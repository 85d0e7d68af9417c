// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID            string    `db:"id"             json:"id"`
	Email         string    `db:"email"          json:"email"`
	Username      string    `db:"username"       json:"username"`
	PasswordHash  string    `db:"password_hash"  json:"-"`
	Name          string    `db:"name"           json:"name"`
	Bio           string    `db:"bio"            json:"bio"`
	Location      string    `db:"location"       json:"location"`
	Website       string    `db:"website"        json:"website"`
	Avatar        string    `db:"avatar"         json:"avatar"`
	Followers     int       `db:"followers"      json:"followers"`
	Following     int       `db:"following"      json:"following"`
	Posts         int       `db:"posts"          json:"posts"`
	IsActive      bool      `db:"is_active"      json:"is_active"`
	EmailVerified bool      `db:"email_verified" json:"email_verified"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"     json:"updated_at"`
	JoinedAt      time.Time `db:"joined_at"      json:"joined_at"`
}

// ProfileChanges holds the editable profile fields. A nil field is left
// untouched.
type ProfileChanges struct {
	Name     *string
	Bio      *string
	Location *string
	Website  *string
}

func (c ProfileChanges) Empty() bool {
	return c.Name == nil && c.Bio == nil && c.Location == nil && c.Website == nil
}
