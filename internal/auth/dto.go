// AngelaMos | 2026
// dto.go

package auth

import (
	"time"
)

// LoginRequest is validated inside the credential pipeline so every
// rejection collapses into one response.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Captcha  string `json:"captcha"`
}

type RegisterRequest struct {
	Name            string `json:"name"             validate:"required,min=2,max=50"`
	Username        string `json:"username"         validate:"required,min=3,max=20,username"`
	Email           string `json:"email"            validate:"required,email,max=255"`
	Password        string `json:"password"         validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	Bio             string `json:"bio"              validate:"max=200"`
	Location        string `json:"location"         validate:"max=100"`
	Website         string `json:"website"          validate:"omitempty,url,max=255"`
	Captcha         string `json:"captcha"`
}

type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	Name          string    `json:"name"`
	Bio           string    `json:"bio"`
	Location      string    `json:"location"`
	Website       string    `json:"website"`
	Avatar        string    `json:"avatar"`
	Followers     int       `json:"followers"`
	Following     int       `json:"following"`
	Posts         int       `json:"posts"`
	IsActive      bool      `json:"is_active"`
	EmailVerified bool      `json:"email_verified"`
	JoinedAt      time.Time `json:"joined_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func ToUserResponse(u *UserInfo) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
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

type LoginResponse struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresIn int          `json:"expires_in"`
	ExpiresAt time.Time    `json:"expires_at"`
}
