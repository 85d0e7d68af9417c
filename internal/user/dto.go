// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

// UpdateProfileRequest carries only the editable fields. Omitted and empty
// values both leave the stored value as it was.
type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty"     validate:"omitempty,min=2,max=50"`
	Bio      *string `json:"bio,omitempty"      validate:"omitempty,max=200"`
	Location *string `json:"location,omitempty" validate:"omitempty,max=100"`
	Website  *string `json:"website,omitempty"  validate:"omitempty,url,max=255"`
}

// Normalize drops empty values so they validate and apply as omitted.
func (r *UpdateProfileRequest) Normalize() {
	r.Name = nonEmpty(r.Name)
	r.Bio = nonEmpty(r.Bio)
	r.Location = nonEmpty(r.Location)
	r.Website = nonEmpty(r.Website)
}

func (r UpdateProfileRequest) changes() ProfileChanges {
	return ProfileChanges{
		Name:     nonEmpty(r.Name),
		Bio:      nonEmpty(r.Bio),
		Location: nonEmpty(r.Location),
		Website:  nonEmpty(r.Website),
	}
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
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

// PublicUserResponse is what other users see in listings.
type PublicUserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio"`
	Location  string    `json:"location"`
	Website   string    `json:"website"`
	Avatar    string    `json:"avatar"`
	Followers int       `json:"followers"`
	Following int       `json:"following"`
	Posts     int       `json:"posts"`
	JoinedAt  time.Time `json:"joined_at"`
}

type ListUsersParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search"`
}

func (p *ListUsersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToUserResponse(u *User) UserResponse {
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

func ToPublicUserResponseList(users []User) []PublicUserResponse {
	responses := make([]PublicUserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, PublicUserResponse{
			ID:        u.ID,
			Username:  u.Username,
			Name:      u.Name,
			Bio:       u.Bio,
			Location:  u.Location,
			Website:   u.Website,
			Avatar:    u.Avatar,
			Followers: u.Followers,
			Following: u.Following,
			Posts:     u.Posts,
			JoinedAt:  u.JoinedAt,
		})
	}
	return responses
}
