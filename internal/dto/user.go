package dto

import (
	"time"

	"github.com/noah-isme/creatia-api/internal/models"
)

// CreateUserRequest is the admin payload for POST /admin/users.
type CreateUserRequest struct {
	Username    string `json:"username" validate:"required,max=80"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	Role        string `json:"role" validate:"omitempty,oneof=admin supervisor researcher user"`
	FullName    string `json:"full_name" validate:"omitempty,max=255"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=40"`
}

// UpdateUserRequest is the admin payload for PATCH /admin/users/{id}. Nil fields are untouched.
type UpdateUserRequest struct {
	Username    *string `json:"username"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phone_number"`
	Role        *string `json:"role"`
	Password    *string `json:"password"`
	IsActive    *Flag   `json:"is_active" swaggertype:"boolean"`
}

// UpdateProfileRequest is the payload for PUT /profile.
type UpdateProfileRequest struct {
	FullName       *string  `json:"full_name"`
	Username       *string  `json:"username"`
	Email          *string  `json:"email"`
	PhoneNumber    *string  `json:"phone_number"`
	Education      *string  `json:"education"`
	Responsibility *string  `json:"responsibility"`
	AvatarScale    *float64 `json:"avatar_scale"`
	AvatarOffsetX  *float64 `json:"avatar_offset_x"`
	AvatarOffsetY  *float64 `json:"avatar_offset_y"`
	Password       *string  `json:"password"`
}

// ProfileUpload is one multipart file of POST /profile/files.
type ProfileUpload struct {
	Field       string
	Filename    string
	Size        int64
	ContentType string
}

// CreateRoleRequest is the payload of POST /roles.
type CreateRoleRequest struct {
	Name        string `json:"name"`
	Permissions string `json:"permissions"`
}

// FileLink is a stored file exposed through a signed url.
type FileLink struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// UserResponse is the public user payload.
type UserResponse struct {
	ID             int64                 `json:"id"`
	Username       string                `json:"username"`
	Email          string                `json:"email"`
	FullName       *string               `json:"full_name"`
	PhoneNumber    *string               `json:"phone_number"`
	Education      *string               `json:"education"`
	Responsibility *string               `json:"responsibility"`
	Role           models.UserRole       `json:"role"`
	IsActive       bool                  `json:"is_active"`
	CreatedAt      time.Time             `json:"created_at"`
	LastLogin      *time.Time            `json:"last_login"`
	AvatarURL      string                `json:"avatar_url,omitempty"`
	AvatarScale    float64               `json:"avatar_scale"`
	AvatarOffsetX  float64               `json:"avatar_offset_x"`
	AvatarOffsetY  float64               `json:"avatar_offset_y"`
	ResumeURL      string                `json:"resume_url,omitempty"`
	ProfileFiles   map[string]FileLink   `json:"profile_files"`
	Stats          *models.UserTaskStats `json:"stats,omitempty"`
}
