package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Username    string         `json:"username"`
	Name        string         `json:"name"`
	Role        enums.UserRole `json:"role"`
	Email       *string        `json:"email,omitempty"`
	IsActive    bool           `json:"is_active"`
	MemberID    *uuid.UUID     `json:"member_id,omitempty"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CreateInput is the admin request to open an operator account.
type CreateInput struct {
	Username string         `json:"username" validate:"required,min=3,max=50"`
	Password string         `json:"password" validate:"required,min=8,max=128"`
	Name     string         `json:"name" validate:"required,max=100"`
	Role     enums.UserRole `json:"role" validate:"required"`
	Email    *string        `json:"email,omitempty" validate:"omitempty,email,max=120"`
	MemberID *uuid.UUID     `json:"member_id,omitempty"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Username     string
	PasswordHash string
	Name         string
	Role         enums.UserRole
	Email        *string
	MemberID     *uuid.UUID
	IsActive     *bool
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:          u.ID,
		Username:    u.Username,
		Name:        u.Name,
		Role:        u.Role,
		Email:       u.Email,
		IsActive:    u.IsActive,
		MemberID:    u.MemberID,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	isActive := true
	if c.IsActive != nil {
		isActive = *c.IsActive
	}

	return &models.User{
		Username:     c.Username,
		PasswordHash: c.PasswordHash,
		Name:         c.Name,
		Role:         c.Role,
		Email:        c.Email,
		MemberID:     c.MemberID,
		IsActive:     isActive,
	}
}

// NormalizeUsername lower-cases and trims a login name.
func NormalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
