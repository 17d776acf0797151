package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
)

// User is an operator account (admin, canteen operator, or a member's own
// login). MemberID links the account to a card holder when present.
type User struct {
	ID           uuid.UUID      `gorm:"column:id;size:36;primaryKey"`
	Username     string         `gorm:"column:username;size:50;not null;uniqueIndex"`
	PasswordHash string         `gorm:"column:password_hash;size:255;not null"`
	Role         enums.UserRole `gorm:"column:role;size:32;not null;default:user"`
	Name         string         `gorm:"column:name;size:100;not null"`
	Email        *string        `gorm:"column:email;size:120;uniqueIndex"`
	IsActive     bool           `gorm:"column:is_active;not null"`
	MemberID     *uuid.UUID     `gorm:"column:member_id;size:36;index"`
	LastLoginAt  *time.Time     `gorm:"column:last_login_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
