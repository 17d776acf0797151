package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
)

// MenuItem is a priced canteen product that purchases can reference.
type MenuItem struct {
	ID          uuid.UUID          `gorm:"column:id;size:36;primaryKey"`
	Name        string             `gorm:"column:name;size:100;not null"`
	Category    enums.MenuCategory `gorm:"column:category;size:16;not null;index"`
	Price       int64              `gorm:"column:price;not null;check:chk_menu_items_price_positive,price > 0"`
	IsAvailable bool               `gorm:"column:is_available;not null"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *MenuItem) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
