package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
)

// LocationEvent is an append-only location sample captured when a card is
// scanned or charged.
type LocationEvent struct {
	ID         uuid.UUID        `gorm:"column:id;size:36;primaryKey"`
	MemberID   uuid.UUID        `gorm:"column:member_id;size:36;not null;index:idx_location_events_member_recorded,priority:1"`
	Latitude   float64          `gorm:"column:latitude;not null"`
	Longitude  float64          `gorm:"column:longitude;not null"`
	PlaceName  *string          `gorm:"column:place_name;size:200"`
	Source     enums.ScanSource `gorm:"column:source;size:16;not null"`
	ScannedBy  *uuid.UUID       `gorm:"column:scanned_by;size:36"`
	RecordedAt time.Time        `gorm:"column:recorded_at;not null;index:idx_location_events_member_recorded,priority:2"`
}

func (e *LocationEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
