package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	"github.com/angelmondragon/kartupintar-backend/pkg/types"
)

// Member is a card holder and owner of a stored-value wallet.
type Member struct {
	ID            uuid.UUID        `gorm:"column:id;size:36;primaryKey"`
	CardID        string           `gorm:"column:card_id;size:32;not null;uniqueIndex"`
	ServiceNumber string           `gorm:"column:service_number;size:32;not null;uniqueIndex"`
	Name          string           `gorm:"column:name;size:100;not null"`
	Rank          string           `gorm:"column:rank;size:50;not null"`
	Unit          string           `gorm:"column:unit;size:100;not null"`
	Position      *string          `gorm:"column:position;size:100"`
	Department    *string          `gorm:"column:department;size:100"`
	BirthPlace    *string          `gorm:"column:birth_place;size:100"`
	BirthDate     *time.Time       `gorm:"column:birth_date"`
	BloodType     *enums.BloodType `gorm:"column:blood_type;size:2"`
	Religion      *string          `gorm:"column:religion;size:20"`
	Address       *string          `gorm:"column:address"`
	Phone         *string          `gorm:"column:phone;size:20"`
	PhotoURL      *string          `gorm:"column:photo_url;size:255"`
	NFCUID        *string          `gorm:"column:nfc_uid;size:64;uniqueIndex"`
	QRPayload     *string          `gorm:"column:qr_payload;size:64;uniqueIndex"`
	Balance       int64            `gorm:"column:balance;not null;default:0;check:chk_members_balance_non_negative,balance >= 0"`
	CardStatus    enums.CardStatus `gorm:"column:card_status;size:16;not null;default:active;index"`

	LastLatitude     *float64   `gorm:"column:last_latitude"`
	LastLongitude    *float64   `gorm:"column:last_longitude"`
	LastLocationName *string    `gorm:"column:last_location_name;size:200"`
	LastSeenAt       *time.Time `gorm:"column:last_seen_at"`

	Version   int64     `gorm:"column:version;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// NewMember builds a member with a zero balance after validating the fields
// every card holder must carry.
func NewMember(cardID, serviceNumber, name, rank, unit string) (*Member, error) {
	m := &Member{
		ID:            uuid.New(),
		CardID:        strings.TrimSpace(cardID),
		ServiceNumber: strings.TrimSpace(serviceNumber),
		Name:          strings.TrimSpace(name),
		Rank:          strings.TrimSpace(rank),
		Unit:          strings.TrimSpace(unit),
		CardStatus:    enums.CardStatusActive,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the record-level invariants of a member.
func (m *Member) Validate() error {
	if m == nil {
		return errors.New("member is nil")
	}
	switch {
	case m.CardID == "":
		return errors.New("card_id is required")
	case m.ServiceNumber == "":
		return errors.New("service_number is required")
	case m.Name == "":
		return errors.New("name is required")
	case m.Rank == "":
		return errors.New("rank is required")
	case m.Unit == "":
		return errors.New("unit is required")
	}
	if m.Balance < 0 {
		return fmt.Errorf("balance must not be negative, got %d", m.Balance)
	}
	if !m.CardStatus.IsValid() {
		return fmt.Errorf("invalid card status %q", m.CardStatus)
	}
	if m.BloodType != nil && !m.BloodType.IsValid() {
		return fmt.Errorf("invalid blood type %q", *m.BloodType)
	}
	return nil
}

// LastKnownLocation returns the mirrored location snapshot, if any.
func (m *Member) LastKnownLocation() *types.Location {
	if m == nil || m.LastLatitude == nil || m.LastLongitude == nil || m.LastSeenAt == nil {
		return nil
	}
	loc := &types.Location{
		Point: types.Point{Lat: *m.LastLatitude, Lng: *m.LastLongitude},
		At:    *m.LastSeenAt,
	}
	if m.LastLocationName != nil {
		loc.Name = *m.LastLocationName
	}
	return loc
}

func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CardStatus == "" {
		m.CardStatus = enums.CardStatusActive
	}
	return m.Validate()
}
