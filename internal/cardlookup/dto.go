package cardlookup

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kartupintar-backend/internal/members"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/types"
)

// ScanInput describes where and how a card was read.
type ScanInput struct {
	Source    enums.ScanSource
	Lat       float64
	Lng       float64
	PlaceName *string
}

func (in ScanInput) validate() error {
	if !in.Source.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid scan source")
	}
	if err := (types.Point{Lat: in.Lat, Lng: in.Lng}).Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	if in.PlaceName != nil && len(strings.TrimSpace(*in.PlaceName)) > 200 {
		return pkgerrors.New(pkgerrors.CodeValidation, "place_name too long")
	}
	return nil
}

// ScanResult is the outcome of a successful scan.
type ScanResult struct {
	Member *models.Member
	Event  *models.LocationEvent
}

// LocationEventDTO is the API shape of a location sample.
type LocationEventDTO struct {
	ID         uuid.UUID        `json:"id"`
	MemberID   uuid.UUID        `json:"member_id"`
	Latitude   float64          `json:"lat"`
	Longitude  float64          `json:"lng"`
	PlaceName  *string          `json:"place_name,omitempty"`
	Source     enums.ScanSource `json:"source"`
	ScannedBy  *uuid.UUID       `json:"scanned_by,omitempty"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// FromEvent maps a persisted location sample.
func FromEvent(e *models.LocationEvent) LocationEventDTO {
	return LocationEventDTO{
		ID:         e.ID,
		MemberID:   e.MemberID,
		Latitude:   e.Latitude,
		Longitude:  e.Longitude,
		PlaceName:  e.PlaceName,
		Source:     e.Source,
		ScannedBy:  e.ScannedBy,
		RecordedAt: e.RecordedAt,
	}
}

// HistoryResult is one page of a member's location history.
type HistoryResult struct {
	Events     []LocationEventDTO `json:"events"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// TrackedMember is a card holder with a last-known location, for the tracking map.
type TrackedMember struct {
	Identity members.IdentityView `json:"member"`
	Location types.Location       `json:"location"`
}
