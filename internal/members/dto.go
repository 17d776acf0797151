package members

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/money"
	"github.com/angelmondragon/kartupintar-backend/pkg/types"
)

// MemberDTO is the admin view of a card holder, balance included.
type MemberDTO struct {
	ID               uuid.UUID        `json:"id"`
	CardID           string           `json:"card_id"`
	ServiceNumber    string           `json:"service_number"`
	Name             string           `json:"name"`
	Rank             string           `json:"rank"`
	Unit             string           `json:"unit"`
	Position         *string          `json:"position,omitempty"`
	Department       *string          `json:"department,omitempty"`
	BirthPlace       *string          `json:"birth_place,omitempty"`
	BirthDate        *time.Time       `json:"birth_date,omitempty"`
	BloodType        *enums.BloodType `json:"blood_type,omitempty"`
	Religion         *string          `json:"religion,omitempty"`
	Address          *string          `json:"address,omitempty"`
	Phone            *string          `json:"phone,omitempty"`
	PhotoURL         *string          `json:"photo_url,omitempty"`
	NFCUID           *string          `json:"nfc_uid,omitempty"`
	QRPayload        *string          `json:"qr_payload,omitempty"`
	Balance          int64            `json:"balance"`
	BalanceFormatted string           `json:"balance_formatted"`
	CardStatus       enums.CardStatus `json:"card_status"`
	LastLocation     *types.Location  `json:"last_location,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// IdentityView is what a scan terminal shows: identity without the wallet.
type IdentityView struct {
	ID            uuid.UUID        `json:"id"`
	CardID        string           `json:"card_id"`
	ServiceNumber string           `json:"service_number"`
	Name          string           `json:"name"`
	Rank          string           `json:"rank"`
	Unit          string           `json:"unit"`
	Position      *string          `json:"position,omitempty"`
	Department    *string          `json:"department,omitempty"`
	BloodType     *enums.BloodType `json:"blood_type,omitempty"`
	PhotoURL      *string          `json:"photo_url,omitempty"`
	CardStatus    enums.CardStatus `json:"card_status"`
}

// FromModel maps the persisted member into a DTO.
func FromModel(m *models.Member) *MemberDTO {
	if m == nil {
		return nil
	}
	return &MemberDTO{
		ID:               m.ID,
		CardID:           m.CardID,
		ServiceNumber:    m.ServiceNumber,
		Name:             m.Name,
		Rank:             m.Rank,
		Unit:             m.Unit,
		Position:         m.Position,
		Department:       m.Department,
		BirthPlace:       m.BirthPlace,
		BirthDate:        m.BirthDate,
		BloodType:        m.BloodType,
		Religion:         m.Religion,
		Address:          m.Address,
		Phone:            m.Phone,
		PhotoURL:         m.PhotoURL,
		NFCUID:           m.NFCUID,
		QRPayload:        m.QRPayload,
		Balance:          m.Balance,
		BalanceFormatted: money.FormatRupiah(m.Balance),
		CardStatus:       m.CardStatus,
		LastLocation:     m.LastKnownLocation(),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// NewIdentityView strips wallet and location data from a member.
func NewIdentityView(m *models.Member) *IdentityView {
	if m == nil {
		return nil
	}
	return &IdentityView{
		ID:            m.ID,
		CardID:        m.CardID,
		ServiceNumber: m.ServiceNumber,
		Name:          m.Name,
		Rank:          m.Rank,
		Unit:          m.Unit,
		Position:      m.Position,
		Department:    m.Department,
		BloodType:     m.BloodType,
		PhotoURL:      m.PhotoURL,
		CardStatus:    m.CardStatus,
	}
}

// Profile carries the optional descriptive fields shared by create and update.
type Profile struct {
	Position   *string
	Department *string
	BirthPlace *string
	BirthDate  *time.Time
	BloodType  *enums.BloodType
	Religion   *string
	Address    *string
	Phone      *string
	PhotoURL   *string
}

// CreateInput holds creation-time data. The card id is always generated and
// the balance always starts at zero.
type CreateInput struct {
	ServiceNumber string
	Name          string
	Rank          string
	Unit          string
	NFCUID        *string
	QRPayload     *string
	Profile
}

// Validate rejects blank required fields and invalid enums.
func (in CreateInput) Validate() error {
	switch {
	case strings.TrimSpace(in.ServiceNumber) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "service_number is required")
	case strings.TrimSpace(in.Name) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case strings.TrimSpace(in.Rank) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "rank is required")
	case strings.TrimSpace(in.Unit) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "unit is required")
	}
	if in.BloodType != nil && !in.BloodType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid blood_type")
	}
	return nil
}

// UpdateInput lists editable fields; nil means unchanged. An empty NFCUID or
// QRPayload clears the token. Card id and balance are not editable.
type UpdateInput struct {
	ServiceNumber *string
	Name          *string
	Rank          *string
	Unit          *string
	CardStatus    *enums.CardStatus
	NFCUID        *string
	QRPayload     *string
	Profile
}

// ListParams filters the member directory.
type ListParams struct {
	Status *enums.CardStatus
	Search string
	Limit  int
	Cursor string
}

// ListResult is a page of members.
type ListResult struct {
	Members    []MemberDTO `json:"members"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// DeleteResult reports what a member deletion removed.
type DeleteResult struct {
	MemberID            uuid.UUID `json:"member_id"`
	TransactionsDeleted int64     `json:"transactions_deleted"`
	LocationsDeleted    int64     `json:"locations_deleted"`
	UsersUnlinked       int64     `json:"users_unlinked"`
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
