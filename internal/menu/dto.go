package menu

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/money"
)

// ItemDTO is the API shape of a menu item.
type ItemDTO struct {
	ID             uuid.UUID          `json:"id"`
	Name           string             `json:"name"`
	Category       enums.MenuCategory `json:"category"`
	Price          int64              `json:"price"`
	PriceFormatted string             `json:"price_formatted"`
	IsAvailable    bool               `json:"is_available"`
}

// FromModel maps a persisted item.
func FromModel(m *models.MenuItem) ItemDTO {
	return ItemDTO{
		ID:             m.ID,
		Name:           m.Name,
		Category:       m.Category,
		Price:          m.Price,
		PriceFormatted: money.FormatRupiah(m.Price),
		IsAvailable:    m.IsAvailable,
	}
}

// CreateInput describes a new menu item. Items start available unless
// IsAvailable says otherwise.
type CreateInput struct {
	Name        string
	Category    enums.MenuCategory
	Price       int64
	IsAvailable *bool
}

func (in CreateInput) validate() error {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case len(name) > 100:
		return pkgerrors.New(pkgerrors.CodeValidation, "name too long")
	case !in.Category.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
	case in.Price <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero")
	}
	return nil
}

// UpdateInput carries a partial edit; nil fields are left untouched.
type UpdateInput struct {
	Name        *string
	Category    *enums.MenuCategory
	Price       *int64
	IsAvailable *bool
}

// ListParams filters the menu.
type ListParams struct {
	Category      *enums.MenuCategory
	AvailableOnly bool
}
