// Package menu manages the canteen menu purchases can reference.
package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
)

// ErrItemNotFound is the sentinel behind menu not-found errors.
var ErrItemNotFound = errors.New("menu item not found")

type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.MenuItem, error)
	List(ctx context.Context, params ListParams) ([]ItemDTO, error)
	Create(ctx context.Context, input CreateInput) (*models.MenuItem, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.MenuItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("menu repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu item id required")
	}
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapError(err, "load menu item")
	}
	return item, nil
}

func (s *service) List(ctx context.Context, params ListParams) ([]ItemDTO, error) {
	if params.Category != nil && !params.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid category filter")
	}
	rows, err := s.repo.List(ctx, listFilter{category: params.Category, availableOnly: params.AvailableOnly})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list menu")
	}
	out := make([]ItemDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.MenuItem, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	item := &models.MenuItem{
		Name:        strings.TrimSpace(input.Name),
		Category:    input.Category,
		Price:       input.Price,
		IsAvailable: true,
	}
	if input.IsAvailable != nil {
		item.IsAvailable = *input.IsAvailable
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create menu item")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"menu_item_id": item.ID.String(), "price": item.Price}), "menu item created")
	return item, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.MenuItem, error) {
	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" || len(name) > 100 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must be 1-100 characters")
		}
		updates["name"] = name
	}
	if input.Category != nil {
		if !input.Category.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
		}
		updates["category"] = *input.Category
	}
	if input.Price != nil {
		if *input.Price <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero")
		}
		updates["price"] = *input.Price
	}
	if input.IsAvailable != nil {
		updates["is_available"] = *input.IsAvailable
	}
	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, mapError(err, "update menu item")
		}
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapError(err, "delete menu item")
	}
	s.logg.Info(s.logg.WithField(ctx, "menu_item_id", id.String()), "menu item deleted")
	return nil
}

func mapError(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrItemNotFound, "menu item not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
