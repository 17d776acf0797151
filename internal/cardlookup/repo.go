package cardlookup

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/pagination"
)

// Repository persists location samples.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.LocationEvent) error
	ListByMember(ctx context.Context, memberID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.LocationEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a location event repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.LocationEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListByMember(ctx context.Context, memberID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.LocationEvent, error) {
	q := r.db.WithContext(ctx).Where("member_id = ?", memberID)
	if cursor != nil {
		q = q.Where("(recorded_at < ?) OR (recorded_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.LocationEvent
	err := q.Order("recorded_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
