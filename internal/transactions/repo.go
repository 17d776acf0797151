package transactions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	"github.com/angelmondragon/kartupintar-backend/pkg/pagination"
)

// Repository reads the transaction log.
type Repository interface {
	List(ctx context.Context, filter listFilter) ([]models.Transaction, error)
	FindByTrxID(ctx context.Context, trxID string) (*models.Transaction, error)
	Recent(ctx context.Context, limit int) ([]models.Transaction, error)
}

type listFilter struct {
	memberID *uuid.UUID
	kind     *enums.TransactionKind
	status   *enums.TransactionStatus
	from     *time.Time
	to       *time.Time
	limit    int
	cursor   *pagination.SeqCursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a read-only transaction repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filter listFilter) ([]models.Transaction, error) {
	q := r.db.WithContext(ctx).Model(&models.Transaction{})
	if filter.memberID != nil {
		q = q.Where("member_id = ?", *filter.memberID)
	}
	if filter.kind != nil {
		q = q.Where("kind = ?", *filter.kind)
	}
	if filter.status != nil {
		q = q.Where("status = ?", *filter.status)
	}
	if filter.from != nil {
		q = q.Where("created_at >= ?", filter.from.UTC())
	}
	if filter.to != nil {
		q = q.Where("created_at < ?", filter.to.UTC())
	}
	if filter.cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND seq < ?)",
			filter.cursor.CreatedAt, filter.cursor.CreatedAt, filter.cursor.Seq)
	}
	var rows []models.Transaction
	err := q.Order("created_at DESC").Order("seq DESC").Limit(filter.limit).Find(&rows).Error
	return rows, err
}

func (r *repository) FindByTrxID(ctx context.Context, trxID string) (*models.Transaction, error) {
	var t models.Transaction
	if err := r.db.WithContext(ctx).Where("trx_id = ?", trxID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repository) Recent(ctx context.Context, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("seq DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
