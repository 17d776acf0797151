package dashboard

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
)

// Repository runs the aggregate queries behind the dashboard.
type Repository interface {
	CountByCardStatus(ctx context.Context) (map[enums.CardStatus]int64, error)
	TotalBalance(ctx context.Context) (decimal.Decimal, error)
	CountTransactions(ctx context.Context) (int64, error)
	SucceededVolume(ctx context.Context, kind enums.TransactionKind, since time.Time) (decimal.Decimal, int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type statusCount struct {
	CardStatus enums.CardStatus
	Total      int64
}

func (r *repository) CountByCardStatus(ctx context.Context) (map[enums.CardStatus]int64, error) {
	var rows []statusCount
	err := r.db.WithContext(ctx).Model(&models.Member{}).
		Select("card_status, COUNT(*) AS total").
		Group("card_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.CardStatus]int64, len(rows))
	for _, row := range rows {
		out[row.CardStatus] = row.Total
	}
	return out, nil
}

func (r *repository) TotalBalance(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).Model(&models.Member{}).
		Select("COALESCE(SUM(balance), 0)").
		Row().Scan(&total)
	return total, err
}

func (r *repository) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).Count(&n).Error
	return n, err
}

func (r *repository) SucceededVolume(ctx context.Context, kind enums.TransactionKind, since time.Time) (decimal.Decimal, int64, error) {
	var (
		total decimal.Decimal
		count int64
	)
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0), COUNT(*)").
		Where("kind = ? AND status = ? AND created_at >= ?", kind, enums.TransactionStatusSucceeded, since.UTC()).
		Row().Scan(&total, &count)
	return total, count, err
}
