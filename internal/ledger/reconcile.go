package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
)

// MemberBalance is the stored wallet position of one member.
type MemberBalance struct {
	ID      uuid.UUID
	CardID  string
	Balance int64
}

// Position is what the transaction log says a member's balance should be.
type Position struct {
	// LastAfter is balance_after of the newest succeeded record, nil when the
	// member has none.
	LastAfter *int64
	// Net is the sum of succeeded top-ups minus succeeded purchases.
	Net int64
}

// Expected returns the balance implied by the log.
func (p Position) Expected() int64 {
	if p.LastAfter == nil {
		return 0
	}
	return *p.LastAfter
}

// Drifts reports whether balance disagrees with either view of the log.
func (p Position) Drifts(balance int64) bool {
	return balance != p.Expected() || balance != p.Net
}

// ReconcileRepository reads member balances next to their transaction log.
type ReconcileRepository struct {
	db *gorm.DB
}

// NewReconcileRepository binds the read-only reconcile queries to db.
func NewReconcileRepository(db *gorm.DB) *ReconcileRepository {
	return &ReconcileRepository{db: db}
}

// ListBalances pages through members ordered by id, starting after afterID.
func (r *ReconcileRepository) ListBalances(ctx context.Context, afterID *uuid.UUID, limit int) ([]MemberBalance, error) {
	query := r.db.WithContext(ctx).Model(&models.Member{}).Select("id", "card_id", "balance")
	if afterID != nil {
		query = query.Where("id > ?", *afterID)
	}
	var rows []MemberBalance
	err := query.Order("id ASC").Limit(limit).Scan(&rows).Error
	return rows, err
}

// PositionOf reads the log position of one member.
func (r *ReconcileRepository) PositionOf(ctx context.Context, memberID uuid.UUID) (Position, error) {
	var pos Position

	var last models.Transaction
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND status = ?", memberID, enums.TransactionStatusSucceeded).
		Order("created_at DESC").
		Order("seq DESC").
		First(&last).Error
	switch {
	case err == nil:
		after := last.BalanceAfter
		pos.LastAfter = &after
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return pos, err
	}

	var net sql.NullInt64
	err = r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("SUM(CASE WHEN kind = ? THEN amount ELSE -amount END)", enums.TransactionKindTopUp).
		Where("member_id = ? AND status = ?", memberID, enums.TransactionStatusSucceeded).
		Row().Scan(&net)
	if err != nil {
		return pos, err
	}
	pos.Net = net.Int64
	return pos, nil
}
