package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
)

// Repository holds the row-level operations of one ledger unit.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockMember(ctx context.Context, id uuid.UUID) error
	FindMember(ctx context.Context, id uuid.UUID) (*models.Member, error)
	ApplyBalance(ctx context.Context, change balanceChange) error
	CreateTransaction(ctx context.Context, trx *models.Transaction) error
	CreateLocation(ctx context.Context, event *models.LocationEvent) error
}

// balanceChange is a guarded write of a member's balance. It only lands
// while the row still carries version and, for debits, still covers
// minBalance.
type balanceChange struct {
	memberID   uuid.UUID
	version    int64
	balance    int64
	minBalance *int64
	location   *models.LocationEvent
	at         time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// LockMember takes the member row lock for the rest of the transaction by
// bumping its version.
func (r *repository) LockMember(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Exec("UPDATE members SET version = version + 1 WHERE id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var m models.Member
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) ApplyBalance(ctx context.Context, change balanceChange) error {
	updates := map[string]any{
		"balance":    change.balance,
		"version":    gorm.Expr("version + 1"),
		"updated_at": change.at,
	}
	if loc := change.location; loc != nil {
		updates["last_latitude"] = loc.Latitude
		updates["last_longitude"] = loc.Longitude
		updates["last_location_name"] = loc.PlaceName
		updates["last_seen_at"] = loc.RecordedAt
	}
	q := r.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ? AND version = ?", change.memberID, change.version)
	if change.minBalance != nil {
		q = q.Where("balance >= ?", *change.minBalance)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errVersionMoved
	}
	return nil
}

func (r *repository) CreateTransaction(ctx context.Context, trx *models.Transaction) error {
	return r.db.WithContext(ctx).Create(trx).Error
}

func (r *repository) CreateLocation(ctx context.Context, event *models.LocationEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
