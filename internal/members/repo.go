package members

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	"github.com/angelmondragon/kartupintar-backend/pkg/pagination"
)

// Repository persists card holders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, member *models.Member) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	FindByCardID(ctx context.Context, cardID string) (*models.Member, error)
	FindByToken(ctx context.Context, token string) ([]models.Member, error)
	List(ctx context.Context, filter listFilter) ([]models.Member, error)
	ListWithLocation(ctx context.Context, limit int) ([]models.Member, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DeleteCascade(ctx context.Context, id uuid.UUID) (*DeleteResult, error)
}

type listFilter struct {
	status *enums.CardStatus
	search string
	limit  int
	cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a member repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, member *models.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var m models.Member
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) FindByCardID(ctx context.Context, cardID string) (*models.Member, error) {
	var m models.Member
	if err := r.db.WithContext(ctx).Where("card_id = ?", cardID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByToken returns every member whose NFC uid, QR payload or card id
// equals token. Callers decide what more than one match means.
func (r *repository) FindByToken(ctx context.Context, token string) ([]models.Member, error) {
	var rows []models.Member
	err := r.db.WithContext(ctx).
		Where("nfc_uid = ? OR qr_payload = ? OR card_id = ?", token, token, token).
		Limit(3).
		Find(&rows).Error
	return rows, err
}

func (r *repository) List(ctx context.Context, filter listFilter) ([]models.Member, error) {
	q := r.db.WithContext(ctx).Model(&models.Member{})
	if filter.status != nil {
		q = q.Where("card_status = ?", *filter.status)
	}
	if s := strings.ToLower(strings.TrimSpace(filter.search)); s != "" {
		like := "%" + s + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(service_number) LIKE ? OR LOWER(card_id) LIKE ?", like, like, like)
	}
	if filter.cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.cursor.CreatedAt, filter.cursor.CreatedAt, filter.cursor.ID)
	}
	var rows []models.Member
	err := q.Order("created_at DESC").Order("id DESC").Limit(filter.limit).Find(&rows).Error
	return rows, err
}

// ListWithLocation returns members that have a last-known location, most
// recently seen first.
func (r *repository) ListWithLocation(ctx context.Context, limit int) ([]models.Member, error) {
	var rows []models.Member
	err := r.db.WithContext(ctx).
		Where("last_latitude IS NOT NULL AND last_longitude IS NOT NULL AND last_seen_at IS NOT NULL").
		Order("last_seen_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Update applies column updates and bumps the row version.
func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	updates["version"] = gorm.Expr("version + 1")
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.Member{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteCascade removes the member with its ledger and location history and
// unlinks operator accounts. Run it inside a transaction.
func (r *repository) DeleteCascade(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	db := r.db.WithContext(ctx)
	result := &DeleteResult{MemberID: id}

	trx := db.Where("member_id = ?", id).Delete(&models.Transaction{})
	if trx.Error != nil {
		return nil, trx.Error
	}
	result.TransactionsDeleted = trx.RowsAffected

	locs := db.Where("member_id = ?", id).Delete(&models.LocationEvent{})
	if locs.Error != nil {
		return nil, locs.Error
	}
	result.LocationsDeleted = locs.RowsAffected

	users := db.Model(&models.User{}).Where("member_id = ?", id).Update("member_id", nil)
	if users.Error != nil {
		return nil, users.Error
	}
	result.UsersUnlinked = users.RowsAffected

	member := db.Where("id = ?", id).Delete(&models.Member{})
	if member.Error != nil {
		return nil, member.Error
	}
	if member.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return result, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
