package members

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/db"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/kartupintar-backend/pkg/pagination"
	"github.com/angelmondragon/kartupintar-backend/pkg/types"
)

// ErrMemberNotFound is the sentinel behind every not-found member error.
var ErrMemberNotFound = errors.New("member not found")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cardIDAllocator interface {
	NextCardID(ctx context.Context, tx *gorm.DB, year int) (string, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service manages the member directory.
type Service interface {
	Create(ctx context.Context, caller types.CallerContext, input CreateInput) (*models.Member, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Member, error)
	GetByCardID(ctx context.Context, cardID string) (*models.Member, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, caller types.CallerContext, id uuid.UUID, input UpdateInput) (*models.Member, error)
	Delete(ctx context.Context, caller types.CallerContext, id uuid.UUID) (*DeleteResult, error)
}

// ServiceParams wires the member service.
type ServiceParams struct {
	DB         txRunner
	Repository Repository
	IDs        cardIDAllocator
	Outbox     outboxPublisher
	Logger     *logger.Logger
}

type service struct {
	tx     txRunner
	repo   Repository
	ids    cardIDAllocator
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the member service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("member repository required")
	}
	if params.IDs == nil {
		return nil, fmt.Errorf("card id allocator required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:     params.DB,
		repo:   params.Repository,
		ids:    params.IDs,
		outbox: params.Outbox,
		logg:   params.Logger,
		now:    time.Now,
	}, nil
}

// NotFound wraps ErrMemberNotFound in the API error type.
func NotFound() error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrMemberNotFound, "member not found")
}

func (s *service) Create(ctx context.Context, caller types.CallerContext, input CreateInput) (*models.Member, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()

	var created *models.Member
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cardID, err := s.ids.NextCardID(ctx, tx, now.Year())
		if err != nil {
			return err
		}
		member, err := models.NewMember(cardID, input.ServiceNumber, input.Name, input.Rank, input.Unit)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
		}
		member.NFCUID = trimmedOrNil(input.NFCUID)
		member.QRPayload = trimmedOrNil(input.QRPayload)
		applyProfile(member, input.Profile)
		member.CreatedAt = now
		member.UpdatedAt = now

		if err := s.repo.WithTx(tx).Create(ctx, member); err != nil {
			return mapWriteError(err)
		}
		created = member

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMemberCreated,
			AggregateType: enums.AggregateMember,
			AggregateID:   member.ID.String(),
			Actor:         outbox.ActorFor(caller),
			OccurredAt:    now,
			Data: payloads.MemberCreatedEvent{
				MemberID:      member.ID,
				CardID:        member.CardID,
				ServiceNumber: member.ServiceNumber,
				Name:          member.Name,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithMemberID(ctx, created.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"card_id": created.CardID, "operator_id": caller.OperatorString()})
	s.logg.Info(logCtx, "member created")
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id required")
	}
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapReadError(err)
	}
	return m, nil
}

func (s *service) GetByCardID(ctx context.Context, cardID string) (*models.Member, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "card id required")
	}
	m, err := s.repo.FindByCardID(ctx, cardID)
	if err != nil {
		return nil, mapReadError(err)
	}
	return m, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid card status filter")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	rows, err := s.repo.List(ctx, listFilter{
		status: params.Status,
		search: params.Search,
		limit:  limit + 1,
		cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list members")
	}

	rows, next := pagination.Page(rows, limit, func(last *models.Member) string {
		return pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	})
	result := &ListResult{Members: make([]MemberDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		result.Members = append(result.Members, *FromModel(&rows[i]))
	}
	return result, nil
}

func (s *service) Update(ctx context.Context, caller types.CallerContext, id uuid.UUID, input UpdateInput) (*models.Member, error) {
	updates, err := buildUpdates(input)
	if err != nil {
		return nil, err
	}

	var updated *models.Member
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if len(updates) > 0 {
			if err := repo.Update(ctx, id, updates); err != nil {
				if isNotFound(err) {
					return NotFound()
				}
				return mapWriteError(err)
			}
		}
		m, err := repo.FindByID(ctx, id)
		if err != nil {
			return mapReadError(err)
		}
		updated = m
		if len(updates) == 0 {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMemberUpdated,
			AggregateType: enums.AggregateMember,
			AggregateID:   m.ID.String(),
			Actor:         outbox.ActorFor(caller),
			Data: payloads.MemberUpdatedEvent{
				MemberID:   m.ID,
				CardID:     m.CardID,
				CardStatus: m.CardStatus,
				Fields:     updatedFields(updates),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, caller types.CallerContext, id uuid.UUID) (*DeleteResult, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id required")
	}
	var result *DeleteResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		member, err := repo.FindByID(ctx, id)
		if err != nil {
			return mapReadError(err)
		}
		res, err := repo.DeleteCascade(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return NotFound()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete member")
		}
		result = res
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMemberDeleted,
			AggregateType: enums.AggregateMember,
			AggregateID:   id.String(),
			Actor:         outbox.ActorFor(caller),
			Data: payloads.MemberDeletedEvent{
				MemberID:            id,
				CardID:              member.CardID,
				TransactionsDeleted: res.TransactionsDeleted,
				LocationsDeleted:    res.LocationsDeleted,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithMemberID(ctx, id.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"operator_id":          caller.OperatorString(),
		"transactions_deleted": result.TransactionsDeleted,
		"locations_deleted":    result.LocationsDeleted,
	})
	s.logg.Warn(logCtx, "member deleted")
	return result, nil
}

func buildUpdates(in UpdateInput) (map[string]any, error) {
	updates := map[string]any{}
	required := map[string]*string{
		"service_number": in.ServiceNumber,
		"name":           in.Name,
		"rank":           in.Rank,
		"unit":           in.Unit,
	}
	for column, value := range required {
		if value == nil {
			continue
		}
		v := strings.TrimSpace(*value)
		if v == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, column+" must not be blank")
		}
		updates[column] = v
	}
	if in.CardStatus != nil {
		if !in.CardStatus.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid card_status")
		}
		updates["card_status"] = *in.CardStatus
	}
	if in.NFCUID != nil {
		updates["nfc_uid"] = trimmedOrNil(in.NFCUID)
	}
	if in.QRPayload != nil {
		updates["qr_payload"] = trimmedOrNil(in.QRPayload)
	}
	if in.BloodType != nil {
		if !in.BloodType.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid blood_type")
		}
		updates["blood_type"] = *in.BloodType
	}
	optional := map[string]*string{
		"position":    in.Position,
		"department":  in.Department,
		"birth_place": in.BirthPlace,
		"religion":    in.Religion,
		"address":     in.Address,
		"phone":       in.Phone,
		"photo_url":   in.PhotoURL,
	}
	for column, value := range optional {
		if value != nil {
			updates[column] = trimmedOrNil(value)
		}
	}
	if in.BirthDate != nil {
		updates["birth_date"] = in.BirthDate.UTC()
	}
	return updates, nil
}

func updatedFields(updates map[string]any) []string {
	fields := make([]string, 0, len(updates))
	for column := range updates {
		if column == "version" || column == "updated_at" {
			continue
		}
		fields = append(fields, column)
	}
	sort.Strings(fields)
	return fields
}

func applyProfile(m *models.Member, p Profile) {
	m.Position = trimmedOrNil(p.Position)
	m.Department = trimmedOrNil(p.Department)
	m.BirthPlace = trimmedOrNil(p.BirthPlace)
	m.BirthDate = p.BirthDate
	m.BloodType = p.BloodType
	m.Religion = trimmedOrNil(p.Religion)
	m.Address = trimmedOrNil(p.Address)
	m.Phone = trimmedOrNil(p.Phone)
	m.PhotoURL = trimmedOrNil(p.PhotoURL)
}

func mapReadError(err error) error {
	if isNotFound(err) {
		return NotFound()
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
}

func mapWriteError(err error) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	switch {
	case db.IsUniqueViolation(err, "service_number"):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "service number already registered")
	case db.IsUniqueViolation(err, "nfc_uid"):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "nfc uid already assigned to another card")
	case db.IsUniqueViolation(err, "qr_payload"):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "qr payload already assigned to another card")
	case db.IsUniqueViolation(err, "card_id"):
		return pkgerrors.Wrap(pkgerrors.CodeConcurrency, err, "card id taken concurrently, retry")
	case db.IsConcurrencyConflict(err):
		return pkgerrors.Wrap(pkgerrors.CodeConcurrency, err, "concurrent member write")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write member")
}
