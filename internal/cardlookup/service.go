// Package cardlookup resolves presented card tokens to members and records
// where each card was seen.
package cardlookup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/internal/members"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/kartupintar-backend/pkg/pagination"
	"github.com/angelmondragon/kartupintar-backend/pkg/types"
)

// ErrAmbiguousToken means more than one member carries the presented token.
var ErrAmbiguousToken = errors.New("card token matches more than one member")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service resolves scans and serves location history.
type Service interface {
	Resolve(ctx context.Context, token string) (*models.Member, error)
	RecordScan(ctx context.Context, caller types.CallerContext, member *models.Member, input ScanInput) (*models.LocationEvent, error)
	Scan(ctx context.Context, caller types.CallerContext, token string, input ScanInput) (*ScanResult, error)
	History(ctx context.Context, memberID uuid.UUID, params pagination.Params) (*HistoryResult, error)
	Latest(ctx context.Context, limit int) ([]TrackedMember, error)
}

// ServiceParams wires the lookup service.
type ServiceParams struct {
	DB        txRunner
	Members   members.Repository
	Locations Repository
	Outbox    outboxPublisher
	Logger    *logger.Logger
}

type service struct {
	tx        txRunner
	members   members.Repository
	locations Repository
	outbox    outboxPublisher
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the card lookup service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Members == nil {
		return nil, fmt.Errorf("member repository required")
	}
	if params.Locations == nil {
		return nil, fmt.Errorf("location repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:        params.DB,
		members:   params.Members,
		locations: params.Locations,
		outbox:    params.Outbox,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// Resolve matches token against NFC uid, QR payload and card id. It never
// guesses: two members sharing a token is a data fault and fails closed.
func (s *service) Resolve(ctx context.Context, token string) (*models.Member, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "card token required")
	}
	rows, err := s.members.FindByToken(ctx, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve card token")
	}
	switch len(rows) {
	case 0:
		return nil, members.NotFound()
	case 1:
		return &rows[0], nil
	}

	ids := make([]string, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.ID.String())
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"member_ids": ids, "matches": len(rows)})
	s.logg.Error(logCtx, "card token resolves to multiple members", ErrAmbiguousToken)
	return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, ErrAmbiguousToken, "card token is ambiguous")
}

// RecordScan appends a location sample and mirrors it onto the member in one
// unit. The latest committed scan wins the member's last-known location.
func (s *service) RecordScan(ctx context.Context, caller types.CallerContext, member *models.Member, input ScanInput) (*models.LocationEvent, error) {
	if member == nil || member.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	place := trimmedOrNil(input.PlaceName)

	event := &models.LocationEvent{
		MemberID:   member.ID,
		Latitude:   input.Lat,
		Longitude:  input.Lng,
		PlaceName:  place,
		Source:     input.Source,
		ScannedBy:  caller.OperatorID,
		RecordedAt: now,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.locations.WithTx(tx).Create(ctx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record location")
		}
		err := s.members.WithTx(tx).Update(ctx, member.ID, map[string]any{
			"last_latitude":      input.Lat,
			"last_longitude":     input.Lng,
			"last_location_name": place,
			"last_seen_at":       now,
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return members.NotFound()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last known location")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCardScanned,
			AggregateType: enums.AggregateMember,
			AggregateID:   member.ID.String(),
			Actor:         outbox.ActorFor(caller),
			OccurredAt:    now,
			Data: payloads.CardScannedEvent{
				MemberID:   member.ID,
				CardID:     member.CardID,
				Source:     input.Source,
				Latitude:   input.Lat,
				Longitude:  input.Lng,
				PlaceName:  place,
				ScannedBy:  caller.OperatorID,
				RecordedAt: now,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	lat, lng := input.Lat, input.Lng
	member.LastLatitude = &lat
	member.LastLongitude = &lng
	member.LastLocationName = place
	member.LastSeenAt = &now

	logCtx := s.logg.WithMemberID(ctx, member.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"source": input.Source, "operator_id": caller.OperatorString()})
	s.logg.Debug(logCtx, "card scan recorded")
	return event, nil
}

func (s *service) Scan(ctx context.Context, caller types.CallerContext, token string, input ScanInput) (*ScanResult, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	member, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	event, err := s.RecordScan(ctx, caller, member, input)
	if err != nil {
		return nil, err
	}
	return &ScanResult{Member: member, Event: event}, nil
}

// History returns a member's location samples, newest first.
func (s *service) History(ctx context.Context, memberID uuid.UUID, params pagination.Params) (*HistoryResult, error) {
	if memberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if _, err := s.members.FindByID(ctx, memberID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, members.NotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.locations.ListByMember(ctx, memberID, limit+1, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list locations")
	}
	rows, next := pagination.Page(rows, limit, func(last *models.LocationEvent) string {
		return pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.RecordedAt, ID: last.ID})
	})
	result := &HistoryResult{Events: make([]LocationEventDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		result.Events = append(result.Events, FromEvent(&rows[i]))
	}
	return result, nil
}

// Latest lists members with a known location, most recently seen first.
func (s *service) Latest(ctx context.Context, limit int) ([]TrackedMember, error) {
	rows, err := s.members.ListWithLocation(ctx, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tracked members")
	}
	out := make([]TrackedMember, 0, len(rows))
	for i := range rows {
		loc := rows[i].LastKnownLocation()
		if loc == nil {
			continue
		}
		out = append(out, TrackedMember{Identity: *members.NewIdentityView(&rows[i]), Location: *loc})
	}
	return out, nil
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}
