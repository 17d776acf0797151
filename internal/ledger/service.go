// Package ledger applies purchases and top-ups to member wallets. Every
// apply is one atomic unit: balance change, audit record, location sample
// and outbox event commit together or not at all.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/internal/members"
	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/db"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/metrics"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/kartupintar-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type trxIDAllocator interface {
	NextTransactionID(ctx context.Context, tx *gorm.DB, now time.Time) (string, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type menuCatalog interface {
	Get(ctx context.Context, id uuid.UUID) (*models.MenuItem, error)
}

// Engine is the only writer of member balances.
type Engine interface {
	Apply(ctx context.Context, caller types.CallerContext, req ApplyRequest) (*TransactionResult, error)
}

// EngineParams wires the ledger engine. Menu and Metrics are optional.
type EngineParams struct {
	DB         txRunner
	Repository Repository
	IDs        trxIDAllocator
	Outbox     outboxPublisher
	Menu       menuCatalog
	Metrics    *metrics.LedgerMetrics
	Config     config.LedgerConfig
	Logger     *logger.Logger
}

type engine struct {
	tx      txRunner
	repo    Repository
	ids     trxIDAllocator
	outbox  outboxPublisher
	menu    menuCatalog
	metrics *metrics.LedgerMetrics
	cfg     config.LedgerConfig
	logg    *logger.Logger
	now     func() time.Time
}

// NewEngine builds the ledger engine.
func NewEngine(params EngineParams) (Engine, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.IDs == nil {
		return nil, fmt.Errorf("transaction id allocator required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Config.MaxTopUp <= 0 {
		return nil, fmt.Errorf("max top-up must be positive")
	}
	return &engine{
		tx:      params.DB,
		repo:    params.Repository,
		ids:     params.IDs,
		outbox:  params.Outbox,
		menu:    params.Menu,
		metrics: params.Metrics,
		cfg:     params.Config,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

// Apply validates req and runs it as one unit, retrying the whole unit on
// concurrency conflicts. An insufficient-balance purchase still commits a
// failed record and then returns InsufficientBalance.
func (e *engine) Apply(ctx context.Context, caller types.CallerContext, req ApplyRequest) (*TransactionResult, error) {
	req, err := e.prepare(ctx, req)
	if err != nil {
		e.observeRejected(req.Kind, err)
		return nil, err
	}

	logCtx := e.logg.WithMemberID(ctx, req.MemberID.String())
	logCtx = e.logg.WithFields(logCtx, map[string]any{
		"kind":        req.Kind,
		"amount":      req.Amount,
		"operator_id": caller.OperatorString(),
	})

	var res *attemptResult
	for attempt := 0; ; attempt++ {
		res, err = e.applyOnce(ctx, caller, req)
		if err == nil || !pkgerrors.HasCode(err, pkgerrors.CodeConcurrency) {
			break
		}
		if attempt >= e.cfg.MaxConflictRetries || ctx.Err() != nil {
			break
		}
		e.metrics.IncConflictRetry()
		e.logg.Debug(e.logg.WithField(logCtx, "attempt", attempt+1), "ledger unit conflicted, retrying")
	}

	if err != nil {
		e.observeRejected(req.Kind, err)
		if pkgerrors.HasCode(err, pkgerrors.CodeDuplicateIdentifier) || pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
			e.logg.Error(logCtx, "ledger apply failed", err)
		} else {
			e.logg.Warn(e.logg.WithField(logCtx, "error", err.Error()), "ledger apply rejected")
		}
		return nil, err
	}

	result := res.result
	logCtx = e.logg.WithFields(logCtx, map[string]any{
		"trx_id":         result.TrxID,
		"status":         result.Status,
		"balance_before": result.BalanceBefore,
		"balance_after":  result.BalanceAfter,
	})
	e.metrics.ObserveApply(string(req.Kind), string(result.Status), result.Amount, result.Status == enums.TransactionStatusSucceeded)
	if res.declined != nil {
		e.logg.Warn(logCtx, "purchase declined, failed record committed")
		return nil, res.declined
	}
	e.logg.Info(logCtx, "ledger transaction recorded")
	return result, nil
}

// prepare runs the checks that need no member row: kind, method, menu item
// resolution and a positive amount.
func (e *engine) prepare(ctx context.Context, req ApplyRequest) (ApplyRequest, error) {
	if !req.Kind.IsValid() {
		return req, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction kind")
	}
	if req.MemberID == uuid.Nil {
		return req, pkgerrors.New(pkgerrors.CodeValidation, "member id required")
	}
	if req.Method == "" {
		req.Method = enums.TransactionMethodManual
	}
	if !req.Method.IsValid() {
		return req, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction method")
	}
	if req.Location != nil {
		if err := req.Location.Validate(); err != nil {
			return req, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
		}
	}
	if req.MenuItemID != nil {
		if req.Kind != enums.TransactionKindPurchase {
			return req, pkgerrors.New(pkgerrors.CodeValidation, "menu items only apply to purchases")
		}
		if e.menu == nil {
			return req, pkgerrors.New(pkgerrors.CodeValidation, "menu purchases are not enabled")
		}
		item, err := e.menu.Get(ctx, *req.MenuItemID)
		if err != nil {
			return req, err
		}
		if !item.IsAvailable {
			return req, pkgerrors.New(pkgerrors.CodeStateConflict, "menu item is not available")
		}
		req.Amount = item.Price
		if strings.TrimSpace(req.Description) == "" {
			req.Description = item.Name
		}
	}
	if req.Amount <= 0 {
		return req, invalidAmount()
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		req.Description = defaultDescription(req.Kind)
	}
	if len(req.Description) > 200 {
		return req, pkgerrors.New(pkgerrors.CodeValidation, "description too long")
	}
	return req, nil
}

// attemptResult is a committed unit. declined is set when the unit wrote a
// failed record instead of moving the balance.
type attemptResult struct {
	result   *TransactionResult
	declined error
}

// applyOnce runs a single attempt; an error means the unit rolled back.
func (e *engine) applyOnce(ctx context.Context, caller types.CallerContext, req ApplyRequest) (*attemptResult, error) {
	res := &attemptResult{}
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		if err := repo.LockMember(ctx, req.MemberID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return members.NotFound()
			}
			return classify(err, "lock member")
		}
		member, err := repo.FindMember(ctx, req.MemberID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return members.NotFound()
			}
			return classify(err, "load member")
		}

		switch req.Kind {
		case enums.TransactionKindPurchase:
			if !member.CardStatus.CanTransact() {
				return cardNotActive()
			}
		case enums.TransactionKindTopUp:
			if req.Amount > e.cfg.MaxTopUp {
				return amountExceedsLimit(e.cfg.MaxTopUp)
			}
		}

		now := e.now().UTC()
		trxID, err := e.ids.NextTransactionID(ctx, tx, now)
		if err != nil {
			return err
		}
		record := &models.Transaction{
			TrxID:         trxID,
			MemberID:      member.ID,
			Kind:          req.Kind,
			Description:   req.Description,
			Amount:        req.Amount,
			BalanceBefore: member.Balance,
			BalanceAfter:  member.Balance,
			Method:        req.Method,
			OperatorID:    caller.OperatorID,
			CreatedAt:     now,
		}

		change := balanceChange{memberID: member.ID, version: member.Version, at: now}
		var location *models.LocationEvent
		switch req.Kind {
		case enums.TransactionKindPurchase:
			if member.Balance < req.Amount {
				record.Status = enums.TransactionStatusFailed
				res.declined = insufficientBalance(member.Balance, req.Amount)
				break
			}
			record.Status = enums.TransactionStatusSucceeded
			record.BalanceAfter = member.Balance - req.Amount
			floor := req.Amount
			change.minBalance = &floor
			location = e.posLocation(member.ID, req, caller, now)
			change.location = location
		case enums.TransactionKindTopUp:
			record.Status = enums.TransactionStatusSucceeded
			record.BalanceAfter = member.Balance + req.Amount
		}
		if location == nil && req.CardScanned {
			location = e.posLocation(member.ID, req, caller, now)
			change.location = location
		}
		if err := record.CheckSnapshot(); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "transaction snapshot invalid")
		}

		// A declined scan still moves the last-known location; its balance
		// is written back unchanged.
		if record.Status == enums.TransactionStatusSucceeded || change.location != nil {
			change.balance = record.BalanceAfter
			if err := repo.ApplyBalance(ctx, change); err != nil {
				if errors.Is(err, errVersionMoved) {
					return concurrencyConflict(err)
				}
				return classify(err, "update balance")
			}
		}
		if err := repo.CreateTransaction(ctx, record); err != nil {
			return classify(err, "write transaction")
		}
		if location != nil {
			if err := repo.CreateLocation(ctx, location); err != nil {
				return classify(err, "write location")
			}
		}

		if err := e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTransactionRecorded,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   record.TrxID,
			Actor:         outbox.ActorFor(caller),
			OccurredAt:    now,
			Data: payloads.TransactionRecordedEvent{
				TrxID:         record.TrxID,
				MemberID:      member.ID,
				CardID:        member.CardID,
				Kind:          record.Kind,
				Status:        record.Status,
				Method:        record.Method,
				Amount:        record.Amount,
				BalanceBefore: record.BalanceBefore,
				BalanceAfter:  record.BalanceAfter,
				OperatorID:    caller.OperatorID,
				CreatedAt:     now,
			},
		}); err != nil {
			return classify(err, "emit transaction event")
		}
		res.result = ResultFromModel(record)
		return nil
	})
	if err != nil {
		return nil, classify(err, "commit ledger unit")
	}
	return res, nil
}

// posLocation builds the location sample for a purchase or a scanned card:
// the request's coordinates when present, the configured canteen otherwise.
func (e *engine) posLocation(memberID uuid.UUID, req ApplyRequest, caller types.CallerContext, at time.Time) *models.LocationEvent {
	point := types.Point{Lat: e.cfg.POSLatitude, Lng: e.cfg.POSLongitude}
	name := strings.TrimSpace(e.cfg.POSName)
	if req.Location != nil {
		point = *req.Location
		if p := strings.TrimSpace(req.PlaceName); p != "" {
			name = p
		}
	}
	event := &models.LocationEvent{
		ID:         uuid.New(),
		MemberID:   memberID,
		Latitude:   point.Lat,
		Longitude:  point.Lng,
		Source:     req.Method.ScanSource(),
		ScannedBy:  caller.OperatorID,
		RecordedAt: at,
	}
	if name != "" {
		event.PlaceName = &name
	}
	return event
}

func (e *engine) observeRejected(kind enums.TransactionKind, err error) {
	code := pkgerrors.CodeInternal
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
	}
	e.metrics.ObserveApply(string(kind), string(code), 0, false)
}

// classify tags raw storage errors. Lost races become ConcurrencyConflict so
// Apply retries them; everything else is a dependency failure.
func classify(err error, action string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	if db.IsConcurrencyConflict(err) || db.IsUniqueViolation(err, "trx_id") {
		return concurrencyConflict(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request cancelled")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
