package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/internal/ledger"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/kartupintar-backend/pkg/types"
)

const (
	ledgerReconcileJobName   = "ledger-reconcile"
	defaultReconcileBatch    = 500
	maxReconcileMemberErrors = 20
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type reconcileStore interface {
	ListBalances(ctx context.Context, afterID *uuid.UUID, limit int) ([]ledger.MemberBalance, error)
	PositionOf(ctx context.Context, memberID uuid.UUID) (ledger.Position, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type reconcileReporter interface {
	SetReconcileResult(checked, drifting int)
}

// LedgerReconcileJobParams wires the balance reconciliation job.
type LedgerReconcileJobParams struct {
	Logger     *logger.Logger
	Repository reconcileStore
	Metrics    reconcileReporter
	BatchSize  int
	// DB and Outbox are optional; when both are set every drifting member
	// produces a ledger_drift_detected event.
	DB     txRunner
	Outbox outboxEmitter
}

// NewLedgerReconcileJob builds the job that compares every member balance
// against the succeeded transaction log.
func NewLedgerReconcileJob(params LedgerReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("reconcile repository required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	if (params.DB == nil) != (params.Outbox == nil) {
		return nil, fmt.Errorf("db runner and outbox must be provided together")
	}
	return &ledgerReconcileJob{
		logg:    params.Logger,
		repo:    params.Repository,
		metrics: params.Metrics,
		db:      params.DB,
		outbox:  params.Outbox,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type ledgerReconcileJob struct {
	logg    *logger.Logger
	repo    reconcileStore
	metrics reconcileReporter
	db      txRunner
	outbox  outboxEmitter
	batch   int
	now     func() time.Time
}

// reconcileReport summarizes one pass.
type reconcileReport struct {
	checked  int
	drifting []uuid.UUID
}

func (j *ledgerReconcileJob) Name() string { return ledgerReconcileJobName }

func (j *ledgerReconcileJob) Run(ctx context.Context) error {
	report, err := j.reconcile(ctx)
	if j.metrics != nil {
		j.metrics.SetReconcileResult(report.checked, len(report.drifting))
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"members_checked":  report.checked,
		"members_drifting": len(report.drifting),
	})
	if len(report.drifting) > 0 {
		j.logg.Warn(logCtx, "ledger.reconcile.drift_detected")
	} else {
		j.logg.Info(logCtx, "ledger.reconcile.clean")
	}
	return err
}

func (j *ledgerReconcileJob) reconcile(ctx context.Context) (reconcileReport, error) {
	var (
		report   reconcileReport
		combined error
		failures int
		after    *uuid.UUID
	)
	for {
		if err := ctx.Err(); err != nil {
			return report, multierr.Append(combined, err)
		}
		page, err := j.repo.ListBalances(ctx, after, j.batch)
		if err != nil {
			return report, multierr.Append(combined, fmt.Errorf("list balances: %w", err))
		}
		for _, member := range page {
			pos, err := j.repo.PositionOf(ctx, member.ID)
			if err != nil {
				failures++
				if failures <= maxReconcileMemberErrors {
					combined = multierr.Append(combined, fmt.Errorf("member %s: %w", member.ID, err))
				}
				continue
			}
			report.checked++
			if pos.Drifts(member.Balance) {
				report.drifting = append(report.drifting, member.ID)
				j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
					"member_id":          member.ID.String(),
					"card_id":            member.CardID,
					"balance":            member.Balance,
					"last_balance_after": pos.Expected(),
					"net_succeeded":      pos.Net,
				}), "ledger.reconcile.member_drift")
				if err := j.emitDrift(ctx, member, pos); err != nil {
					combined = multierr.Append(combined, fmt.Errorf("emit drift %s: %w", member.ID, err))
				}
			}
		}
		if len(page) < j.batch {
			break
		}
		last := page[len(page)-1].ID
		after = &last
	}
	if failures > maxReconcileMemberErrors {
		combined = multierr.Append(combined, fmt.Errorf("%d more member errors suppressed", failures-maxReconcileMemberErrors))
	}
	return report, combined
}

func (j *ledgerReconcileJob) emitDrift(ctx context.Context, member ledger.MemberBalance, pos ledger.Position) error {
	if j.outbox == nil {
		return nil
	}
	detectedAt := j.now().UTC()
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLedgerDrift,
			AggregateType: enums.AggregateMember,
			AggregateID:   member.ID.String(),
			Actor:         outbox.ActorFor(types.SystemCaller()),
			OccurredAt:    detectedAt,
			Data: payloads.LedgerDriftDetectedEvent{
				MemberID:         member.ID,
				CardID:           member.CardID,
				Balance:          member.Balance,
				LastBalanceAfter: pos.LastAfter,
				ComputedBalance:  pos.Net,
				DetectedAt:       detectedAt,
			},
		})
	})
}
