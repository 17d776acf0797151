package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
)

const outboxRetentionJobName = "outbox-retention"

// defaults when the worker config leaves them unset
const (
	outboxRetentionDays    = 30
	outboxTerminalAttempts = 10
)

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxPruner
	// RetentionDays is how long published rows are kept.
	RetentionDays int
	// TerminalAttempts must match the relay's attempt budget. Parked rows at
	// or past it are pruned on the same cutoff as published ones.
	TerminalAttempts int
}

// NewOutboxRetentionJob prunes delivered and parked outbox rows. Pending rows
// are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:     params.Logger,
		repo:     params.Repository,
		keep:     time.Duration(orDefault(params.RetentionDays, outboxRetentionDays)) * 24 * time.Hour,
		terminal: orDefault(params.TerminalAttempts, outboxTerminalAttempts),
		now:      time.Now,
	}
	return job, nil
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

type outboxRetentionJob struct {
	logg     *logger.Logger
	repo     outboxPruner
	keep     time.Duration
	terminal int
	now      func() time.Time
}

func (j *outboxRetentionJob) Name() string { return outboxRetentionJobName }

// Run issues a single DELETE outside any explicit transaction.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.keep)
	n, err := j.repo.DeletePublishedBefore(ctx, nil, cutoff, j.terminal)
	if err != nil {
		return fmt.Errorf("prune outbox before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":            cutoff,
		"terminal_attempts": j.terminal,
		"rows_deleted":      n,
	}), "outbox pruned")
	return nil
}
