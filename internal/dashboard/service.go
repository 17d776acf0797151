// Package dashboard aggregates the admin overview figures.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/kartupintar-backend/internal/transactions"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/money"
)

const recentLimit = 5

// Stats is the dashboard payload.
type Stats struct {
	TotalMembers          int64                         `json:"total_members"`
	ActiveCards           int64                         `json:"active_cards"`
	LostCards             int64                         `json:"lost_cards"`
	BlockedCards          int64                         `json:"blocked_cards"`
	TotalBalance          decimal.Decimal               `json:"total_balance"`
	TotalBalanceFormatted string                        `json:"total_balance_formatted"`
	TransactionCount      int64                         `json:"transaction_count"`
	TodayPurchases        int64                         `json:"today_purchases"`
	TodayPurchaseVolume   decimal.Decimal               `json:"today_purchase_volume"`
	TodayVolumeFormatted  string                        `json:"today_purchase_volume_formatted"`
	RecentTransactions    []transactions.TransactionDTO `json:"recent_transactions"`
	GeneratedAt           time.Time                     `json:"generated_at"`
}

type recentSource interface {
	Recent(ctx context.Context, limit int) ([]transactions.TransactionDTO, error)
}

type Service interface {
	Stats(ctx context.Context) (*Stats, error)
}

type service struct {
	repo   Repository
	recent recentSource
	loc    *time.Location
	now    func() time.Time
}

// NewService builds the dashboard service. Day boundaries for "today" are
// taken in loc; nil means UTC.
func NewService(repo Repository, recent recentSource, loc *time.Location) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dashboard repository required")
	}
	if recent == nil {
		return nil, fmt.Errorf("transaction source required")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &service{repo: repo, recent: recent, loc: loc, now: time.Now}, nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	now := s.now().In(s.loc)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	counts, err := s.repo.CountByCardStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count members")
	}
	balance, err := s.repo.TotalBalance(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum balances")
	}
	trxCount, err := s.repo.CountTransactions(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count transactions")
	}
	volume, purchases, err := s.repo.SucceededVolume(ctx, enums.TransactionKindPurchase, startOfDay)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum purchases")
	}
	recent, err := s.recent.Recent(ctx, recentLimit)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		ActiveCards:           counts[enums.CardStatusActive],
		LostCards:             counts[enums.CardStatusLost],
		BlockedCards:          counts[enums.CardStatusBlocked],
		TotalBalance:          balance,
		TotalBalanceFormatted: money.FormatDecimal(balance),
		TransactionCount:      trxCount,
		TodayPurchases:        purchases,
		TodayPurchaseVolume:   volume,
		TodayVolumeFormatted:  money.FormatDecimal(volume),
		RecentTransactions:    recent,
		GeneratedAt:           now.UTC(),
	}
	for _, n := range counts {
		stats.TotalMembers += n
	}
	return stats, nil
}
