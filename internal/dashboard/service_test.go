package dashboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/internal/transactions"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/dbtest"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
)

func seedMember(t *testing.T, conn *gorm.DB, n int, balance int64, status enums.CardStatus) *models.Member {
	t.Helper()
	m, err := models.NewMember(fmt.Sprintf("KP-2024-%03d", n), fmt.Sprintf("NRP-%d", n), "Member", "Serda", "Yonif 1")
	require.NoError(t, err)
	m.Balance = balance
	m.CardStatus = status
	require.NoError(t, conn.Create(m).Error)
	return m
}

func seedTrx(t *testing.T, conn *gorm.DB, n int, memberID uuid.UUID, kind enums.TransactionKind, status enums.TransactionStatus, amount int64, at time.Time) {
	t.Helper()
	before, after := int64(1_000_000), int64(1_000_000)
	if status == enums.TransactionStatusSucceeded {
		if kind == enums.TransactionKindPurchase {
			after = before - amount
		} else {
			after = before + amount
		}
	}
	require.NoError(t, conn.Create(&models.Transaction{
		TrxID:         fmt.Sprintf("TRX-20240301-%06d", n),
		MemberID:      memberID,
		Kind:          kind,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Status:        status,
		Method:        enums.TransactionMethodNFC,
		CreatedAt:     at,
	}).Error)
}

func TestStatsAggregates(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

	a := seedMember(t, conn, 1, 5_000_000_000, enums.CardStatusActive)
	seedMember(t, conn, 2, 5_000_000_000, enums.CardStatusActive)
	seedMember(t, conn, 3, 250_000, enums.CardStatusLost)
	seedMember(t, conn, 4, 0, enums.CardStatusBlocked)

	seedTrx(t, conn, 1, a.ID, enums.TransactionKindPurchase, enums.TransactionStatusSucceeded, 20_000, now.Add(-26*time.Hour))
	seedTrx(t, conn, 2, a.ID, enums.TransactionKindPurchase, enums.TransactionStatusSucceeded, 15_000, now.Add(-2*time.Hour))
	seedTrx(t, conn, 3, a.ID, enums.TransactionKindPurchase, enums.TransactionStatusSucceeded, 10_000, now.Add(-time.Hour))
	seedTrx(t, conn, 4, a.ID, enums.TransactionKindPurchase, enums.TransactionStatusFailed, 99_000, now.Add(-time.Hour))
	seedTrx(t, conn, 5, a.ID, enums.TransactionKindTopUp, enums.TransactionStatusSucceeded, 50_000, now.Add(-30*time.Minute))
	for i := 6; i <= 8; i++ {
		seedTrx(t, conn, i, a.ID, enums.TransactionKindTopUp, enums.TransactionStatusSucceeded, 1_000, now.Add(-10*time.Minute))
	}

	trxSvc, err := transactions.NewService(transactions.NewRepository(conn))
	require.NoError(t, err)
	svcIface, err := NewService(NewRepository(conn), trxSvc, time.UTC)
	require.NoError(t, err)
	svc := svcIface.(*service)
	svc.now = func() time.Time { return now }

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalMembers)
	assert.Equal(t, int64(2), stats.ActiveCards)
	assert.Equal(t, int64(1), stats.LostCards)
	assert.Equal(t, int64(1), stats.BlockedCards)
	assert.Equal(t, "10000250000", stats.TotalBalance.String())
	assert.Equal(t, "Rp 10.000.250.000", stats.TotalBalanceFormatted)
	assert.Equal(t, int64(8), stats.TransactionCount)
	assert.Equal(t, int64(2), stats.TodayPurchases)
	assert.Equal(t, "25000", stats.TodayPurchaseVolume.String())
	assert.Equal(t, "Rp 25.000", stats.TodayVolumeFormatted)
	require.Len(t, stats.RecentTransactions, 5)
	assert.Equal(t, "TRX-20240301-000008", stats.RecentTransactions[0].TrxID)
}

func TestStatsEmptyDatabase(t *testing.T) {
	conn := dbtest.Open(t)
	trxSvc, err := transactions.NewService(transactions.NewRepository(conn))
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), trxSvc, nil)
	require.NoError(t, err)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalMembers)
	assert.True(t, stats.TotalBalance.IsZero())
	assert.Equal(t, "Rp 0", stats.TotalBalanceFormatted)
	assert.Empty(t, stats.RecentTransactions)
}
