package identifiers

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/dbtest"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
)

var trxPattern = regexp.MustCompile(`^TRX-\d{8}-[A-Z0-9]{6}$`)

func seedMember(t *testing.T, conn *gorm.DB, cardID, serviceNumber string) {
	t.Helper()
	m, err := models.NewMember(cardID, serviceNumber, "Budi", "Serda", "Yonif 1")
	require.NoError(t, err)
	require.NoError(t, conn.Create(m).Error)
}

func TestNextCardIDStartsAtOne(t *testing.T) {
	conn := dbtest.Open(t)
	gen := NewGenerator(config.LedgerConfig{CardIDPrefix: "KP", MaxIDAttempts: 5})

	id, err := gen.NextCardID(context.Background(), conn, 2024)
	require.NoError(t, err)
	assert.Equal(t, "KP-2024-001", id)
}

func TestNextCardIDContinuesFromHighest(t *testing.T) {
	conn := dbtest.Open(t)
	seedMember(t, conn, "KP-2024-001", "NRP-1")
	seedMember(t, conn, "KP-2024-007", "NRP-2")
	seedMember(t, conn, "KP-2023-999", "NRP-3")
	gen := NewGenerator(config.LedgerConfig{CardIDPrefix: "kp"})

	id, err := gen.NextCardID(context.Background(), conn, 2024)
	require.NoError(t, err)
	assert.Equal(t, "KP-2024-008", id)

	id, err = gen.NextCardID(context.Background(), conn, 2025)
	require.NoError(t, err)
	assert.Equal(t, "KP-2025-001", id)
}

func TestNextCardIDWidensPastThreeDigits(t *testing.T) {
	conn := dbtest.Open(t)
	seedMember(t, conn, "KP-2024-999", "NRP-1")
	gen := NewGenerator(config.LedgerConfig{CardIDPrefix: "KP"})

	id, err := gen.NextCardID(context.Background(), conn, 2024)
	require.NoError(t, err)
	assert.Equal(t, "KP-2024-1000", id)
}

func TestNextTransactionIDFormat(t *testing.T) {
	conn := dbtest.Open(t)
	gen := NewGenerator(config.LedgerConfig{CardIDPrefix: "KP"})
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	id, err := gen.NextTransactionID(context.Background(), conn, now)
	require.NoError(t, err)
	assert.Regexp(t, trxPattern, id)
	assert.Contains(t, id, "TRX-20240501-")
}

func TestNextTransactionIDRetriesPastCollision(t *testing.T) {
	conn := dbtest.Open(t)
	seedMember(t, conn, "KP-2024-001", "NRP-1")
	var member models.Member
	require.NoError(t, conn.First(&member).Error)

	// zero bytes map to "AAAAAA", ones to "BBBBBB"
	require.NoError(t, conn.Create(&models.Transaction{
		TrxID:         "TRX-20240501-AAAAAA",
		MemberID:      member.ID,
		Kind:          enums.TransactionKindTopUp,
		Amount:        1,
		BalanceBefore: 0,
		BalanceAfter:  1,
		Status:        enums.TransactionStatusSucceeded,
		Method:        enums.TransactionMethodManual,
		CreatedAt:     time.Now().UTC(),
	}).Error)

	random := bytes.NewReader(append(make([]byte, trxSuffixLen), bytes.Repeat([]byte{1}, trxSuffixLen)...))
	gen := NewGenerator(config.LedgerConfig{CardIDPrefix: "KP", MaxIDAttempts: 3}).WithRandom(random)

	id, err := gen.NextTransactionID(context.Background(), conn, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "TRX-20240501-BBBBBB", id)
}

func TestNextTransactionIDExhaustion(t *testing.T) {
	conn := dbtest.Open(t)
	seedMember(t, conn, "KP-2024-001", "NRP-1")
	var member models.Member
	require.NoError(t, conn.First(&member).Error)
	require.NoError(t, conn.Create(&models.Transaction{
		TrxID:        "TRX-20240501-AAAAAA",
		MemberID:     member.ID,
		Kind:         enums.TransactionKindTopUp,
		Amount:       1,
		BalanceAfter: 1,
		Status:       enums.TransactionStatusSucceeded,
		Method:       enums.TransactionMethodManual,
		CreatedAt:    time.Now().UTC(),
	}).Error)

	gen := NewGenerator(config.LedgerConfig{CardIDPrefix: "KP", MaxIDAttempts: 2}).
		WithRandom(bytes.NewReader(make([]byte, 4*trxSuffixLen)))

	_, err := gen.NextTransactionID(context.Background(), conn, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateIdentifier))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDuplicateIdentifier))
}

func TestGeneratorRequiresTransaction(t *testing.T) {
	gen := NewGenerator(config.LedgerConfig{})
	_, err := gen.NextCardID(context.Background(), nil, 2024)
	assert.Error(t, err)
	_, err = gen.NextTransactionID(context.Background(), nil, time.Now())
	assert.Error(t, err)
}

func TestHighestSequenceIgnoresForeignFormats(t *testing.T) {
	got := highestSequence([]string{"KP-2024-003", "KP-2024-x1", "KP-2024-010"}, "KP-2024-")
	assert.Equal(t, 10, got)
}

func TestRandomSuffixSkipsBiasedBytes(t *testing.T) {
	// 252..255 would fold onto A..D; they are dropped and the next bytes used
	random := bytes.NewReader([]byte{252, 253, 35, 254, 255, 26, 0, 1, 2, 3})
	gen := NewGenerator(config.LedgerConfig{}).WithRandom(random)

	suffix, err := gen.randomSuffix()
	require.NoError(t, err)
	assert.Equal(t, "90ABCD", suffix)

	_, err = NewGenerator(config.LedgerConfig{}).WithRandom(bytes.NewReader([]byte{255, 255, 255})).randomSuffix()
	assert.Error(t, err)
}
