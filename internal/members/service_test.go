package members

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/internal/identifiers"
	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/db"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/dbtest"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox"
	"github.com/angelmondragon/kartupintar-backend/pkg/types"
)

type harness struct {
	conn   *gorm.DB
	svc    *service
	caller types.CallerContext
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test"})
	svcIface, err := NewService(ServiceParams{
		DB:         db.NewFromGorm(conn),
		Repository: NewRepository(conn),
		IDs:        identifiers.NewGenerator(config.LedgerConfig{CardIDPrefix: "KP"}),
		Outbox:     outbox.NewService(outbox.NewRepository(conn), logg),
		Logger:     logg,
	})
	require.NoError(t, err)
	svc := svcIface.(*service)

	clock := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return &harness{conn: conn, svc: svc, caller: types.NewCaller(uuid.New(), enums.UserRoleAdmin)}
}

func (h *harness) create(t *testing.T, serviceNumber, name string) *models.Member {
	t.Helper()
	m, err := h.svc.Create(context.Background(), h.caller, CreateInput{
		ServiceNumber: serviceNumber,
		Name:          name,
		Rank:          "Serda",
		Unit:          "Yonif 1",
	})
	require.NoError(t, err)
	return m
}

func strPtr(s string) *string { return &s }

func countOutbox(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestCreateAssignsSequentialCardIDs(t *testing.T) {
	h := newHarness(t)

	first := h.create(t, "NRP-001", "Budi Santoso")
	second := h.create(t, "NRP-002", "Siti Aminah")

	assert.Equal(t, "KP-2024-001", first.CardID)
	assert.Equal(t, "KP-2024-002", second.CardID)
	assert.Zero(t, first.Balance)
	assert.Equal(t, enums.CardStatusActive, first.CardStatus)
	assert.Equal(t, int64(2), countOutbox(t, h.conn, enums.EventMemberCreated))
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)
	bad := enums.BloodType("C")

	cases := map[string]CreateInput{
		"blank name":  {ServiceNumber: "N1", Rank: "Serda", Unit: "U"},
		"blank rank":  {ServiceNumber: "N1", Name: "A", Unit: "U"},
		"blood type":  {ServiceNumber: "N1", Name: "A", Rank: "R", Unit: "U", Profile: Profile{BloodType: &bad}},
		"blank nomor": {Name: "A", Rank: "R", Unit: "U"},
	}
	for name, in := range cases {
		_, err := h.svc.Create(context.Background(), h.caller, in)
		require.Error(t, err, name)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), name)
	}

	var n int64
	require.NoError(t, h.conn.Model(&models.Member{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreateRejectsDuplicates(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Create(context.Background(), h.caller, CreateInput{
		ServiceNumber: "NRP-001", Name: "A", Rank: "R", Unit: "U", NFCUID: strPtr("04A1B2C3"),
	})
	require.NoError(t, err)

	_, err = h.svc.Create(context.Background(), h.caller, CreateInput{ServiceNumber: "NRP-001", Name: "B", Rank: "R", Unit: "U"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	_, err = h.svc.Create(context.Background(), h.caller, CreateInput{
		ServiceNumber: "NRP-002", Name: "B", Rank: "R", Unit: "U", NFCUID: strPtr("04A1B2C3"),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	assert.Equal(t, int64(1), countOutbox(t, h.conn, enums.EventMemberCreated))
}

type fixedCardID string

func (f fixedCardID) NextCardID(ctx context.Context, tx *gorm.DB, year int) (string, error) {
	return string(f), nil
}

func TestCreateCardIDRaceIsConcurrencyConflict(t *testing.T) {
	h := newHarness(t)
	taken := h.create(t, "NRP-001", "Budi Santoso")
	h.svc.ids = fixedCardID(taken.CardID)

	_, err := h.svc.Create(context.Background(), h.caller, CreateInput{ServiceNumber: "NRP-002", Name: "Siti", Rank: "Serda", Unit: "Yonif 1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConcurrency), "got %v", err)

	var n int64
	require.NoError(t, h.conn.Model(&models.Member{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(1), countOutbox(t, h.conn, enums.EventMemberCreated))
}

func TestGetNotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMemberNotFound))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = h.svc.GetByCardID(context.Background(), "KP-2099-001")
	assert.True(t, errors.Is(err, ErrMemberNotFound))
}

func TestUpdateEditsFieldsButNotCardOrBalance(t *testing.T) {
	h := newHarness(t)
	m := h.create(t, "NRP-001", "Budi")
	_, err := h.svc.Update(context.Background(), h.caller, m.ID, UpdateInput{NFCUID: strPtr("04FF")})
	require.NoError(t, err)

	lost := enums.CardStatusLost
	updated, err := h.svc.Update(context.Background(), h.caller, m.ID, UpdateInput{
		Name:       strPtr("  Budi Santoso "),
		CardStatus: &lost,
		NFCUID:     strPtr(""),
		Profile:    Profile{Phone: strPtr("0812")},
	})
	require.NoError(t, err)

	assert.Equal(t, "Budi Santoso", updated.Name)
	assert.Equal(t, enums.CardStatusLost, updated.CardStatus)
	assert.Nil(t, updated.NFCUID)
	require.NotNil(t, updated.Phone)
	assert.Equal(t, m.CardID, updated.CardID)
	assert.Zero(t, updated.Balance)
	assert.Greater(t, updated.Version, m.Version)
	assert.Equal(t, int64(2), countOutbox(t, h.conn, enums.EventMemberUpdated))
}

func TestUpdateValidation(t *testing.T) {
	h := newHarness(t)
	m := h.create(t, "NRP-001", "Budi")

	_, err := h.svc.Update(context.Background(), h.caller, m.ID, UpdateInput{Name: strPtr("  ")})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	bogus := enums.CardStatus("stolen")
	_, err = h.svc.Update(context.Background(), h.caller, m.ID, UpdateInput{CardStatus: &bogus})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.Update(context.Background(), h.caller, uuid.New(), UpdateInput{Name: strPtr("X")})
	assert.True(t, errors.Is(err, ErrMemberNotFound))
}

func TestDeleteCascades(t *testing.T) {
	h := newHarness(t)
	m := h.create(t, "NRP-001", "Budi")
	other := h.create(t, "NRP-002", "Siti")
	now := time.Now().UTC()

	for i, id := range []uuid.UUID{m.ID, m.ID, other.ID} {
		require.NoError(t, h.conn.Create(&models.Transaction{
			TrxID:        "TRX-20240301-00000" + string(rune('A'+i)),
			MemberID:     id,
			Kind:         enums.TransactionKindTopUp,
			Amount:       1000,
			BalanceAfter: 1000,
			Status:       enums.TransactionStatusSucceeded,
			Method:       enums.TransactionMethodManual,
			CreatedAt:    now,
		}).Error)
	}
	require.NoError(t, h.conn.Create(&models.LocationEvent{
		MemberID: m.ID, Latitude: -6.9, Longitude: 107.6, Source: enums.ScanSourceNFC, RecordedAt: now,
	}).Error)
	user := &models.User{Username: "budi", PasswordHash: "x", Role: enums.UserRoleUser, Name: "Budi", IsActive: true, MemberID: &m.ID}
	require.NoError(t, h.conn.Create(user).Error)

	res, err := h.svc.Delete(context.Background(), h.caller, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.TransactionsDeleted)
	assert.Equal(t, int64(1), res.LocationsDeleted)
	assert.Equal(t, int64(1), res.UsersUnlinked)

	_, err = h.svc.Get(context.Background(), m.ID)
	assert.True(t, errors.Is(err, ErrMemberNotFound))

	var reloaded models.User
	require.NoError(t, h.conn.First(&reloaded, "id = ?", user.ID).Error)
	assert.Nil(t, reloaded.MemberID)

	var remaining int64
	require.NoError(t, h.conn.Model(&models.Transaction{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
	assert.Equal(t, int64(1), countOutbox(t, h.conn, enums.EventMemberDeleted))

	_, err = h.svc.Delete(context.Background(), h.caller, m.ID)
	assert.True(t, errors.Is(err, ErrMemberNotFound))
}

func TestListFiltersAndPaginates(t *testing.T) {
	h := newHarness(t)
	for i, name := range []string{"Andi", "Budi", "Citra", "Dewi", "Eko"} {
		h.create(t, "NRP-00"+string(rune('1'+i)), name)
	}
	blocked := enums.CardStatusBlocked
	dewi, err := h.svc.List(context.Background(), ListParams{Search: "dewi"})
	require.NoError(t, err)
	require.Len(t, dewi.Members, 1)
	_, err = h.svc.Update(context.Background(), h.caller, dewi.Members[0].ID, UpdateInput{CardStatus: &blocked})
	require.NoError(t, err)

	page1, err := h.svc.List(context.Background(), ListParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1.Members, 2)
	assert.Equal(t, "Eko", page1.Members[0].Name)
	require.NotEmpty(t, page1.NextCursor)

	page2, err := h.svc.List(context.Background(), ListParams{Limit: 2, Cursor: page1.NextCursor})
	require.NoError(t, err)
	require.Len(t, page2.Members, 2)
	assert.Equal(t, "Citra", page2.Members[0].Name)

	page3, err := h.svc.List(context.Background(), ListParams{Limit: 2, Cursor: page2.NextCursor})
	require.NoError(t, err)
	require.Len(t, page3.Members, 1)
	assert.Empty(t, page3.NextCursor)

	onlyBlocked, err := h.svc.List(context.Background(), ListParams{Status: &blocked})
	require.NoError(t, err)
	require.Len(t, onlyBlocked.Members, 1)
	assert.Equal(t, "Dewi", onlyBlocked.Members[0].Name)

	_, err = h.svc.List(context.Background(), ListParams{Cursor: "%%%"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestIdentityViewHidesBalance(t *testing.T) {
	m := &models.Member{ID: uuid.New(), CardID: "KP-2024-001", Name: "Budi", Balance: 50000, CardStatus: enums.CardStatusActive}
	view := NewIdentityView(m)
	assert.Equal(t, "KP-2024-001", view.CardID)

	dto := FromModel(m)
	assert.Equal(t, "Rp 50.000", dto.BalanceFormatted)
}
