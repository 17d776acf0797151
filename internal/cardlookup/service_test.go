package cardlookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/internal/members"
	"github.com/angelmondragon/kartupintar-backend/pkg/db"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/dbtest"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox"
	"github.com/angelmondragon/kartupintar-backend/pkg/pagination"
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
		DB:        db.NewFromGorm(conn),
		Members:   members.NewRepository(conn),
		Locations: NewRepository(conn),
		Outbox:    outbox.NewService(outbox.NewRepository(conn), logg),
		Logger:    logg,
	})
	require.NoError(t, err)
	svc := svcIface.(*service)

	clock := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return &harness{conn: conn, svc: svc, caller: types.NewCaller(uuid.New(), enums.UserRoleCanteenOperator)}
}

func (h *harness) seed(t *testing.T, cardID, serviceNumber string, nfc, qr *string) *models.Member {
	t.Helper()
	m, err := models.NewMember(cardID, serviceNumber, "Member "+serviceNumber, "Serda", "Yonif 1")
	require.NoError(t, err)
	m.NFCUID = nfc
	m.QRPayload = qr
	require.NoError(t, h.conn.Create(m).Error)
	return m
}

func strPtr(s string) *string { return &s }

func countLocations(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.LocationEvent{}).Count(&n).Error)
	return n
}

func TestResolveMatchesEveryTokenKind(t *testing.T) {
	h := newHarness(t)
	m := h.seed(t, "KP-2024-001", "NRP-1", strPtr("04A1B2C3"), strPtr("QR-XYZ"))

	for _, token := range []string{"04A1B2C3", "QR-XYZ", "KP-2024-001", "  KP-2024-001  "} {
		got, err := h.svc.Resolve(context.Background(), token)
		require.NoError(t, err, token)
		assert.Equal(t, m.ID, got.ID, token)
	}
	assert.Zero(t, countLocations(t, h.conn), "resolve must not record anything")
}

func TestScanUnknownTokenWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "KP-2024-001", "NRP-1", strPtr("04A1B2C3"), nil)

	_, err := h.svc.Scan(context.Background(), h.caller, "DEADBEEF", ScanInput{Source: enums.ScanSourceNFC, Lat: -6.2, Lng: 106.8})
	require.Error(t, err)
	assert.True(t, errors.Is(err, members.ErrMemberNotFound))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	assert.Zero(t, countLocations(t, h.conn))

	var outboxRows int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Count(&outboxRows).Error)
	assert.Zero(t, outboxRows)
}

func TestScanKnownNFCRecordsOneLocation(t *testing.T) {
	h := newHarness(t)
	m := h.seed(t, "KP-2024-001", "NRP-1", strPtr("04A1B2C3"), nil)

	res, err := h.svc.Scan(context.Background(), h.caller, "04A1B2C3", ScanInput{
		Source:    enums.ScanSourceNFC,
		Lat:       -6.1754,
		Lng:       106.8272,
		PlaceName: strPtr(" Gerbang Utama "),
	})
	require.NoError(t, err)
	assert.Equal(t, m.ID, res.Member.ID)
	assert.Equal(t, int64(1), countLocations(t, h.conn))

	var stored models.Member
	require.NoError(t, h.conn.Where("id = ?", m.ID).First(&stored).Error)
	loc := stored.LastKnownLocation()
	require.NotNil(t, loc)
	assert.Equal(t, res.Event.Latitude, loc.Lat)
	assert.Equal(t, res.Event.Longitude, loc.Lng)
	assert.Equal(t, "Gerbang Utama", loc.Name)
	assert.True(t, res.Event.RecordedAt.Equal(loc.At))
	require.NotNil(t, res.Event.ScannedBy)
	assert.Equal(t, *h.caller.OperatorID, *res.Event.ScannedBy)

	var scanned int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventCardScanned).Count(&scanned).Error)
	assert.Equal(t, int64(1), scanned)
}

func TestResolveFailsClosedOnSharedToken(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "KP-2024-001", "NRP-1", strPtr("SHARED"), nil)
	h.seed(t, "KP-2024-002", "NRP-2", nil, strPtr("SHARED"))

	_, err := h.svc.Scan(context.Background(), h.caller, "SHARED", ScanInput{Source: enums.ScanSourceQR})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguousToken))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInternal))
	assert.Zero(t, countLocations(t, h.conn))
}

func TestScanRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "KP-2024-001", "NRP-1", strPtr("04A1B2C3"), nil)

	cases := []ScanInput{
		{Source: "bluetooth"},
		{Source: enums.ScanSourceNFC, Lat: 91},
		{Source: enums.ScanSourceNFC, Lng: -181},
	}
	for _, in := range cases {
		_, err := h.svc.Scan(context.Background(), h.caller, "04A1B2C3", in)
		require.Error(t, err)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	}
	_, err := h.svc.Resolve(context.Background(), "   ")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, countLocations(t, h.conn))
}

func TestLastScanWinsAndHistoryIsNewestFirst(t *testing.T) {
	h := newHarness(t)
	m := h.seed(t, "KP-2024-001", "NRP-1", strPtr("04A1B2C3"), nil)
	ctx := context.Background()

	places := []string{"Barak", "Kantin", "Lapangan"}
	for i, place := range places {
		_, err := h.svc.Scan(ctx, h.caller, "04A1B2C3", ScanInput{
			Source:    enums.ScanSourceNFC,
			Lat:       float64(i),
			Lng:       float64(i),
			PlaceName: strPtr(place),
		})
		require.NoError(t, err)
	}

	page, err := h.svc.History(ctx, m.ID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Events, 2)
	assert.Equal(t, "Lapangan", *page.Events[0].PlaceName)
	assert.Equal(t, "Kantin", *page.Events[1].PlaceName)
	require.NotEmpty(t, page.NextCursor)

	rest, err := h.svc.History(ctx, m.ID, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Events, 1)
	assert.Equal(t, "Barak", *rest.Events[0].PlaceName)
	assert.Empty(t, rest.NextCursor)

	latest, err := h.svc.Latest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "Lapangan", latest[0].Location.Name)
	assert.Equal(t, m.CardID, latest[0].Identity.CardID)
}

func TestHistoryUnknownMember(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.History(context.Background(), uuid.New(), pagination.Params{})
	assert.True(t, errors.Is(err, members.ErrMemberNotFound))
}
