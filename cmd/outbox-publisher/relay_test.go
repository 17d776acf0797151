package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/metrics"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox/registry"
)

func recordedRow(t *testing.T, trxID string, attempts int) models.OutboxEvent {
	t.Helper()
	env, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		EventType:  enums.EventTransactionRecorded,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventTransactionRecorded,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   trxID,
		Payload:       env,
		AttemptCount:  attempts,
	}
}

type relayHarness struct {
	relay  *Relay
	store  *fakeStore
	sender *fakeSender
}

func newRelayHarness(t *testing.T, rows []models.OutboxEvent, resolver eventResolver, outboxCfg config.OutboxConfig) *relayHarness {
	t.Helper()
	h := &relayHarness{store: &fakeStore{rows: rows}, sender: &fakeSender{}}
	relay, err := NewRelay(RelayParams{
		Outbox:   outboxCfg,
		Logger:   logger.New(logger.Options{ServiceName: "relay-test", Output: io.Discard}),
		DB:       fakeTxDB{},
		Broker:   fakeBroker{},
		Store:    h.store,
		Resolver: resolver,
		Metrics:  metrics.NewOutboxMetrics(prometheus.NewRegistry()),
		Senders:  func(string) sender { return h.sender },
	})
	require.NoError(t, err)
	h.relay = relay
	return h
}

func TestDrainKeepsGoingAfterTransientFailure(t *testing.T) {
	memberID := uuid.New()
	rows := []models.OutboxEvent{
		recordedRow(t, "TRX-20260301-AAAAAA", 0),
		recordedRow(t, "TRX-20260301-BBBBBB", 0),
	}
	h := newRelayHarness(t, rows, &stubResolver{memberID: memberID}, config.OutboxConfig{BatchSize: 2, MaxAttempts: 5})
	h.sender.errs = []error{errors.New("connection reset"), nil}

	found, err := h.relay.drain(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []uuid.UUID{rows[0].ID}, h.store.failed)
	assert.Equal(t, []uuid.UUID{rows[1].ID}, h.store.published)

	require.Len(t, h.sender.sent, 2)
	assert.Equal(t, "TRX-20260301-BBBBBB", h.sender.sent[1].Attributes["aggregate_id"])
	assert.Equal(t, memberID.String(), h.sender.sent[1].OrderingKey)
}

func TestDrainParksUndecodableRows(t *testing.T) {
	row := recordedRow(t, "TRX-20260301-CCCCCC", 0)
	h := newRelayHarness(t, []models.OutboxEvent{row},
		&stubResolver{err: registry.NewNonRetryableError(errors.New("bad payload"))},
		config.OutboxConfig{MaxAttempts: 5})

	_, err := h.relay.drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{row.ID}, h.store.parked)
	assert.Equal(t, 5, h.store.parkedAt)
	assert.Empty(t, h.sender.sent)
}

func TestDrainParksPermanentBrokerErrors(t *testing.T) {
	row := recordedRow(t, "TRX-20260301-DDDDDD", 0)
	h := newRelayHarness(t, []models.OutboxEvent{row}, &stubResolver{}, config.OutboxConfig{MaxAttempts: 5})
	h.sender.errs = []error{status.Error(codes.PermissionDenied, "publisher role missing")}

	_, err := h.relay.drain(context.Background())
	require.NoError(t, err)
	assert.Len(t, h.store.parked, 1)
	assert.Empty(t, h.store.failed)
}

func TestDrainParksWhenAttemptBudgetIsSpent(t *testing.T) {
	row := recordedRow(t, "TRX-20260301-EEEEEE", 1)
	h := newRelayHarness(t, []models.OutboxEvent{row}, &stubResolver{}, config.OutboxConfig{MaxAttempts: 2})
	h.sender.errs = []error{status.Error(codes.Unavailable, "try later")}

	_, err := h.relay.drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{row.ID}, h.store.parked)
	assert.Equal(t, 2, h.store.parkedAt)
}

func TestDrainReportsEmptyBatch(t *testing.T) {
	h := newRelayHarness(t, nil, &stubResolver{}, config.OutboxConfig{})
	found, err := h.relay.drain(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOrderingKeyFallsBackToAggregate(t *testing.T) {
	row := models.OutboxEvent{AggregateType: enums.AggregateMember, AggregateID: "member-1"}
	key := orderingKey(row, &registry.ResolvedEvent{Payload: &payloads.CardScannedEvent{}})
	assert.Equal(t, "member-1", key)
}

func TestIsRetryable(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"plain":       {errors.New("io"), true},
		"unavailable": {status.Error(codes.Unavailable, "x"), true},
		"deadline":    {status.Error(codes.DeadlineExceeded, "x"), true},
		"not found":   {status.Error(codes.NotFound, "x"), false},
		"invalid arg": {status.Error(codes.InvalidArgument, "x"), false},
		"permanent":   {registry.NewNonRetryableError(errors.New("x")), false},
	}
	for name, tc := range cases {
		assert.Equal(t, tc.want, isRetryable(tc.err), name)
	}
}

func TestPacerDoublesUpToCeiling(t *testing.T) {
	p := pacer{base: 100 * time.Millisecond, ceiling: time.Second}
	first := p.failure()
	assert.GreaterOrEqual(t, first, 200*time.Millisecond)
	assert.Less(t, first, 200*time.Millisecond+jitterSpan)

	for i := 0; i < 5; i++ {
		p.failure()
	}
	assert.Equal(t, time.Second, p.current)

	idle := p.idle()
	assert.Zero(t, p.current)
	assert.Less(t, idle, 100*time.Millisecond+jitterSpan)
}

type fakeStore struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	parked    []uuid.UUID
	parkedAt  int
}

func (f *fakeStore) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.rows, nil
}

func (f *fakeStore) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeStore) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeStore) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, attempts int) error {
	f.parked = append(f.parked, id)
	f.parkedAt = attempts
	return nil
}

func (f *fakeStore) CountPending(context.Context) (int64, error) {
	return int64(len(f.rows)), nil
}

type fakeTxDB struct{}

func (fakeTxDB) Ping(context.Context) error { return nil }

func (fakeTxDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakeBroker struct{}

func (fakeBroker) Ping(context.Context) error { return nil }

func (fakeBroker) Publisher(string) *gcppubsub.Publisher { return nil }

type fakeSender struct {
	errs []error
	sent []*gcppubsub.Message
}

func (f *fakeSender) Send(_ context.Context, msg *gcppubsub.Message) error {
	f.sent = append(f.sent, msg)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type stubResolver struct {
	memberID uuid.UUID
	err      error
}

func (s *stubResolver) Resolve(row models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	var env outbox.PayloadEnvelope
	_ = json.Unmarshal(row.Payload, &env)
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "kartupintar-ledger", AggregateType: row.AggregateType},
		Envelope:   env,
		Payload:    &payloads.TransactionRecordedEvent{TrxID: row.AggregateID, MemberID: s.memberID},
	}, nil
}
