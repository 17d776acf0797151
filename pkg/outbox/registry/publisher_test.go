package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	memberID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.TransactionRecordedEvent{
		TrxID:         "TRX-20240501-AB12CD",
		MemberID:      memberID,
		Kind:          enums.TransactionKindPurchase,
		Status:        enums.TransactionStatusSucceeded,
		Amount:        15000,
		BalanceBefore: 50000,
		BalanceAfter:  35000,
	})

	event := models.OutboxEvent{
		EventType:     enums.EventTransactionRecorded,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   "TRX-20240501-AB12CD",
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "ledger-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.TransactionRecordedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.MemberID != memberID || payload.BalanceAfter != 35000 {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" || resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope incomplete: %+v", resolved.Envelope)
	}
}

func TestEventRegistryResolveRejections(t *testing.T) {
	reg := newTestEventRegistry(t)
	valid := mustEnvelope(t, []byte(`{"member_id":"`+uuid.NewString()+`"}`))

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("card_printed"),
			AggregateType: enums.AggregateMember,
			AggregateID:   "x",
			Payload:       valid,
		},
		"aggregate mismatch": {
			EventType:     enums.EventMemberCreated,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   "x",
			Payload:       valid,
		},
		"missing aggregate id": {
			EventType:     enums.EventMemberCreated,
			AggregateType: enums.AggregateMember,
			Payload:       valid,
		},
		"null payload": {
			EventType:     enums.EventMemberCreated,
			AggregateType: enums.AggregateMember,
			AggregateID:   "x",
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"future envelope": {
			EventType:     enums.EventMemberCreated,
			AggregateType: enums.AggregateMember,
			AggregateID:   "x",
			Payload:       mustMarshal(t, outbox.PayloadEnvelope{Version: 2, EventID: "e", Data: []byte(`{}`)}),
		},
		"envelope type mismatch": {
			EventType:     enums.EventMemberCreated,
			AggregateType: enums.AggregateMember,
			AggregateID:   "x",
			Payload:       mustMarshal(t, outbox.PayloadEnvelope{Version: 1, EventType: enums.EventMemberDeleted, Data: []byte(`{}`)}),
		},
		"bad envelope": {
			EventType:     enums.EventMemberCreated,
			AggregateType: enums.AggregateMember,
			AggregateID:   "x",
			Payload:       json.RawMessage(`{`),
		},
	}
	for name, event := range cases {
		_, err := reg.Resolve(event)
		if err == nil {
			t.Errorf("%s: expected error", name)
			continue
		}
		var nonRetry NonRetryableError
		if !errors.As(err, &nonRetry) {
			t.Errorf("%s: expected non-retryable error, got %T", name, err)
		}
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatal("expected error")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{LedgerTopic: "ledger-topic"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func mustEnvelope(t *testing.T, data []byte) json.RawMessage {
	t.Helper()
	return mustMarshal(t, outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
}
