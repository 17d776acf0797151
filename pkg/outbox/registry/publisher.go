// Package registry knows which outbox event types the relay may publish, the
// topic each goes to and the Go type its payload decodes into.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox/payloads"
)

// newest envelope version this relay understands
const maxEnvelopeVersion = 1

type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode func(json.RawMessage) (any, error)
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that will never publish, however often it is
// retried.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func permanent(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

// event describes an event whose data decodes into a *T.
func event[T any](evt enums.OutboxEventType, agg enums.OutboxAggregateType) EventDescriptor {
	return EventDescriptor{
		EventType:     evt,
		AggregateType: agg,
		decode: func(raw json.RawMessage) (any, error) {
			out := new(T)
			if err := json.Unmarshal(raw, out); err != nil {
				return nil, err
			}
			return out, nil
		},
	}
}

// NewEventRegistry routes every known event to the ledger topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.LedgerTopic)
	if topic == "" {
		return nil, errors.New("ledger topic is required")
	}
	descs := []EventDescriptor{
		event[payloads.TransactionRecordedEvent](enums.EventTransactionRecorded, enums.AggregateTransaction),
		event[payloads.MemberCreatedEvent](enums.EventMemberCreated, enums.AggregateMember),
		event[payloads.MemberUpdatedEvent](enums.EventMemberUpdated, enums.AggregateMember),
		event[payloads.MemberDeletedEvent](enums.EventMemberDeleted, enums.AggregateMember),
		event[payloads.CardScannedEvent](enums.EventCardScanned, enums.AggregateMember),
		event[payloads.LedgerDriftDetectedEvent](enums.EventLedgerDrift, enums.AggregateMember),
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descs))}
	for _, d := range descs {
		d.Topic = topic
		reg.entries[d.EventType] = d
	}
	return reg, nil
}

// Resolve checks row against its descriptor and decodes the payload. Every
// error it returns is a NonRetryableError.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[row.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", row.EventType)
	case desc.AggregateType != row.AggregateType:
		return nil, permanent("aggregate mismatch: %s expects %s, row has %s", row.EventType, desc.AggregateType, row.AggregateType)
	case strings.TrimSpace(row.AggregateID) == "":
		return nil, permanent("missing aggregate_id")
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return nil, permanent("decode envelope: %w", err)
	}
	if env.Version > maxEnvelopeVersion {
		return nil, permanent("envelope version %d is newer than %d", env.Version, maxEnvelopeVersion)
	}
	if env.EventType != "" && env.EventType != row.EventType {
		return nil, permanent("envelope says %s, row says %s", env.EventType, row.EventType)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, permanent("payload missing for %s", row.EventType)
	}

	payload, err := desc.decode(env.Data)
	if err != nil {
		return nil, permanent("decode %s payload: %w", row.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
