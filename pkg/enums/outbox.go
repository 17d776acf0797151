package enums

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateMember      OutboxAggregateType = "member"
	AggregateTransaction OutboxAggregateType = "transaction"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateMember,
	AggregateTransaction,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(validAggregateTypes, value, "aggregate type")
}

// OutboxEventType is the routing key attached to published outbox messages.
type OutboxEventType string

const (
	EventTransactionRecorded OutboxEventType = "transaction_recorded"
	EventMemberCreated       OutboxEventType = "member_created"
	EventMemberUpdated       OutboxEventType = "member_updated"
	EventMemberDeleted       OutboxEventType = "member_deleted"
	EventCardScanned         OutboxEventType = "card_scanned"
	EventLedgerDrift         OutboxEventType = "ledger_drift_detected"
)

var validOutboxEventTypes = []OutboxEventType{
	EventTransactionRecorded,
	EventMemberCreated,
	EventMemberUpdated,
	EventMemberDeleted,
	EventCardScanned,
	EventLedgerDrift,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(validOutboxEventTypes, value, "event type")
}
