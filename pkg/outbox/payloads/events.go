package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
)

// TransactionRecordedEvent is emitted for every committed ledger record,
// succeeded or failed.
type TransactionRecordedEvent struct {
	TrxID         string                  `json:"trx_id"`
	MemberID      uuid.UUID               `json:"member_id"`
	CardID        string                  `json:"card_id"`
	Kind          enums.TransactionKind   `json:"kind"`
	Status        enums.TransactionStatus `json:"status"`
	Method        enums.TransactionMethod `json:"method"`
	Amount        int64                   `json:"amount"`
	BalanceBefore int64                   `json:"balance_before"`
	BalanceAfter  int64                   `json:"balance_after"`
	OperatorID    *uuid.UUID              `json:"operator_id,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

// MemberCreatedEvent announces a newly issued card.
type MemberCreatedEvent struct {
	MemberID      uuid.UUID `json:"member_id"`
	CardID        string    `json:"card_id"`
	ServiceNumber string    `json:"service_number"`
	Name          string    `json:"name"`
}

// MemberUpdatedEvent lists the fields an admin edit touched.
type MemberUpdatedEvent struct {
	MemberID   uuid.UUID        `json:"member_id"`
	CardID     string           `json:"card_id"`
	CardStatus enums.CardStatus `json:"card_status"`
	Fields     []string         `json:"fields"`
}

// MemberDeletedEvent records the removal of a card holder and their history.
type MemberDeletedEvent struct {
	MemberID            uuid.UUID `json:"member_id"`
	CardID              string    `json:"card_id"`
	TransactionsDeleted int64     `json:"transactions_deleted"`
	LocationsDeleted    int64     `json:"locations_deleted"`
}

// CardScannedEvent is emitted when a scan logs a location sample.
type CardScannedEvent struct {
	MemberID   uuid.UUID        `json:"member_id"`
	CardID     string           `json:"card_id"`
	Source     enums.ScanSource `json:"source"`
	Latitude   float64          `json:"latitude"`
	Longitude  float64          `json:"longitude"`
	PlaceName  *string          `json:"place_name,omitempty"`
	ScannedBy  *uuid.UUID       `json:"scanned_by,omitempty"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// LedgerDriftDetectedEvent reports a member whose balance disagrees with the
// transaction history.
type LedgerDriftDetectedEvent struct {
	MemberID         uuid.UUID `json:"member_id"`
	CardID           string    `json:"card_id"`
	Balance          int64     `json:"balance"`
	LastBalanceAfter *int64    `json:"last_balance_after,omitempty"`
	ComputedBalance  int64     `json:"computed_balance"`
	DetectedAt       time.Time `json:"detected_at"`
}
