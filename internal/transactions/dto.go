package transactions

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	"github.com/angelmondragon/kartupintar-backend/pkg/money"
)

// Filter narrows a history query. From is inclusive, To exclusive.
type Filter struct {
	MemberID *uuid.UUID
	Kind     *enums.TransactionKind
	Status   *enums.TransactionStatus
	From     *time.Time
	To       *time.Time
	Limit    int
	Cursor   string
}

// TransactionDTO is the API shape of a ledger record.
type TransactionDTO struct {
	TrxID                 string                  `json:"trx_id"`
	MemberID              uuid.UUID               `json:"member_id"`
	Kind                  enums.TransactionKind   `json:"kind"`
	Description           string                  `json:"description"`
	Amount                int64                   `json:"amount"`
	AmountFormatted       string                  `json:"amount_formatted"`
	BalanceBefore         int64                   `json:"balance_before"`
	BalanceAfter          int64                   `json:"balance_after"`
	BalanceAfterFormatted string                  `json:"balance_after_formatted"`
	Status                enums.TransactionStatus `json:"status"`
	Method                enums.TransactionMethod `json:"method"`
	OperatorID            *uuid.UUID              `json:"operator_id,omitempty"`
	CreatedAt             time.Time               `json:"created_at"`
}

// FromModel maps a persisted record.
func FromModel(t *models.Transaction) TransactionDTO {
	return TransactionDTO{
		TrxID:                 t.TrxID,
		MemberID:              t.MemberID,
		Kind:                  t.Kind,
		Description:           t.Description,
		Amount:                t.Amount,
		AmountFormatted:       money.FormatRupiah(t.Amount),
		BalanceBefore:         t.BalanceBefore,
		BalanceAfter:          t.BalanceAfter,
		BalanceAfterFormatted: money.FormatRupiah(t.BalanceAfter),
		Status:                t.Status,
		Method:                t.Method,
		OperatorID:            t.OperatorID,
		CreatedAt:             t.CreatedAt,
	}
}

// ListResult is one page of history.
type ListResult struct {
	Transactions []TransactionDTO `json:"transactions"`
	NextCursor   string           `json:"next_cursor,omitempty"`
}
