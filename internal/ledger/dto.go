package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	"github.com/angelmondragon/kartupintar-backend/pkg/types"
)

// ApplyRequest is one balance mutation attempt. When MenuItemID is set on a
// purchase, the item's price and name replace Amount and Description.
// CardScanned marks a request addressed by a scanned token; the unit then
// records a location sample whatever the kind or outcome.
type ApplyRequest struct {
	MemberID    uuid.UUID
	Kind        enums.TransactionKind
	Amount      int64
	Description string
	Method      enums.TransactionMethod
	Location    *types.Point
	PlaceName   string
	MenuItemID  *uuid.UUID
	CardScanned bool
}

// TransactionResult is the committed outcome of a succeeded apply.
type TransactionResult struct {
	TrxID         string                  `json:"trx_id"`
	MemberID      uuid.UUID               `json:"member_id"`
	Kind          enums.TransactionKind   `json:"kind"`
	Amount        int64                   `json:"amount"`
	Description   string                  `json:"description"`
	BalanceBefore int64                   `json:"balance_before"`
	BalanceAfter  int64                   `json:"balance_after"`
	Status        enums.TransactionStatus `json:"status"`
	Method        enums.TransactionMethod `json:"method"`
	CreatedAt     time.Time               `json:"created_at"`
}

// ResultFromModel maps a persisted record.
func ResultFromModel(t *models.Transaction) *TransactionResult {
	if t == nil {
		return nil
	}
	return &TransactionResult{
		TrxID:         t.TrxID,
		MemberID:      t.MemberID,
		Kind:          t.Kind,
		Amount:        t.Amount,
		Description:   t.Description,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		Status:        t.Status,
		Method:        t.Method,
		CreatedAt:     t.CreatedAt,
	}
}

func defaultDescription(kind enums.TransactionKind) string {
	switch kind {
	case enums.TransactionKindPurchase:
		return "Canteen purchase"
	case enums.TransactionKindTopUp:
		return "Balance top-up"
	}
	return ""
}
