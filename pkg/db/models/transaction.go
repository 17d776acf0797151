package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
)

// Transaction is the immutable audit record of one ledger attempt. Seq is the
// insertion-order surrogate used to break created_at ties.
type Transaction struct {
	Seq           int64                   `gorm:"column:seq;primaryKey;autoIncrement"`
	TrxID         string                  `gorm:"column:trx_id;size:32;not null;uniqueIndex"`
	MemberID      uuid.UUID               `gorm:"column:member_id;size:36;not null;index:idx_transactions_member_created,priority:1"`
	Kind          enums.TransactionKind   `gorm:"column:kind;size:16;not null;index"`
	Description   string                  `gorm:"column:description;size:200"`
	Amount        int64                   `gorm:"column:amount;not null;check:chk_transactions_amount_positive,amount > 0"`
	BalanceBefore int64                   `gorm:"column:balance_before;not null"`
	BalanceAfter  int64                   `gorm:"column:balance_after;not null"`
	Status        enums.TransactionStatus `gorm:"column:status;size:16;not null;index"`
	Method        enums.TransactionMethod `gorm:"column:method;size:16;not null"`
	OperatorID    *uuid.UUID              `gorm:"column:operator_id;size:36"`
	CreatedAt     time.Time               `gorm:"column:created_at;not null;index;index:idx_transactions_member_created,priority:2"`
}

// CheckSnapshot verifies the before/after arithmetic for the record's kind
// and status.
func (t Transaction) CheckSnapshot() error {
	if t.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", t.Amount)
	}
	if t.BalanceBefore < 0 || t.BalanceAfter < 0 {
		return fmt.Errorf("balances must not be negative (%d -> %d)", t.BalanceBefore, t.BalanceAfter)
	}
	switch t.Status {
	case enums.TransactionStatusFailed, enums.TransactionStatusPending:
		if t.BalanceAfter != t.BalanceBefore {
			return fmt.Errorf("%s record must not move the balance (%d -> %d)", t.Status, t.BalanceBefore, t.BalanceAfter)
		}
		return nil
	case enums.TransactionStatusSucceeded:
	default:
		return fmt.Errorf("invalid transaction status %q", t.Status)
	}
	switch t.Kind {
	case enums.TransactionKindPurchase:
		if t.BalanceAfter != t.BalanceBefore-t.Amount {
			return fmt.Errorf("purchase snapshot mismatch: %d - %d != %d", t.BalanceBefore, t.Amount, t.BalanceAfter)
		}
	case enums.TransactionKindTopUp:
		if t.BalanceAfter != t.BalanceBefore+t.Amount {
			return fmt.Errorf("top-up snapshot mismatch: %d + %d != %d", t.BalanceBefore, t.Amount, t.BalanceAfter)
		}
	default:
		return fmt.Errorf("invalid transaction kind %q", t.Kind)
	}
	return nil
}
