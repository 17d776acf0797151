package ledger

import (
	"errors"

	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
)

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrCardNotActive       = errors.New("card is not active")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAmountExceedsLimit  = errors.New("amount exceeds top-up limit")
	ErrConcurrencyConflict = errors.New("concurrent balance update")
	errVersionMoved        = errors.New("member row changed under lock")
)

// BalanceDetails is attached to InsufficientBalance errors.
type BalanceDetails struct {
	Balance  int64 `json:"balance"`
	Required int64 `json:"required"`
}

// LimitDetails is attached to AmountExceedsLimit errors.
type LimitDetails struct {
	Limit int64 `json:"limit"`
}

func invalidAmount() error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidAmount, "amount must be greater than zero")
}

func cardNotActive() error {
	return pkgerrors.Wrap(pkgerrors.CodeCardNotActive, ErrCardNotActive, "card is not active")
}

func insufficientBalance(balance, required int64) error {
	return pkgerrors.Wrap(pkgerrors.CodeInsufficientBalance, ErrInsufficientBalance, "insufficient balance").
		WithDetails(BalanceDetails{Balance: balance, Required: required})
}

func amountExceedsLimit(limit int64) error {
	return pkgerrors.Wrap(pkgerrors.CodeLimitExceeded, ErrAmountExceedsLimit, "top-up amount exceeds the allowed maximum").
		WithDetails(LimitDetails{Limit: limit})
}

func concurrencyConflict(cause error) error {
	if cause == nil {
		cause = ErrConcurrencyConflict
	} else {
		cause = errors.Join(ErrConcurrencyConflict, cause)
	}
	return pkgerrors.Wrap(pkgerrors.CodeConcurrency, cause, "balance changed concurrently, retry the operation")
}
