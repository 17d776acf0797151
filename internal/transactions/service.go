// Package transactions serves the read side of the ledger.
package transactions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/pagination"
)

// ErrTransactionNotFound is returned when a trx id is unknown.
var ErrTransactionNotFound = errors.New("transaction not found")

// Service queries recorded transactions.
type Service interface {
	Query(ctx context.Context, filter Filter) (*ListResult, error)
	Get(ctx context.Context, trxID string) (*TransactionDTO, error)
	Recent(ctx context.Context, limit int) ([]TransactionDTO, error)
}

type service struct {
	repo Repository
}

// NewService builds the history service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	return &service{repo: repo}, nil
}

// Query lists records newest first, ties broken by insertion order.
func (s *service) Query(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Kind != nil && !filter.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid kind filter")
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}
	cursor, err := pagination.ParseSeqCursor(filter.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(filter.Limit)

	rows, err := s.repo.List(ctx, listFilter{
		memberID: filter.MemberID,
		kind:     filter.Kind,
		status:   filter.Status,
		from:     filter.From,
		to:       filter.To,
		limit:    limit + 1,
		cursor:   cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}

	rows, next := pagination.Page(rows, limit, func(last *models.Transaction) string {
		return pagination.EncodeSeqCursor(pagination.SeqCursor{CreatedAt: last.CreatedAt, Seq: last.Seq})
	})
	result := &ListResult{Transactions: make([]TransactionDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		result.Transactions = append(result.Transactions, FromModel(&rows[i]))
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, trxID string) (*TransactionDTO, error) {
	trxID = strings.ToUpper(strings.TrimSpace(trxID))
	if trxID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "trx id required")
	}
	row, err := s.repo.FindByTrxID(ctx, trxID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrTransactionNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	dto := FromModel(row)
	return &dto, nil
}

// Recent returns the latest records across all members.
func (s *service) Recent(ctx context.Context, limit int) ([]TransactionDTO, error) {
	rows, err := s.repo.Recent(ctx, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recent transactions")
	}
	out := make([]TransactionDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, nil
}
