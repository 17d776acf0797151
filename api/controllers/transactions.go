package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/kartupintar-backend/api/responses"
	"github.com/angelmondragon/kartupintar-backend/api/validators"
	"github.com/angelmondragon/kartupintar-backend/internal/transactions"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/pagination"
)

// TransactionList serves the ledger history. Plain user accounts only see
// their own card's records.
func TransactionList(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction service unavailable"))
			return
		}

		filter, err := transactionFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Query(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// TransactionGet returns one record by its TRX id.
func TransactionGet(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction service unavailable"))
			return
		}

		trx, err := svc.Get(r.Context(), strings.TrimSpace(chi.URLParam(r, "trxID")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeMember(r, trx.MemberID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, trx)
	}
}

func transactionFilter(r *http.Request) (transactions.Filter, error) {
	var filter transactions.Filter
	q := r.URL.Query()

	memberID, err := validators.ParseQueryUUID(r, "member_id")
	if err != nil {
		return filter, err
	}
	own, err := memberScope(r)
	if err != nil {
		return filter, err
	}
	if own != nil {
		if memberID != nil && *memberID != *own {
			return filter, pkgerrors.New(pkgerrors.CodeForbidden, "member belongs to another account")
		}
		memberID = own
	}
	filter.MemberID = memberID

	if raw := strings.TrimSpace(q.Get("kind")); raw != "" {
		kind, err := enums.ParseTransactionKind(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind")
		}
		filter.Kind = &kind
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := enums.ParseTransactionStatus(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		filter.Status = &status
	}
	if filter.From, err = validators.ParseQueryTime(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = validators.ParseQueryTime(r, "to"); err != nil {
		return filter, err
	}
	if filter.Limit, err = validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit); err != nil {
		return filter, err
	}
	filter.Cursor = strings.TrimSpace(q.Get("cursor"))
	return filter, nil
}
