package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/kartupintar-backend/api/responses"
	"github.com/angelmondragon/kartupintar-backend/api/validators"
	"github.com/angelmondragon/kartupintar-backend/internal/ledger"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/types"
)

// cardResolver turns a scanned token into a member without logging a scan;
// the ledger unit records the scan itself.
type cardResolver interface {
	Resolve(ctx context.Context, token string) (*models.Member, error)
}

// balanceRequest identifies the card by member_id or by a scanned token;
// exactly one must be set.
type balanceRequest struct {
	MemberID    *uuid.UUID `json:"member_id,omitempty"`
	Token       *string    `json:"token,omitempty" validate:"omitempty,max=200"`
	Amount      int64      `json:"amount" validate:"gte=0"`
	Description string     `json:"description,omitempty" validate:"max=255"`
	Method      string     `json:"method,omitempty" validate:"omitempty,oneof=nfc qr manual"`
	MenuItemID  *uuid.UUID `json:"menu_item_id,omitempty"`
	Lat         *float64   `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng         *float64   `json:"lng,omitempty" validate:"omitempty,longitude"`
	PlaceName   string     `json:"place_name,omitempty" validate:"max=200"`
}

func (b balanceRequest) toApply(ctx context.Context, resolver cardResolver, kind enums.TransactionKind) (ledger.ApplyRequest, error) {
	req := ledger.ApplyRequest{
		Kind:        kind,
		Amount:      b.Amount,
		Description: strings.TrimSpace(b.Description),
		Method:      enums.TransactionMethodManual,
		PlaceName:   strings.TrimSpace(b.PlaceName),
	}

	hasToken := b.Token != nil && strings.TrimSpace(*b.Token) != ""
	switch {
	case b.MemberID != nil && hasToken:
		return req, pkgerrors.New(pkgerrors.CodeValidation, "send either member_id or token, not both")
	case b.MemberID != nil:
		req.MemberID = *b.MemberID
	case hasToken:
		member, err := resolver.Resolve(ctx, *b.Token)
		if err != nil {
			return req, err
		}
		req.MemberID = member.ID
		req.CardScanned = true
	default:
		return req, pkgerrors.New(pkgerrors.CodeValidation, "member_id or token is required")
	}

	if b.Method != "" {
		method, err := enums.ParseTransactionMethod(b.Method)
		if err != nil {
			return req, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid method")
		}
		req.Method = method
	}
	if (b.Lat == nil) != (b.Lng == nil) {
		return req, pkgerrors.New(pkgerrors.CodeValidation, "lat and lng must be sent together")
	}
	if b.Lat != nil {
		req.Location = &types.Point{Lat: *b.Lat, Lng: *b.Lng}
	}
	if b.MenuItemID != nil {
		if kind != enums.TransactionKindPurchase {
			return req, pkgerrors.New(pkgerrors.CodeValidation, "menu_item_id is only valid for purchases")
		}
		req.MenuItemID = b.MenuItemID
	}
	return req, nil
}

// LedgerPurchase debits a card at the canteen.
func LedgerPurchase(engine ledger.Engine, resolver cardResolver, logg *logger.Logger) http.HandlerFunc {
	return ledgerApply(engine, resolver, enums.TransactionKindPurchase, logg)
}

// LedgerTopUp credits a card.
func LedgerTopUp(engine ledger.Engine, resolver cardResolver, logg *logger.Logger) http.HandlerFunc {
	return ledgerApply(engine, resolver, enums.TransactionKindTopUp, logg)
}

func ledgerApply(engine ledger.Engine, resolver cardResolver, kind enums.TransactionKind, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil || resolver == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger unavailable"))
			return
		}
		caller, err := requireCaller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body balanceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req, err := body.toApply(r.Context(), resolver, kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := engine.Apply(r.Context(), caller, req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
