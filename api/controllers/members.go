package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/kartupintar-backend/api/responses"
	"github.com/angelmondragon/kartupintar-backend/api/validators"
	"github.com/angelmondragon/kartupintar-backend/internal/cardlookup"
	"github.com/angelmondragon/kartupintar-backend/internal/members"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/pagination"
)

type profileRequest struct {
	Position   *string `json:"position,omitempty" validate:"omitempty,max=100"`
	Department *string `json:"department,omitempty" validate:"omitempty,max=100"`
	BirthPlace *string `json:"birth_place,omitempty" validate:"omitempty,max=100"`
	BirthDate  *string `json:"birth_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	BloodType  *string `json:"blood_type,omitempty" validate:"omitempty,oneof=A B AB O"`
	Religion   *string `json:"religion,omitempty" validate:"omitempty,max=50"`
	Address    *string `json:"address,omitempty" validate:"omitempty,max=500"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	PhotoURL   *string `json:"photo_url,omitempty" validate:"omitempty,url,max=500"`
}

func (p profileRequest) toProfile() (members.Profile, error) {
	profile := members.Profile{
		Position:   p.Position,
		Department: p.Department,
		BirthPlace: p.BirthPlace,
		Religion:   p.Religion,
		Address:    p.Address,
		Phone:      p.Phone,
		PhotoURL:   p.PhotoURL,
	}
	if p.BirthDate != nil && strings.TrimSpace(*p.BirthDate) != "" {
		d, err := time.Parse(time.DateOnly, strings.TrimSpace(*p.BirthDate))
		if err != nil {
			return profile, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "birth_date must be YYYY-MM-DD")
		}
		profile.BirthDate = &d
	}
	if p.BloodType != nil {
		bt, err := enums.ParseBloodType(*p.BloodType)
		if err != nil {
			return profile, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid blood_type")
		}
		profile.BloodType = &bt
	}
	return profile, nil
}

type memberCreateRequest struct {
	ServiceNumber string  `json:"service_number" validate:"required,max=50"`
	Name          string  `json:"name" validate:"required,max=100"`
	Rank          string  `json:"rank" validate:"required,max=50"`
	Unit          string  `json:"unit" validate:"required,max=100"`
	NFCUID        *string `json:"nfc_uid,omitempty" validate:"omitempty,max=100"`
	QRPayload     *string `json:"qr_payload,omitempty" validate:"omitempty,max=200"`
	profileRequest
}

type memberUpdateRequest struct {
	ServiceNumber *string `json:"service_number,omitempty" validate:"omitempty,max=50"`
	Name          *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Rank          *string `json:"rank,omitempty" validate:"omitempty,max=50"`
	Unit          *string `json:"unit,omitempty" validate:"omitempty,max=100"`
	CardStatus    *string `json:"card_status,omitempty" validate:"omitempty,oneof=active inactive lost blocked"`
	NFCUID        *string `json:"nfc_uid,omitempty" validate:"omitempty,max=100"`
	QRPayload     *string `json:"qr_payload,omitempty" validate:"omitempty,max=200"`
	profileRequest
}

// MemberList serves the member directory with status and search filters.
func MemberList(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "member service unavailable"))
			return
		}

		q := r.URL.Query()
		params := members.ListParams{
			Search: validators.SanitizeString(q.Get("search"), 100),
			Cursor: strings.TrimSpace(q.Get("cursor")),
		}
		if raw := strings.TrimSpace(q.Get("status")); raw != "" {
			status, err := enums.ParseCardStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			params.Status = &status
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// MemberGet returns the full member record, balance included.
func MemberGet(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "member service unavailable"))
			return
		}
		id, err := validators.PathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeMember(r, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		member, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, members.FromModel(member))
	}
}

// MemberLocations returns a member's scan history, newest first.
func MemberLocations(svc cardlookup.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "card lookup unavailable"))
			return
		}
		id, err := validators.PathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeMember(r, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.History(r.Context(), id, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// LatestLocations feeds the card tracking map.
func LatestLocations(svc cardlookup.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "card lookup unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.MaxLimit, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tracked, err := svc.Latest(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tracked)
	}
}

// AdminMemberCreate registers a card holder. The card id is generated and
// the balance starts at zero.
func AdminMemberCreate(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "member service unavailable"))
			return
		}
		caller, err := requireCaller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body memberCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := body.toProfile()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		member, err := svc.Create(r.Context(), caller, members.CreateInput{
			ServiceNumber: body.ServiceNumber,
			Name:          body.Name,
			Rank:          body.Rank,
			Unit:          body.Unit,
			NFCUID:        body.NFCUID,
			QRPayload:     body.QRPayload,
			Profile:       profile,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, members.FromModel(member))
	}
}

// AdminMemberUpdate edits profile, status and card tokens. Balance and card
// id cannot be changed here.
func AdminMemberUpdate(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "member service unavailable"))
			return
		}
		caller, err := requireCaller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body memberUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := body.toProfile()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := members.UpdateInput{
			ServiceNumber: body.ServiceNumber,
			Name:          body.Name,
			Rank:          body.Rank,
			Unit:          body.Unit,
			NFCUID:        body.NFCUID,
			QRPayload:     body.QRPayload,
			Profile:       profile,
		}
		if body.CardStatus != nil {
			status, err := enums.ParseCardStatus(*body.CardStatus)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid card_status"))
				return
			}
			input.CardStatus = &status
		}

		member, err := svc.Update(r.Context(), caller, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, members.FromModel(member))
	}
}

// AdminMemberDelete removes a member with its transactions and locations.
func AdminMemberDelete(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "member service unavailable"))
			return
		}
		caller, err := requireCaller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Delete(r.Context(), caller, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
