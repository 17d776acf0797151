package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/kartupintar-backend/api/responses"
	"github.com/angelmondragon/kartupintar-backend/api/validators"
	"github.com/angelmondragon/kartupintar-backend/internal/cardlookup"
	"github.com/angelmondragon/kartupintar-backend/internal/members"
	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
)

type scanRequest struct {
	Token     string   `json:"token" validate:"required,max=200"`
	Source    string   `json:"source" validate:"omitempty,oneof=nfc qr gps manual"`
	Lat       *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng       *float64 `json:"lng" validate:"omitempty,longitude"`
	PlaceName *string  `json:"place_name,omitempty" validate:"omitempty,max=200"`
}

type scanResponse struct {
	Member   *members.IdentityView       `json:"member"`
	Location cardlookup.LocationEventDTO `json:"location"`
}

// scanInput fills in the terminal's configured point of sale when the
// client sends no coordinates.
func scanInput(pos config.LedgerConfig, source string, lat, lng *float64, place *string) (cardlookup.ScanInput, error) {
	in := cardlookup.ScanInput{
		Source:    enums.ScanSourceManual,
		Lat:       pos.POSLatitude,
		Lng:       pos.POSLongitude,
		PlaceName: place,
	}
	if source != "" {
		parsed, err := enums.ParseScanSource(source)
		if err != nil {
			return in, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid source")
		}
		in.Source = parsed
	}
	if (lat == nil) != (lng == nil) {
		return in, pkgerrors.New(pkgerrors.CodeValidation, "lat and lng must be sent together")
	}
	if lat != nil {
		in.Lat, in.Lng = *lat, *lng
	} else if in.PlaceName == nil && pos.POSName != "" {
		name := pos.POSName
		in.PlaceName = &name
	}
	return in, nil
}

func writeScan(w http.ResponseWriter, result *cardlookup.ScanResult) {
	responses.WriteSuccess(w, scanResponse{
		Member:   members.NewIdentityView(result.Member),
		Location: cardlookup.FromEvent(result.Event),
	})
}

// ScanByToken resolves the card in the path and logs the read. Location is
// taken from the source, lat, lng and place_name query parameters.
func ScanByToken(svc cardlookup.Service, pos config.LedgerConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "card lookup unavailable"))
			return
		}
		caller, err := requireCaller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		q := r.URL.Query()
		lat, err := optionalFloat(q.Get("lat"), "lat")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lng, err := optionalFloat(q.Get("lng"), "lng")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var place *string
		if p := validators.SanitizeString(q.Get("place_name"), 200); p != "" {
			place = &p
		}

		input, err := scanInput(pos, strings.TrimSpace(q.Get("source")), lat, lng, place)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Scan(r.Context(), caller, chi.URLParam(r, "token"), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeScan(w, result)
	}
}

// ScanCard is the body-based variant used by NFC and QR terminals.
func ScanCard(svc cardlookup.Service, pos config.LedgerConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "card lookup unavailable"))
			return
		}
		caller, err := requireCaller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body scanRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := scanInput(pos, body.Source, body.Lat, body.Lng, body.PlaceName)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Scan(r.Context(), caller, body.Token, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeScan(w, result)
	}
}

func optionalFloat(raw, field string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": field})
	}
	return &v, nil
}
