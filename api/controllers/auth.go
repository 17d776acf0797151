package controllers

import (
	"net/http"

	"github.com/angelmondragon/kartupintar-backend/api/middleware"
	"github.com/angelmondragon/kartupintar-backend/api/responses"
	"github.com/angelmondragon/kartupintar-backend/api/validators"
	"github.com/angelmondragon/kartupintar-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
)

var (
	errAuthUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")
	errNoCredentials   = pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
)

// authHandler adapts one auth operation to HTTP. The operation's result is
// written as the success payload.
func authHandler(svc auth.Service, logg *logger.Logger, op func(*http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, errAuthUnavailable)
			return
		}
		out, err := op(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return authHandler(svc, logg, func(r *http.Request) (any, error) {
		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Login(r.Context(), body)
	})
}

// AuthRefresh expects the current access token in the Authorization header,
// expired or not, plus the refresh token in the body.
func AuthRefresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return authHandler(svc, logg, func(r *http.Request) (any, error) {
		var body auth.RefreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		token := middleware.BearerToken(r)
		if token == "" {
			return nil, errNoCredentials
		}
		return svc.Refresh(r.Context(), token, body.RefreshToken)
	})
}

func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return authHandler(svc, logg, func(r *http.Request) (any, error) {
		token := middleware.BearerToken(r)
		if token == "" {
			return nil, errNoCredentials
		}
		if err := svc.Logout(r.Context(), token); err != nil {
			return nil, err
		}
		return map[string]string{"status": "logged_out"}, nil
	})
}
