package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/kartupintar-backend/api/responses"
	pkgAuth "github.com/angelmondragon/kartupintar-backend/pkg/auth"
	"github.com/angelmondragon/kartupintar-backend/pkg/auth/session"
	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
)

const bearerScheme = "bearer "

// Auth admits requests carrying a valid access token whose session is still
// live, and puts the caller on the request context.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	gate := tokenGate{cfg: cfg, sessions: verifier}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := gate.authenticate(r.Context(), BearerToken(r))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(seedCaller(r.Context(), claims, logg)))
		})
	}
}

type tokenGate struct {
	cfg      config.JWTConfig
	sessions session.AccessSessionChecker
}

func (g tokenGate) authenticate(ctx context.Context, token string) (*pkgAuth.AccessTokenClaims, error) {
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(g.cfg, token)
	switch {
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	case claims.ID == "":
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	case !claims.Role.IsValid():
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid role")
	}
	if g.sessions == nil {
		return claims, nil
	}
	live, err := g.sessions.HasSession(ctx, claims.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
	}
	if !live {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
	}
	return claims, nil
}

func seedCaller(ctx context.Context, claims *pkgAuth.AccessTokenClaims, logg *logger.Logger) context.Context {
	ctx = WithCaller(ctx, claims.Caller())
	if claims.MemberID != nil {
		ctx = WithMemberID(ctx, *claims.MemberID)
	}
	if logg == nil {
		return ctx
	}
	ctx = logg.WithOperatorID(ctx, claims.UserID.String())
	return logg.WithActorRole(ctx, string(claims.Role))
}

// BearerToken reads the Authorization header. The scheme is optional.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) >= len(bearerScheme) && strings.EqualFold(raw[:len(bearerScheme)], bearerScheme) {
		raw = raw[len(bearerScheme):]
	}
	return strings.TrimSpace(raw)
}
