// Package auth signs operators in and out. Access tokens are short-lived
// JWTs; the paired refresh token lives in redis keyed by the JWT id.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/internal/users"
	pkgAuth "github.com/angelmondragon/kartupintar-backend/pkg/auth"
	"github.com/angelmondragon/kartupintar-backend/pkg/auth/session"
	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/security"
)

var (
	errBadCredentials = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	errBadRefresh     = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
)

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*RefreshResponse, error)
	Logout(ctx context.Context, accessToken string) error
}

type userRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type sessionManager interface {
	Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (*session.Rotation, error)
	Revoke(ctx context.Context, accessID string) error
}

type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	Logger         *logger.Logger
}

type service struct {
	users    userRepository
	sessions sessionManager
	jwt      config.JWTConfig
	logg     *logger.Logger
	clock    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.UserRepo == nil:
		return nil, errors.New("user repository is required")
	case params.SessionManager == nil:
		return nil, errors.New("session manager is required")
	}
	return &service{
		users:    params.UserRepo,
		sessions: params.SessionManager,
		jwt:      params.JWTConfig,
		logg:     params.Logger,
		clock:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.checkCredentials(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	at := s.clock()
	if err := s.users.UpdateLastLogin(ctx, user.ID, at); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}
	user.LastLoginAt = &at

	accessID := session.NewAccessID()
	access, err := s.sign(at, user, accessID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sessions.Generate(ctx, user.ID, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}

	logCtx := s.logg.WithOperatorID(ctx, user.ID.String())
	s.logg.Info(s.logg.WithActorRole(logCtx, string(user.Role)), "auth.login.succeeded")

	return &LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.ttlSeconds(),
		User:         users.FromModel(user),
	}, nil
}

// Refresh trades a live refresh token for a new pair. The access token may be
// expired but must carry a valid signature. The account is re-read so role
// changes and deactivation apply here.
func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*RefreshResponse, error) {
	claims, err := s.sessionClaims(accessToken)
	if err != nil {
		return nil, err
	}

	rot, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	switch {
	case errors.Is(err, session.ErrInvalidRefreshToken):
		return nil, errBadRefresh
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	user, err := s.activeUser(ctx, rot, claims.UserID)
	if err != nil {
		_ = s.sessions.Revoke(ctx, rot.AccessID)
		return nil, err
	}

	access, err := s.sign(s.clock(), user, rot.AccessID)
	if err != nil {
		return nil, err
	}
	return &RefreshResponse{
		AccessToken:  access,
		RefreshToken: rot.RefreshToken,
		ExpiresIn:    s.ttlSeconds(),
	}, nil
}

func (s *service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.sessionClaims(accessToken)
	if err != nil {
		return err
	}
	if err := s.sessions.Revoke(ctx, claims.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) sessionClaims(accessToken string) (*pkgAuth.AccessTokenClaims, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwt, accessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	return claims, nil
}

// activeUser loads the account behind a rotation. A refresh token presented
// with another user's access token is treated as forged.
func (s *service) activeUser(ctx context.Context, rot *session.Rotation, tokenUser uuid.UUID) (*models.User, error) {
	if rot.UserID != tokenUser {
		return nil, errBadRefresh
	}
	user, err := s.users.FindByID(ctx, rot.UserID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account disabled")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	case !user.IsActive:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account disabled")
	}
	return user, nil
}

// checkCredentials answers every failure with the same error so callers
// cannot probe which usernames exist.
func (s *service) checkCredentials(ctx context.Context, username, password string) (*models.User, error) {
	name := users.NormalizeUsername(username)
	if name == "" || password == "" {
		return nil, errBadCredentials
	}
	user, err := s.users.FindByUsername(ctx, name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	match, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !match || !user.IsActive || !user.Role.IsValid() {
		return nil, errBadCredentials
	}
	return user, nil
}

func (s *service) sign(at time.Time, user *models.User, accessID string) (string, error) {
	token, err := pkgAuth.MintAccessToken(s.jwt, at, pkgAuth.AccessTokenPayload{
		UserID:   user.ID,
		Role:     user.Role,
		MemberID: user.MemberID,
		JTI:      accessID,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return token, nil
}

func (s *service) ttlSeconds() int { return s.jwt.ExpirationMinutes * 60 }
