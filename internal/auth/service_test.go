package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/kartupintar-backend/pkg/auth"
	"github.com/angelmondragon/kartupintar-backend/pkg/auth/session"
	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	redisclient "github.com/angelmondragon/kartupintar-backend/pkg/redis"
	"github.com/angelmondragon/kartupintar-backend/pkg/redis/redistest"
	"github.com/angelmondragon/kartupintar-backend/pkg/security"
)

var testJWT = config.JWTConfig{
	Secret:                 "secret",
	Issuer:                 "kartupintar",
	ExpirationMinutes:      30,
	RefreshTokenTTLMinutes: 60,
}

type stubUserRepo struct {
	byUsername map[string]*models.User
	lastLogin  map[uuid.UUID]time.Time
}

func newStubUserRepo(users ...*models.User) *stubUserRepo {
	repo := &stubUserRepo{byUsername: map[string]*models.User{}, lastLogin: map[uuid.UUID]time.Time{}}
	for _, u := range users {
		repo.byUsername[u.Username] = u
	}
	return repo
}

func (s *stubUserRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	if u, ok := s.byUsername[username]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range s.byUsername {
		if u.ID == id {
			clone := *u
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	s.lastLogin[id] = at
	return nil
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func newOperator(t *testing.T, username, password string, role enums.UserRole) *models.User {
	t.Helper()
	return &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: mustHashPassword(t, password),
		Role:         role,
		Name:         username,
		IsActive:     true,
	}
}

func buildTestService(t *testing.T, users ...*models.User) (Service, *stubUserRepo, *session.Manager) {
	t.Helper()
	repo := newStubUserRepo(users...)
	manager, err := session.NewManager(redisclient.NewFromCmdable(redistest.NewCmdable()), testJWT)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	svc, err := NewService(ServiceParams{UserRepo: repo, SessionManager: manager, JWTConfig: testJWT})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, repo, manager
}

func TestServiceLoginCanteenOperator(t *testing.T) {
	memberID := uuid.New()
	user := newOperator(t, "kasir", "kantin-rahasia", enums.UserRoleCanteenOperator)
	user.MemberID = &memberID
	svc, repo, manager := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{Username: "  KASIR ", Password: "kantin-rahasia"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.UserRoleCanteenOperator {
		t.Fatalf("expected canteen_operator claim, got %s", claims.Role)
	}
	if claims.MemberID == nil || *claims.MemberID != memberID {
		t.Fatalf("expected member claim %s, got %v", memberID, claims.MemberID)
	}
	if resp.RefreshToken == "" {
		t.Fatalf("expected refresh token to be set")
	}
	if resp.ExpiresIn != 1800 {
		t.Fatalf("expected 1800s expiry, got %d", resp.ExpiresIn)
	}
	if _, ok := repo.lastLogin[user.ID]; !ok {
		t.Fatalf("expected last login to be recorded")
	}
	if resp.User == nil || resp.User.LastLoginAt == nil {
		t.Fatalf("expected user with last login in response")
	}
	ok, err := manager.HasSession(context.Background(), claims.ID)
	if err != nil || !ok {
		t.Fatalf("expected live session, ok=%v err=%v", ok, err)
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	active := newOperator(t, "admin", "admin-secret", enums.UserRoleAdmin)
	disabled := newOperator(t, "mantan", "mantan-secret", enums.UserRoleUser)
	disabled.IsActive = false
	svc, _, _ := buildTestService(t, active, disabled)

	cases := map[string]LoginRequest{
		"wrong password": {Username: "admin", Password: "nope"},
		"unknown user":   {Username: "ghost", Password: "admin-secret"},
		"inactive":       {Username: "mantan", Password: "mantan-secret"},
		"blank":          {Username: " ", Password: "x"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), req)
			if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
		})
	}
}

func TestServiceRefreshRotatesSession(t *testing.T) {
	user := newOperator(t, "admin", "admin-secret", enums.UserRoleAdmin)
	svc, _, manager := buildTestService(t, user)
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Username: "admin", Password: "admin-secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	oldClaims, _ := pkgAuth.ParseAccessToken(testJWT, login.AccessToken)

	refreshed, err := svc.Refresh(ctx, login.AccessToken, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	newClaims, err := pkgAuth.ParseAccessToken(testJWT, refreshed.AccessToken)
	if err != nil {
		t.Fatalf("parse refreshed token: %v", err)
	}
	if newClaims.ID == oldClaims.ID {
		t.Fatalf("expected a new session id")
	}
	if newClaims.Role != enums.UserRoleAdmin || newClaims.UserID != user.ID {
		t.Fatalf("unexpected refreshed principal %+v", newClaims)
	}
	if ok, _ := manager.HasSession(ctx, oldClaims.ID); ok {
		t.Fatalf("expected old session to be revoked")
	}

	if _, err := svc.Refresh(ctx, login.AccessToken, login.RefreshToken); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected replayed refresh to fail, got %v", err)
	}
}

func TestServiceRefreshRejectsDeactivatedAccount(t *testing.T) {
	user := newOperator(t, "kasir", "kantin-rahasia", enums.UserRoleCanteenOperator)
	svc, repo, _ := buildTestService(t, user)
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Username: "kasir", Password: "kantin-rahasia"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	repo.byUsername["kasir"].IsActive = false

	if _, err := svc.Refresh(ctx, login.AccessToken, login.RefreshToken); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestServiceLogoutRevokesSession(t *testing.T) {
	user := newOperator(t, "admin", "admin-secret", enums.UserRoleAdmin)
	svc, _, manager := buildTestService(t, user)
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Username: "admin", Password: "admin-secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, _ := pkgAuth.ParseAccessToken(testJWT, login.AccessToken)

	if err := svc.Logout(ctx, login.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if ok, _ := manager.HasSession(ctx, claims.ID); ok {
		t.Fatalf("expected session to be revoked")
	}
	if err := svc.Logout(ctx, "not-a-jwt"); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for garbage token, got %v", err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected error without user repository")
	}
	if _, err := NewService(ServiceParams{UserRepo: newStubUserRepo()}); err == nil {
		t.Fatalf("expected error without session manager")
	}
}

func TestServiceRefreshRejectsMismatchedPair(t *testing.T) {
	alice := newOperator(t, "alice", "alice-secret", enums.UserRoleAdmin)
	bob := newOperator(t, "bob", "bob-secret", enums.UserRoleCanteenOperator)
	svc, _, _ := buildTestService(t, alice, bob)
	ctx := context.Background()

	a, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "alice-secret"})
	if err != nil {
		t.Fatalf("login alice: %v", err)
	}
	b, err := svc.Login(ctx, LoginRequest{Username: "bob", Password: "bob-secret"})
	if err != nil {
		t.Fatalf("login bob: %v", err)
	}

	if _, err := svc.Refresh(ctx, a.AccessToken, b.RefreshToken); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for crossed tokens, got %v", err)
	}
	if _, err := svc.Refresh(ctx, b.AccessToken, b.RefreshToken); err != nil {
		t.Fatalf("bob's own pair should still rotate: %v", err)
	}
}
