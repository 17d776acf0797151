package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/dbtest"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/security"
	"github.com/angelmondragon/kartupintar-backend/pkg/types"
)

var testPasswordConfig = config.PasswordConfig{
	ArgonMemoryKB:    8192,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func newTestService(t *testing.T) (Service, *Repository, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo, testPasswordConfig, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return svc, repo, conn
}

func TestCreateOperator(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	email := "  Kasir@Kantin.id "

	dto, err := svc.Create(ctx, types.SystemCaller(), CreateInput{
		Username: "  Kasir01 ",
		Password: "rahasia-kantin",
		Name:     "Kasir Satu",
		Role:     enums.UserRoleCanteenOperator,
		Email:    &email,
	})
	require.NoError(t, err)
	assert.Equal(t, "kasir01", dto.Username)
	assert.Equal(t, enums.UserRoleCanteenOperator, dto.Role)
	assert.True(t, dto.IsActive)
	require.NotNil(t, dto.Email)
	assert.Equal(t, "kasir@kantin.id", *dto.Email)

	stored, err := repo.FindByUsername(ctx, "kasir01")
	require.NoError(t, err)
	assert.NotEqual(t, "rahasia-kantin", stored.PasswordHash)
	ok, err := security.VerifyPassword("rahasia-kantin", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	fetched, err := svc.Get(ctx, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.ID, fetched.ID)
}

func TestCreateOperatorDuplicateUsername(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	in := CreateInput{Username: "admin", Password: "password-1", Name: "Admin", Role: enums.UserRoleAdmin}

	_, err := svc.Create(ctx, types.SystemCaller(), in)
	require.NoError(t, err)

	in.Username = "ADMIN"
	_, err = svc.Create(ctx, types.SystemCaller(), in)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestCreateOperatorLinkedMember(t *testing.T) {
	svc, _, conn := newTestService(t)
	ctx := context.Background()

	member, err := models.NewMember("KP-2026-001", "NRP-001", "Budi", "Sertu", "Yonif 1")
	require.NoError(t, err)
	require.NoError(t, conn.Create(member).Error)

	dto, err := svc.Create(ctx, types.SystemCaller(), CreateInput{
		Username: "budi",
		Password: "password-1",
		Name:     "Budi",
		Role:     enums.UserRoleUser,
		MemberID: &member.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, dto.MemberID)
	assert.Equal(t, member.ID, *dto.MemberID)

	missing := uuid.New()
	_, err = svc.Create(ctx, types.SystemCaller(), CreateInput{
		Username: "ghost",
		Password: "password-1",
		Name:     "Ghost",
		Role:     enums.UserRoleUser,
		MemberID: &missing,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestCreateOperatorValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	cases := map[string]CreateInput{
		"short username": {Username: "ab", Password: "password-1", Name: "A", Role: enums.UserRoleAdmin},
		"blank name":     {Username: "abc", Password: "password-1", Name: "  ", Role: enums.UserRoleAdmin},
		"bad role":       {Username: "abc", Password: "password-1", Name: "A", Role: "root"},
		"short password": {Username: "abc", Password: "short", Name: "A", Role: enums.UserRoleAdmin},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), types.SystemCaller(), in)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestRepositoryInactiveUser(t *testing.T) {
	_, repo, _ := newTestService(t)
	ctx := context.Background()
	inactive := false

	user, err := repo.Create(ctx, CreateUserDTO{
		Username:     "nonaktif",
		PasswordHash: "x",
		Name:         "Nonaktif",
		Role:         enums.UserRoleUser,
		IsActive:     &inactive,
	})
	require.NoError(t, err)

	stored, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestGetUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
