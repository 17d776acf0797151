package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/db"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/security"
	"github.com/angelmondragon/kartupintar-backend/pkg/types"
)

type store interface {
	Create(ctx context.Context, dto CreateUserDTO) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	MemberExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service manages operator accounts.
type Service interface {
	Create(ctx context.Context, caller types.CallerContext, input CreateInput) (*UserDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*UserDTO, error)
}

type service struct {
	repo     store
	password config.PasswordConfig
	logg     *logger.Logger
}

// NewService builds the operator account service.
func NewService(repo store, password config.PasswordConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	return &service{repo: repo, password: password, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, caller types.CallerContext, input CreateInput) (*UserDTO, error) {
	username := NormalizeUsername(input.Username)
	name := strings.TrimSpace(input.Name)
	switch {
	case len(username) < 3:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username must be at least 3 characters")
	case name == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case !input.Role.IsValid():
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	case len(input.Password) < 8:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	var email *string
	if input.Email != nil {
		if v := strings.ToLower(strings.TrimSpace(*input.Email)); v != "" {
			email = &v
		}
	}

	if input.MemberID != nil {
		exists, err := s.repo.MemberExists(ctx, *input.MemberID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup member")
		}
		if !exists {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
	}

	hash, err := security.HashPassword(input.Password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.repo.Create(ctx, CreateUserDTO{
		Username:     username,
		PasswordHash: hash,
		Name:         name,
		Role:         input.Role,
		Email:        email,
		MemberID:     input.MemberID,
	})
	if err != nil {
		switch {
		case db.IsUniqueViolation(err, "username"):
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
		case db.IsUniqueViolation(err, "email"):
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"user_id":   user.ID.String(),
			"user_role": string(user.Role),
			"operator":  caller.OperatorString(),
		})
		s.logg.Info(ctx, "operator account created")
	}
	return FromModel(user), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	return FromModel(user), nil
}
