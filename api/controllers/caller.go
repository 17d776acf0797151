package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/kartupintar-backend/api/middleware"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/types"
)

func requireCaller(r *http.Request) (types.CallerContext, error) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok || caller.OperatorID == nil {
		return types.CallerContext{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return caller, nil
}

// memberScope returns the only member a plain user account may see. Staff
// roles get nil, meaning unrestricted.
func memberScope(r *http.Request) (*uuid.UUID, error) {
	if middleware.RoleFromContext(r.Context()) != enums.UserRoleUser {
		return nil, nil
	}
	own := middleware.MemberIDFromContext(r.Context())
	if own == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is not linked to a member")
	}
	return own, nil
}

func authorizeMember(r *http.Request, memberID uuid.UUID) error {
	own, err := memberScope(r)
	if err != nil {
		return err
	}
	if own != nil && *own != memberID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "member belongs to another account")
	}
	return nil
}
