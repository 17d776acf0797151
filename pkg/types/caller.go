package types

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
)

// CallerContext identifies the authenticated operator behind a request. It is
// passed explicitly into services; a nil OperatorID means a system caller.
type CallerContext struct {
	OperatorID *uuid.UUID
	Role       enums.UserRole
}

// NewCaller builds a caller for an authenticated operator.
func NewCaller(operatorID uuid.UUID, role enums.UserRole) CallerContext {
	id := operatorID
	return CallerContext{OperatorID: &id, Role: role}
}

// SystemCaller is used by jobs and CLI tooling.
func SystemCaller() CallerContext {
	return CallerContext{Role: enums.UserRoleAdmin}
}

// IsSystem reports whether no operator is attached.
func (c CallerContext) IsSystem() bool {
	return c.OperatorID == nil
}

// OperatorString returns the operator id as text, or "system".
func (c CallerContext) OperatorString() string {
	if c.OperatorID == nil {
		return "system"
	}
	return c.OperatorID.String()
}
