package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	"github.com/angelmondragon/kartupintar-backend/pkg/types"
)

type contextKey string

const (
	ctxCaller   contextKey = "caller"
	ctxMemberID contextKey = "member_id"
)

// CallerFromContext returns the authenticated operator, if any.
func CallerFromContext(ctx context.Context) (types.CallerContext, bool) {
	if ctx == nil {
		return types.CallerContext{}, false
	}
	caller, ok := ctx.Value(ctxCaller).(types.CallerContext)
	return caller, ok
}

func UserIDFromContext(ctx context.Context) string {
	caller, ok := CallerFromContext(ctx)
	if !ok || caller.OperatorID == nil {
		return ""
	}
	return caller.OperatorID.String()
}

func RoleFromContext(ctx context.Context) enums.UserRole {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return ""
	}
	return caller.Role
}

// MemberIDFromContext returns the card holder linked to the operator account.
func MemberIDFromContext(ctx context.Context) *uuid.UUID {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxMemberID).(uuid.UUID); ok {
		return &v
	}
	return nil
}

// WithCaller injects the authenticated caller into the context.
func WithCaller(ctx context.Context, caller types.CallerContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCaller, caller)
}

// WithMemberID links the request to a card holder.
func WithMemberID(ctx context.Context, memberID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxMemberID, memberID)
}
