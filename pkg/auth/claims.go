package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	"github.com/angelmondragon/kartupintar-backend/pkg/types"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	Role     enums.UserRole
	MemberID *uuid.UUID
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to operators.
type AccessTokenClaims struct {
	UserID   uuid.UUID      `json:"user_id"`
	Role     enums.UserRole `json:"role"`
	MemberID *uuid.UUID     `json:"member_id,omitempty"`
	jwt.RegisteredClaims
}

// Caller converts verified claims into the explicit caller passed to
// services.
func (c *AccessTokenClaims) Caller() types.CallerContext {
	return types.NewCaller(c.UserID, c.Role)
}
