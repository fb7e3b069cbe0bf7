package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tablebird/tablebird-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID       uuid.UUID
	Role         enums.ActorRole
	TenantID     *uuid.UUID
	RestaurantID *uuid.UUID
	JTI          string
}

// AccessTokenClaims represents the typed JWT issued to clients. Tenant and
// restaurant are present on staff tokens only.
type AccessTokenClaims struct {
	UserID       uuid.UUID       `json:"user_id"`
	Role         enums.ActorRole `json:"role"`
	TenantID     *uuid.UUID      `json:"tenant_id,omitempty"`
	RestaurantID *uuid.UUID      `json:"restaurant_id,omitempty"`
	jwt.RegisteredClaims
}
