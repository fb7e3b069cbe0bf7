package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the mutable pre-order basket. Exactly one of UserID or SessionKey
// identifies the owner; partial unique indexes enforce one live cart per
// identity. RestaurantID is set on first item addition and cleared when the
// cart empties.
type Cart struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       *uuid.UUID `gorm:"column:user_id;type:uuid;uniqueIndex:ux_carts_user"`
	SessionKey   *string    `gorm:"column:session_key;uniqueIndex:ux_carts_session"`
	RestaurantID *uuid.UUID `gorm:"column:restaurant_id;type:uuid"`
	Lines        []CartLine `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
