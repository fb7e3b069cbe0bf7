package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tablebird/tablebird-backend/pkg/types"
)

// CartLine is one configured item in a cart. Customizations hold the
// canonical (option-id-sorted) snapshot captured at add-time;
// CustomizationKey is its fingerprint and, together with MenuItemID, is the
// dedupe key that merges identical configurations into one line.
type CartLine struct {
	ID                  uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID              uuid.UUID                   `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_lines_config"`
	MenuItemID          uuid.UUID                   `gorm:"column:menu_item_id;type:uuid;not null;uniqueIndex:ux_cart_lines_config"`
	Quantity            int                         `gorm:"column:quantity;not null"`
	Customizations      types.CustomizationSnapshot `gorm:"column:customizations;type:jsonb;serializer:json"`
	CustomizationKey    string                      `gorm:"column:customization_key;not null;uniqueIndex:ux_cart_lines_config"`
	UnitPriceAtAddition decimal.Decimal             `gorm:"column:unit_price_at_addition;type:numeric(10,2);not null"`
	AddedAt             time.Time                   `gorm:"column:added_at;autoCreateTime"`
	UpdatedAt           time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

// LineTotal is the read-side aggregate for one line.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPriceAtAddition.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
}
