package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tablebird/tablebird-backend/pkg/types"
)

// OrderLine freezes a cart line at placement time. MenuItemID is a soft
// reference only; the order stays valid and displayable if the catalog entry
// is later deleted.
type OrderLine struct {
	ID             uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID                   `gorm:"column:order_id;type:uuid;not null;index"`
	MenuItemID     *uuid.UUID                  `gorm:"column:menu_item_id;type:uuid"`
	Name           string                      `gorm:"column:name;not null"`
	Description    *string                     `gorm:"column:description"`
	Quantity       int                         `gorm:"column:quantity;not null"`
	UnitPrice      decimal.Decimal             `gorm:"column:unit_price;type:numeric(10,2);not null"`
	Customizations types.CustomizationSnapshot `gorm:"column:customizations;type:jsonb;serializer:json"`
	CustomerNotes  *string                     `gorm:"column:customer_notes"`
	StaffNotes     *string                     `gorm:"column:staff_notes"`
	CreatedAt      time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

// LineTotal is quantity times the frozen unit price.
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
}
