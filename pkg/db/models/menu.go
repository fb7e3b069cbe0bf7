package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MenuItem is the orderable catalog entry the snapshot resolver prices from.
type MenuItem struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID uuid.UUID            `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Name         string               `gorm:"column:name;not null"`
	Description  *string              `gorm:"column:description"`
	BasePrice    decimal.Decimal      `gorm:"column:base_price;type:numeric(10,2);not null"`
	IsAvailable  bool                 `gorm:"column:is_available;not null;default:true"`
	Groups       []CustomizationGroup `gorm:"foreignKey:MenuItemID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// CustomizationGroup bundles options with selection-count rules.
// MaxSelection of 0 means unbounded above MinSelection.
type CustomizationGroup struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MenuItemID   uuid.UUID             `gorm:"column:menu_item_id;type:uuid;not null;index"`
	Name         string                `gorm:"column:name;not null"`
	MinSelection int                   `gorm:"column:min_selection;not null;default:0"`
	MaxSelection int                   `gorm:"column:max_selection;not null;default:1"`
	Options      []CustomizationOption `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// CustomizationOption is one selectable choice within a group.
type CustomizationOption struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID     uuid.UUID       `gorm:"column:group_id;type:uuid;not null;index"`
	Name        string          `gorm:"column:name;not null"`
	PriceDelta  decimal.Decimal `gorm:"column:price_delta;type:numeric(10,2);not null;default:0"`
	IsAvailable bool            `gorm:"column:is_available;not null;default:true"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
