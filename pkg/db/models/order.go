package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tablebird/tablebird-backend/pkg/enums"
	"github.com/tablebird/tablebird-backend/pkg/types"
)

// Order is the immutable business record produced from a cart. Only status,
// timestamps, and staff-operational fields change after creation; the
// financial and line snapshots never do. Tenant is denormalized from the
// restaurant at creation and never supplied independently.
type Order struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber  string     `gorm:"column:order_number;not null;uniqueIndex:ux_orders_number"`
	UserID       *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	TenantID     uuid.UUID  `gorm:"column:tenant_id;type:uuid;not null;index"`
	RestaurantID uuid.UUID  `gorm:"column:restaurant_id;type:uuid;not null;index"`

	Status    enums.OrderStatus `gorm:"column:status;not null;default:'AWAITING_CONFIRMATION';index"`
	OrderType enums.OrderType   `gorm:"column:order_type;not null"`

	Contact     types.CustomerContact  `gorm:"column:contact;type:jsonb;serializer:json"`
	TableNumber *string                `gorm:"column:table_number"`
	Delivery    *types.DeliveryDetails `gorm:"column:delivery;type:jsonb;serializer:json"`

	Subtotal    decimal.Decimal `gorm:"column:subtotal;type:numeric(10,2);not null"`
	Taxes       decimal.Decimal `gorm:"column:taxes;type:numeric(10,2);not null;default:0"`
	DeliveryFee decimal.Decimal `gorm:"column:delivery_fee;type:numeric(8,2);not null;default:0"`
	ServiceFee  decimal.Decimal `gorm:"column:service_fee;type:numeric(8,2);not null;default:0"`
	Discount    decimal.Decimal `gorm:"column:discount;type:numeric(10,2);not null;default:0"`
	Total       decimal.Decimal `gorm:"column:total;type:numeric(10,2);not null"`
	Currency    enums.Currency  `gorm:"column:currency;not null;default:'USD'"`

	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null;default:'PENDING';index"`

	SpecialInstructions *string `gorm:"column:special_instructions"`
	InternalNotes       *string `gorm:"column:internal_notes"`
	POSOrderID          *string `gorm:"column:pos_order_id;index"`
	KDSToken            *string `gorm:"column:kds_token"`

	ScheduledFor           *time.Time `gorm:"column:scheduled_for"`
	PrepTimeEstimateMinutes *int      `gorm:"column:prep_time_estimate_minutes"`

	ConfirmedAt            *time.Time `gorm:"column:confirmed_at"`
	PreparationStartedAt   *time.Time `gorm:"column:preparation_started_at"`
	ReadyAt                *time.Time `gorm:"column:ready_at"`
	PickedUpOrDispatchedAt *time.Time `gorm:"column:picked_up_or_dispatched_at"`
	DeliveredAt            *time.Time `gorm:"column:delivered_at"`
	CompletedAt            *time.Time `gorm:"column:completed_at"`
	CancelledAt            *time.Time `gorm:"column:cancelled_at"`
	CancellationReason     *string    `gorm:"column:cancellation_reason"`

	Lines   []OrderLine          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	History []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
