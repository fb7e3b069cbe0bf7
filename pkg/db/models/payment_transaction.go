package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tablebird/tablebird-backend/pkg/enums"
)

// PaymentTransaction records one payment attempt against an order. An order
// may accumulate several (a failed attempt followed by a success, refunds).
// UserID and TenantID are denormalized from the order for query convenience
// and are never authoritative.
type PaymentTransaction struct {
	ID       uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID  uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	UserID   *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	TenantID uuid.UUID  `gorm:"column:tenant_id;type:uuid;not null;index"`

	GatewayName            string  `gorm:"column:gateway_name;not null"`
	GatewayTransactionID   *string `gorm:"column:gateway_transaction_id;uniqueIndex:ux_payment_txns_gateway_txn"`
	GatewayPaymentIntentID *string `gorm:"column:gateway_payment_intent_id;index"`

	Amount        decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      enums.Currency       `gorm:"column:currency;not null;default:'USD'"`
	PaymentMethod *enums.PaymentMethod `gorm:"column:payment_method"`

	Status enums.TransactionStatus `gorm:"column:status;not null;default:'PENDING';index"`

	GatewayResponse json.RawMessage `gorm:"column:gateway_response;type:jsonb"`
	ErrorMessage    *string         `gorm:"column:error_message"`
	ErrorCode       *string         `gorm:"column:error_code"`

	InitiatedAt         time.Time  `gorm:"column:initiated_at;autoCreateTime"`
	CompletedOrFailedAt *time.Time `gorm:"column:completed_or_failed_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
