package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tablebird/tablebird-backend/pkg/enums"
	"github.com/tablebird/tablebird-backend/pkg/types"
)

// PlaceOrderInput captures everything the factory needs beyond the cart.
type PlaceOrderInput struct {
	OrderType           enums.OrderType
	Contact             types.CustomerContact
	TableNumber         *string
	Delivery            *types.DeliveryDetails
	Currency            enums.Currency
	SpecialInstructions *string
	ScheduledFor        *time.Time
}

// OperationalFieldsInput holds the staff-editable fields that may change
// after creation without touching the financial snapshot.
type OperationalFieldsInput struct {
	InternalNotes           *string
	POSOrderID              *string
	KDSToken                *string
	PrepTimeEstimateMinutes *int
	ScheduledFor            *time.Time
	TableNumber             *string
}

// Charges are the policy-supplied additions to the cart subtotal.
type Charges struct {
	Taxes       decimal.Decimal
	DeliveryFee decimal.Decimal
	ServiceFee  decimal.Decimal
	Discount    decimal.Decimal
}

// ChargeInput is the pricing context handed to the policy service.
type ChargeInput struct {
	TenantID     uuid.UUID
	RestaurantID uuid.UUID
	OrderType    enums.OrderType
	Subtotal     decimal.Decimal
	Delivery     *types.DeliveryDetails
}

// ChargeCalculator computes taxes, fees, and discounts for an order about
// to be placed. The core treats it as an external policy service.
type ChargeCalculator interface {
	ComputeCharges(ctx context.Context, input ChargeInput) (Charges, error)
}

// ZeroCharges is the default policy: no taxes, fees, or discounts.
type ZeroCharges struct{}

func (ZeroCharges) ComputeCharges(ctx context.Context, input ChargeInput) (Charges, error) {
	return Charges{
		Taxes:       decimal.Zero,
		DeliveryFee: decimal.Zero,
		ServiceFee:  decimal.Zero,
		Discount:    decimal.Zero,
	}, nil
}
