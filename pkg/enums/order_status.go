package enums

import "fmt"

// OrderStatus tracks the lifecycle of a placed order.
type OrderStatus string

const (
	OrderStatusAwaitingConfirmation  OrderStatus = "AWAITING_CONFIRMATION"
	OrderStatusConfirmed             OrderStatus = "CONFIRMED"
	OrderStatusPreparing             OrderStatus = "PREPARING"
	OrderStatusReadyForPickup        OrderStatus = "READY_FOR_PICKUP"
	OrderStatusOutForDelivery        OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered             OrderStatus = "DELIVERED"
	OrderStatusCompleted             OrderStatus = "COMPLETED"
	OrderStatusCancelledByUser       OrderStatus = "CANCELLED_BY_USER"
	OrderStatusCancelledByRestaurant OrderStatus = "CANCELLED_BY_RESTAURANT"
	OrderStatusSystemCancelled       OrderStatus = "SYSTEM_CANCELLED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusAwaitingConfirmation,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReadyForPickup,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelledByUser,
	OrderStatusCancelledByRestaurant,
	OrderStatusSystemCancelled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted from the status.
// DELIVERED is not terminal: delivery orders close out to COMPLETED.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusCompleted,
		OrderStatusCancelledByUser,
		OrderStatusCancelledByRestaurant,
		OrderStatusSystemCancelled:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
