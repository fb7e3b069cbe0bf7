package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/tablebird/tablebird-backend/pkg/db/models"
	"github.com/tablebird/tablebird-backend/pkg/enums"
	pkgerrors "github.com/tablebird/tablebird-backend/pkg/errors"
)

// successors is the fixed transition table. A transition is legal only if
// the target appears in the current status's successor set.
var successors = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusAwaitingConfirmation: {
		enums.OrderStatusConfirmed,
		enums.OrderStatusCancelledByUser,
		enums.OrderStatusCancelledByRestaurant,
		enums.OrderStatusSystemCancelled,
	},
	enums.OrderStatusConfirmed: {
		enums.OrderStatusPreparing,
		enums.OrderStatusCancelledByUser,
		enums.OrderStatusCancelledByRestaurant,
		enums.OrderStatusSystemCancelled,
	},
	enums.OrderStatusPreparing: {
		enums.OrderStatusReadyForPickup,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusCancelledByUser,
		enums.OrderStatusCancelledByRestaurant,
		enums.OrderStatusSystemCancelled,
	},
	enums.OrderStatusReadyForPickup: {
		enums.OrderStatusCompleted,
		enums.OrderStatusCancelledByUser,
		enums.OrderStatusCancelledByRestaurant,
		enums.OrderStatusSystemCancelled,
	},
	enums.OrderStatusOutForDelivery: {
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelledByUser,
		enums.OrderStatusCancelledByRestaurant,
		enums.OrderStatusSystemCancelled,
	},
	// Delivery flows close out to COMPLETED after the handoff.
	enums.OrderStatusDelivered: {
		enums.OrderStatusCompleted,
	},
	enums.OrderStatusCompleted:             {},
	enums.OrderStatusCancelledByUser:       {},
	enums.OrderStatusCancelledByRestaurant: {},
	enums.OrderStatusSystemCancelled:       {},
}

// CanTransition reports whether the fixed table allows from → to.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range successors[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Actor identifies who requested a transition.
type Actor struct {
	Role   enums.ActorRole
	UserID *uuid.UUID
}

// validateTransition applies the table plus the actor gates. It never
// mutates the order.
func validateTransition(order *models.Order, target enums.OrderStatus, actor Actor) error {
	if !target.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"requested": string(target)})
	}
	if !actor.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown actor role")
	}

	if !CanTransition(order.Status, target) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "illegal order status transition").
			WithDetails(map[string]any{
				"current":   string(order.Status),
				"requested": string(target),
			})
	}

	// Customers may only touch their own order, and only to cancel it
	// before the restaurant has acted. Mismatched owners get NOT_FOUND so
	// the response does not confirm the order exists.
	if actor.Role == enums.ActorRoleCustomer {
		if order.UserID != nil && (actor.UserID == nil || *actor.UserID != *order.UserID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if target != enums.OrderStatusCancelledByUser {
			return pkgerrors.New(pkgerrors.CodeForbidden, "customers may only cancel their order")
		}
		if order.Status != enums.OrderStatusAwaitingConfirmation {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled by the customer").
				WithDetails(map[string]any{
					"current":   string(order.Status),
					"requested": string(target),
				})
		}
	}

	return nil
}

// transitionUpdates builds the column updates for a legal transition. Each
// per-status timestamp is set exactly once; re-entering a status never
// overwrites it.
func transitionUpdates(order *models.Order, target enums.OrderStatus, now time.Time, reason *string) map[string]any {
	updates := map[string]any{"status": target}

	stamp := func(column string, current *time.Time) {
		if current == nil {
			updates[column] = now
		}
	}

	switch target {
	case enums.OrderStatusConfirmed:
		stamp("confirmed_at", order.ConfirmedAt)
	case enums.OrderStatusPreparing:
		stamp("preparation_started_at", order.PreparationStartedAt)
	case enums.OrderStatusReadyForPickup:
		stamp("ready_at", order.ReadyAt)
	case enums.OrderStatusOutForDelivery:
		stamp("picked_up_or_dispatched_at", order.PickedUpOrDispatchedAt)
	case enums.OrderStatusDelivered:
		stamp("delivered_at", order.DeliveredAt)
	case enums.OrderStatusCompleted:
		stamp("completed_at", order.CompletedAt)
	case enums.OrderStatusCancelledByUser,
		enums.OrderStatusCancelledByRestaurant,
		enums.OrderStatusSystemCancelled:
		stamp("cancelled_at", order.CancelledAt)
		if reason != nil {
			updates["cancellation_reason"] = *reason
		}
	}

	return updates
}
