package orders

import (
	"fmt"
	"time"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
	pkgerrors "github.com/wirashauma/FoodDelivery-app-sub000/pkg/errors"
)

// transitions is the static adjacency table for order statuses. Anything not
// listed here is an invalid transition, never silently coerced.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusPaymentPending,
		enums.OrderStatusConfirmed,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPaymentPending: {
		enums.OrderStatusConfirmed,
		enums.OrderStatusPaymentFailed,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPaymentFailed: {
		enums.OrderStatusPaymentPending,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusConfirmed: {
		enums.OrderStatusPreparing,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPreparing: {
		enums.OrderStatusReadyForPickup,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusReadyForPickup: {
		enums.OrderStatusDriverAssigned,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusDriverAssigned: {
		enums.OrderStatusDriverAtMerchant,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusDriverAtMerchant: {
		enums.OrderStatusPickedUp,
	},
	enums.OrderStatusPickedUp: {
		enums.OrderStatusOnDelivery,
	},
	enums.OrderStatusOnDelivery: {
		enums.OrderStatusDriverAtLocation,
	},
	enums.OrderStatusDriverAtLocation: {
		enums.OrderStatusDelivered,
	},
	enums.OrderStatusDelivered: {
		enums.OrderStatusCompleted,
		enums.OrderStatusRefunded,
	},
	enums.OrderStatusCompleted: {
		enums.OrderStatusRefunded,
	},
}

// CanTransition reports whether the adjacency table allows from -> to.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// InvalidTransition builds the typed error identifying both statuses.
func InvalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot transition order from %s to %s", from, to)).
		WithDetails(map[string]any{"current_status": from.String(), "requested_status": to.String()})
}

// transitionTimestamps maps a target status to the order column it stamps.
var transitionTimestamps = map[enums.OrderStatus]string{
	enums.OrderStatusConfirmed:      "confirmed_at",
	enums.OrderStatusReadyForPickup: "prepared_at",
	enums.OrderStatusPickedUp:       "picked_up_at",
	enums.OrderStatusDelivered:      "delivered_at",
	enums.OrderStatusCompleted:      "completed_at",
	enums.OrderStatusCancelled:      "cancelled_at",
}

// timestampUpdates returns the column updates a transition into status
// carries along with the status flip.
func timestampUpdates(status enums.OrderStatus, now time.Time) map[string]any {
	updates := map[string]any{}
	if column, ok := transitionTimestamps[status]; ok {
		updates[column] = now
	}
	return updates
}

// applyTimestamp mirrors timestampUpdates onto the in-memory aggregate so
// callers see the same state the row now has.
func applyTimestamp(order *models.Order, status enums.OrderStatus, now time.Time) {
	switch status {
	case enums.OrderStatusConfirmed:
		order.ConfirmedAt = &now
	case enums.OrderStatusReadyForPickup:
		order.PreparedAt = &now
	case enums.OrderStatusPickedUp:
		order.PickedUpAt = &now
	case enums.OrderStatusDelivered:
		order.DeliveredAt = &now
	case enums.OrderStatusCompleted:
		order.CompletedAt = &now
	case enums.OrderStatusCancelled:
		order.CancelledAt = &now
	}
}
