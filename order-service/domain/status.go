package domain

import (
	"github.com/orderflow/fulfillment-system/shared/faults"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// orderTransitions maps each status to the statuses an order may move to.
// Cancelled and refunded are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusRefunded},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

// NewOrderStatus parses a status string
func NewOrderStatus(status string) (OrderStatus, error) {
	s := OrderStatus(status)
	if _, ok := orderTransitions[s]; !ok {
		return "", faults.Newf(faults.KindValidation, "unknown order status %q", status)
	}
	return s, nil
}

// ValidateTransition checks whether an order may move from current to next.
// Re-applying the current status is allowed and treated as a no-op.
func ValidateTransition(current, next OrderStatus) error {
	if current == next {
		return nil
	}

	for _, allowed := range orderTransitions[current] {
		if next == allowed {
			return nil
		}
	}

	return faults.Newf(faults.KindConflict, "order status cannot change from %s to %s", current, next)
}

// ValidateCancellation checks whether an order in the given status may be cancelled
func ValidateCancellation(current OrderStatus) error {
	switch current {
	case OrderStatusDelivered:
		return faults.New(faults.KindConflict, "a delivered order cannot be cancelled")
	case OrderStatusCancelled:
		return faults.New(faults.KindConflict, "order is already cancelled")
	case OrderStatusRefunded:
		return faults.New(faults.KindConflict, "a refunded order cannot be cancelled")
	default:
		return nil
	}
}
