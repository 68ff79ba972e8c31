package application

import (
	"context"

	"github.com/orderflow/fulfillment-system/order-service/domain"
	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// UpdateOrderStatusCommand moves an order to a new status
type UpdateOrderStatusCommand struct {
	OrderID   string `json:"order_id"`
	NewStatus string `json:"new_status"`
}

// UpdateOrderStatus advances an order through its lifecycle. Transitions are
// validated against the order's current status; repeating the current status
// is accepted without any effect.
type UpdateOrderStatus struct {
	orders         domain.OrderRepository
	eventPublisher events.Publisher
	logger         *zap.Logger
}

// NewUpdateOrderStatus creates an UpdateOrderStatus use case
func NewUpdateOrderStatus(orders domain.OrderRepository, eventPublisher events.Publisher, logger *zap.Logger) *UpdateOrderStatus {
	return &UpdateOrderStatus{orders: orders, eventPublisher: eventPublisher, logger: logger}
}

// Execute validates and applies the status transition
func (uc *UpdateOrderStatus) Execute(ctx context.Context, cmd *UpdateOrderStatusCommand) (*OrderResponse, error) {
	if err := uc.validateCommand(cmd); err != nil {
		return nil, err
	}

	id, err := models.NewID(cmd.OrderID)
	if err != nil {
		return nil, faults.Wrapf(faults.KindValidation, err, "invalid order ID %q", cmd.OrderID)
	}

	newStatus, err := domain.NewOrderStatus(cmd.NewStatus)
	if err != nil {
		return nil, err
	}

	order, err := uc.orders.FindByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load order")
	}
	if order == nil {
		return nil, faults.Newf(faults.KindNotFound, "order %s not found", cmd.OrderID)
	}

	previous := order.Status
	if err := order.TransitionTo(newStatus); err != nil {
		return nil, err
	}
	if order.Status == previous {
		// Same-status request, nothing to persist or announce.
		return newOrderResponse(order), nil
	}

	if err := uc.orders.Save(ctx, order); err != nil {
		return nil, errors.Wrap(err, "failed to save order")
	}

	if err := uc.eventPublisher.Publish(ctx, order.Events()...); err != nil {
		uc.logger.Error("failed to publish order status events",
			zap.String("order_id", order.ID.String()),
			zap.String("new_status", string(order.Status)),
			zap.Error(err),
		)
	}
	order.ClearEvents()

	return newOrderResponse(order), nil
}

func (uc *UpdateOrderStatus) validateCommand(cmd *UpdateOrderStatusCommand) error {
	if cmd == nil {
		return faults.New(faults.KindValidation, "command is required")
	}
	if cmd.OrderID == "" {
		return faults.New(faults.KindValidation, "order ID is required")
	}
	if cmd.NewStatus == "" {
		return faults.New(faults.KindValidation, "new status is required")
	}
	return nil
}
