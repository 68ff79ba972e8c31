package application

import (
	"context"

	"github.com/orderflow/fulfillment-system/order-service/domain"
	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/orderflow/fulfillment-system/shared/telemetry"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CancelOrder cancels an order from any status except delivered or already
// cancelled. The cancellation event it publishes is what triggers the
// release of the order's stock reservation on the catalog side.
type CancelOrder struct {
	orders         domain.OrderRepository
	eventPublisher events.Publisher
	logger         *zap.Logger
}

// NewCancelOrder creates a CancelOrder use case
func NewCancelOrder(orders domain.OrderRepository, eventPublisher events.Publisher, logger *zap.Logger) *CancelOrder {
	return &CancelOrder{orders: orders, eventPublisher: eventPublisher, logger: logger}
}

// Execute cancels the order and publishes the cancellation event
func (uc *CancelOrder) Execute(ctx context.Context, orderID string) (*OrderResponse, error) {
	id, err := models.NewID(orderID)
	if err != nil {
		return nil, faults.Wrapf(faults.KindValidation, err, "invalid order ID %q", orderID)
	}

	order, err := uc.orders.FindByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load order")
	}
	if order == nil {
		return nil, faults.Newf(faults.KindNotFound, "order %s not found", orderID)
	}

	if err := order.Cancel(); err != nil {
		return nil, err
	}

	if err := uc.orders.Save(ctx, order); err != nil {
		return nil, errors.Wrap(err, "failed to save order")
	}

	telemetry.RecordCounter(ctx, "orders_cancelled_total", "Number of orders cancelled", 1)

	if err := uc.eventPublisher.Publish(ctx, order.Events()...); err != nil {
		uc.logger.Error("failed to publish order cancellation events",
			zap.String("order_id", order.ID.String()),
			zap.String("order_number", order.OrderNumber),
			zap.Error(err),
		)
	}
	order.ClearEvents()

	return newOrderResponse(order), nil
}
