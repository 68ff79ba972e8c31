package application

import (
	"context"

	"github.com/orderflow/fulfillment-system/order-service/domain"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/pkg/errors"
)

// GetOrder retrieves a single order by its ID
type GetOrder struct {
	orders domain.OrderRepository
}

// NewGetOrder creates a GetOrder use case
func NewGetOrder(orders domain.OrderRepository) *GetOrder {
	return &GetOrder{orders: orders}
}

// Execute looks up the order and returns its projection
func (uc *GetOrder) Execute(ctx context.Context, orderID string) (*OrderResponse, error) {
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

	return newOrderResponse(order), nil
}
