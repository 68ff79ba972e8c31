package application

import (
	"context"
	"testing"

	"github.com/orderflow/fulfillment-system/order-service/domain"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func storedOrder(t *testing.T, status domain.OrderStatus) *domain.Order {
	t.Helper()

	item, err := domain.NewOrderItem(models.ID(testProductID), "Widget", "WID-001", 2, models.NewMoney(1500, "USD"))
	require.NoError(t, err)

	order, err := domain.CreateOrder(domain.NewOrderNumber(), models.ID(testCustomerID), "USD", domain.ShippingAddress{
		Line1:      "123 Main St",
		City:       "Springfield",
		PostalCode: "12345",
		Country:    "US",
	}, []domain.OrderItem{item})
	require.NoError(t, err)
	order.ClearEvents()

	// Walk the order to the requested status through legal transitions
	path := map[domain.OrderStatus][]domain.OrderStatus{
		domain.OrderStatusPending:    {},
		domain.OrderStatusConfirmed:  {domain.OrderStatusConfirmed},
		domain.OrderStatusProcessing: {domain.OrderStatusConfirmed, domain.OrderStatusProcessing},
		domain.OrderStatusShipped:    {domain.OrderStatusConfirmed, domain.OrderStatusProcessing, domain.OrderStatusShipped},
		domain.OrderStatusDelivered:  {domain.OrderStatusConfirmed, domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.OrderStatusDelivered},
	}
	for _, next := range path[status] {
		require.NoError(t, order.TransitionTo(next))
	}
	order.ClearEvents()
	return order
}

func TestUpdateOrderStatus_Execute_LegalTransition(t *testing.T) {
	orders := &mockOrderRepository{}
	publisher := &mockPublisher{}

	order := storedOrder(t, domain.OrderStatusConfirmed)
	orders.On("FindByID", mock.Anything, order.ID).Return(order, nil).Once()
	orders.On("Save", mock.Anything, order).Return(nil).Once()
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	uc := NewUpdateOrderStatus(orders, publisher, zap.NewNop())
	response, err := uc.Execute(context.Background(), &UpdateOrderStatusCommand{
		OrderID:   order.ID.String(),
		NewStatus: "processing",
	})

	require.NoError(t, err)
	assert.Equal(t, "processing", response.Status)
	orders.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestUpdateOrderStatus_Execute_SameStatusIsIdempotent(t *testing.T) {
	orders := &mockOrderRepository{}
	publisher := &mockPublisher{}

	order := storedOrder(t, domain.OrderStatusConfirmed)
	orders.On("FindByID", mock.Anything, order.ID).Return(order, nil).Once()

	uc := NewUpdateOrderStatus(orders, publisher, zap.NewNop())
	response, err := uc.Execute(context.Background(), &UpdateOrderStatusCommand{
		OrderID:   order.ID.String(),
		NewStatus: "confirmed",
	})

	require.NoError(t, err)
	assert.Equal(t, "confirmed", response.Status)
	orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestUpdateOrderStatus_Execute_IllegalTransition(t *testing.T) {
	orders := &mockOrderRepository{}
	publisher := &mockPublisher{}

	order := storedOrder(t, domain.OrderStatusPending)
	orders.On("FindByID", mock.Anything, order.ID).Return(order, nil).Once()

	uc := NewUpdateOrderStatus(orders, publisher, zap.NewNop())
	_, err := uc.Execute(context.Background(), &UpdateOrderStatusCommand{
		OrderID:   order.ID.String(),
		NewStatus: "delivered",
	})

	require.Error(t, err)
	assert.Equal(t, faults.KindConflict, faults.KindOf(err))
	orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestUpdateOrderStatus_Execute_UnknownStatus(t *testing.T) {
	orders := &mockOrderRepository{}
	publisher := &mockPublisher{}

	uc := NewUpdateOrderStatus(orders, publisher, zap.NewNop())
	_, err := uc.Execute(context.Background(), &UpdateOrderStatusCommand{
		OrderID:   "550e8400-e29b-41d4-a716-446655440099",
		NewStatus: "teleported",
	})

	require.Error(t, err)
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))
	orders.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestUpdateOrderStatus_Execute_OrderNotFound(t *testing.T) {
	orders := &mockOrderRepository{}
	publisher := &mockPublisher{}

	orderID := "550e8400-e29b-41d4-a716-446655440099"
	orders.On("FindByID", mock.Anything, models.ID(orderID)).Return(nil, nil).Once()

	uc := NewUpdateOrderStatus(orders, publisher, zap.NewNop())
	_, err := uc.Execute(context.Background(), &UpdateOrderStatusCommand{
		OrderID:   orderID,
		NewStatus: "confirmed",
	})

	require.Error(t, err)
	assert.Equal(t, faults.KindNotFound, faults.KindOf(err))
}

func TestCancelOrder_Execute(t *testing.T) {
	orders := &mockOrderRepository{}
	publisher := &mockPublisher{}

	order := storedOrder(t, domain.OrderStatusProcessing)
	orders.On("FindByID", mock.Anything, order.ID).Return(order, nil).Once()
	orders.On("Save", mock.Anything, order).Return(nil).Once()
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	uc := NewCancelOrder(orders, publisher, zap.NewNop())
	response, err := uc.Execute(context.Background(), order.ID.String())

	require.NoError(t, err)
	assert.Equal(t, string(domain.OrderStatusCancelled), response.Status)
	orders.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestCancelOrder_Execute_DeliveredOrderRefused(t *testing.T) {
	orders := &mockOrderRepository{}
	publisher := &mockPublisher{}

	order := storedOrder(t, domain.OrderStatusDelivered)
	orders.On("FindByID", mock.Anything, order.ID).Return(order, nil).Once()

	uc := NewCancelOrder(orders, publisher, zap.NewNop())
	_, err := uc.Execute(context.Background(), order.ID.String())

	require.Error(t, err)
	assert.Equal(t, faults.KindConflict, faults.KindOf(err))
	orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
