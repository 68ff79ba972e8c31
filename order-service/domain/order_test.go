package domain

import (
	"strings"
	"testing"

	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAddress() ShippingAddress {
	return ShippingAddress{
		Line1:      "123 Main St",
		City:       "Springfield",
		PostalCode: "12345",
		Country:    "US",
	}
}

func testItems(t *testing.T) []OrderItem {
	t.Helper()
	first, err := NewOrderItem(models.GenerateUUID(), "Widget", "WID-001", 2, models.NewMoney(1500, "USD"))
	require.NoError(t, err)
	second, err := NewOrderItem(models.GenerateUUID(), "Gadget", "GAD-001", 1, models.NewMoney(2500, "USD"))
	require.NoError(t, err)
	return []OrderItem{first, second}
}

func TestNewOrderItem(t *testing.T) {
	productID := models.GenerateUUID()

	item, err := NewOrderItem(productID, "Widget", "WID-001", 3, models.NewMoney(1000, "USD"))
	require.NoError(t, err)
	assert.Equal(t, int64(3000), item.TotalPrice.Amount)
	assert.Equal(t, "USD", item.TotalPrice.Currency)

	_, err = NewOrderItem(productID, "Widget", "WID-001", 0, models.NewMoney(1000, "USD"))
	assert.Error(t, err)

	_, err = NewOrderItem(productID, "Widget", "WID-001", 1, models.NewMoney(0, "USD"))
	assert.Error(t, err)
}

func TestCreateOrder(t *testing.T) {
	customerID := models.GenerateUUID()
	items := testItems(t)

	order, err := CreateOrder(NewOrderNumber(), customerID, "USD", testAddress(), items)
	require.NoError(t, err)

	assert.Equal(t, OrderStatusPending, order.Status)
	assert.Equal(t, int64(5500), order.TotalAmount.Amount)
	assert.Equal(t, customerID, order.CustomerID)
	assert.Len(t, order.Items, 2)

	require.Len(t, order.Events(), 1)
	assert.Equal(t, events.OrderCreatedEvent, order.Events()[0].EventType)
}

func TestCreateOrder_CurrencyMismatch(t *testing.T) {
	item, err := NewOrderItem(models.GenerateUUID(), "Widget", "WID-001", 1, models.NewMoney(1000, "EUR"))
	require.NoError(t, err)

	_, err = CreateOrder(NewOrderNumber(), models.GenerateUUID(), "USD", testAddress(), []OrderItem{item})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "currency")
}

func TestCreateOrder_RequiresItems(t *testing.T) {
	_, err := CreateOrder(NewOrderNumber(), models.GenerateUUID(), "USD", testAddress(), nil)
	assert.Error(t, err)
}

func TestOrder_TransitionTo(t *testing.T) {
	order, err := CreateOrder(NewOrderNumber(), models.GenerateUUID(), "USD", testAddress(), testItems(t))
	require.NoError(t, err)
	order.ClearEvents()

	require.NoError(t, order.TransitionTo(OrderStatusConfirmed))
	assert.Equal(t, OrderStatusConfirmed, order.Status)
	assert.Equal(t, 2, order.Version.Value)
	require.Len(t, order.Events(), 1)
	assert.Equal(t, events.OrderStatusChangedEvent, order.Events()[0].EventType)

	// Illegal transition leaves the order untouched
	err = order.TransitionTo(OrderStatusDelivered)
	require.Error(t, err)
	assert.Equal(t, OrderStatusConfirmed, order.Status)
}

func TestOrder_TransitionTo_SameStatusRecordsNothing(t *testing.T) {
	order, err := CreateOrder(NewOrderNumber(), models.GenerateUUID(), "USD", testAddress(), testItems(t))
	require.NoError(t, err)
	order.ClearEvents()

	require.NoError(t, order.TransitionTo(OrderStatusPending))
	assert.Equal(t, OrderStatusPending, order.Status)
	assert.Equal(t, 1, order.Version.Value)
	assert.Empty(t, order.Events())
}

func TestOrder_Cancel(t *testing.T) {
	order, err := CreateOrder(NewOrderNumber(), models.GenerateUUID(), "USD", testAddress(), testItems(t))
	require.NoError(t, err)
	order.ClearEvents()

	require.NoError(t, order.TransitionTo(OrderStatusConfirmed))
	require.NoError(t, order.TransitionTo(OrderStatusProcessing))
	order.ClearEvents()

	require.NoError(t, order.Cancel())
	assert.Equal(t, OrderStatusCancelled, order.Status)
	require.Len(t, order.Events(), 1)
	assert.Equal(t, events.OrderCancelledEvent, order.Events()[0].EventType)

	// A second cancel is refused
	assert.Error(t, order.Cancel())
}

func TestOrder_Cancel_FromShipped(t *testing.T) {
	order, err := CreateOrder(NewOrderNumber(), models.GenerateUUID(), "USD", testAddress(), testItems(t))
	require.NoError(t, err)

	require.NoError(t, order.TransitionTo(OrderStatusConfirmed))
	require.NoError(t, order.TransitionTo(OrderStatusProcessing))
	require.NoError(t, order.TransitionTo(OrderStatusShipped))

	// Cancellation from shipped is allowed even though the transition table
	// has no shipped to cancelled edge
	require.NoError(t, order.Cancel())
	assert.Equal(t, OrderStatusCancelled, order.Status)
}

func TestNewOrderNumber(t *testing.T) {
	number := NewOrderNumber()
	assert.True(t, strings.HasPrefix(number, "ORD-"))

	parts := strings.Split(number, "-")
	require.Len(t, parts, 3)
	assert.Len(t, parts[1], 8)
	assert.Len(t, parts[2], 8)

	// Two numbers generated back to back must differ
	assert.NotEqual(t, number, NewOrderNumber())
}
