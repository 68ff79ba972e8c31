package domain

import (
	"testing"

	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProduct(t *testing.T, stock, minStock int) *Product {
	t.Helper()
	product, err := NewProduct("WID-001", "Widget", models.NewMoney(1500, "USD"), stock, minStock)
	require.NoError(t, err)
	product.ClearEvents()
	return product
}

func TestNewProduct(t *testing.T) {
	product, err := NewProduct("WID-001", "Widget", models.NewMoney(1500, "USD"), 10, 2)
	require.NoError(t, err)

	assert.True(t, product.Active)
	assert.Equal(t, 10, product.StockQuantity)
	require.Len(t, product.Events(), 1)
	assert.Equal(t, events.ProductCreatedEvent, product.Events()[0].EventType)
}

func TestNewProduct_Validation(t *testing.T) {
	_, err := NewProduct("", "Widget", models.NewMoney(1500, "USD"), 10, 2)
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))

	_, err = NewProduct("WID-001", "", models.NewMoney(1500, "USD"), 10, 2)
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))

	_, err = NewProduct("WID-001", "Widget", models.NewMoney(0, "USD"), 10, 2)
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))

	_, err = NewProduct("WID-001", "Widget", models.NewMoney(1500, "USD"), -1, 2)
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))
}

func TestProduct_HasStock(t *testing.T) {
	product := testProduct(t, 5, 0)

	assert.True(t, product.HasStock(5))
	assert.False(t, product.HasStock(6))

	product.Active = false
	assert.False(t, product.HasStock(1))
}

func TestProduct_ReserveStock(t *testing.T) {
	product := testProduct(t, 5, 0)

	require.NoError(t, product.ReserveStock(3, "ORD-1"))
	assert.Equal(t, 2, product.StockQuantity)
	assert.Equal(t, 2, product.Version.Value)

	require.Len(t, product.Events(), 1)
	assert.Equal(t, events.ProductStockReservedEvent, product.Events()[0].EventType)
}

func TestProduct_ReserveStock_Insufficient(t *testing.T) {
	product := testProduct(t, 2, 0)

	err := product.ReserveStock(3, "ORD-1")
	require.Error(t, err)
	assert.Equal(t, faults.KindConflict, faults.KindOf(err))
	assert.Equal(t, 2, product.StockQuantity)
}

func TestProduct_ReserveStock_Inactive(t *testing.T) {
	product := testProduct(t, 5, 0)
	product.Active = false

	err := product.ReserveStock(1, "ORD-1")
	require.Error(t, err)
	assert.Equal(t, faults.KindConflict, faults.KindOf(err))
}

func TestProduct_ReserveStock_EmitsLowStockWarning(t *testing.T) {
	product := testProduct(t, 5, 3)

	require.NoError(t, product.ReserveStock(2, "ORD-1"))

	types := make([]string, 0, len(product.Events()))
	for _, event := range product.Events() {
		types = append(types, event.EventType)
	}
	assert.Contains(t, types, events.ProductStockReservedEvent)
	assert.Contains(t, types, events.ProductStockLowEvent)
}

func TestProduct_RestoreStock(t *testing.T) {
	product := testProduct(t, 5, 0)
	require.NoError(t, product.ReserveStock(3, "ORD-1"))
	product.ClearEvents()

	require.NoError(t, product.RestoreStock(3, "ORD-1"))
	assert.Equal(t, 5, product.StockQuantity)

	require.Len(t, product.Events(), 1)
	assert.Equal(t, events.ProductStockRestoredEvent, product.Events()[0].EventType)
}

func TestProduct_AdjustStock(t *testing.T) {
	product := testProduct(t, 5, 0)

	require.NoError(t, product.AdjustStock(12))
	assert.Equal(t, 12, product.StockQuantity)
	require.Len(t, product.Events(), 1)
	assert.Equal(t, events.ProductStockAdjustedEvent, product.Events()[0].EventType)

	err := product.AdjustStock(-1)
	require.Error(t, err)
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))
}
