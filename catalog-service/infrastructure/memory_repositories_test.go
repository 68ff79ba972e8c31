package infrastructure

import (
	"context"
	"testing"

	"github.com/orderflow/fulfillment-system/catalog-service/domain"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedProduct(t *testing.T, repo *MemoryProductRepository, stock int) *domain.Product {
	t.Helper()
	product, err := domain.NewProduct("WID-001", "Widget", models.NewMoney(1500, "USD"), stock, 0)
	require.NoError(t, err)
	product.ClearEvents()
	require.NoError(t, repo.Save(context.Background(), product))
	return product
}

func TestMemoryProductRepository_Save_StaleVersionIsRejected(t *testing.T) {
	repo := NewMemoryProductRepository()
	product := storedProduct(t, repo, 5)

	// First writer wins
	first, err := repo.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	require.NoError(t, first.AdjustStock(7))
	require.NoError(t, repo.Save(context.Background(), first))

	// A write carrying the already-stored version must not slip through
	err = repo.Save(context.Background(), first)
	require.Error(t, err)
	assert.Equal(t, faults.KindConflict, faults.KindOf(err))

	stored, err := repo.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, stored.StockQuantity)
}

func TestMemoryInventoryWriter_ConflictLeavesStockUntouched(t *testing.T) {
	products := NewMemoryProductRepository()
	reservations := NewMemoryReservationRepository()
	writer := NewMemoryInventoryWriter(products, reservations)

	product := storedProduct(t, products, 5)

	existing, err := domain.NewInventoryReservation("ORD-1", []domain.ReservationItem{{
		ProductID: product.ID,
		Quantity:  3,
		UnitPrice: models.NewMoney(1500, "USD"),
	}})
	require.NoError(t, err)
	require.NoError(t, reservations.Save(context.Background(), existing))

	// A racing request built its own reservation for the same order
	// reference and already took the stock in memory
	racing, err := domain.NewInventoryReservation("ORD-1", []domain.ReservationItem{{
		ProductID: product.ID,
		Quantity:  3,
		UnitPrice: models.NewMoney(1500, "USD"),
	}})
	require.NoError(t, err)

	loaded, err := products.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	require.NoError(t, loaded.ReserveStock(3, "ORD-1"))

	err = writer.SaveReservationAndStock(context.Background(), racing, []*domain.Product{loaded})
	require.Error(t, err)
	assert.Equal(t, faults.KindConflict, faults.KindOf(err))

	// The losing write must not have taken any stock
	stored, err := products.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.StockQuantity)

	reservation, err := reservations.FindByOrderReference(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, reservation.ID)
}
