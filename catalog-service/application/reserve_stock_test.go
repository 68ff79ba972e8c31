package application

import (
	"context"
	"sync"
	"testing"

	"github.com/orderflow/fulfillment-system/catalog-service/domain"
	"github.com/orderflow/fulfillment-system/catalog-service/infrastructure"
	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPublisher struct {
	mu        sync.Mutex
	published []*events.Event
}

func (p *stubPublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, evts...)
	return nil
}

func (p *stubPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.published))
	for _, event := range p.published {
		types = append(types, event.EventType)
	}
	return types
}

type catalogFixture struct {
	products     *infrastructure.MemoryProductRepository
	reservations *infrastructure.MemoryReservationRepository
	writer       *infrastructure.MemoryInventoryWriter
	publisher    *stubPublisher
	reserve      *ReserveStock
	confirm      *ConfirmReservation
	release      *ReleaseReservation
}

func newCatalogFixture() *catalogFixture {
	products := infrastructure.NewMemoryProductRepository()
	reservations := infrastructure.NewMemoryReservationRepository()
	writer := infrastructure.NewMemoryInventoryWriter(products, reservations)
	locks := domain.NewProductLockManager()
	publisher := &stubPublisher{}
	logger := zap.NewNop()

	return &catalogFixture{
		products:     products,
		reservations: reservations,
		writer:       writer,
		publisher:    publisher,
		reserve:      NewReserveStock(products, reservations, writer, locks, publisher, logger),
		confirm:      NewConfirmReservation(reservations, publisher, logger),
		release:      NewReleaseReservation(products, reservations, writer, locks, publisher, logger),
	}
}

func (f *catalogFixture) addProduct(t *testing.T, sku string, stock int) *domain.Product {
	t.Helper()
	product, err := domain.NewProduct(sku, "Product "+sku, models.NewMoney(1500, "USD"), stock, 0)
	require.NoError(t, err)
	product.ClearEvents()
	require.NoError(t, f.products.Save(context.Background(), product))
	return product
}

func (f *catalogFixture) stockOf(t *testing.T, id models.ID) int {
	t.Helper()
	product, err := f.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, product)
	return product.StockQuantity
}

func TestReserveStock_Execute_Success(t *testing.T) {
	f := newCatalogFixture()
	product := f.addProduct(t, "WID-001", 5)

	result, err := f.reserve.Execute(context.Background(), &ReserveStockCommand{
		OrderReference: "ORD-1",
		Items:          []ReserveStockItemInput{{ProductID: product.ID.String(), Quantity: 3}},
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.ReservationCode)
	require.Len(t, result.Items, 1)
	assert.True(t, result.Items[0].Available)
	assert.Equal(t, "Product WID-001", result.Items[0].ProductName)
	assert.Equal(t, int64(1500), result.Items[0].Price.Amount)

	// Stock is taken at reservation time
	assert.Equal(t, 2, f.stockOf(t, product.ID))

	reservation, err := f.reservations.FindByOrderReference(context.Background(), "ORD-1")
	require.NoError(t, err)
	require.NotNil(t, reservation)
	assert.Equal(t, domain.ReservationStatusReserved, reservation.Status)

	assert.Contains(t, f.publisher.eventTypes(), events.ReservationCreatedEvent)
	assert.Contains(t, f.publisher.eventTypes(), events.ProductStockReservedEvent)
}

func TestReserveStock_Execute_InsufficientStock(t *testing.T) {
	f := newCatalogFixture()
	product := f.addProduct(t, "WID-001", 2)

	result, err := f.reserve.Execute(context.Background(), &ReserveStockCommand{
		OrderReference: "ORD-1",
		Items:          []ReserveStockItemInput{{ProductID: product.ID.String(), Quantity: 3}},
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Items, 1)
	assert.False(t, result.Items[0].Available)
	assert.Equal(t, 3, result.Items[0].RequestedQuantity)
	assert.Equal(t, 2, result.Items[0].AvailableQuantity)
	assert.Equal(t, "insufficient stock", result.Items[0].Message)

	// A rejection must not touch the stock or leave a reservation behind
	assert.Equal(t, 2, f.stockOf(t, product.ID))
	reservation, err := f.reservations.FindByOrderReference(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Nil(t, reservation)
}

func TestReserveStock_Execute_AllOrNothing(t *testing.T) {
	f := newCatalogFixture()
	plentiful := f.addProduct(t, "WID-001", 10)
	scarce := f.addProduct(t, "GAD-001", 1)

	result, err := f.reserve.Execute(context.Background(), &ReserveStockCommand{
		OrderReference: "ORD-1",
		Items: []ReserveStockItemInput{
			{ProductID: plentiful.ID.String(), Quantity: 2},
			{ProductID: scarce.ID.String(), Quantity: 5},
		},
	})

	require.NoError(t, err)
	assert.False(t, result.Success)

	// The available item keeps its stock too
	assert.Equal(t, 10, f.stockOf(t, plentiful.ID))
	assert.Equal(t, 1, f.stockOf(t, scarce.ID))
}

func TestReserveStock_Execute_InactiveProduct(t *testing.T) {
	f := newCatalogFixture()
	product := f.addProduct(t, "WID-001", 5)
	product.Active = false
	product.Version = product.Version.Update()
	require.NoError(t, f.products.Save(context.Background(), product))

	result, err := f.reserve.Execute(context.Background(), &ReserveStockCommand{
		OrderReference: "ORD-1",
		Items:          []ReserveStockItemInput{{ProductID: product.ID.String(), Quantity: 1}},
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "product is not active", result.Items[0].Message)
}

func TestReserveStock_Execute_UnknownProduct(t *testing.T) {
	f := newCatalogFixture()

	result, err := f.reserve.Execute(context.Background(), &ReserveStockCommand{
		OrderReference: "ORD-1",
		Items:          []ReserveStockItemInput{{ProductID: "550e8400-e29b-41d4-a716-446655440001", Quantity: 1}},
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "product not found", result.Items[0].Message)
}

func TestReserveStock_Execute_Idempotent(t *testing.T) {
	f := newCatalogFixture()
	product := f.addProduct(t, "WID-001", 5)

	cmd := &ReserveStockCommand{
		OrderReference: "ORD-1",
		Items:          []ReserveStockItemInput{{ProductID: product.ID.String(), Quantity: 3}},
	}

	first, err := f.reserve.Execute(context.Background(), cmd)
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := f.reserve.Execute(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Equal(t, first.ReservationCode, second.ReservationCode)

	// The replay must not take stock a second time
	assert.Equal(t, 2, f.stockOf(t, product.ID))
}

func TestReserveStock_Execute_Validation(t *testing.T) {
	f := newCatalogFixture()
	productID := "550e8400-e29b-41d4-a716-446655440001"

	tests := []struct {
		name string
		cmd  *ReserveStockCommand
	}{
		{
			name: "missing order reference",
			cmd:  &ReserveStockCommand{Items: []ReserveStockItemInput{{ProductID: productID, Quantity: 1}}},
		},
		{
			name: "no items",
			cmd:  &ReserveStockCommand{OrderReference: "ORD-1"},
		},
		{
			name: "zero quantity",
			cmd:  &ReserveStockCommand{OrderReference: "ORD-1", Items: []ReserveStockItemInput{{ProductID: productID, Quantity: 0}}},
		},
		{
			name: "invalid product ID",
			cmd:  &ReserveStockCommand{OrderReference: "ORD-1", Items: []ReserveStockItemInput{{ProductID: "nope", Quantity: 1}}},
		},
		{
			name: "duplicate product",
			cmd: &ReserveStockCommand{OrderReference: "ORD-1", Items: []ReserveStockItemInput{
				{ProductID: productID, Quantity: 1},
				{ProductID: productID, Quantity: 2},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.reserve.Execute(context.Background(), tt.cmd)
			require.Error(t, err)
			assert.Equal(t, faults.KindValidation, faults.KindOf(err))
		})
	}
}

func TestReserveStock_Execute_ConcurrentRequestsNeverOversell(t *testing.T) {
	f := newCatalogFixture()
	product := f.addProduct(t, "WID-001", 5)

	var wg sync.WaitGroup
	results := make([]*ReservationResultResponse, 2)
	errs := make([]error, 2)

	// Two orders race for 3 units each with only 5 in stock; exactly one
	// may win
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			orderRef := []string{"ORD-A", "ORD-B"}[i]
			results[i], errs[i] = f.reserve.Execute(context.Background(), &ReserveStockCommand{
				OrderReference: orderRef,
				Items:          []ReserveStockItemInput{{ProductID: product.ID.String(), Quantity: 3}},
			})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	successes := 0
	for _, result := range results {
		if result.Success {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 2, f.stockOf(t, product.ID))
}
