package domain

import (
	"context"

	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
)

// Product aggregate root. Stock is mutated only through ReserveStock,
// RestoreStock and AdjustStock so every change leaves an event behind.
type Product struct {
	ID            models.ID
	SKU           string
	Name          string
	Price         models.Money
	StockQuantity int
	MinStockLevel int
	Active        bool
	Timestamps    models.Timestamps
	Version       models.Version

	events []*events.Event
}

// NewProduct creates a product and records its creation event
func NewProduct(sku, name string, price models.Money, stockQuantity, minStockLevel int) (*Product, error) {
	if sku == "" {
		return nil, faults.New(faults.KindValidation, "SKU is required")
	}
	if name == "" {
		return nil, faults.New(faults.KindValidation, "product name is required")
	}
	if !price.IsPositive() {
		return nil, faults.New(faults.KindValidation, "price must be positive")
	}
	if stockQuantity < 0 {
		return nil, faults.New(faults.KindValidation, "stock quantity cannot be negative")
	}
	if minStockLevel < 0 {
		return nil, faults.New(faults.KindValidation, "minimum stock level cannot be negative")
	}

	product := &Product{
		ID:            models.GenerateUUID(),
		SKU:           sku,
		Name:          name,
		Price:         price,
		StockQuantity: stockQuantity,
		MinStockLevel: minStockLevel,
		Active:        true,
		Timestamps:    models.NewTimestamps(),
		Version:       models.NewVersion(),
	}

	product.recordEvent(events.NewEvent(product.ID, events.ProductCreatedEvent, ProductCreatedData{
		ProductID:     product.ID,
		SKU:           product.SKU,
		Name:          product.Name,
		Price:         product.Price,
		StockQuantity: product.StockQuantity,
	}))

	return product, nil
}

// HasStock reports whether the product can satisfy the requested quantity
func (p *Product) HasStock(quantity int) bool {
	return p.Active && p.StockQuantity >= quantity
}

// ReserveStock removes quantity units from stock for the given order
// reference. Callers must have checked availability first; this enforces it
// again so stock can never go negative.
func (p *Product) ReserveStock(quantity int, orderReference string) error {
	if quantity <= 0 {
		return faults.New(faults.KindValidation, "quantity must be positive")
	}
	if !p.Active {
		return faults.Newf(faults.KindConflict, "product %s is not active", p.ID)
	}
	if p.StockQuantity < quantity {
		return faults.Newf(faults.KindConflict, "insufficient stock for product %s: have %d, need %d", p.ID, p.StockQuantity, quantity)
	}

	p.StockQuantity -= quantity
	p.Timestamps = p.Timestamps.Update()
	p.Version = p.Version.Update()

	p.recordEvent(events.NewEvent(p.ID, events.ProductStockReservedEvent, ProductStockChangedData{
		ProductID:      p.ID,
		SKU:            p.SKU,
		Quantity:       quantity,
		StockQuantity:  p.StockQuantity,
		OrderReference: orderReference,
	}))
	p.recordLowStockIfNeeded()

	return nil
}

// RestoreStock returns quantity units to stock for the given order reference
func (p *Product) RestoreStock(quantity int, orderReference string) error {
	if quantity <= 0 {
		return faults.New(faults.KindValidation, "quantity must be positive")
	}

	p.StockQuantity += quantity
	p.Timestamps = p.Timestamps.Update()
	p.Version = p.Version.Update()

	p.recordEvent(events.NewEvent(p.ID, events.ProductStockRestoredEvent, ProductStockChangedData{
		ProductID:      p.ID,
		SKU:            p.SKU,
		Quantity:       quantity,
		StockQuantity:  p.StockQuantity,
		OrderReference: orderReference,
	}))

	return nil
}

// AdjustStock sets the absolute stock level, for manual corrections
func (p *Product) AdjustStock(newQuantity int) error {
	if newQuantity < 0 {
		return faults.New(faults.KindValidation, "stock quantity cannot be negative")
	}

	previous := p.StockQuantity
	p.StockQuantity = newQuantity
	p.Timestamps = p.Timestamps.Update()
	p.Version = p.Version.Update()

	p.recordEvent(events.NewEvent(p.ID, events.ProductStockAdjustedEvent, ProductStockAdjustedData{
		ProductID:        p.ID,
		SKU:              p.SKU,
		PreviousQuantity: previous,
		StockQuantity:    p.StockQuantity,
	}))
	p.recordLowStockIfNeeded()

	return nil
}

func (p *Product) recordLowStockIfNeeded() {
	if p.StockQuantity > p.MinStockLevel {
		return
	}
	p.recordEvent(events.NewEvent(p.ID, events.ProductStockLowEvent, ProductStockLowData{
		ProductID:     p.ID,
		SKU:           p.SKU,
		StockQuantity: p.StockQuantity,
		MinStockLevel: p.MinStockLevel,
	}))
}

// Events returns domain events
func (p *Product) Events() []*events.Event {
	return p.events
}

// ClearEvents clears domain events
func (p *Product) ClearEvents() {
	p.events = []*events.Event{}
}

func (p *Product) recordEvent(event *events.Event) {
	p.events = append(p.events, event)
}

// ProductCreatedData is the payload of a product creation event
type ProductCreatedData struct {
	ProductID     models.ID    `json:"product_id"`
	SKU           string       `json:"sku"`
	Name          string       `json:"name"`
	Price         models.Money `json:"price"`
	StockQuantity int          `json:"stock_quantity"`
}

// ProductStockChangedData is the payload of stock reserve and restore events
type ProductStockChangedData struct {
	ProductID      models.ID `json:"product_id"`
	SKU            string    `json:"sku"`
	Quantity       int       `json:"quantity"`
	StockQuantity  int       `json:"stock_quantity"`
	OrderReference string    `json:"order_reference"`
}

// ProductStockAdjustedData is the payload of a manual stock adjustment event
type ProductStockAdjustedData struct {
	ProductID        models.ID `json:"product_id"`
	SKU              string    `json:"sku"`
	PreviousQuantity int       `json:"previous_quantity"`
	StockQuantity    int       `json:"stock_quantity"`
}

// ProductStockLowData is the payload of a low stock warning event
type ProductStockLowData struct {
	ProductID     models.ID `json:"product_id"`
	SKU           string    `json:"sku"`
	StockQuantity int       `json:"stock_quantity"`
	MinStockLevel int       `json:"min_stock_level"`
}

// ProductRepository persists products
type ProductRepository interface {
	Save(ctx context.Context, product *Product) error
	FindByID(ctx context.Context, id models.ID) (*Product, error)
	FindByIDs(ctx context.Context, ids []models.ID) ([]*Product, error)
	FindBySKU(ctx context.Context, sku string) (*Product, error)
}
