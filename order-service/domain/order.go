package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/pkg/errors"
)

// ShippingAddress is the destination captured on the order
type ShippingAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// OrderItem is a line of an order. Product name, SKU and price are captured
// at reservation time, not looked up live.
type OrderItem struct {
	ID          models.ID    `json:"id"`
	ProductID   models.ID    `json:"product_id"`
	ProductName string       `json:"product_name"`
	SKU         string       `json:"sku"`
	Quantity    int          `json:"quantity"`
	UnitPrice   models.Money `json:"unit_price"`
	TotalPrice  models.Money `json:"total_price"`
}

// NewOrderItem creates an order item with its total computed from the unit price
func NewOrderItem(productID models.ID, productName, sku string, quantity int, unitPrice models.Money) (OrderItem, error) {
	if quantity <= 0 {
		return OrderItem{}, errors.New("item quantity must be positive")
	}
	if !unitPrice.IsPositive() {
		return OrderItem{}, errors.New("item unit price must be positive")
	}

	return OrderItem{
		ID:          models.GenerateUUID(),
		ProductID:   productID,
		ProductName: productName,
		SKU:         sku,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		TotalPrice:  unitPrice.MultiplyBy(quantity),
	}, nil
}

// Order aggregate root
type Order struct {
	ID              models.ID
	OrderNumber     string
	CustomerID      models.ID
	Status          OrderStatus
	TotalAmount     models.Money
	ShippingAddress ShippingAddress
	Items           []OrderItem
	Timestamps      models.Timestamps
	Version         models.Version

	events []*events.Event
}

// NewOrderNumber generates a human-readable order number, also used as the
// order reference correlating the saga run with its inventory reservation.
func NewOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", time.Now().Format("20060102"), suffix)
}

// CreateOrder factory method; the total is always the sum of the item totals
func CreateOrder(orderNumber string, customerID models.ID, currency string, address ShippingAddress, items []OrderItem) (*Order, error) {
	if orderNumber == "" {
		return nil, errors.New("order number is required")
	}
	if len(items) == 0 {
		return nil, errors.New("order must have at least one item")
	}

	total := models.NewMoney(0, currency)
	for _, item := range items {
		var err error
		total, err = total.Add(item.TotalPrice)
		if err != nil {
			return nil, errors.Wrapf(err, "item %s price currency does not match order currency", item.ProductID)
		}
	}

	order := &Order{
		ID:              models.GenerateUUID(),
		OrderNumber:     orderNumber,
		CustomerID:      customerID,
		Status:          OrderStatusPending,
		TotalAmount:     total,
		ShippingAddress: address,
		Items:           items,
		Timestamps:      models.NewTimestamps(),
		Version:         models.NewVersion(),
	}

	event := events.NewEvent(order.ID, events.OrderCreatedEvent, OrderCreatedData{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		TotalAmount: order.TotalAmount,
		ItemCount:   len(order.Items),
	})

	order.recordEvent(event)
	return order, nil
}

// TransitionTo moves the order to the next status if the transition is legal.
// Re-applying the current status is a no-op.
func (o *Order) TransitionTo(next OrderStatus) error {
	if err := ValidateTransition(o.Status, next); err != nil {
		return err
	}

	if o.Status == next {
		return nil
	}

	previous := o.Status
	o.Status = next
	o.Timestamps = o.Timestamps.Update()
	o.Version = o.Version.Update()

	event := events.NewEvent(o.ID, events.OrderStatusChangedEvent, OrderStatusChangedData{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		From:        previous,
		To:          next,
	})

	o.recordEvent(event)
	return nil
}

// Cancel cancels the order if its current status allows cancellation
func (o *Order) Cancel() error {
	if err := ValidateCancellation(o.Status); err != nil {
		return err
	}

	previous := o.Status
	o.Status = OrderStatusCancelled
	o.Timestamps = o.Timestamps.Update()
	o.Version = o.Version.Update()

	event := events.NewEvent(o.ID, events.OrderCancelledEvent, OrderCancelledData{
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		CustomerID:     o.CustomerID,
		PreviousStatus: previous,
		CancelledAt:    time.Now(),
	})

	o.recordEvent(event)
	return nil
}

// Events returns domain events
func (o *Order) Events() []*events.Event {
	return o.events
}

// ClearEvents clears domain events
func (o *Order) ClearEvents() {
	o.events = make([]*events.Event, 0)
}

// recordEvent records a domain event
func (o *Order) recordEvent(event *events.Event) {
	o.events = append(o.events, event)
}

// Event Data Structures
type OrderCreatedData struct {
	OrderID     models.ID    `json:"order_id"`
	OrderNumber string       `json:"order_number"`
	CustomerID  models.ID    `json:"customer_id"`
	TotalAmount models.Money `json:"total_amount"`
	ItemCount   int          `json:"item_count"`
}

type OrderStatusChangedData struct {
	OrderID     models.ID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	From        OrderStatus `json:"from"`
	To          OrderStatus `json:"to"`
}

type OrderCancelledData struct {
	OrderID        models.ID   `json:"order_id"`
	OrderNumber    string      `json:"order_number"`
	CustomerID     models.ID   `json:"customer_id"`
	PreviousStatus OrderStatus `json:"previous_status"`
	CancelledAt    time.Time   `json:"cancelled_at"`
}

// OrderRepository interface
type OrderRepository interface {
	Save(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id models.ID) (*Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)
	Delete(ctx context.Context, id models.ID) error
}
