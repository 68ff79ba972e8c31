package application

import (
	"context"
	"time"

	"github.com/orderflow/fulfillment-system/order-service/domain"
	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/orderflow/fulfillment-system/shared/saga"
	"github.com/orderflow/fulfillment-system/shared/telemetry"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CreateOrderCommand carries everything needed to place a new order
type CreateOrderCommand struct {
	CustomerID      string                 `json:"customer_id"`
	Currency        string                 `json:"currency"`
	ShippingAddress ShippingAddressInput   `json:"shipping_address"`
	Items           []CreateOrderItemInput `json:"items"`
}

// ShippingAddressInput is the wire form of a shipping address
type ShippingAddressInput struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// CreateOrderItemInput identifies a product and how many units to order
type CreateOrderItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// OrderResponse is the projection returned by order queries and commands
type OrderResponse struct {
	OrderID         string               `json:"order_id"`
	OrderNumber     string               `json:"order_number"`
	CustomerID      string               `json:"customer_id"`
	Status          string               `json:"status"`
	TotalAmount     models.Money         `json:"total_amount"`
	ShippingAddress ShippingAddressInput `json:"shipping_address"`
	Items           []OrderItemResponse  `json:"items"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// OrderItemResponse is the projection of a single order line
type OrderItemResponse struct {
	ProductID   string       `json:"product_id"`
	ProductName string       `json:"product_name"`
	SKU         string       `json:"sku"`
	Quantity    int          `json:"quantity"`
	UnitPrice   models.Money `json:"unit_price"`
	TotalPrice  models.Money `json:"total_price"`
}

// CreateOrder places an order by running a three-step saga: reserve stock,
// persist the order, confirm the reservation. Any step failure rolls back
// the already completed steps in reverse order.
type CreateOrder struct {
	orders         domain.OrderRepository
	inventory      domain.InventoryService
	eventPublisher events.Publisher
	logger         *zap.Logger
}

// NewCreateOrder creates a CreateOrder use case
func NewCreateOrder(
	orders domain.OrderRepository,
	inventory domain.InventoryService,
	eventPublisher events.Publisher,
	logger *zap.Logger,
) *CreateOrder {
	return &CreateOrder{
		orders:         orders,
		inventory:      inventory,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Execute runs the order-creation saga and returns the persisted order
func (uc *CreateOrder) Execute(ctx context.Context, cmd *CreateOrderCommand) (*OrderResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "create_order")
	defer span.End()

	if err := uc.validateCommand(cmd); err != nil {
		return nil, err
	}

	customerID, err := models.NewID(cmd.CustomerID)
	if err != nil {
		return nil, faults.Wrapf(faults.KindValidation, err, "invalid customer ID %q", cmd.CustomerID)
	}

	sctx := &orderSagaContext{
		command:        cmd,
		customerID:     customerID,
		orderReference: domain.NewOrderNumber(),
	}

	orchestrator := saga.NewOrchestrator("create_order", uc.logger)
	steps := []saga.Step{
		NewReservationStep(uc.inventory, sctx),
		NewOrderPersistenceStep(uc.orders, sctx),
		NewReservationConfirmationStep(uc.inventory, sctx),
	}
	for _, step := range steps {
		if err := orchestrator.AddStep(step); err != nil {
			return nil, errors.Wrap(err, "failed to assemble order saga")
		}
	}

	if err := orchestrator.Execute(ctx); err != nil {
		uc.logger.Warn("order creation saga failed",
			zap.String("order_reference", sctx.orderReference),
			zap.String("customer_id", cmd.CustomerID),
			zap.Error(err),
		)
		return nil, err
	}

	telemetry.RecordCounter(ctx, "orders_created_total", "Number of orders successfully created", 1)

	// The order is already committed; a publish failure must not fail the
	// request, or a client retry would place a second order.
	if err := uc.eventPublisher.Publish(ctx, sctx.order.Events()...); err != nil {
		uc.logger.Error("failed to publish order events",
			zap.String("order_id", sctx.order.ID.String()),
			zap.String("order_number", sctx.order.OrderNumber),
			zap.Error(err),
		)
	}
	sctx.order.ClearEvents()

	return newOrderResponse(sctx.order), nil
}

func (uc *CreateOrder) validateCommand(cmd *CreateOrderCommand) error {
	if cmd == nil {
		return faults.New(faults.KindValidation, "command is required")
	}
	if cmd.CustomerID == "" {
		return faults.New(faults.KindValidation, "customer ID is required")
	}
	if cmd.Currency == "" {
		return faults.New(faults.KindValidation, "currency is required")
	}
	if len(cmd.Items) == 0 {
		return faults.New(faults.KindValidation, "at least one item is required")
	}
	for i, item := range cmd.Items {
		if item.ProductID == "" {
			return faults.Newf(faults.KindValidation, "item %d: product ID is required", i)
		}
		if item.Quantity <= 0 {
			return faults.Newf(faults.KindValidation, "item %d: quantity must be positive", i)
		}
	}
	addr := cmd.ShippingAddress
	if addr.Line1 == "" || addr.City == "" || addr.PostalCode == "" || addr.Country == "" {
		return faults.New(faults.KindValidation, "shipping address requires line1, city, postal code and country")
	}
	return nil
}

func newOrderResponse(order *domain.Order) *OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemResponse{
			ProductID:   item.ProductID.String(),
			ProductName: item.ProductName,
			SKU:         item.SKU,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.TotalPrice,
		})
	}
	return &OrderResponse{
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID.String(),
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount,
		ShippingAddress: ShippingAddressInput{
			Line1:      order.ShippingAddress.Line1,
			Line2:      order.ShippingAddress.Line2,
			City:       order.ShippingAddress.City,
			State:      order.ShippingAddress.State,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		Items:     items,
		CreatedAt: order.Timestamps.CreatedAt,
		UpdatedAt: order.Timestamps.UpdatedAt,
	}
}
