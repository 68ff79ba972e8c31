package application

import (
	"context"

	"github.com/orderflow/fulfillment-system/order-service/domain"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/pkg/errors"
)

// orderSagaContext is the mutable state shared by the steps of a single
// order-creation saga run. It is owned by the orchestrator for the lifetime
// of one Execute call and discarded afterwards.
type orderSagaContext struct {
	command        *CreateOrderCommand
	customerID     models.ID
	orderReference string
	reservation    *domain.ReservationResult
	order          *domain.Order
}

// ReservationStep reserves stock in the catalog service under the saga's
// order reference
type ReservationStep struct {
	inventory domain.InventoryService
	sctx      *orderSagaContext
}

// NewReservationStep creates a ReservationStep bound to a saga context
func NewReservationStep(inventory domain.InventoryService, sctx *orderSagaContext) *ReservationStep {
	return &ReservationStep{inventory: inventory, sctx: sctx}
}

func (s *ReservationStep) Name() string {
	return "reserve_inventory"
}

func (s *ReservationStep) Execute(ctx context.Context) error {
	items := make([]domain.ReservationRequestItem, 0, len(s.sctx.command.Items))
	for _, reqItem := range s.sctx.command.Items {
		productID, err := models.NewID(reqItem.ProductID)
		if err != nil {
			return faults.Wrapf(faults.KindValidation, err, "invalid product ID %q", reqItem.ProductID)
		}
		items = append(items, domain.ReservationRequestItem{
			ProductID: productID,
			Quantity:  reqItem.Quantity,
		})
	}

	result, err := s.inventory.Reserve(ctx, s.sctx.orderReference, items)
	if err != nil {
		return errors.Wrap(err, "inventory reserve call failed")
	}

	// A nil result or an empty item list means the inventory side returned
	// garbage, which is not the same thing as a well-formed rejection.
	if result == nil || len(result.Items) == 0 {
		return faults.New(faults.KindProcessing, "inventory service returned an unusable reservation response")
	}

	s.sctx.reservation = result
	return nil
}

// Compensate releases the reservation unconditionally; the catalog treats
// release of an unknown order reference as a no-op.
func (s *ReservationStep) Compensate(ctx context.Context) error {
	return s.inventory.Release(ctx, s.sctx.orderReference)
}

// OrderPersistenceStep builds the order from the reservation result and
// persists it with status pending
type OrderPersistenceStep struct {
	orders domain.OrderRepository
	sctx   *orderSagaContext
}

// NewOrderPersistenceStep creates an OrderPersistenceStep bound to a saga context
func NewOrderPersistenceStep(orders domain.OrderRepository, sctx *orderSagaContext) *OrderPersistenceStep {
	return &OrderPersistenceStep{orders: orders, sctx: sctx}
}

func (s *OrderPersistenceStep) Name() string {
	return "persist_order"
}

func (s *OrderPersistenceStep) Execute(ctx context.Context) error {
	cmd := s.sctx.command
	reservation := s.sctx.reservation

	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for _, reqItem := range cmd.Items {
		productID, err := models.NewID(reqItem.ProductID)
		if err != nil {
			return faults.Wrapf(faults.KindValidation, err, "invalid product ID %q", reqItem.ProductID)
		}

		// Guards against partial availability that the reservation call
		// did not already reject.
		detail := reservation.ItemForProduct(productID)
		if detail == nil {
			return faults.Newf(faults.KindProcessing, "reservation result has no detail for product %s", productID)
		}
		if !detail.Available {
			return faults.Newf(faults.KindProcessing, "product %s is not available: %s", productID, detail.Message)
		}

		// Name, SKU and price come from the reservation result, which holds
		// the catalog's values at the moment the stock was taken.
		item, err := domain.NewOrderItem(productID, detail.ProductName, detail.SKU, reqItem.Quantity, detail.Price)
		if err != nil {
			return errors.Wrapf(err, "invalid order item for product %s", productID)
		}
		items = append(items, item)
	}

	order, err := domain.CreateOrder(
		s.sctx.orderReference,
		s.sctx.customerID,
		cmd.Currency,
		domain.ShippingAddress{
			Line1:      cmd.ShippingAddress.Line1,
			Line2:      cmd.ShippingAddress.Line2,
			City:       cmd.ShippingAddress.City,
			State:      cmd.ShippingAddress.State,
			PostalCode: cmd.ShippingAddress.PostalCode,
			Country:    cmd.ShippingAddress.Country,
		},
		items,
	)
	if err != nil {
		return errors.Wrap(err, "failed to build order")
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return errors.Wrap(err, "failed to persist order")
	}

	s.sctx.order = order
	return nil
}

// Compensate deletes the persisted order, if this step got far enough to
// persist one. Releasing the reservation is ReservationStep's job and runs
// after this by LIFO ordering.
func (s *OrderPersistenceStep) Compensate(ctx context.Context) error {
	if s.sctx.order == nil {
		return nil
	}
	return s.orders.Delete(ctx, s.sctx.order.ID)
}

// ReservationConfirmationStep permanently confirms the reservation. Stock
// was already decremented at reserve time; confirmation changes only the
// reservation status.
type ReservationConfirmationStep struct {
	inventory domain.InventoryService
	sctx      *orderSagaContext
}

// NewReservationConfirmationStep creates a ReservationConfirmationStep bound to a saga context
func NewReservationConfirmationStep(inventory domain.InventoryService, sctx *orderSagaContext) *ReservationConfirmationStep {
	return &ReservationConfirmationStep{inventory: inventory, sctx: sctx}
}

func (s *ReservationConfirmationStep) Name() string {
	return "confirm_reservation"
}

func (s *ReservationConfirmationStep) Execute(ctx context.Context) error {
	if err := s.inventory.Confirm(ctx, s.sctx.orderReference); err != nil {
		return errors.Wrap(err, "inventory confirm call failed")
	}
	return nil
}

// Compensate is a no-op: when confirmation fails, the LIFO rollback of the
// earlier steps deletes the order and releases the reservation.
func (s *ReservationConfirmationStep) Compensate(ctx context.Context) error {
	return nil
}
