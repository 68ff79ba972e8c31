package application

import (
	"context"

	"github.com/orderflow/fulfillment-system/catalog-service/domain"
	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/orderflow/fulfillment-system/shared/telemetry"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ReserveStockCommand asks the catalog to hold stock for an order
type ReserveStockCommand struct {
	OrderReference string                  `json:"order_reference"`
	Items          []ReserveStockItemInput `json:"items"`
}

// ReserveStockItemInput identifies a product and the quantity to hold
type ReserveStockItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ReservationResultResponse reports the outcome of a reservation attempt.
// Success false with per-item details is a business answer, not an error.
type ReservationResultResponse struct {
	Success         bool                            `json:"success"`
	Message         string                          `json:"message,omitempty"`
	OrderReference  string                          `json:"order_reference"`
	ReservationCode string                          `json:"reservation_code,omitempty"`
	Items           []ReservationItemDetailResponse `json:"items"`
}

// ReservationItemDetailResponse describes one product line of the outcome
type ReservationItemDetailResponse struct {
	ProductID         string       `json:"product_id"`
	ProductName       string       `json:"product_name"`
	SKU               string       `json:"sku"`
	RequestedQuantity int          `json:"requested_quantity"`
	AvailableQuantity int          `json:"available_quantity"`
	Price             models.Money `json:"price"`
	Available         bool         `json:"available"`
	Message           string       `json:"message,omitempty"`
}

// ReserveStock holds stock for an order, all items or none. Stock is
// decremented at reservation time, so a reserved unit can never be
// promised to two orders. Repeating a reserve for an order reference that
// already has a reservation returns the original result.
type ReserveStock struct {
	products       domain.ProductRepository
	reservations   domain.ReservationRepository
	writer         domain.InventoryWriter
	locks          *domain.ProductLockManager
	eventPublisher events.Publisher
	logger         *zap.Logger
}

// NewReserveStock creates a ReserveStock use case
func NewReserveStock(
	products domain.ProductRepository,
	reservations domain.ReservationRepository,
	writer domain.InventoryWriter,
	locks *domain.ProductLockManager,
	eventPublisher events.Publisher,
	logger *zap.Logger,
) *ReserveStock {
	return &ReserveStock{
		products:       products,
		reservations:   reservations,
		writer:         writer,
		locks:          locks,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Execute attempts the reservation and returns the per-item outcome
func (uc *ReserveStock) Execute(ctx context.Context, cmd *ReserveStockCommand) (*ReservationResultResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "reserve_stock")
	defer span.End()

	productIDs, err := uc.validateCommand(cmd)
	if err != nil {
		return nil, err
	}

	// Cheap idempotency check before taking any locks
	existing, err := uc.reservations.FindByOrderReference(ctx, cmd.OrderReference)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check for existing reservation")
	}
	if existing != nil {
		return resultFromReservation(existing), nil
	}

	unlock := uc.locks.Lock(productIDs)
	defer unlock()

	// Re-check under the locks: a concurrent request for the same order
	// reference may have won the race
	existing, err = uc.reservations.FindByOrderReference(ctx, cmd.OrderReference)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check for existing reservation")
	}
	if existing != nil {
		return resultFromReservation(existing), nil
	}

	products, err := uc.products.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load products")
	}
	productsByID := make(map[models.ID]*domain.Product, len(products))
	for _, product := range products {
		productsByID[product.ID] = product
	}

	details, allAvailable := uc.checkAvailability(cmd, productsByID)
	if !allAvailable {
		telemetry.RecordCounter(ctx, "reservations_rejected_total", "Number of reservation attempts rejected for availability", 1)
		return &ReservationResultResponse{
			Success:        false,
			Message:        "one or more items are not available",
			OrderReference: cmd.OrderReference,
			Items:          details,
		}, nil
	}

	// Every item is available, take the stock
	touched := make([]*domain.Product, 0, len(cmd.Items))
	reservationItems := make([]domain.ReservationItem, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		productID := models.ID(item.ProductID)
		product := productsByID[productID]
		if err := product.ReserveStock(item.Quantity, cmd.OrderReference); err != nil {
			return nil, err
		}
		touched = append(touched, product)
		reservationItems = append(reservationItems, domain.ReservationItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			SKU:         product.SKU,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
		})
	}

	reservation, err := domain.NewInventoryReservation(cmd.OrderReference, reservationItems)
	if err != nil {
		return nil, err
	}

	// One commit for the reservation and the decremented stock. A failure
	// here leaves stock untouched, so nothing can leak without a
	// reservation record to release it
	if err := uc.writer.SaveReservationAndStock(ctx, reservation, touched); err != nil {
		return nil, errors.Wrap(err, "failed to persist reservation")
	}

	telemetry.RecordCounter(ctx, "reservations_created_total", "Number of reservations created", 1)
	uc.publishEvents(ctx, reservation, touched)

	result := resultFromReservation(reservation)
	result.Items = details
	return result, nil
}

func (uc *ReserveStock) validateCommand(cmd *ReserveStockCommand) ([]models.ID, error) {
	if cmd == nil {
		return nil, faults.New(faults.KindValidation, "command is required")
	}
	if cmd.OrderReference == "" {
		return nil, faults.New(faults.KindValidation, "order reference is required")
	}
	if len(cmd.Items) == 0 {
		return nil, faults.New(faults.KindValidation, "at least one item is required")
	}

	ids := make([]models.ID, 0, len(cmd.Items))
	seen := make(map[string]bool, len(cmd.Items))
	for i, item := range cmd.Items {
		if item.Quantity <= 0 {
			return nil, faults.Newf(faults.KindValidation, "item %d: quantity must be positive", i)
		}
		id, err := models.NewID(item.ProductID)
		if err != nil {
			return nil, faults.Wrapf(faults.KindValidation, err, "item %d: invalid product ID %q", i, item.ProductID)
		}
		if seen[item.ProductID] {
			return nil, faults.Newf(faults.KindValidation, "duplicate product %s in reservation request", item.ProductID)
		}
		seen[item.ProductID] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func (uc *ReserveStock) checkAvailability(cmd *ReserveStockCommand, productsByID map[models.ID]*domain.Product) ([]ReservationItemDetailResponse, bool) {
	details := make([]ReservationItemDetailResponse, 0, len(cmd.Items))
	allAvailable := true

	for _, item := range cmd.Items {
		productID := models.ID(item.ProductID)
		product, found := productsByID[productID]
		if !found {
			allAvailable = false
			details = append(details, ReservationItemDetailResponse{
				ProductID:         item.ProductID,
				RequestedQuantity: item.Quantity,
				Available:         false,
				Message:           "product not found",
			})
			continue
		}

		detail := ReservationItemDetailResponse{
			ProductID:         product.ID.String(),
			ProductName:       product.Name,
			SKU:               product.SKU,
			RequestedQuantity: item.Quantity,
			AvailableQuantity: product.StockQuantity,
			Price:             product.Price,
			Available:         product.HasStock(item.Quantity),
		}
		if !detail.Available {
			allAvailable = false
			if !product.Active {
				detail.Message = "product is not active"
			} else {
				detail.Message = "insufficient stock"
			}
		}
		details = append(details, detail)
	}

	return details, allAvailable
}

func (uc *ReserveStock) publishEvents(ctx context.Context, reservation *domain.InventoryReservation, products []*domain.Product) {
	pending := make([]*events.Event, 0, len(reservation.Events())+len(products))
	pending = append(pending, reservation.Events()...)
	for _, product := range products {
		pending = append(pending, product.Events()...)
	}

	if err := uc.eventPublisher.Publish(ctx, pending...); err != nil {
		uc.logger.Error("failed to publish reservation events",
			zap.String("order_reference", reservation.OrderReference),
			zap.Error(err),
		)
	}

	reservation.ClearEvents()
	for _, product := range products {
		product.ClearEvents()
	}
}

// resultFromReservation rebuilds the successful result from a stored
// reservation, used for idempotent replays
func resultFromReservation(reservation *domain.InventoryReservation) *ReservationResultResponse {
	items := make([]ReservationItemDetailResponse, 0, len(reservation.Items))
	for _, item := range reservation.Items {
		items = append(items, ReservationItemDetailResponse{
			ProductID:         item.ProductID.String(),
			ProductName:       item.ProductName,
			SKU:               item.SKU,
			RequestedQuantity: item.Quantity,
			AvailableQuantity: item.Quantity,
			Price:             item.UnitPrice,
			Available:         true,
		})
	}
	return &ReservationResultResponse{
		Success:         true,
		OrderReference:  reservation.OrderReference,
		ReservationCode: reservation.ReservationCode,
		Items:           items,
	}
}
