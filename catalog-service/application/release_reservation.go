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

// ReleaseReservation returns held stock to inventory. Releasing an order
// reference with no reservation, or one already released, is a harmless
// no-op; releasing a confirmed reservation is refused.
type ReleaseReservation struct {
	products       domain.ProductRepository
	reservations   domain.ReservationRepository
	writer         domain.InventoryWriter
	locks          *domain.ProductLockManager
	eventPublisher events.Publisher
	logger         *zap.Logger
}

// NewReleaseReservation creates a ReleaseReservation use case
func NewReleaseReservation(
	products domain.ProductRepository,
	reservations domain.ReservationRepository,
	writer domain.InventoryWriter,
	locks *domain.ProductLockManager,
	eventPublisher events.Publisher,
	logger *zap.Logger,
) *ReleaseReservation {
	return &ReleaseReservation{
		products:       products,
		reservations:   reservations,
		writer:         writer,
		locks:          locks,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Execute releases the reservation for the given order reference
func (uc *ReleaseReservation) Execute(ctx context.Context, orderReference string) (*ReservationStatusResponse, error) {
	if orderReference == "" {
		return nil, faults.New(faults.KindValidation, "order reference is required")
	}

	reservation, err := uc.reservations.FindByOrderReference(ctx, orderReference)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load reservation")
	}
	if reservation == nil {
		// Nothing was reserved, nothing to give back
		return &ReservationStatusResponse{
			OrderReference: orderReference,
			Status:         string(domain.ReservationStatusReleased),
		}, nil
	}
	if reservation.Status == domain.ReservationStatusConfirmed {
		return nil, faults.Newf(faults.KindConflict, "reservation %s is confirmed and cannot be released", reservation.ReservationCode)
	}
	if reservation.Status == domain.ReservationStatusReleased {
		return statusResponse(reservation), nil
	}

	productIDs := make([]models.ID, 0, len(reservation.Items))
	for _, item := range reservation.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	unlock := uc.locks.Lock(productIDs)
	defer unlock()

	// Re-load under the locks so two concurrent releases cannot both
	// restore the stock
	reservation, err = uc.reservations.FindByOrderReference(ctx, orderReference)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reload reservation")
	}
	if reservation == nil || reservation.Status != domain.ReservationStatusReserved {
		if reservation != nil {
			return statusResponse(reservation), nil
		}
		return &ReservationStatusResponse{
			OrderReference: orderReference,
			Status:         string(domain.ReservationStatusReleased),
		}, nil
	}

	products, err := uc.products.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load products")
	}
	productsByID := make(map[models.ID]*domain.Product, len(products))
	for _, product := range products {
		productsByID[product.ID] = product
	}

	touched := make([]*domain.Product, 0, len(reservation.Items))
	for _, item := range reservation.Items {
		product, found := productsByID[item.ProductID]
		if !found {
			return nil, faults.Newf(faults.KindProcessing, "reserved product %s no longer exists", item.ProductID)
		}
		if err := product.RestoreStock(item.Quantity, orderReference); err != nil {
			return nil, err
		}
		touched = append(touched, product)
	}

	if err := reservation.Release(); err != nil {
		return nil, err
	}

	// The status transition and the stock restore share one commit. If a
	// confirm slipped in since the reload, the version check fails the
	// whole write and no stock comes back from a confirmed reservation
	if err := uc.writer.SaveReservationAndStock(ctx, reservation, touched); err != nil {
		return nil, errors.Wrap(err, "failed to release reservation")
	}

	telemetry.RecordCounter(ctx, "reservations_released_total", "Number of reservations released", 1)

	pending := make([]*events.Event, 0, len(reservation.Events()))
	pending = append(pending, reservation.Events()...)
	for _, product := range touched {
		pending = append(pending, product.Events()...)
	}
	if err := uc.eventPublisher.Publish(ctx, pending...); err != nil {
		uc.logger.Error("failed to publish reservation release events",
			zap.String("order_reference", orderReference),
			zap.Error(err),
		)
	}
	reservation.ClearEvents()
	for _, product := range touched {
		product.ClearEvents()
	}

	return statusResponse(reservation), nil
}

func statusResponse(reservation *domain.InventoryReservation) *ReservationStatusResponse {
	return &ReservationStatusResponse{
		ReservationCode: reservation.ReservationCode,
		OrderReference:  reservation.OrderReference,
		Status:          string(reservation.Status),
	}
}
