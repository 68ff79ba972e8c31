package application

import (
	"context"

	"github.com/orderflow/fulfillment-system/catalog-service/domain"
	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/telemetry"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ReservationStatusResponse reports the state of a reservation after a
// confirm or release
type ReservationStatusResponse struct {
	ReservationCode string `json:"reservation_code,omitempty"`
	OrderReference  string `json:"order_reference"`
	Status          string `json:"status"`
}

// ConfirmReservation makes the stock hold for an order permanent. Stock was
// already taken at reservation time, so this changes only the status.
type ConfirmReservation struct {
	reservations   domain.ReservationRepository
	eventPublisher events.Publisher
	logger         *zap.Logger
}

// NewConfirmReservation creates a ConfirmReservation use case
func NewConfirmReservation(reservations domain.ReservationRepository, eventPublisher events.Publisher, logger *zap.Logger) *ConfirmReservation {
	return &ConfirmReservation{reservations: reservations, eventPublisher: eventPublisher, logger: logger}
}

// Execute confirms the reservation for the given order reference
func (uc *ConfirmReservation) Execute(ctx context.Context, orderReference string) (*ReservationStatusResponse, error) {
	if orderReference == "" {
		return nil, faults.New(faults.KindValidation, "order reference is required")
	}

	reservation, err := uc.reservations.FindByOrderReference(ctx, orderReference)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load reservation")
	}
	if reservation == nil {
		return nil, faults.Newf(faults.KindNotFound, "no reservation exists for order %s", orderReference)
	}

	previous := reservation.Status
	if err := reservation.Confirm(); err != nil {
		return nil, err
	}

	if reservation.Status != previous {
		if err := uc.reservations.Save(ctx, reservation); err != nil {
			return nil, errors.Wrap(err, "failed to save reservation")
		}

		telemetry.RecordCounter(ctx, "reservations_confirmed_total", "Number of reservations confirmed", 1)

		if err := uc.eventPublisher.Publish(ctx, reservation.Events()...); err != nil {
			uc.logger.Error("failed to publish reservation confirmation events",
				zap.String("order_reference", orderReference),
				zap.Error(err),
			)
		}
		reservation.ClearEvents()
	}

	return &ReservationStatusResponse{
		ReservationCode: reservation.ReservationCode,
		OrderReference:  reservation.OrderReference,
		Status:          string(reservation.Status),
	}, nil
}
