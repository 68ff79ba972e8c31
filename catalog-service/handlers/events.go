package handlers

import (
	"context"

	"github.com/orderflow/fulfillment-system/catalog-service/application"
	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CatalogEventHandlers contains event handlers for the catalog service
type CatalogEventHandlers struct {
	releaseReservation *application.ReleaseReservation
	logger             *zap.Logger
}

// NewCatalogEventHandlers creates new catalog event handlers
func NewCatalogEventHandlers(releaseReservation *application.ReleaseReservation, logger *zap.Logger) *CatalogEventHandlers {
	return &CatalogEventHandlers{releaseReservation: releaseReservation, logger: logger}
}

// Handle implements the events.EventHandler interface
func (h *CatalogEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	switch event.EventType {
	case events.OrderCancelledEvent:
		return h.HandleOrderCancelled(ctx, event)
	default:
		// Unknown event type, ignore
		return nil
	}
}

// HandlerID returns the unique identifier for this event handler
func (h *CatalogEventHandlers) HandlerID() string {
	return "catalog-service-event-handler"
}

// orderCancelledPayload is the slice of the order service's cancellation
// event this handler needs
type orderCancelledPayload struct {
	OrderNumber string `json:"order_number"`
}

// HandleOrderCancelled releases the stock reservation held for a cancelled
// order. Conflicts and unknown references are final outcomes, not failures,
// so they do not trigger a redelivery.
func (h *CatalogEventHandlers) HandleOrderCancelled(ctx context.Context, event *events.Event) error {
	var payload orderCancelledPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return errors.Wrap(err, "failed to decode order cancelled event")
	}
	if payload.OrderNumber == "" {
		return errors.New("order_number is required")
	}
	orderNumber := payload.OrderNumber

	_, err := h.releaseReservation.Execute(ctx, orderNumber)
	if err != nil {
		switch faults.KindOf(err) {
		case faults.KindConflict, faults.KindNotFound:
			h.logger.Warn("reservation for cancelled order could not be released",
				zap.String("order_number", orderNumber),
				zap.Error(err),
			)
			return nil
		}
		h.logger.Error("failed to release reservation for cancelled order",
			zap.String("order_number", orderNumber),
			zap.Error(err),
		)
		return err
	}

	return nil
}
