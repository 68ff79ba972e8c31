package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
)

// ReservationStatus represents the lifecycle state of a stock reservation
type ReservationStatus string

const (
	// ReservationStatusReserved means stock is held but the order is not final
	ReservationStatusReserved ReservationStatus = "reserved"
	// ReservationStatusConfirmed means the hold is permanent
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	// ReservationStatusReleased means the held stock went back into inventory
	ReservationStatusReleased ReservationStatus = "released"
)

// ReservationItem is one product line of a reservation. Name, SKU and price
// are captured at reservation time so the values the order was built from
// survive later catalog changes.
type ReservationItem struct {
	ProductID   models.ID
	ProductName string
	SKU         string
	Quantity    int
	UnitPrice   models.Money
}

// InventoryReservation aggregate root. One reservation exists per order
// reference; reservations are never deleted, only released.
type InventoryReservation struct {
	ID              models.ID
	ReservationCode string
	OrderReference  string
	Status          ReservationStatus
	Items           []ReservationItem
	Timestamps      models.Timestamps
	Version         models.Version

	events []*events.Event
}

// NewReservationCode generates a human-readable reservation code
func NewReservationCode() string {
	id := models.GenerateUUID()
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:8]
	return fmt.Sprintf("RSV-%s", suffix)
}

// NewInventoryReservation creates a reservation holding stock for an order
func NewInventoryReservation(orderReference string, items []ReservationItem) (*InventoryReservation, error) {
	if orderReference == "" {
		return nil, faults.New(faults.KindValidation, "order reference is required")
	}
	if len(items) == 0 {
		return nil, faults.New(faults.KindValidation, "a reservation requires at least one item")
	}

	reservation := &InventoryReservation{
		ID:              models.GenerateUUID(),
		ReservationCode: NewReservationCode(),
		OrderReference:  orderReference,
		Status:          ReservationStatusReserved,
		Items:           items,
		Timestamps:      models.NewTimestamps(),
		Version:         models.NewVersion(),
	}

	reservation.recordEvent(events.NewEvent(reservation.ID, events.ReservationCreatedEvent, ReservationEventData{
		ReservationID:   reservation.ID,
		ReservationCode: reservation.ReservationCode,
		OrderReference:  reservation.OrderReference,
		ItemCount:       len(items),
	}))

	return reservation, nil
}

// Confirm makes the reservation permanent. Confirming an already confirmed
// reservation is a no-op; a released reservation cannot be confirmed.
func (r *InventoryReservation) Confirm() error {
	switch r.Status {
	case ReservationStatusConfirmed:
		return nil
	case ReservationStatusReleased:
		return faults.Newf(faults.KindConflict, "reservation %s was already released", r.ReservationCode)
	}

	r.Status = ReservationStatusConfirmed
	r.Timestamps = r.Timestamps.Update()
	r.Version = r.Version.Update()

	r.recordEvent(events.NewEvent(r.ID, events.ReservationConfirmedEvent, ReservationEventData{
		ReservationID:   r.ID,
		ReservationCode: r.ReservationCode,
		OrderReference:  r.OrderReference,
		ItemCount:       len(r.Items),
	}))

	return nil
}

// Release gives the held stock back. Releasing an already released
// reservation is a no-op; a confirmed reservation cannot be released.
func (r *InventoryReservation) Release() error {
	switch r.Status {
	case ReservationStatusReleased:
		return nil
	case ReservationStatusConfirmed:
		return faults.Newf(faults.KindConflict, "reservation %s is confirmed and cannot be released", r.ReservationCode)
	}

	r.Status = ReservationStatusReleased
	r.Timestamps = r.Timestamps.Update()
	r.Version = r.Version.Update()

	r.recordEvent(events.NewEvent(r.ID, events.ReservationReleasedEvent, ReservationEventData{
		ReservationID:   r.ID,
		ReservationCode: r.ReservationCode,
		OrderReference:  r.OrderReference,
		ItemCount:       len(r.Items),
	}))

	return nil
}

// Events returns domain events
func (r *InventoryReservation) Events() []*events.Event {
	return r.events
}

// ClearEvents clears domain events
func (r *InventoryReservation) ClearEvents() {
	r.events = []*events.Event{}
}

func (r *InventoryReservation) recordEvent(event *events.Event) {
	r.events = append(r.events, event)
}

// ReservationEventData is the payload shared by reservation lifecycle events
type ReservationEventData struct {
	ReservationID   models.ID `json:"reservation_id"`
	ReservationCode string    `json:"reservation_code"`
	OrderReference  string    `json:"order_reference"`
	ItemCount       int       `json:"item_count"`
}

// ReservationRepository persists reservations
type ReservationRepository interface {
	Save(ctx context.Context, reservation *InventoryReservation) error
	FindByOrderReference(ctx context.Context, orderReference string) (*InventoryReservation, error)
}

// InventoryWriter persists a reservation together with the product stock
// it affects. Both changes commit or neither does; a version conflict on
// either side leaves stock and reservation untouched.
type InventoryWriter interface {
	SaveReservationAndStock(ctx context.Context, reservation *InventoryReservation, products []*Product) error
}
