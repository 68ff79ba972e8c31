package domain

import (
	"strings"
	"testing"

	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReservation(t *testing.T) *InventoryReservation {
	t.Helper()
	reservation, err := NewInventoryReservation("ORD-20260831-ABCDEF12", []ReservationItem{
		{
			ProductID:   models.GenerateUUID(),
			ProductName: "Widget",
			SKU:         "WID-001",
			Quantity:    2,
			UnitPrice:   models.NewMoney(1500, "USD"),
		},
	})
	require.NoError(t, err)
	reservation.ClearEvents()
	return reservation
}

func TestNewInventoryReservation(t *testing.T) {
	reservation, err := NewInventoryReservation("ORD-1", []ReservationItem{{ProductID: models.GenerateUUID(), Quantity: 1, UnitPrice: models.NewMoney(100, "USD")}})
	require.NoError(t, err)

	assert.Equal(t, ReservationStatusReserved, reservation.Status)
	assert.True(t, strings.HasPrefix(reservation.ReservationCode, "RSV-"))
	require.Len(t, reservation.Events(), 1)
	assert.Equal(t, events.ReservationCreatedEvent, reservation.Events()[0].EventType)

	_, err = NewInventoryReservation("", nil)
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))
}

func TestInventoryReservation_Confirm(t *testing.T) {
	reservation := testReservation(t)

	require.NoError(t, reservation.Confirm())
	assert.Equal(t, ReservationStatusConfirmed, reservation.Status)
	require.Len(t, reservation.Events(), 1)
	assert.Equal(t, events.ReservationConfirmedEvent, reservation.Events()[0].EventType)

	// Confirming again changes nothing
	reservation.ClearEvents()
	require.NoError(t, reservation.Confirm())
	assert.Empty(t, reservation.Events())
}

func TestInventoryReservation_Confirm_AfterRelease(t *testing.T) {
	reservation := testReservation(t)
	require.NoError(t, reservation.Release())

	err := reservation.Confirm()
	require.Error(t, err)
	assert.Equal(t, faults.KindConflict, faults.KindOf(err))
}

func TestInventoryReservation_Release(t *testing.T) {
	reservation := testReservation(t)

	require.NoError(t, reservation.Release())
	assert.Equal(t, ReservationStatusReleased, reservation.Status)
	require.Len(t, reservation.Events(), 1)
	assert.Equal(t, events.ReservationReleasedEvent, reservation.Events()[0].EventType)

	// Releasing again changes nothing
	reservation.ClearEvents()
	require.NoError(t, reservation.Release())
	assert.Empty(t, reservation.Events())
}

func TestInventoryReservation_Release_AfterConfirm(t *testing.T) {
	reservation := testReservation(t)
	require.NoError(t, reservation.Confirm())

	err := reservation.Release()
	require.Error(t, err)
	assert.Equal(t, faults.KindConflict, faults.KindOf(err))
	assert.Equal(t, ReservationStatusConfirmed, reservation.Status)
}
