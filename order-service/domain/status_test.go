package domain

import (
	"testing"

	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{"pending to confirmed", OrderStatusPending, OrderStatusConfirmed, true},
		{"pending to processing", OrderStatusPending, OrderStatusProcessing, true},
		{"pending to cancelled", OrderStatusPending, OrderStatusCancelled, true},
		{"pending to shipped", OrderStatusPending, OrderStatusShipped, false},
		{"pending to delivered", OrderStatusPending, OrderStatusDelivered, false},
		{"confirmed to processing", OrderStatusConfirmed, OrderStatusProcessing, true},
		{"confirmed to cancelled", OrderStatusConfirmed, OrderStatusCancelled, true},
		{"confirmed to delivered", OrderStatusConfirmed, OrderStatusDelivered, false},
		{"processing to shipped", OrderStatusProcessing, OrderStatusShipped, true},
		{"processing to cancelled", OrderStatusProcessing, OrderStatusCancelled, true},
		{"processing to delivered", OrderStatusProcessing, OrderStatusDelivered, false},
		{"shipped to delivered", OrderStatusShipped, OrderStatusDelivered, true},
		{"shipped to cancelled", OrderStatusShipped, OrderStatusCancelled, false},
		{"delivered to refunded", OrderStatusDelivered, OrderStatusRefunded, true},
		{"delivered to pending", OrderStatusDelivered, OrderStatusPending, false},
		{"cancelled is terminal", OrderStatusCancelled, OrderStatusPending, false},
		{"refunded is terminal", OrderStatusRefunded, OrderStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, faults.KindConflict, faults.KindOf(err))
			}
		})
	}
}

func TestValidateTransition_SameStatusIsNoOp(t *testing.T) {
	for status := range orderTransitions {
		assert.NoError(t, ValidateTransition(status, status), "same-status transition for %s", status)
	}
}

func TestValidateCancellation(t *testing.T) {
	assert.NoError(t, ValidateCancellation(OrderStatusPending))
	assert.NoError(t, ValidateCancellation(OrderStatusConfirmed))
	assert.NoError(t, ValidateCancellation(OrderStatusProcessing))
	assert.NoError(t, ValidateCancellation(OrderStatusShipped))

	err := ValidateCancellation(OrderStatusDelivered)
	require.Error(t, err)
	assert.Equal(t, faults.KindConflict, faults.KindOf(err))

	err = ValidateCancellation(OrderStatusCancelled)
	require.Error(t, err)
	assert.Equal(t, faults.KindConflict, faults.KindOf(err))

	err = ValidateCancellation(OrderStatusRefunded)
	require.Error(t, err)
	assert.Equal(t, faults.KindConflict, faults.KindOf(err))
}

func TestNewOrderStatus(t *testing.T) {
	status, err := NewOrderStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, status)

	_, err = NewOrderStatus("teleported")
	require.Error(t, err)
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))
}
