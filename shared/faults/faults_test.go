package faults

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{
			name:     "direct fault",
			err:      New(KindValidation, "bad input"),
			expected: KindValidation,
		},
		{
			name:     "wrapped fault keeps its kind",
			err:      errors.Wrap(New(KindNotFound, "missing"), "loading order"),
			expected: KindNotFound,
		},
		{
			name:     "fault wrapping a fault reports the outer kind",
			err:      Wrap(KindProcessing, New(KindConflict, "stale"), "saga failed"),
			expected: KindProcessing,
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			expected: KindUnknown,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestFault_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	fault := Wrap(KindUnavailable, cause, "inventory unreachable")

	assert.Contains(t, fault.Error(), "inventory unreachable")
	assert.Contains(t, fault.Error(), "connection refused")
	assert.Equal(t, cause, errors.Cause(fault.Unwrap()))
	assert.True(t, IsKind(fault, KindUnavailable))
	assert.False(t, IsKind(fault, KindConflict))
}

func TestNewf(t *testing.T) {
	fault := Newf(KindNotFound, "order %s not found", "ORD-1")
	assert.Equal(t, "order ORD-1 not found", fault.Error())
	assert.Equal(t, KindNotFound, fault.Kind())
}
