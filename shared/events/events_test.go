package events

import (
	"testing"

	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic_Matches(t *testing.T) {
	tests := []struct {
		topic   string
		pattern string
		matches bool
	}{
		{"order.created", "order.created", true},
		{"order.created", "order.*", true},
		{"order.status.changed", "order.*", false},
		{"order.status.changed", "order.*.changed", true},
		{"order.created", "#", true},
		{"product.stock.low", "#", true},
		{"order.created", "reservation.*", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic+" vs "+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.matches, Topic(tt.topic).Matches(Topic(tt.pattern)))
		})
	}
}

func TestNewEvent(t *testing.T) {
	aggregateID := models.GenerateUUID()
	event := NewEvent(aggregateID, OrderCreatedEvent, map[string]string{"order_number": "ORD-1"})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, aggregateID, event.AggregateID)
	assert.Equal(t, OrderCreatedEvent, event.EventType)
	assert.Equal(t, Topic(OrderCreatedEvent), event.Topic)
	assert.False(t, event.Timestamp.IsZero())
}

func TestEvent_UnmarshalPayload(t *testing.T) {
	type payload struct {
		OrderNumber string `json:"order_number"`
	}

	event := NewEvent(models.GenerateUUID(), OrderCreatedEvent, payload{OrderNumber: "ORD-1"})

	// Same-type payloads are copied directly
	var direct payload
	require.NoError(t, event.UnmarshalPayload(&direct))
	assert.Equal(t, "ORD-1", direct.OrderNumber)

	// Raw JSON payloads go through the decoder, as they do after transport
	event.Data = []byte(`{"order_number":"ORD-2"}`)
	var decoded payload
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, "ORD-2", decoded.OrderNumber)

	assert.Error(t, event.UnmarshalPayload(payload{}))
}

func TestEvent_Clone(t *testing.T) {
	event := NewEvent(models.GenerateUUID(), OrderCreatedEvent, "data")
	event.WithMetadata("source", "order-service")

	clone := event.Clone()
	clone.Metadata.Set("source", "changed")

	source, _ := event.Metadata.Get("source")
	assert.Equal(t, "order-service", source)
}
