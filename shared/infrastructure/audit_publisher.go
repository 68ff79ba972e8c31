package infrastructure

import (
	"context"

	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var _ events.Publisher = (*AuditPublisher)(nil)

// AuditPublisher decorates a Publisher with an audit trail: every event is
// appended to the event store before being handed to the underlying bus.
// The store append is part of the publish contract; an event that cannot be
// recorded is not published.
type AuditPublisher struct {
	store  events.EventStore
	next   events.Publisher
	logger *zap.Logger
}

// NewAuditPublisher creates a new AuditPublisher
func NewAuditPublisher(store events.EventStore, next events.Publisher, logger *zap.Logger) *AuditPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditPublisher{
		store:  store,
		next:   next,
		logger: logger,
	}
}

// Publish records the events in the audit store and forwards them to the bus
func (p *AuditPublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	if len(evts) == 0 {
		return nil
	}

	if err := p.store.Append(ctx, evts...); err != nil {
		return errors.Wrap(err, "failed to record events in audit store")
	}

	if err := p.next.Publish(ctx, evts...); err != nil {
		p.logger.Error("event bus publish failed after audit append",
			zap.Int("events", len(evts)),
			zap.Error(err),
		)
		return err
	}

	return nil
}
