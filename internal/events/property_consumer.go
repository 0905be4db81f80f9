package events

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/brokerconnect/service-booking/pkg/apperror"
	"github.com/brokerconnect/service-booking/pkg/kafka"
)

// PropertyProjector applies property lifecycle events to the listing projection.
type PropertyProjector interface {
	ApplyPropertyUpsert(ctx context.Context, evt PropertyEvent) error
	ApplyPropertyDeleted(ctx context.Context, evt PropertyEvent) error
}

// PropertyEventConsumer keeps the property ownership projection in sync with
// the property service.
type PropertyEventConsumer struct {
	consumer  *kafka.Consumer
	projector PropertyProjector
	logger    *zap.Logger
}

// NewPropertyEventConsumer creates a new PropertyEventConsumer.
func NewPropertyEventConsumer(
	brokers []string,
	groupID string,
	projector PropertyProjector,
	logger *zap.Logger,
) *PropertyEventConsumer {
	return &PropertyEventConsumer{
		consumer:  kafka.NewConsumer(brokers, groupID, TopicPropertyEvents, logger),
		projector: projector,
		logger:    logger,
	}
}

// Start begins consuming property events. This blocks until the context is cancelled.
func (c *PropertyEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *PropertyEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *PropertyEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from property topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // malformed messages are not retried
	}

	var apply func(context.Context, PropertyEvent) error
	switch cloudEvent.Type {
	case PropertyCreated, PropertyUpdated:
		apply = c.projector.ApplyPropertyUpsert
	case PropertyDeleted:
		apply = c.projector.ApplyPropertyDeleted
	default:
		c.logger.Debug("ignoring unhandled property event type", zap.String("type", cloudEvent.Type))
		return nil
	}

	var evt PropertyEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse PropertyEvent data", zap.String("type", cloudEvent.Type), zap.Error(err))
		return nil
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = cloudEvent.Time
	}

	if err := apply(ctx, evt); err != nil {
		if apperror.KindOf(err) == apperror.KindValidation {
			c.logger.Warn("dropping invalid property event",
				zap.String("type", cloudEvent.Type),
				zap.String("property_id", evt.PropertyID.String()),
				zap.Error(err),
			)
			return nil
		}
		c.logger.Error("failed to apply property event",
			zap.String("type", cloudEvent.Type),
			zap.String("property_id", evt.PropertyID.String()),
			zap.Error(err),
		)
		return err
	}

	c.logger.Debug("property projection updated",
		zap.String("type", cloudEvent.Type),
		zap.String("property_id", evt.PropertyID.String()),
	)
	return nil
}
