// Package notify tells the other participant of a booking that something
// changed and whether it is now their turn.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notice is the message delivered to a booking participant.
type Notice struct {
	BookingID     uuid.UUID `json:"booking_id"`
	RecipientID   uuid.UUID `json:"recipient_id"`
	RecipientRole string    `json:"recipient_role"`
	Event         string    `json:"event"`
	Status        string    `json:"status"`
	YourTurn      bool      `json:"your_turn"`
	VisitDate     string    `json:"visit_date"`
	VisitTime     string    `json:"visit_time"`
	Message       string    `json:"message,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// RoutingKey is "booking.<role>.<event>".
func (n Notice) RoutingKey() string {
	return fmt.Sprintf("booking.%s.%s", n.RecipientRole, n.Event)
}

// Notifier delivers notices.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// JSONPublisher is satisfied by *rabbitmq.Publisher.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// AMQPNotifier publishes notices to a RabbitMQ topic exchange.
type AMQPNotifier struct {
	pub    JSONPublisher
	logger *zap.Logger
}

// NewAMQPNotifier creates an AMQPNotifier.
func NewAMQPNotifier(pub JSONPublisher, logger *zap.Logger) *AMQPNotifier {
	return &AMQPNotifier{pub: pub, logger: logger}
}

// Notify implements Notifier.
func (a *AMQPNotifier) Notify(ctx context.Context, n Notice) error {
	if err := a.pub.PublishJSON(ctx, n.RoutingKey(), n); err != nil {
		return fmt.Errorf("failed to publish notice: %w", err)
	}
	a.logger.Debug("notice published",
		zap.String("booking_id", n.BookingID.String()),
		zap.String("routing_key", n.RoutingKey()),
	)
	return nil
}

// LogNotifier only logs notices; used when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(_ context.Context, n Notice) error {
	l.logger.Info("booking notice",
		zap.String("booking_id", n.BookingID.String()),
		zap.String("recipient_id", n.RecipientID.String()),
		zap.String("event", n.Event),
		zap.Bool("your_turn", n.YourTurn),
	)
	return nil
}
