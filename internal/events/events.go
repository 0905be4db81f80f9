// Package events defines the Kafka topics and payloads this service produces
// and consumes.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicBookingEvents  = "booking-events"
	TopicReviewEvents   = "review-events"
	TopicPropertyEvents = "property-events"
)

// Produced event types.
const (
	BookingCreated            = "booking.created"
	BookingConfirmed          = "booking.confirmed"
	BookingCancelled          = "booking.cancelled"
	BookingCompleted          = "booking.completed"
	BookingRescheduleProposed = "booking.reschedule_proposed"
	BookingCounterProposed    = "booking.counter_proposed"
	BookingProposalAccepted   = "booking.proposal_accepted"
	ReviewSubmitted           = "review.submitted"
)

// Consumed event types.
const (
	PropertyCreated = "property.created"
	PropertyUpdated = "property.updated"
	PropertyDeleted = "property.deleted"
)

// Source is the CloudEvents source of everything this service publishes.
const Source = "service-booking"

// BookingEvent is published on every lifecycle transition.
type BookingEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	PropertyID uuid.UUID `json:"property_id"`
	BrokerID   uuid.UUID `json:"broker_id"`
	ClientID   uuid.UUID `json:"client_id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status,omitempty"`
	Status     string    `json:"status"`
	VisitDate  string    `json:"visit_date"`
	VisitTime  string    `json:"visit_time"`
	Message    string    `json:"message,omitempty"`
	Round      int       `json:"round"`
	Version    int64     `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ReviewSubmittedEvent is published once per accepted review.
type ReviewSubmittedEvent struct {
	ReviewID       uuid.UUID `json:"review_id"`
	BookingID      uuid.UUID `json:"booking_id"`
	BrokerID       uuid.UUID `json:"broker_id"`
	PropertyID     uuid.UUID `json:"property_id"`
	ClientID       uuid.UUID `json:"client_id"`
	BrokerRating   int       `json:"broker_rating"`
	PropertyRating int       `json:"property_rating"`
	PropertyTaken  bool      `json:"property_taken"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// PropertyEvent is emitted by the property service.
type PropertyEvent struct {
	PropertyID uuid.UUID `json:"property_id"`
	BrokerID   uuid.UUID `json:"broker_id"`
	Title      string    `json:"title"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	PriceCents int64     `json:"price_cents"`
	OccurredAt time.Time `json:"occurred_at"`
}
