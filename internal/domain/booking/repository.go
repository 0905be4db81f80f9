package booking

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows participant booking lists.
type ListFilter struct {
	Status     BookingStatus
	PropertyID *uuid.UUID
	Page       int
	Limit      int
}

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindActiveByClientAndProperty returns the non-terminal booking of a client
	// for a property, or nil when there is none.
	FindActiveByClientAndProperty(ctx context.Context, clientID, propertyID uuid.UUID) (*Booking, error)

	// FindByClientID retrieves a client's bookings, newest first.
	FindByClientID(ctx context.Context, clientID uuid.UUID, filter ListFilter) ([]*Booking, int64, error)

	// FindByBrokerID retrieves a broker's bookings, newest first.
	FindByBrokerID(ctx context.Context, brokerID uuid.UUID, filter ListFilter) ([]*Booking, int64, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, filter ListFilter) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking. A second active booking for the same
	// client and property yields a conflict error.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes with optimistic locking. A version mismatch
	// yields a stale state error.
	Update(ctx context.Context, booking *Booking) error

	// UpdateWithProposal persists a negotiation step and its history entry atomically.
	UpdateWithProposal(ctx context.Context, booking *Booking, entry ProposalEntry) error

	// ListProposals returns a booking's negotiation history, oldest first.
	ListProposals(ctx context.Context, bookingID uuid.UUID) ([]ProposalEntry, error)
}
