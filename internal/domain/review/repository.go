package review

import (
	"context"

	"github.com/google/uuid"
)

// ReviewRepository defines the persistence contract for reviews.
type ReviewRepository interface {
	// Save inserts a review. A second review for the same booking yields a conflict error.
	Save(ctx context.Context, r *Review) error

	// ExistsForBooking reports whether bookingID already has a review.
	ExistsForBooking(ctx context.Context, bookingID uuid.UUID) (bool, error)

	// FindByBroker returns a broker's reviews, newest first.
	FindByBroker(ctx context.Context, brokerID uuid.UUID) ([]*Review, error)

	// FindTakenByClient returns the client's reviews with propertyTaken set, newest first.
	FindTakenByClient(ctx context.Context, clientID uuid.UUID) ([]*Review, error)
}
