package review

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brokerconnect/service-booking/pkg/apperror"
)

const (
	MinRating        = 1
	MaxRating        = 5
	maxCommentLength = 2000
)

// Review is a client's one-time assessment of a completed visit. It is immutable once created.
type Review struct {
	id              uuid.UUID
	bookingID       uuid.UUID
	brokerID        uuid.UUID
	propertyID      uuid.UUID
	clientID        uuid.UUID
	brokerRating    int
	brokerComment   string
	propertyRating  int
	propertyComment string
	propertyTaken   bool
	createdAt       time.Time
}

// Ratings groups the two independent scores and their comments.
type Ratings struct {
	BrokerRating    int
	BrokerComment   string
	PropertyRating  int
	PropertyComment string
}

// NewReview validates ratings and creates a Review.
func NewReview(bookingID, brokerID, propertyID, clientID uuid.UUID, r Ratings, propertyTaken bool) (*Review, error) {
	if bookingID == uuid.Nil || brokerID == uuid.Nil || propertyID == uuid.Nil || clientID == uuid.Nil {
		return nil, apperror.NewValidationError("booking, broker, property and client IDs are required")
	}
	if err := validateRating("broker", r.BrokerRating); err != nil {
		return nil, err
	}
	if err := validateRating("property", r.PropertyRating); err != nil {
		return nil, err
	}
	if len(r.BrokerComment) > maxCommentLength || len(r.PropertyComment) > maxCommentLength {
		return nil, apperror.NewValidationError(fmt.Sprintf("comments must be at most %d characters", maxCommentLength))
	}

	return &Review{
		id:              uuid.New(),
		bookingID:       bookingID,
		brokerID:        brokerID,
		propertyID:      propertyID,
		clientID:        clientID,
		brokerRating:    r.BrokerRating,
		brokerComment:   r.BrokerComment,
		propertyRating:  r.PropertyRating,
		propertyComment: r.PropertyComment,
		propertyTaken:   propertyTaken,
		createdAt:       time.Now().UTC(),
	}, nil
}

// ReconstructReview rebuilds a Review from persistence data (no validation).
func ReconstructReview(
	id, bookingID, brokerID, propertyID, clientID uuid.UUID,
	r Ratings,
	propertyTaken bool,
	createdAt time.Time,
) *Review {
	return &Review{
		id:              id,
		bookingID:       bookingID,
		brokerID:        brokerID,
		propertyID:      propertyID,
		clientID:        clientID,
		brokerRating:    r.BrokerRating,
		brokerComment:   r.BrokerComment,
		propertyRating:  r.PropertyRating,
		propertyComment: r.PropertyComment,
		propertyTaken:   propertyTaken,
		createdAt:       createdAt,
	}
}

func validateRating(name string, v int) error {
	if v < MinRating || v > MaxRating {
		return apperror.NewValidationError(fmt.Sprintf("%s rating must be between %d and %d", name, MinRating, MaxRating))
	}
	return nil
}

func (r *Review) ID() uuid.UUID           { return r.id }
func (r *Review) BookingID() uuid.UUID    { return r.bookingID }
func (r *Review) BrokerID() uuid.UUID     { return r.brokerID }
func (r *Review) PropertyID() uuid.UUID   { return r.propertyID }
func (r *Review) ClientID() uuid.UUID     { return r.clientID }
func (r *Review) Ratings() Ratings        { return Ratings{r.brokerRating, r.brokerComment, r.propertyRating, r.propertyComment} }
func (r *Review) PropertyTaken() bool     { return r.propertyTaken }
func (r *Review) CreatedAt() time.Time    { return r.createdAt }
func (r *Review) BrokerRating() int       { return r.brokerRating }
func (r *Review) PropertyRating() int     { return r.propertyRating }
func (r *Review) BrokerComment() string   { return r.brokerComment }
func (r *Review) PropertyComment() string { return r.propertyComment }

// AverageBrokerRating returns the mean broker rating, 0 for no reviews.
func AverageBrokerRating(reviews []*Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.brokerRating
	}
	return float64(sum) / float64(len(reviews))
}
