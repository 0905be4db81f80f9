package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brokerconnect/service-booking/internal/cache"
	bookingDomain "github.com/brokerconnect/service-booking/internal/domain/booking"
	listingDomain "github.com/brokerconnect/service-booking/internal/domain/listing"
	reviewDomain "github.com/brokerconnect/service-booking/internal/domain/review"
	"github.com/brokerconnect/service-booking/internal/events"
	"github.com/brokerconnect/service-booking/pkg/apperror"
	"github.com/brokerconnect/service-booking/pkg/auth"
	"github.com/brokerconnect/service-booking/pkg/kafka"
	"github.com/brokerconnect/service-booking/pkg/metrics"
)

// SubmitReviewRequest is the body of POST /reviews.
type SubmitReviewRequest struct {
	BookingID       uuid.UUID  `json:"bookingId" binding:"required"`
	BrokerID        *uuid.UUID `json:"brokerId"`
	PropertyID      *uuid.UUID `json:"propertyId"`
	BrokerRating    int        `json:"brokerRating" binding:"required,min=1,max=5"`
	BrokerComment   string     `json:"brokerComment" binding:"max=2000"`
	PropertyRating  int        `json:"propertyRating" binding:"required,min=1,max=5"`
	PropertyComment string     `json:"propertyComment" binding:"max=2000"`
	PropertyTaken   bool       `json:"propertyTaken"`
}

// ReviewDTO is the response representation of a review.
type ReviewDTO struct {
	ID              uuid.UUID `json:"id"`
	BookingID       uuid.UUID `json:"booking_id"`
	BrokerID        uuid.UUID `json:"broker_id"`
	PropertyID      uuid.UUID `json:"property_id"`
	ClientID        uuid.UUID `json:"client_id"`
	BrokerRating    int       `json:"broker_rating"`
	BrokerComment   string    `json:"broker_comment"`
	PropertyRating  int       `json:"property_rating"`
	PropertyComment string    `json:"property_comment"`
	PropertyTaken   bool      `json:"property_taken"`
	CreatedAt       time.Time `json:"created_at"`
}

// HasReviewDTO is the body of GET /reviews/booking/{id}.
type HasReviewDTO struct {
	HasReview bool `json:"hasReview"`
}

// BrokerReviewsDTO lists a broker's reviews with their average.
type BrokerReviewsDTO struct {
	BrokerID      uuid.UUID   `json:"broker_id"`
	AverageRating float64     `json:"average_rating"`
	TotalReviews  int         `json:"total_reviews"`
	Reviews       []ReviewDTO `json:"reviews"`
}

// PropertySummaryDTO is what the projection knows of a property.
type PropertySummaryDTO struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title,omitempty"`
	Address    string    `json:"address,omitempty"`
	City       string    `json:"city,omitempty"`
	PriceCents int64     `json:"price_cents,omitempty"`
	Listed     bool      `json:"listed"`
}

// TakenPropertyDTO is one entry of the client's "My Properties" view.
type TakenPropertyDTO struct {
	Property PropertySummaryDTO `json:"property"`
	BrokerID uuid.UUID          `json:"broker_id"`
	Review   ReviewDTO          `json:"review"`
}

// ReviewService enforces the review gate and serves review reads.
type ReviewService struct {
	reviews   reviewDomain.ReviewRepository
	bookings  bookingDomain.BookingRepository
	listings  listingDomain.ListingRepository
	cache     cache.Cache
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewReviewService creates a new ReviewService.
func NewReviewService(
	reviews reviewDomain.ReviewRepository,
	bookings bookingDomain.BookingRepository,
	listings listingDomain.ListingRepository,
	c cache.Cache,
	publisher EventPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:   reviews,
		bookings:  bookings,
		listings:  listings,
		cache:     c,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// SubmitReview records the single review of a completed booking.
func (s *ReviewService) SubmitReview(ctx context.Context, clientID uuid.UUID, req SubmitReviewRequest) (*ReviewDTO, error) {
	bk, err := s.bookings.FindByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if bk.ClientID() != clientID {
		return nil, apperror.NewForbiddenError("only the booking's client may review it")
	}
	if bk.Status() != bookingDomain.StatusCompleted {
		return nil, apperror.NewConflictError(
			fmt.Sprintf("only completed bookings can be reviewed; booking is %s", bk.Status()))
	}
	if req.BrokerID != nil && *req.BrokerID != bk.BrokerID() {
		return nil, apperror.NewValidationError("brokerId does not match the booking")
	}
	if req.PropertyID != nil && *req.PropertyID != bk.PropertyID() {
		return nil, apperror.NewValidationError("propertyId does not match the booking")
	}

	exists, err := s.reviews.ExistsForBooking(ctx, bk.ID())
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperror.NewConflictError("this booking has already been reviewed")
	}

	rv, err := reviewDomain.NewReview(bk.ID(), bk.BrokerID(), bk.PropertyID(), clientID, reviewDomain.Ratings{
		BrokerRating:    req.BrokerRating,
		BrokerComment:   req.BrokerComment,
		PropertyRating:  req.PropertyRating,
		PropertyComment: req.PropertyComment,
	}, req.PropertyTaken)
	if err != nil {
		return nil, err
	}

	// The unique booking_id index turns a racing duplicate into a conflict here.
	if err := s.reviews.Save(ctx, rv); err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cache.ReviewExistsKey(bk.ID()), true); err != nil {
		s.logger.Warn("failed to update review cache", zap.String("booking_id", bk.ID().String()), zap.Error(err))
	}
	s.metrics.ReviewSubmitted()
	s.logger.Info("review submitted",
		zap.String("review_id", rv.ID().String()),
		zap.String("booking_id", bk.ID().String()),
		zap.Bool("property_taken", rv.PropertyTaken()),
	)

	s.publishReviewSubmitted(ctx, rv)

	result := toReviewDTO(rv)
	return &result, nil
}

// HasReview reports whether a booking has been reviewed, read-through the cache.
func (s *ReviewService) HasReview(ctx context.Context, caller Caller, bookingID uuid.UUID) (*HasReviewDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if caller.Role != auth.RoleAdmin && caller.UserID != bk.ClientID() && caller.UserID != bk.BrokerID() {
		return nil, apperror.NewForbiddenError("booking does not belong to this user")
	}

	key := cache.ReviewExistsKey(bookingID)
	var cached bool
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("review cache read failed", zap.String("key", key), zap.Error(err))
	}
	if found && err == nil {
		return &HasReviewDTO{HasReview: cached}, nil
	}

	exists, err := s.reviews.ExistsForBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	// Only positive answers are cached: a review can appear but never disappear.
	if exists {
		if err := s.cache.Set(ctx, key, true); err != nil {
			s.logger.Warn("review cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return &HasReviewDTO{HasReview: exists}, nil
}

// BrokerReviews lists a broker's reviews and their average broker rating.
func (s *ReviewService) BrokerReviews(ctx context.Context, brokerID uuid.UUID) (*BrokerReviewsDTO, error) {
	reviews, err := s.reviews.FindByBroker(ctx, brokerID)
	if err != nil {
		return nil, err
	}
	dtos := make([]ReviewDTO, len(reviews))
	for i, rv := range reviews {
		dtos[i] = toReviewDTO(rv)
	}
	return &BrokerReviewsDTO{
		BrokerID:      brokerID,
		AverageRating: reviewDomain.AverageBrokerRating(reviews),
		TotalReviews:  len(reviews),
		Reviews:       dtos,
	}, nil
}

// TakenProperties returns the property+broker+review bundles of the client's
// reviews submitted with propertyTaken.
func (s *ReviewService) TakenProperties(ctx context.Context, clientID uuid.UUID) ([]TakenPropertyDTO, error) {
	reviews, err := s.reviews.FindTakenByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(reviews))
	for _, rv := range reviews {
		ids = append(ids, rv.PropertyID())
	}
	listings, err := s.listings.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]TakenPropertyDTO, len(reviews))
	for i, rv := range reviews {
		summary := PropertySummaryDTO{ID: rv.PropertyID()}
		if l, ok := listings[rv.PropertyID()]; ok {
			summary.Title = l.Title
			summary.Address = l.Address
			summary.City = l.City
			summary.PriceCents = l.PriceCents
			summary.Listed = !l.Removed
		}
		out[i] = TakenPropertyDTO{
			Property: summary,
			BrokerID: rv.BrokerID(),
			Review:   toReviewDTO(rv),
		}
	}
	return out, nil
}

func toReviewDTO(rv *reviewDomain.Review) ReviewDTO {
	return ReviewDTO{
		ID:              rv.ID(),
		BookingID:       rv.BookingID(),
		BrokerID:        rv.BrokerID(),
		PropertyID:      rv.PropertyID(),
		ClientID:        rv.ClientID(),
		BrokerRating:    rv.BrokerRating(),
		BrokerComment:   rv.BrokerComment(),
		PropertyRating:  rv.PropertyRating(),
		PropertyComment: rv.PropertyComment(),
		PropertyTaken:   rv.PropertyTaken(),
		CreatedAt:       rv.CreatedAt(),
	}
}

func (s *ReviewService) publishReviewSubmitted(ctx context.Context, rv *reviewDomain.Review) {
	if s.publisher == nil {
		return
	}
	evt := events.ReviewSubmittedEvent{
		ReviewID:       rv.ID(),
		BookingID:      rv.BookingID(),
		BrokerID:       rv.BrokerID(),
		PropertyID:     rv.PropertyID(),
		ClientID:       rv.ClientID(),
		BrokerRating:   rv.BrokerRating(),
		PropertyRating: rv.PropertyRating(),
		PropertyTaken:  rv.PropertyTaken(),
		OccurredAt:     time.Now().UTC(),
	}
	ce, err := kafka.NewCloudEvent(events.Source, events.ReviewSubmitted, evt)
	if err != nil {
		s.logger.Error("failed to create cloud event", zap.String("event_type", events.ReviewSubmitted), zap.Error(err))
		return
	}
	if err := s.publisher.PublishEvent(ctx, events.TopicReviewEvents, rv.BookingID().String(), ce); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", events.TopicReviewEvents),
			zap.String("event_type", events.ReviewSubmitted),
			zap.Error(err),
		)
	}
}
