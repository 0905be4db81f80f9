package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	reviewDomain "github.com/brokerconnect/service-booking/internal/domain/review"
	"github.com/brokerconnect/service-booking/pkg/apperror"
)

// ReviewModel is the GORM model for the reviews table.
type ReviewModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	BrokerID        uuid.UUID `gorm:"type:uuid;index;not null"`
	PropertyID      uuid.UUID `gorm:"type:uuid;index;not null"`
	ClientID        uuid.UUID `gorm:"type:uuid;index;not null"`
	BrokerRating    int       `gorm:"not null"`
	BrokerComment   string    `gorm:"type:text"`
	PropertyRating  int       `gorm:"not null"`
	PropertyComment string    `gorm:"type:text"`
	PropertyTaken   bool      `gorm:"not null;default:false"`
	CreatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (ReviewModel) TableName() string {
	return "reviews"
}

// GormReviewRepository is the GORM-based implementation of ReviewRepository.
type GormReviewRepository struct {
	db *gorm.DB
}

// NewGormReviewRepository creates a new GormReviewRepository.
func NewGormReviewRepository(db *gorm.DB) *GormReviewRepository {
	return &GormReviewRepository{db: db}
}

// Save inserts a review; the unique booking_id index rejects a second one.
func (r *GormReviewRepository) Save(ctx context.Context, rv *reviewDomain.Review) error {
	if err := r.db.WithContext(ctx).Create(toReviewModel(rv)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperror.NewConflictError("this booking has already been reviewed")
		}
		return fmt.Errorf("failed to save review: %w", err)
	}
	return nil
}

// ExistsForBooking reports whether a review exists for bookingID.
func (r *GormReviewRepository) ExistsForBooking(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&ReviewModel{}).
		Where("booking_id = ?", bookingID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check review existence: %w", err)
	}
	return count > 0, nil
}

// FindByBroker returns a broker's reviews, newest first.
func (r *GormReviewRepository) FindByBroker(ctx context.Context, brokerID uuid.UUID) ([]*reviewDomain.Review, error) {
	return r.find(r.db.WithContext(ctx).Where("broker_id = ?", brokerID))
}

// FindTakenByClient returns the client's reviews flagged propertyTaken, newest first.
func (r *GormReviewRepository) FindTakenByClient(ctx context.Context, clientID uuid.UUID) ([]*reviewDomain.Review, error) {
	return r.find(r.db.WithContext(ctx).Where("client_id = ? AND property_taken = ?", clientID, true))
}

func (r *GormReviewRepository) find(q *gorm.DB) ([]*reviewDomain.Review, error) {
	var models []ReviewModel
	if err := q.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find reviews: %w", err)
	}
	out := make([]*reviewDomain.Review, len(models))
	for i, m := range models {
		out[i] = reviewDomain.ReconstructReview(
			m.ID, m.BookingID, m.BrokerID, m.PropertyID, m.ClientID,
			reviewDomain.Ratings{
				BrokerRating:    m.BrokerRating,
				BrokerComment:   m.BrokerComment,
				PropertyRating:  m.PropertyRating,
				PropertyComment: m.PropertyComment,
			},
			m.PropertyTaken,
			m.CreatedAt,
		)
	}
	return out, nil
}

func toReviewModel(rv *reviewDomain.Review) *ReviewModel {
	return &ReviewModel{
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
