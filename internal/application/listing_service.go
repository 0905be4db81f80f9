package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	listingDomain "github.com/brokerconnect/service-booking/internal/domain/listing"
	"github.com/brokerconnect/service-booking/internal/events"
	"github.com/brokerconnect/service-booking/pkg/apperror"
)

// ListingService maintains the property ownership projection.
type ListingService struct {
	repo   listingDomain.ListingRepository
	logger *zap.Logger
}

// NewListingService creates a new ListingService.
func NewListingService(repo listingDomain.ListingRepository, logger *zap.Logger) *ListingService {
	return &ListingService{repo: repo, logger: logger}
}

// ApplyPropertyUpsert records a created or updated property.
func (s *ListingService) ApplyPropertyUpsert(ctx context.Context, evt events.PropertyEvent) error {
	if evt.PropertyID == uuid.Nil || evt.BrokerID == uuid.Nil {
		return apperror.NewValidationError("property event without property or broker ID")
	}
	at := evt.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.repo.Upsert(ctx, &listingDomain.Listing{
		PropertyID: evt.PropertyID,
		BrokerID:   evt.BrokerID,
		Title:      evt.Title,
		Address:    evt.Address,
		City:       evt.City,
		PriceCents: evt.PriceCents,
		UpdatedAt:  at.UTC(),
	})
}

// ApplyPropertyDeleted marks a property removed.
func (s *ListingService) ApplyPropertyDeleted(ctx context.Context, evt events.PropertyEvent) error {
	at := evt.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.repo.MarkRemoved(ctx, evt.PropertyID, at.UTC())
}
