package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	listingDomain "github.com/brokerconnect/service-booking/internal/domain/listing"
)

// ListingModel is the GORM model for the property_listings projection.
type ListingModel struct {
	PropertyID uuid.UUID `gorm:"type:uuid;primaryKey"`
	BrokerID   uuid.UUID `gorm:"type:uuid;index;not null"`
	Title      string    `gorm:"size:255"`
	Address    string    `gorm:"size:500"`
	City       string    `gorm:"size:120"`
	PriceCents int64     `gorm:"not null;default:0"`
	Removed    bool      `gorm:"not null;default:false"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (ListingModel) TableName() string {
	return "property_listings"
}

// GormListingRepository is the GORM-based implementation of ListingRepository.
type GormListingRepository struct {
	db *gorm.DB
}

// NewGormListingRepository creates a new GormListingRepository.
func NewGormListingRepository(db *gorm.DB) *GormListingRepository {
	return &GormListingRepository{db: db}
}

// Upsert inserts or refreshes a listing; older events never overwrite newer rows.
func (r *GormListingRepository) Upsert(ctx context.Context, l *listingDomain.Listing) error {
	m := ListingModel{
		PropertyID: l.PropertyID,
		BrokerID:   l.BrokerID,
		Title:      l.Title,
		Address:    l.Address,
		City:       l.City,
		PriceCents: l.PriceCents,
		Removed:    l.Removed,
		UpdatedAt:  l.UpdatedAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "property_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"broker_id", "title", "address", "city", "price_cents", "removed", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "property_listings.updated_at <= excluded.updated_at"},
		}},
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("failed to upsert listing: %w", err)
	}
	return nil
}

// MarkRemoved flags a property as deleted upstream.
func (r *GormListingRepository) MarkRemoved(ctx context.Context, propertyID uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&ListingModel{}).
		Where("property_id = ? AND updated_at <= ?", propertyID, at).
		Updates(map[string]interface{}{"removed": true, "updated_at": at}).Error
	if err != nil {
		return fmt.Errorf("failed to mark listing removed: %w", err)
	}
	return nil
}

// FindByID returns the listing, or nil when the projection has not seen it.
func (r *GormListingRepository) FindByID(ctx context.Context, propertyID uuid.UUID) (*listingDomain.Listing, error) {
	var models []ListingModel
	if err := r.db.WithContext(ctx).Where("property_id = ?", propertyID).Limit(1).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	return toDomainListing(&models[0]), nil
}

// FindByIDs returns the known listings keyed by property ID.
func (r *GormListingRepository) FindByIDs(ctx context.Context, propertyIDs []uuid.UUID) (map[uuid.UUID]*listingDomain.Listing, error) {
	out := make(map[uuid.UUID]*listingDomain.Listing, len(propertyIDs))
	if len(propertyIDs) == 0 {
		return out, nil
	}
	var models []ListingModel
	if err := r.db.WithContext(ctx).Where("property_id IN ?", propertyIDs).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find listings: %w", err)
	}
	for i := range models {
		out[models[i].PropertyID] = toDomainListing(&models[i])
	}
	return out, nil
}

func toDomainListing(m *ListingModel) *listingDomain.Listing {
	return &listingDomain.Listing{
		PropertyID: m.PropertyID,
		BrokerID:   m.BrokerID,
		Title:      m.Title,
		Address:    m.Address,
		City:       m.City,
		PriceCents: m.PriceCents,
		Removed:    m.Removed,
		UpdatedAt:  m.UpdatedAt,
	}
}
