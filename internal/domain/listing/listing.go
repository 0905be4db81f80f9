// Package listing is the local projection of property ownership, fed by the
// property service's events.
package listing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Listing is the subset of a property this service needs.
type Listing struct {
	PropertyID uuid.UUID
	BrokerID   uuid.UUID
	Title      string
	Address    string
	City       string
	PriceCents int64
	Removed    bool
	UpdatedAt  time.Time
}

// IsOwnedBy reports whether brokerID manages the property.
func (l *Listing) IsOwnedBy(brokerID uuid.UUID) bool {
	return l.BrokerID == brokerID
}

// ListingRepository persists the projection.
type ListingRepository interface {
	// Upsert stores l unless a newer version is already stored.
	Upsert(ctx context.Context, l *Listing) error

	// MarkRemoved flags a property as deleted upstream.
	MarkRemoved(ctx context.Context, propertyID uuid.UUID, at time.Time) error

	// FindByID returns the listing, or nil when unknown.
	FindByID(ctx context.Context, propertyID uuid.UUID) (*Listing, error)

	// FindByIDs returns the known listings keyed by property ID.
	FindByIDs(ctx context.Context, propertyIDs []uuid.UUID) (map[uuid.UUID]*Listing, error)
}
