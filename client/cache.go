package client

import (
	"sync"

	"github.com/google/uuid"
)

// BookingCache keeps the last fetched bookings and the review flags the
// server has confirmed. Every mutation invalidates the bookings; review flags
// only ever flip to true and survive until logout.
type BookingCache struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]Booking
	list     []Booking
	hasList  bool
	reviewed map[uuid.UUID]bool
}

// NewBookingCache creates an empty cache.
func NewBookingCache() *BookingCache {
	return &BookingCache{
		bookings: make(map[uuid.UUID]Booking),
		reviewed: make(map[uuid.UUID]bool),
	}
}

// Booking returns a cached booking.
func (bc *BookingCache) Booking(id uuid.UUID) (Booking, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	b, ok := bc.bookings[id]
	return b, ok
}

// PutBooking stores one booking.
func (bc *BookingCache) PutBooking(b Booking) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.bookings[b.ID] = b
}

// List returns the cached role list.
func (bc *BookingCache) List() ([]Booking, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if !bc.hasList {
		return nil, false
	}
	return append([]Booking(nil), bc.list...), true
}

// PutList replaces the role list and indexes its bookings.
func (bc *BookingCache) PutList(list []Booking) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.list = append([]Booking(nil), list...)
	bc.hasList = true
	for _, b := range list {
		bc.bookings[b.ID] = b
	}
}

// Reviewed reports whether the booking is known to be reviewed.
func (bc *BookingCache) Reviewed(id uuid.UUID) bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.reviewed[id]
}

// SetReviewed records a review.
func (bc *BookingCache) SetReviewed(id uuid.UUID) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.reviewed[id] = true
}

// Invalidate drops the bookings and the list.
func (bc *BookingCache) Invalidate() {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.bookings = make(map[uuid.UUID]Booking)
	bc.list = nil
	bc.hasList = false
}

// Clear drops everything, review flags included.
func (bc *BookingCache) Clear() {
	bc.Invalidate()
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.reviewed = make(map[uuid.UUID]bool)
}
