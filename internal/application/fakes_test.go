package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/brokerconnect/service-booking/internal/domain/booking"
	listingDomain "github.com/brokerconnect/service-booking/internal/domain/listing"
	reviewDomain "github.com/brokerconnect/service-booking/internal/domain/review"
	"github.com/brokerconnect/service-booking/internal/notify"
	"github.com/brokerconnect/service-booking/pkg/apperror"
	"github.com/brokerconnect/service-booking/pkg/kafka"
)

func cloneBooking(b *bookingDomain.Booking) *bookingDomain.Booking {
	return bookingDomain.ReconstructBooking(
		b.ID(), b.PropertyID(), b.BrokerID(), b.ClientID(),
		b.ClientName(), b.ClientPhone(), b.Schedule(), b.Message(),
		b.Stage(), b.Rounds(), b.Version(), b.CreatedAt(), b.UpdatedAt(),
	)
}

// fakeBookingRepo mimics the versioned update and the active-pair unique index.
type fakeBookingRepo struct {
	mu        sync.Mutex
	bookings  map[uuid.UUID]*bookingDomain.Booking
	proposals map[uuid.UUID][]bookingDomain.ProposalEntry
	// beforeUpdate runs inside Update, simulating a concurrent writer.
	beforeUpdate func(id uuid.UUID)
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{
		bookings:  make(map[uuid.UUID]*bookingDomain.Booking),
		proposals: make(map[uuid.UUID][]bookingDomain.ProposalEntry),
	}
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, apperror.NewNotFoundError("Booking", id.String())
	}
	return cloneBooking(b), nil
}

func (r *fakeBookingRepo) FindActiveByClientAndProperty(_ context.Context, clientID, propertyID uuid.UUID) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.ClientID() == clientID && b.PropertyID() == propertyID && b.Status().IsActive() {
			return cloneBooking(b), nil
		}
	}
	return nil, nil
}

func (r *fakeBookingRepo) filter(match func(*bookingDomain.Booking) bool, f bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, b := range r.bookings {
		if !match(b) {
			continue
		}
		if f.Status != "" && b.Status() != f.Status {
			continue
		}
		if f.PropertyID != nil && b.PropertyID() != *f.PropertyID {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) FindByClientID(_ context.Context, clientID uuid.UUID, f bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	return r.filter(func(b *bookingDomain.Booking) bool { return b.ClientID() == clientID }, f)
}

func (r *fakeBookingRepo) FindByBrokerID(_ context.Context, brokerID uuid.UUID, f bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	return r.filter(func(b *bookingDomain.Booking) bool { return b.BrokerID() == brokerID }, f)
}

func (r *fakeBookingRepo) ListAll(_ context.Context, f bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	return r.filter(func(*bookingDomain.Booking) bool { return true }, f)
}

func (r *fakeBookingRepo) CountByStatus(context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, b := range r.bookings {
		counts[string(b.Status())]++
	}
	return counts, nil
}

func (r *fakeBookingRepo) Save(_ context.Context, b *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.bookings {
		if existing.ClientID() == b.ClientID() && existing.PropertyID() == b.PropertyID() && existing.Status().IsActive() {
			return apperror.NewConflictError("an active booking already exists for this property")
		}
	}
	r.bookings[b.ID()] = cloneBooking(b)
	return nil
}

func (r *fakeBookingRepo) Update(_ context.Context, b *bookingDomain.Booking) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate(b.ID())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateLocked(b)
}

func (r *fakeBookingRepo) updateLocked(b *bookingDomain.Booking) error {
	stored, ok := r.bookings[b.ID()]
	if !ok || stored.Version() != b.Version()-1 {
		return apperror.NewStaleStateError("booking was modified by another request; reload and try again")
	}
	r.bookings[b.ID()] = cloneBooking(b)
	return nil
}

func (r *fakeBookingRepo) UpdateWithProposal(_ context.Context, b *bookingDomain.Booking, e bookingDomain.ProposalEntry) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate(b.ID())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.updateLocked(b); err != nil {
		return err
	}
	r.proposals[b.ID()] = append(r.proposals[b.ID()], e)
	return nil
}

func (r *fakeBookingRepo) ListProposals(_ context.Context, id uuid.UUID) ([]bookingDomain.ProposalEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bookingDomain.ProposalEntry(nil), r.proposals[id]...), nil
}

// bumpVersion simulates another writer committing first.
func (r *fakeBookingRepo) bumpVersion(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.bookings[id]
	b.IncrementVersion()
}

type fakeReviewRepo struct {
	mu      sync.Mutex
	reviews []*reviewDomain.Review
}

func (r *fakeReviewRepo) Save(_ context.Context, rv *reviewDomain.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reviews {
		if existing.BookingID() == rv.BookingID() {
			return apperror.NewConflictError("this booking has already been reviewed")
		}
	}
	r.reviews = append(r.reviews, rv)
	return nil
}

func (r *fakeReviewRepo) ExistsForBooking(_ context.Context, bookingID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rv := range r.reviews {
		if rv.BookingID() == bookingID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeReviewRepo) FindByBroker(_ context.Context, brokerID uuid.UUID) ([]*reviewDomain.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*reviewDomain.Review
	for _, rv := range r.reviews {
		if rv.BrokerID() == brokerID {
			out = append(out, rv)
		}
	}
	return out, nil
}

func (r *fakeReviewRepo) FindTakenByClient(_ context.Context, clientID uuid.UUID) ([]*reviewDomain.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*reviewDomain.Review
	for _, rv := range r.reviews {
		if rv.ClientID() == clientID && rv.PropertyTaken() {
			out = append(out, rv)
		}
	}
	return out, nil
}

type fakeListingRepo struct {
	mu       sync.Mutex
	listings map[uuid.UUID]*listingDomain.Listing
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{listings: make(map[uuid.UUID]*listingDomain.Listing)}
}

func (r *fakeListingRepo) Upsert(_ context.Context, l *listingDomain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.listings[l.PropertyID]; ok && cur.UpdatedAt.After(l.UpdatedAt) {
		return nil
	}
	cp := *l
	r.listings[l.PropertyID] = &cp
	return nil
}

func (r *fakeListingRepo) MarkRemoved(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.listings[id]; ok && !cur.UpdatedAt.After(at) {
		cur.Removed = true
		cur.UpdatedAt = at
	}
	return nil
}

func (r *fakeListingRepo) FindByID(_ context.Context, id uuid.UUID) (*listingDomain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.listings[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeListingRepo) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*listingDomain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]*listingDomain.Listing)
	for _, id := range ids {
		if l, ok := r.listings[id]; ok {
			cp := *l
			out[id] = &cp
		}
	}
	return out, nil
}

type publishedEvent struct {
	topic string
	key   string
	event kafka.CloudEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, key string, ce kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, key: key, event: ce})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.event.Type
	}
	return out
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notify.Notice
}

func (n *recordingNotifier) Notify(_ context.Context, notice notify.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

func (n *recordingNotifier) last() notify.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notices[len(n.notices)-1]
}
