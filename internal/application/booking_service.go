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
	"github.com/brokerconnect/service-booking/internal/events"
	"github.com/brokerconnect/service-booking/internal/notify"
	"github.com/brokerconnect/service-booking/pkg/apperror"
	"github.com/brokerconnect/service-booking/pkg/auth"
	"github.com/brokerconnect/service-booking/pkg/kafka"
	"github.com/brokerconnect/service-booking/pkg/metrics"
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, ce kafka.CloudEvent) error
}

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	repo      bookingDomain.BookingRepository
	listings  listingDomain.ListingRepository
	cache     cache.Cache
	publisher EventPublisher
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	policy    bookingDomain.NegotiationPolicy
	logger    *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repo bookingDomain.BookingRepository,
	listings listingDomain.ListingRepository,
	c cache.Cache,
	publisher EventPublisher,
	notifier notify.Notifier,
	m *metrics.Metrics,
	policy bookingDomain.NegotiationPolicy,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:      repo,
		listings:  listings,
		cache:     c,
		publisher: publisher,
		notifier:  notifier,
		metrics:   m,
		policy:    policy,
		logger:    logger,
	}
}

// CreateBooking creates a pending booking for the calling client.
func (s *BookingService) CreateBooking(ctx context.Context, clientID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	schedule, err := bookingDomain.NewSchedule(req.VisitDate, req.VisitTime)
	if err != nil {
		return nil, err
	}

	if err := s.checkListing(ctx, req.PropertyID, req.BrokerID); err != nil {
		return nil, err
	}

	// Advisory pre-check; the partial unique index is the actual guard.
	existing, err := s.repo.FindActiveByClientAndProperty(ctx, clientID, req.PropertyID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.NewConflictError(
			fmt.Sprintf("an active booking (%s) already exists for this property", existing.ID()))
	}

	bk, err := bookingDomain.NewBooking(
		clientID,
		req.BrokerID,
		req.PropertyID,
		schedule,
		req.ClientName,
		req.ClientPhone,
		req.Message,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, bk); err != nil {
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	s.logger.Info("booking created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("property_id", bk.PropertyID().String()),
		zap.String("client_id", clientID.String()),
	)
	s.metrics.TransitionApplied(string(bookingDomain.ActionCreate), string(bk.Status()))
	s.afterTransition(ctx, bk, bookingDomain.ActorClient, bookingDomain.ActionCreate, "")

	result := toBookingDTO(bk)
	return &result, nil
}

// checkListing rejects bookings against properties the projection knows to be
// removed or owned by another broker. Unknown properties pass: the projection
// may lag behind the property service.
func (s *BookingService) checkListing(ctx context.Context, propertyID, brokerID uuid.UUID) error {
	l, err := s.listings.FindByID(ctx, propertyID)
	if err != nil {
		return err
	}
	if l == nil {
		s.logger.Debug("property not in projection yet", zap.String("property_id", propertyID.String()))
		return nil
	}
	if l.Removed {
		return apperror.NewValidationError("property is no longer listed")
	}
	if !l.IsOwnedBy(brokerID) {
		return apperror.NewValidationError("broker does not manage this property")
	}
	return nil
}

// GetBooking returns a booking visible to the caller, served read-through from the cache.
func (s *BookingService) GetBooking(ctx context.Context, caller Caller, bookingID uuid.UUID) (*BookingDTO, error) {
	var dto BookingDTO
	key := cache.BookingKey(bookingID)
	found, err := s.cache.Get(ctx, key, &dto)
	if err != nil {
		s.logger.Warn("booking cache read failed", zap.String("key", key), zap.Error(err))
		found = false
	}

	if !found {
		bk, err := s.repo.FindByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		dto = toBookingDTO(bk)
		if _, err := s.cache.SetIfNewer(ctx, key, dto.Version, dto); err != nil {
			s.logger.Warn("booking cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	if caller.Role != auth.RoleAdmin && caller.UserID != dto.ClientID && caller.UserID != dto.BrokerID {
		return nil, apperror.NewForbiddenError("booking does not belong to this user")
	}
	return &dto, nil
}

// ListClientBookings returns the caller's bookings as a client.
func (s *BookingService) ListClientBookings(ctx context.Context, clientID uuid.UUID, filter bookingDomain.ListFilter) (*apperror.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repo.FindByClientID(ctx, clientID, filter)
	if err != nil {
		return nil, err
	}
	result := apperror.NewPaginatedResult(toBookingDTOs(bookings), total, filter.Page, filter.Limit)
	return &result, nil
}

// ListBrokerBookings returns the bookings of the caller's properties.
func (s *BookingService) ListBrokerBookings(ctx context.Context, brokerID uuid.UUID, filter bookingDomain.ListFilter) (*apperror.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repo.FindByBrokerID(ctx, brokerID, filter)
	if err != nil {
		return nil, err
	}
	result := apperror.NewPaginatedResult(toBookingDTOs(bookings), total, filter.Page, filter.Limit)
	return &result, nil
}

// UpdateStatus applies the action implied by the requested target status.
func (s *BookingService) UpdateStatus(ctx context.Context, caller Caller, bookingID uuid.UUID, req UpdateStatusRequest) (*BookingDTO, error) {
	target, err := bookingDomain.ParseBookingStatus(req.Status)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, caller, bookingID, req.ExpectedStatus, func(bk *bookingDomain.Booking, actor bookingDomain.Actor) (bookingDomain.Action, *bookingDomain.Proposal, error) {
		action, err := bookingDomain.ActionForTargetStatus(actor, bk.Status(), target)
		if err != nil {
			return action, nil, err
		}
		return action, nil, bk.Perform(actor, action)
	})
}

// Reschedule records a broker proposal.
func (s *BookingService) Reschedule(ctx context.Context, caller Caller, bookingID uuid.UUID, req RescheduleRequest) (*BookingDTO, error) {
	schedule, err := bookingDomain.NewSchedule(req.VisitDate, req.VisitTime)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, caller, bookingID, req.ExpectedStatus, func(bk *bookingDomain.Booking, actor bookingDomain.Actor) (bookingDomain.Action, *bookingDomain.Proposal, error) {
		p, err := bk.ProposeReschedule(actor, schedule, req.Message, s.policy)
		if err != nil {
			return bookingDomain.ActionProposeReschedule, nil, err
		}
		return bookingDomain.ActionProposeReschedule, &p, nil
	})
}

// RespondToReschedule lets the client accept or counter a broker proposal.
func (s *BookingService) RespondToReschedule(ctx context.Context, caller Caller, bookingID uuid.UUID, req RescheduleResponseRequest) (*BookingDTO, error) {
	switch req.Action {
	case ResponseAccept:
		return s.mutate(ctx, caller, bookingID, req.ExpectedStatus, func(bk *bookingDomain.Booking, actor bookingDomain.Actor) (bookingDomain.Action, *bookingDomain.Proposal, error) {
			if actor != bookingDomain.ActorClient {
				return bookingDomain.ActionAccept, nil, apperror.NewInvalidTransitionError(
					string(bookingDomain.ActionAccept), string(bk.Status()), string(actor))
			}
			return bookingDomain.ActionAccept, nil, bk.Accept(actor)
		})
	case ResponseCounter:
		schedule, err := bookingDomain.NewSchedule(req.VisitDate, req.VisitTime)
		if err != nil {
			return nil, err
		}
		return s.mutate(ctx, caller, bookingID, req.ExpectedStatus, func(bk *bookingDomain.Booking, actor bookingDomain.Actor) (bookingDomain.Action, *bookingDomain.Proposal, error) {
			p, err := bk.CounterPropose(actor, schedule, req.Message, s.policy)
			if err != nil {
				return bookingDomain.ActionCounterPropose, nil, err
			}
			return bookingDomain.ActionCounterPropose, &p, nil
		})
	default:
		return nil, apperror.NewValidationError(fmt.Sprintf("unknown reschedule response action: %s", req.Action))
	}
}

// ListProposals returns the negotiation history of a booking visible to the caller.
func (s *BookingService) ListProposals(ctx context.Context, caller Caller, bookingID uuid.UUID) ([]ProposalEntryDTO, error) {
	if _, err := s.GetBooking(ctx, caller, bookingID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListProposals(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	out := make([]ProposalEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = toProposalEntryDTO(e)
	}
	return out, nil
}

type transitionFunc func(bk *bookingDomain.Booking, actor bookingDomain.Actor) (bookingDomain.Action, *bookingDomain.Proposal, error)

// mutate runs one transition as a compare-and-swap against the latest
// persisted booking: it always re-reads, and the versioned update fails with
// a stale state error if another request won the race.
func (s *BookingService) mutate(ctx context.Context, caller Caller, bookingID uuid.UUID, expectedStatus string, apply transitionFunc) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	actor, ok := bk.ActorOf(caller.UserID)
	if !ok || string(actor) != string(caller.Role) {
		return nil, apperror.NewForbiddenError("only the booking's client or broker may change it")
	}

	from := bk.Status()
	if expectedStatus != "" && expectedStatus != string(from) {
		s.metrics.TransitionRejected("", string(apperror.KindStaleState))
		return nil, apperror.NewStaleStateError(
			fmt.Sprintf("booking is %s, not %s; reload and try again", from, expectedStatus))
	}

	action, proposal, err := apply(bk, actor)
	if err != nil {
		s.metrics.TransitionRejected(string(action), string(apperror.KindOf(err)))
		s.logger.Info("booking transition rejected",
			zap.String("booking_id", bookingID.String()),
			zap.String("actor", string(actor)),
			zap.String("action", string(action)),
			zap.String("status", string(from)),
			zap.Error(err),
		)
		return nil, err
	}

	bk.IncrementVersion()
	if proposal != nil {
		err = s.repo.UpdateWithProposal(ctx, bk, bookingDomain.NewProposalEntry(bk, *proposal))
	} else {
		err = s.repo.Update(ctx, bk)
	}
	if err != nil {
		s.metrics.TransitionRejected(string(action), string(apperror.KindOf(err)))
		return nil, err
	}

	s.logger.Info("booking transition applied",
		zap.String("booking_id", bookingID.String()),
		zap.String("actor", string(actor)),
		zap.String("action", string(action)),
		zap.String("from", string(from)),
		zap.String("to", string(bk.Status())),
		zap.Int64("version", bk.Version()),
	)
	s.metrics.TransitionApplied(string(action), string(bk.Status()))
	s.afterTransition(ctx, bk, actor, action, from)

	result := toBookingDTO(bk)
	return &result, nil
}

// afterTransition refreshes derived state and fans the change out. Failures
// here are logged; the transition itself is already committed.
func (s *BookingService) afterTransition(ctx context.Context, bk *bookingDomain.Booking, actor bookingDomain.Actor, action bookingDomain.Action, from bookingDomain.BookingStatus) {
	key := cache.BookingKey(bk.ID())
	if _, err := s.cache.SetIfNewer(ctx, key, bk.Version(), toBookingDTO(bk)); err != nil {
		s.logger.Warn("failed to refresh booking cache", zap.String("booking_id", bk.ID().String()), zap.Error(err))
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to invalidate booking cache", zap.String("booking_id", bk.ID().String()), zap.Error(err))
		}
	}

	now := time.Now().UTC()
	evt := events.BookingEvent{
		BookingID:  bk.ID(),
		PropertyID: bk.PropertyID(),
		BrokerID:   bk.BrokerID(),
		ClientID:   bk.ClientID(),
		Actor:      string(actor),
		Action:     string(action),
		FromStatus: string(from),
		Status:     string(bk.Status()),
		VisitDate:  bk.Schedule().DateString(),
		VisitTime:  bk.Schedule().Time,
		Message:    bk.Message(),
		Round:      bk.Rounds(),
		Version:    bk.Version(),
		OccurredAt: now,
	}
	s.publishEvent(ctx, events.TopicBookingEvents, eventTypeFor(action), bk.ID().String(), evt)

	recipient := bk.BrokerID()
	if actor == bookingDomain.ActorBroker {
		recipient = bk.ClientID()
	}
	next, awaiting := bookingDomain.AwaitingResponseFrom(bk.Stage())
	notice := notify.Notice{
		BookingID:     bk.ID(),
		RecipientID:   recipient,
		RecipientRole: string(actor.Counterparty()),
		Event:         string(action),
		Status:        string(bk.Status()),
		YourTurn:      awaiting && next == actor.Counterparty(),
		VisitDate:     bk.Schedule().DateString(),
		VisitTime:     bk.Schedule().Time,
		Message:       bk.Message(),
		OccurredAt:    now,
	}
	if err := s.notifier.Notify(ctx, notice); err != nil {
		s.logger.Warn("failed to notify counterparty",
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err),
		)
	}
}

func eventTypeFor(action bookingDomain.Action) string {
	switch action {
	case bookingDomain.ActionCreate:
		return events.BookingCreated
	case bookingDomain.ActionConfirm:
		return events.BookingConfirmed
	case bookingDomain.ActionCancel:
		return events.BookingCancelled
	case bookingDomain.ActionMarkComplete:
		return events.BookingCompleted
	case bookingDomain.ActionProposeReschedule:
		return events.BookingRescheduleProposed
	case bookingDomain.ActionCounterPropose:
		return events.BookingCounterProposed
	default:
		return events.BookingProposalAccepted
	}
}

// --- Admin methods ---

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, filter bookingDomain.ListFilter) ([]BookingDTO, int64, error) {
	bookings, total, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return toBookingDTOs(bookings), total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// --- Helpers ---

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}

func (s *BookingService) publishEvent(ctx context.Context, topic, eventType, key string, data interface{}) {
	if s.publisher == nil {
		return
	}
	cloudEvent, err := kafka.NewCloudEvent(events.Source, eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := s.publisher.PublishEvent(ctx, topic, key, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
