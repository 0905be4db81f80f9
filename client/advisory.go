package client

import (
	"github.com/google/uuid"

	bookingDomain "github.com/brokerconnect/service-booking/internal/domain/booking"
	"github.com/brokerconnect/service-booking/pkg/apperror"
)

const (
	actionAccept            = bookingDomain.ActionAccept
	actionCounterPropose    = bookingDomain.ActionCounterPropose
	actionProposeReschedule = bookingDomain.ActionProposeReschedule
)

// AllowedActions lists what the session user may do next with b, from the
// same transition table the server enforces.
func (s *Session) AllowedActions(b Booking) []bookingDomain.Action {
	actor, ok := s.actorFor(b)
	if !ok {
		return nil
	}
	return bookingDomain.AllowedActions(actor, bookingDomain.BookingStatus(b.Status))
}

func (s *Session) actorFor(b Booking) (bookingDomain.Actor, bool) {
	u := s.User()
	if u == nil {
		return "", false
	}
	switch u.ID {
	case b.ClientID:
		return bookingDomain.ActorClient, true
	case b.BrokerID:
		return bookingDomain.ActorBroker, true
	}
	return "", false
}

// cached returns the cached booking and the caller's actor on it, if both are known.
func (c *Client) cached(id uuid.UUID) (Booking, bookingDomain.Actor, bool) {
	if c.cache == nil {
		return Booking{}, "", false
	}
	b, ok := c.cache.Booking(id)
	if !ok {
		return Booking{}, "", false
	}
	actor, ok := c.session.actorFor(b)
	if !ok {
		return Booking{}, "", false
	}
	return b, actor, true
}

// checkAction fails fast with an invalid transition when the cached booking
// rules the action out. Without a cached copy the server decides.
func (c *Client) checkAction(id uuid.UUID, action bookingDomain.Action) error {
	b, actor, ok := c.cached(id)
	if !ok {
		return nil
	}
	from := bookingDomain.BookingStatus(b.Status)
	if !bookingDomain.CanPerform(actor, from, action) {
		return apperror.NewInvalidTransitionError(string(action), string(from), string(actor))
	}
	return nil
}

// checkTarget maps a requested status to its action and checks it like checkAction.
func (c *Client) checkTarget(id uuid.UUID, target string) error {
	b, actor, ok := c.cached(id)
	if !ok {
		return nil
	}
	status, err := bookingDomain.ParseBookingStatus(target)
	if err != nil {
		return err
	}
	from := bookingDomain.BookingStatus(b.Status)
	action, err := bookingDomain.ActionForTargetStatus(actor, from, status)
	if err != nil {
		return err
	}
	if !bookingDomain.CanPerform(actor, from, action) {
		return apperror.NewInvalidTransitionError(string(action), string(from), string(actor))
	}
	return nil
}
