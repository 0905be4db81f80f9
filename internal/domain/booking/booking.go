package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brokerconnect/service-booking/pkg/apperror"
)

const (
	maxMessageLength = 1000
	maxNameLength    = 120
)

// Booking is the aggregate root for a property visit request.
type Booking struct {
	id          uuid.UUID
	propertyID  uuid.UUID
	brokerID    uuid.UUID
	clientID    uuid.UUID
	clientName  string
	clientPhone string

	schedule Schedule
	message  string
	stage    Stage
	rounds   int

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewBooking creates a new Booking aggregate with status=pending.
func NewBooking(
	clientID uuid.UUID,
	brokerID uuid.UUID,
	propertyID uuid.UUID,
	schedule Schedule,
	clientName string,
	clientPhone string,
	message string,
) (*Booking, error) {
	if clientID == uuid.Nil {
		return nil, apperror.NewValidationError("client ID is required")
	}
	if brokerID == uuid.Nil {
		return nil, apperror.NewValidationError("broker ID is required")
	}
	if propertyID == uuid.Nil {
		return nil, apperror.NewValidationError("property ID is required")
	}
	if clientID == brokerID {
		return nil, apperror.NewValidationError("a broker cannot book their own property")
	}
	if schedule.Time == "" || schedule.Date.IsZero() {
		return nil, apperror.NewValidationError("visit date and visit time are required")
	}
	clientName = strings.TrimSpace(clientName)
	if clientName == "" {
		return nil, apperror.NewValidationError("client name is required")
	}
	if len(clientName) > maxNameLength {
		return nil, apperror.NewValidationError("client name is too long")
	}
	if strings.TrimSpace(clientPhone) == "" {
		return nil, apperror.NewValidationError("client phone is required")
	}
	if err := validateMessage(message); err != nil {
		return nil, err
	}

	to, err := NextStatus(ActorClient, statusNone, ActionCreate)
	if err != nil {
		return nil, err
	}
	if to != StatusPending {
		return nil, fmt.Errorf("create must yield pending, got %s", to)
	}

	now := time.Now().UTC()
	return &Booking{
		id:          uuid.New(),
		propertyID:  propertyID,
		brokerID:    brokerID,
		clientID:    clientID,
		clientName:  clientName,
		clientPhone: strings.TrimSpace(clientPhone),
		schedule:    schedule,
		message:     message,
		stage:       Pending{},
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	propertyID uuid.UUID,
	brokerID uuid.UUID,
	clientID uuid.UUID,
	clientName string,
	clientPhone string,
	schedule Schedule,
	message string,
	stage Stage,
	rounds int,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:          id,
		propertyID:  propertyID,
		brokerID:    brokerID,
		clientID:    clientID,
		clientName:  clientName,
		clientPhone: clientPhone,
		schedule:    schedule,
		message:     message,
		stage:       stage,
		rounds:      rounds,
		version:     version,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// PropertyID returns the booked property.
func (b *Booking) PropertyID() uuid.UUID { return b.propertyID }

// BrokerID returns the broker that manages the property.
func (b *Booking) BrokerID() uuid.UUID { return b.brokerID }

// ClientID returns the client that requested the visit.
func (b *Booking) ClientID() uuid.UUID { return b.clientID }

// ClientName returns the contact name given at creation.
func (b *Booking) ClientName() string { return b.clientName }

// ClientPhone returns the contact phone given at creation.
func (b *Booking) ClientPhone() string { return b.clientPhone }

// Schedule returns the currently proposed visit.
func (b *Booking) Schedule() Schedule { return b.schedule }

// Message returns the note attached to the current stage.
func (b *Booking) Message() string { return b.message }

// Stage returns the lifecycle stage.
func (b *Booking) Stage() Stage { return b.stage }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.stage.Status() }

// Rounds returns how many proposals have been made.
func (b *Booking) Rounds() int { return b.rounds }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// ActorOf returns the participant role of userID on this booking.
func (b *Booking) ActorOf(userID uuid.UUID) (Actor, bool) {
	switch userID {
	case b.clientID:
		return ActorClient, true
	case b.brokerID:
		return ActorBroker, true
	default:
		return "", false
	}
}

// CurrentProposal returns the pending proposal in a negotiation stage.
func (b *Booking) CurrentProposal() (Proposal, bool) {
	switch st := b.stage.(type) {
	case ReschedulePending:
		return st.Proposal, true
	case CounterPending:
		return st.Proposal, true
	default:
		return Proposal{}, false
	}
}

// --- Behavior ---

// Confirm accepts a pending request as scheduled.
func (b *Booking) Confirm(actor Actor) error {
	if _, err := NextStatus(actor, b.Status(), ActionConfirm); err != nil {
		return err
	}
	b.setStage(Confirmed{})
	return nil
}

// Accept resolves a negotiation round at the proposed schedule.
func (b *Booking) Accept(actor Actor) error {
	if _, err := NextStatus(actor, b.Status(), ActionAccept); err != nil {
		return err
	}
	b.setStage(Confirmed{})
	return nil
}

// Cancel ends the booking.
func (b *Booking) Cancel(actor Actor) error {
	if _, err := NextStatus(actor, b.Status(), ActionCancel); err != nil {
		return err
	}
	b.setStage(Cancelled{By: actor, At: time.Now().UTC()})
	return nil
}

// MarkComplete records that a confirmed visit took place.
func (b *Booking) MarkComplete(actor Actor) error {
	if _, err := NextStatus(actor, b.Status(), ActionMarkComplete); err != nil {
		return err
	}
	b.setStage(Completed{At: time.Now().UTC()})
	return nil
}

// ProposeReschedule replaces the schedule with a broker proposal.
func (b *Booking) ProposeReschedule(actor Actor, schedule Schedule, note string, policy NegotiationPolicy) (Proposal, error) {
	return b.propose(actor, ActionProposeReschedule, schedule, note, policy)
}

// CounterPropose replaces the schedule with a client counter-proposal.
func (b *Booking) CounterPropose(actor Actor, schedule Schedule, note string, policy NegotiationPolicy) (Proposal, error) {
	return b.propose(actor, ActionCounterPropose, schedule, note, policy)
}

// Perform applies a schedule-free action by name.
func (b *Booking) Perform(actor Actor, action Action) error {
	switch action {
	case ActionConfirm:
		return b.Confirm(actor)
	case ActionAccept:
		return b.Accept(actor)
	case ActionCancel:
		return b.Cancel(actor)
	case ActionMarkComplete:
		return b.MarkComplete(actor)
	default:
		return apperror.NewInvalidTransitionError(string(action), string(b.Status()), string(actor))
	}
}

func (b *Booking) propose(actor Actor, action Action, schedule Schedule, note string, policy NegotiationPolicy) (Proposal, error) {
	to, err := NextStatus(actor, b.Status(), action)
	if err != nil {
		return Proposal{}, err
	}
	if schedule.Time == "" || schedule.Date.IsZero() {
		return Proposal{}, apperror.NewValidationError("visit date and visit time are required")
	}
	if err := validateMessage(note); err != nil {
		return Proposal{}, err
	}
	if err := policy.Allow(b.rounds); err != nil {
		return Proposal{}, err
	}

	p := Proposal{By: actor, Schedule: schedule, Note: note, At: time.Now().UTC()}
	b.schedule = schedule
	b.message = note
	b.rounds++
	if to == StatusReschedulePending {
		b.setStage(ReschedulePending{Proposal: p})
	} else {
		b.setStage(CounterPending{Proposal: p})
	}
	return p, nil
}

func (b *Booking) setStage(s Stage) {
	b.stage = s
	b.updatedAt = time.Now().UTC()
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
}

func validateMessage(msg string) error {
	if len(msg) > maxMessageLength {
		return apperror.NewValidationError(fmt.Sprintf("message must be at most %d characters", maxMessageLength))
	}
	return nil
}
