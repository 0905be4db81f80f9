package booking

import (
	"fmt"

	"github.com/brokerconnect/service-booking/pkg/apperror"
)

// BookingStatus is the persisted name of a lifecycle state.
type BookingStatus string

const (
	StatusPending           BookingStatus = "pending"
	StatusConfirmed         BookingStatus = "confirmed"
	StatusReschedulePending BookingStatus = "reschedule_pending"
	StatusCounterPending    BookingStatus = "counter_pending"
	StatusCompleted         BookingStatus = "completed"
	StatusCancelled         BookingStatus = "cancelled"
)

// AllStatuses lists every lifecycle state.
var AllStatuses = []BookingStatus{
	StatusPending,
	StatusConfirmed,
	StatusReschedulePending,
	StatusCounterPending,
	StatusCompleted,
	StatusCancelled,
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// IsTerminal returns true for completed and cancelled.
func (s BookingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsActive returns true while the booking still occupies the client+property pair.
func (s BookingStatus) IsActive() bool {
	return s.IsValid() && !s.IsTerminal()
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning an error if invalid.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", apperror.NewValidationError(fmt.Sprintf("invalid booking status: %s", s))
	}
	return status, nil
}

// Actor is the role that triggers a transition.
type Actor string

const (
	ActorClient Actor = "client"
	ActorBroker Actor = "broker"
)

// IsValid reports whether a is a participant role.
func (a Actor) IsValid() bool {
	return a == ActorClient || a == ActorBroker
}

// Counterparty returns the other participant.
func (a Actor) Counterparty() Actor {
	if a == ActorBroker {
		return ActorClient
	}
	return ActorBroker
}

// Action is a lifecycle operation.
type Action string

const (
	ActionCreate            Action = "create"
	ActionConfirm           Action = "confirm"
	ActionCancel            Action = "cancel"
	ActionProposeReschedule Action = "propose-reschedule"
	ActionMarkComplete      Action = "mark-complete"
	ActionAccept            Action = "accept"
	ActionCounterPropose    Action = "counter-propose"
)

// AllActions lists every lifecycle operation.
var AllActions = []Action{
	ActionCreate,
	ActionConfirm,
	ActionCancel,
	ActionProposeReschedule,
	ActionMarkComplete,
	ActionAccept,
	ActionCounterPropose,
}

// statusNone is the source state of the create action.
const statusNone BookingStatus = ""

type transitionKey struct {
	actor  Actor
	from   BookingStatus
	action Action
}

// validTransitions is the complete lifecycle graph. Triples not listed are rejected.
var validTransitions = map[transitionKey]BookingStatus{
	{ActorClient, statusNone, ActionCreate}: StatusPending,

	{ActorBroker, StatusPending, ActionConfirm}:           StatusConfirmed,
	{ActorBroker, StatusPending, ActionCancel}:            StatusCancelled,
	{ActorBroker, StatusPending, ActionProposeReschedule}: StatusReschedulePending,
	{ActorBroker, StatusConfirmed, ActionMarkComplete}:    StatusCompleted,

	{ActorBroker, StatusCounterPending, ActionAccept}:            StatusConfirmed,
	{ActorBroker, StatusCounterPending, ActionProposeReschedule}: StatusReschedulePending,
	{ActorBroker, StatusCounterPending, ActionCancel}:            StatusCancelled,

	{ActorClient, StatusReschedulePending, ActionAccept}:         StatusConfirmed,
	{ActorClient, StatusReschedulePending, ActionCounterPropose}: StatusCounterPending,
}

// NextStatus returns the state reached when actor performs action from status from.
func NextStatus(actor Actor, from BookingStatus, action Action) (BookingStatus, error) {
	to, ok := validTransitions[transitionKey{actor, from, action}]
	if !ok {
		fromName := string(from)
		if from == statusNone {
			fromName = "none"
		}
		return "", apperror.NewInvalidTransitionError(string(action), fromName, string(actor))
	}
	return to, nil
}

// CanPerform reports whether actor may perform action from status from.
func CanPerform(actor Actor, from BookingStatus, action Action) bool {
	_, ok := validTransitions[transitionKey{actor, from, action}]
	return ok
}

// AllowedActions returns the actions actor may perform from status from, in AllActions order.
func AllowedActions(actor Actor, from BookingStatus) []Action {
	var out []Action
	for _, a := range AllActions {
		if CanPerform(actor, from, a) {
			out = append(out, a)
		}
	}
	return out
}

// ActionForTargetStatus maps a requested status of the status endpoint to an action.
// Negotiation states are never settable directly.
func ActionForTargetStatus(actor Actor, from, target BookingStatus) (Action, error) {
	switch target {
	case StatusConfirmed:
		if from == StatusReschedulePending || from == StatusCounterPending {
			return ActionAccept, nil
		}
		return ActionConfirm, nil
	case StatusCancelled:
		return ActionCancel, nil
	case StatusCompleted:
		return ActionMarkComplete, nil
	default:
		return "", apperror.NewInvalidTransitionError("set-status:"+string(target), string(from), string(actor))
	}
}
