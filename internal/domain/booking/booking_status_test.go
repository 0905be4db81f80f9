package booking

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerconnect/service-booking/pkg/apperror"
)

var expectedEdges = map[transitionKey]BookingStatus{
	{ActorClient, statusNone, ActionCreate}:                      StatusPending,
	{ActorBroker, StatusPending, ActionConfirm}:                  StatusConfirmed,
	{ActorBroker, StatusPending, ActionCancel}:                   StatusCancelled,
	{ActorBroker, StatusPending, ActionProposeReschedule}:        StatusReschedulePending,
	{ActorBroker, StatusConfirmed, ActionMarkComplete}:           StatusCompleted,
	{ActorBroker, StatusCounterPending, ActionAccept}:            StatusConfirmed,
	{ActorBroker, StatusCounterPending, ActionProposeReschedule}: StatusReschedulePending,
	{ActorBroker, StatusCounterPending, ActionCancel}:            StatusCancelled,
	{ActorClient, StatusReschedulePending, ActionAccept}:         StatusConfirmed,
	{ActorClient, StatusReschedulePending, ActionCounterPropose}: StatusCounterPending,
}

func TestNextStatus_ExhaustiveTriples(t *testing.T) {
	froms := append([]BookingStatus{statusNone}, AllStatuses...)
	actors := []Actor{ActorClient, ActorBroker, Actor("admin")}

	legal := 0
	for _, actor := range actors {
		for _, from := range froms {
			for _, action := range AllActions {
				to, err := NextStatus(actor, from, action)
				want, ok := expectedEdges[transitionKey{actor, from, action}]
				if ok {
					legal++
					require.NoError(t, err, "%s %s %s", actor, from, action)
					assert.Equal(t, want, to)
					continue
				}

				require.Error(t, err, "%s %s %s", actor, from, action)
				assert.True(t, errors.Is(err, apperror.ErrInvalidTransition))

				var te *apperror.TransitionError
				require.True(t, errors.As(err, &te))
				assert.Equal(t, string(action), te.Action)
				assert.Equal(t, string(actor), te.Actor)
			}
		}
	}
	assert.Equal(t, len(expectedEdges), legal)
	assert.Len(t, validTransitions, len(expectedEdges))
}

func TestNextStatus_TerminalStatesHaveNoExits(t *testing.T) {
	for _, from := range []BookingStatus{StatusCompleted, StatusCancelled} {
		for _, actor := range []Actor{ActorClient, ActorBroker} {
			assert.Empty(t, AllowedActions(actor, from), "%s from %s", actor, from)
		}
	}
}

func TestNextStatus_NegotiationNeverSelfLoops(t *testing.T) {
	for k, to := range validTransitions {
		if k.from == StatusReschedulePending || k.from == StatusCounterPending {
			assert.NotEqual(t, k.from, to, "%v", k)
		}
	}
}

func TestAllowedActions(t *testing.T) {
	assert.Equal(t,
		[]Action{ActionConfirm, ActionCancel, ActionProposeReschedule},
		AllowedActions(ActorBroker, StatusPending))
	assert.Empty(t, AllowedActions(ActorClient, StatusPending))
	assert.Equal(t,
		[]Action{ActionAccept, ActionCounterPropose},
		AllowedActions(ActorClient, StatusReschedulePending))
	assert.Equal(t,
		[]Action{ActionCancel, ActionProposeReschedule, ActionAccept},
		AllowedActions(ActorBroker, StatusCounterPending))
}

func TestActionForTargetStatus(t *testing.T) {
	tests := []struct {
		from   BookingStatus
		target BookingStatus
		want   Action
	}{
		{StatusPending, StatusConfirmed, ActionConfirm},
		{StatusCounterPending, StatusConfirmed, ActionAccept},
		{StatusReschedulePending, StatusConfirmed, ActionAccept},
		{StatusPending, StatusCancelled, ActionCancel},
		{StatusConfirmed, StatusCompleted, ActionMarkComplete},
	}
	for _, tt := range tests {
		got, err := ActionForTargetStatus(ActorBroker, tt.from, tt.target)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	for _, target := range []BookingStatus{StatusPending, StatusReschedulePending, StatusCounterPending, "bogus"} {
		_, err := ActionForTargetStatus(ActorBroker, StatusPending, target)
		assert.ErrorIs(t, err, apperror.ErrInvalidTransition, "target %s", target)
	}
}

func TestParseBookingStatus(t *testing.T) {
	s, err := ParseBookingStatus("counter_pending")
	require.NoError(t, err)
	assert.Equal(t, StatusCounterPending, s)
	assert.True(t, s.IsActive())

	_, err = ParseBookingStatus("declined")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
