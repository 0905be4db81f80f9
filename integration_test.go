//go:build integration

package main_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerconnect/service-booking/internal/application"
	"github.com/brokerconnect/service-booking/internal/events"
	"github.com/brokerconnect/service-booking/pkg/apperror"
	"github.com/brokerconnect/service-booking/pkg/kafka"
)

func createRequest(brokerID, propertyID uuid.UUID) application.CreateBookingRequest {
	return application.CreateBookingRequest{
		BrokerID:    brokerID,
		PropertyID:  propertyID,
		VisitDate:   "2025-03-01",
		VisitTime:   "14:00",
		ClientName:  "Integration Client",
		ClientPhone: "+1 555 0100",
	}
}

// TestNegotiation_PersistsAndPublishes runs a full reschedule exchange against
// Postgres and checks the history rows and the final Kafka event.
func TestNegotiation_PersistsAndPublishes(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()
	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	ctx := context.Background()
	clientID, brokerID := uuid.New(), uuid.New()

	created, err := stack.Bookings.CreateBooking(ctx, clientID, createRequest(brokerID, uuid.New()))
	require.NoError(t, err)

	_, err = stack.Bookings.Reschedule(ctx, brokerCaller(brokerID), created.ID, application.RescheduleRequest{
		VisitDate: "2025-03-02", VisitTime: "10:00", Message: "conflict", ExpectedStatus: "pending",
	})
	require.NoError(t, err)
	_, err = stack.Bookings.RespondToReschedule(ctx, clientCaller(clientID), created.ID, application.RescheduleResponseRequest{
		Action: application.ResponseCounter, VisitDate: "2025-03-03", VisitTime: "09:00",
	})
	require.NoError(t, err)
	final, err := stack.Bookings.UpdateStatus(ctx, brokerCaller(brokerID), created.ID, application.UpdateStatusRequest{Status: "confirmed"})
	require.NoError(t, err)

	assert.Equal(t, "confirmed", final.Status)
	assert.Equal(t, "2025-03-03", final.VisitDate)
	assert.Equal(t, "09:00", final.VisitTime)
	assert.Equal(t, int64(4), final.Version)

	history, err := stack.Bookings.ListProposals(ctx, clientCaller(clientID), created.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "broker", history[0].ProposedBy)
	assert.Equal(t, "client", history[1].ProposedBy)

	ce := consumeOneEvent(t, infra.KafkaBrokers, events.TopicBookingEvents, events.BookingProposalAccepted, 15*time.Second,
		func(ce kafka.CloudEvent) bool {
			var evt events.BookingEvent
			return ce.ParseData(&evt) == nil && evt.BookingID == created.ID
		})
	var evt events.BookingEvent
	require.NoError(t, ce.ParseData(&evt))
	assert.Equal(t, "counter_pending", evt.FromStatus)
	assert.Equal(t, "confirmed", evt.Status)
}

// TestConcurrentTransitions_OneWins races a confirm against a cancel.
func TestConcurrentTransitions_OneWins(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()
	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	ctx := context.Background()
	clientID, brokerID := uuid.New(), uuid.New()
	created, err := stack.Bookings.CreateBooking(ctx, clientID, createRequest(brokerID, uuid.New()))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	targets := []string{"confirmed", "cancelled"}
	for i, target := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = stack.Bookings.UpdateStatus(ctx, brokerCaller(brokerID), created.ID,
				application.UpdateStatusRequest{Status: target, ExpectedStatus: "pending"})
		}()
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, apperror.ErrStaleState) || errors.Is(err, apperror.ErrInvalidTransition), err)
	}
	assert.Equal(t, 1, wins)

	got, err := stack.Bookings.GetBooking(ctx, clientCaller(clientID), created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

// TestDuplicateActiveBooking_UniqueIndex checks the partial unique index
// frees the pair once the first booking is terminal.
func TestDuplicateActiveBooking_UniqueIndex(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()
	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	ctx := context.Background()
	clientID, brokerID, propertyID := uuid.New(), uuid.New(), uuid.New()

	first, err := stack.Bookings.CreateBooking(ctx, clientID, createRequest(brokerID, propertyID))
	require.NoError(t, err)
	_, err = stack.Bookings.CreateBooking(ctx, clientID, createRequest(brokerID, propertyID))
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = stack.Bookings.UpdateStatus(ctx, clientCaller(clientID), first.ID, application.UpdateStatusRequest{Status: "cancelled"})
	require.NoError(t, err)
	_, err = stack.Bookings.CreateBooking(ctx, clientID, createRequest(brokerID, propertyID))
	assert.NoError(t, err)
}

// TestReviewGate_Postgres reviews a completed booking once and lists it as taken.
func TestReviewGate_Postgres(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()
	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	ctx := context.Background()
	clientID, brokerID := uuid.New(), uuid.New()
	created, err := stack.Bookings.CreateBooking(ctx, clientID, createRequest(brokerID, uuid.New()))
	require.NoError(t, err)

	review := application.SubmitReviewRequest{BookingID: created.ID, BrokerRating: 5, PropertyRating: 4, PropertyTaken: true}
	_, err = stack.Reviews.SubmitReview(ctx, clientID, review)
	assert.ErrorIs(t, err, apperror.ErrConflict, "pending bookings cannot be reviewed")

	for _, target := range []string{"confirmed", "completed"} {
		_, err = stack.Bookings.UpdateStatus(ctx, brokerCaller(brokerID), created.ID, application.UpdateStatusRequest{Status: target})
		require.NoError(t, err)
	}

	_, err = stack.Reviews.SubmitReview(ctx, clientID, review)
	require.NoError(t, err)
	_, err = stack.Reviews.SubmitReview(ctx, clientID, review)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	has, err := stack.Reviews.HasReview(ctx, clientCaller(clientID), created.ID)
	require.NoError(t, err)
	assert.True(t, has.HasReview)

	taken, err := stack.Reviews.TakenProperties(ctx, clientID)
	require.NoError(t, err)
	require.Len(t, taken, 1)
	assert.Equal(t, created.PropertyID, taken[0].Property.ID)
}

// TestPropertyEvents_FeedOwnershipCheck publishes a property.created event and
// expects bookings against another broker's property to be rejected.
func TestPropertyEvents_FeedOwnershipCheck(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()
	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	propertyID, ownerID := uuid.New(), uuid.New()
	publishTestEvent(t, infra.KafkaBrokers, events.TopicPropertyEvents, "service-property", events.PropertyCreated,
		propertyID.String(), events.PropertyEvent{
			PropertyID: propertyID,
			BrokerID:   ownerID,
			Title:      "Harbour Loft",
			OccurredAt: time.Now().UTC(),
		})

	require.Eventually(t, func() bool {
		l, err := stack.Listings.FindByID(ctx, propertyID)
		return err == nil && l != nil
	}, 15*time.Second, 200*time.Millisecond, "projection was not updated")

	_, err := stack.Bookings.CreateBooking(ctx, uuid.New(), createRequest(uuid.New(), propertyID))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = stack.Bookings.CreateBooking(ctx, uuid.New(), createRequest(ownerID, propertyID))
	assert.NoError(t, err)
}
