package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brokerconnect/service-booking/internal/cache"
	bookingDomain "github.com/brokerconnect/service-booking/internal/domain/booking"
	listingDomain "github.com/brokerconnect/service-booking/internal/domain/listing"
	"github.com/brokerconnect/service-booking/internal/events"
	"github.com/brokerconnect/service-booking/pkg/apperror"
)

type reviewFixture struct {
	*bookingFixture
	reviews *fakeReviewRepo
	rsvc    *ReviewService
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	bf := newBookingFixture(t, bookingDomain.Unbounded)
	rf := &reviewFixture{bookingFixture: bf, reviews: &fakeReviewRepo{}}
	rf.rsvc = NewReviewService(rf.reviews, bf.repo, bf.listings, bf.cache, bf.publisher, nil, zap.NewNop())
	return rf
}

func (f *reviewFixture) completedBooking(t *testing.T) *BookingDTO {
	t.Helper()
	ctx := context.Background()
	created := f.create(t, "2025-03-01", "14:00")
	_, err := f.svc.UpdateStatus(ctx, f.broker, created.ID, UpdateStatusRequest{Status: "confirmed"})
	require.NoError(t, err)
	dto, err := f.svc.UpdateStatus(ctx, f.broker, created.ID, UpdateStatusRequest{Status: "completed"})
	require.NoError(t, err)
	return dto
}

func TestReviewService_ScenarioD(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t)
	bk := f.completedBooking(t)
	assert.Equal(t, "completed", bk.Status)
	require.NoError(t, f.listings.Upsert(ctx, listingFor(bk, "Sea View Flat")))

	has, err := f.rsvc.HasReview(ctx, f.client, bk.ID)
	require.NoError(t, err)
	assert.False(t, has.HasReview)

	req := SubmitReviewRequest{
		BookingID:      bk.ID,
		BrokerID:       &bk.BrokerID,
		PropertyID:     &bk.PropertyID,
		BrokerRating:   5,
		PropertyRating: 4,
		PropertyTaken:  true,
	}
	rv, err := f.rsvc.SubmitReview(ctx, f.client.UserID, req)
	require.NoError(t, err)
	assert.Equal(t, 5, rv.BrokerRating)

	has, err = f.rsvc.HasReview(ctx, f.client, bk.ID)
	require.NoError(t, err)
	assert.True(t, has.HasReview)

	taken, err := f.rsvc.TakenProperties(ctx, f.client.UserID)
	require.NoError(t, err)
	require.Len(t, taken, 1)
	assert.Equal(t, bk.PropertyID, taken[0].Property.ID)
	assert.Equal(t, "Sea View Flat", taken[0].Property.Title)
	assert.True(t, taken[0].Property.Listed)
	assert.Equal(t, bk.BrokerID, taken[0].BrokerID)

	_, err = f.rsvc.SubmitReview(ctx, f.client.UserID, req)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	assert.Contains(t, f.publisher.types(), events.ReviewSubmitted)
}

func TestReviewService_RequiresCompletion(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t)
	created := f.create(t, "2025-03-01", "14:00")
	_, err := f.svc.UpdateStatus(ctx, f.broker, created.ID, UpdateStatusRequest{Status: "confirmed"})
	require.NoError(t, err)

	_, err = f.rsvc.SubmitReview(ctx, f.client.UserID, SubmitReviewRequest{
		BookingID: created.ID, BrokerRating: 5, PropertyRating: 5,
	})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	exists, err := f.reviews.ExistsForBooking(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReviewService_GateChecks(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t)
	bk := f.completedBooking(t)

	t.Run("wrong client", func(t *testing.T) {
		_, err := f.rsvc.SubmitReview(ctx, uuid.New(), SubmitReviewRequest{BookingID: bk.ID, BrokerRating: 5, PropertyRating: 5})
		assert.ErrorIs(t, err, apperror.ErrForbidden)
	})

	t.Run("missing rating", func(t *testing.T) {
		_, err := f.rsvc.SubmitReview(ctx, f.client.UserID, SubmitReviewRequest{BookingID: bk.ID, BrokerRating: 5})
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("broker mismatch", func(t *testing.T) {
		other := uuid.New()
		_, err := f.rsvc.SubmitReview(ctx, f.client.UserID, SubmitReviewRequest{
			BookingID: bk.ID, BrokerID: &other, BrokerRating: 5, PropertyRating: 5,
		})
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("unknown booking", func(t *testing.T) {
		_, err := f.rsvc.SubmitReview(ctx, f.client.UserID, SubmitReviewRequest{BookingID: uuid.New(), BrokerRating: 5, PropertyRating: 5})
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}

func TestReviewService_HasReviewReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t)
	bk := f.completedBooking(t)

	_, err := f.rsvc.HasReview(ctx, f.client, bk.ID)
	require.NoError(t, err)
	assert.False(t, f.cache.Has(cache.ReviewExistsKey(bk.ID)), "negative answers are not cached")

	_, err = f.rsvc.SubmitReview(ctx, f.client.UserID, SubmitReviewRequest{BookingID: bk.ID, BrokerRating: 3, PropertyRating: 3})
	require.NoError(t, err)
	assert.True(t, f.cache.Has(cache.ReviewExistsKey(bk.ID)))
}

func TestReviewService_BrokerReviews(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t)
	first := f.completedBooking(t)
	second := f.completedBooking(t)

	_, err := f.rsvc.SubmitReview(ctx, f.client.UserID, SubmitReviewRequest{BookingID: first.ID, BrokerRating: 5, PropertyRating: 3})
	require.NoError(t, err)
	_, err = f.rsvc.SubmitReview(ctx, f.client.UserID, SubmitReviewRequest{BookingID: second.ID, BrokerRating: 4, PropertyRating: 3})
	require.NoError(t, err)

	res, err := f.rsvc.BrokerReviews(ctx, f.broker.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalReviews)
	assert.InDelta(t, 4.5, res.AverageRating, 0.0001)
}

func TestListingService_Projection(t *testing.T) {
	ctx := context.Background()
	repo := newFakeListingRepo()
	svc := NewListingService(repo, zap.NewNop())
	propertyID, brokerID := uuid.New(), uuid.New()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, svc.ApplyPropertyUpsert(ctx, events.PropertyEvent{PropertyID: propertyID, BrokerID: brokerID, Title: "v2", OccurredAt: t0.Add(time.Hour)}))
	require.NoError(t, svc.ApplyPropertyUpsert(ctx, events.PropertyEvent{PropertyID: propertyID, BrokerID: brokerID, Title: "v1", OccurredAt: t0}))

	l, err := repo.FindByID(ctx, propertyID)
	require.NoError(t, err)
	assert.Equal(t, "v2", l.Title, "older events do not overwrite newer state")

	require.NoError(t, svc.ApplyPropertyDeleted(ctx, events.PropertyEvent{PropertyID: propertyID, OccurredAt: t0.Add(2 * time.Hour)}))
	l, _ = repo.FindByID(ctx, propertyID)
	assert.True(t, l.Removed)

	err = svc.ApplyPropertyUpsert(ctx, events.PropertyEvent{PropertyID: propertyID})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func listingFor(bk *BookingDTO, title string) *listingDomain.Listing {
	return &listingDomain.Listing{
		PropertyID: bk.PropertyID,
		BrokerID:   bk.BrokerID,
		Title:      title,
		UpdatedAt:  time.Now().UTC(),
	}
}
