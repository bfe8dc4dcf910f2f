package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happypaws/dogwalk-backend/internal/models"
	"github.com/happypaws/dogwalk-backend/pkg/events"
)

func validCreateRequest(service string) *models.CreateBookingRequest {
	return &models.CreateBookingRequest{
		DogName: "Biscuit",
		Service: service,
		Date:    futureDate(3),
		Time:    "09:30",
	}
}

func fieldMessages(t *testing.T, err error) map[string]string {
	t.Helper()
	verr, ok := models.IsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	out := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestCreateBooking_PriceComesFromPricingTable(t *testing.T) {
	tests := []struct {
		service string
		price   float64
	}{
		{models.ServiceDailyWalk30, 25},
		{models.ServiceDailyWalk60, 35},
		{models.ServicePetSitting, 40},
		{models.ServiceEmergencyVisit, 50},
		{models.ServiceOther, 0},
	}

	for _, tt := range tests {
		t.Run(tt.service, func(t *testing.T) {
			svc, store, _ := newBookingService(t)
			owner := uuid.New()

			booking, err := svc.Create(context.Background(), owner, validCreateRequest(tt.service))
			require.NoError(t, err)

			assert.Equal(t, tt.price, booking.Price)
			assert.Equal(t, models.BookingStatusPending, booking.Status)
			assert.Equal(t, models.PaymentStatusPending, booking.PaymentStatus)
			assert.Equal(t, owner, booking.UserID)

			stored := store.get(booking.ID)
			require.NotNil(t, stored)
			assert.Equal(t, tt.price, stored.Price)
		})
	}
}

func TestCreateBooking_Defaults(t *testing.T) {
	svc, _, publisher := newBookingService(t)

	req := validCreateRequest(models.ServiceDailyWalk30)
	req.DogName = "  Biscuit  "
	booking, err := svc.Create(context.Background(), uuid.New(), req)
	require.NoError(t, err)

	assert.Equal(t, DefaultDurationMinutes, booking.Duration)
	assert.Equal(t, "Biscuit", booking.DogName)
	assert.Equal(t, time.UTC, booking.Date.Location())
	assert.Equal(t, []string{events.BookingCreated}, publisher.types())
}

func TestCreateBooking_ValidationErrors(t *testing.T) {
	svc, store, publisher := newBookingService(t)

	req := &models.CreateBookingRequest{
		DogName:  "",
		DogAge:   intPtr(42),
		Service:  "Cat Grooming",
		Date:     time.Now().AddDate(0, 0, -2).Format("2006-01-02"),
		Time:     "25:00",
		Duration: intPtr(5),
	}

	_, err := svc.Create(context.Background(), uuid.New(), req)
	fields := fieldMessages(t, err)

	assert.Equal(t, "is required", fields["dog_name"])
	assert.Equal(t, "must be at most 30", fields["dog_age"])
	assert.Contains(t, fields["service"], "must be one of")
	assert.Equal(t, "cannot be in the past", fields["date"])
	assert.Equal(t, "must be in HH:MM format (24-hour)", fields["time"])
	assert.Equal(t, "must be at least 15", fields["duration"])

	assert.Empty(t, store.bookings)
	assert.Empty(t, publisher.types())
}

func TestCreateBooking_TodayIsAllowed(t *testing.T) {
	svc, _, _ := newBookingService(t)
	fixed := time.Date(2031, 3, 10, 22, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	req := validCreateRequest(models.ServicePetSitting)
	req.Date = "2031-03-10"
	_, err := svc.Create(context.Background(), uuid.New(), req)
	require.NoError(t, err)

	req.Date = "2031-03-09"
	_, err = svc.Create(context.Background(), uuid.New(), req)
	assert.Equal(t, "cannot be in the past", fieldMessages(t, err)["date"])
}

func TestGetBooking_Ownership(t *testing.T) {
	svc, store, _ := newBookingService(t)
	owner := uuid.New()
	booking := store.put(pendingBooking(owner, models.ServicePetSitting))

	t.Run("Owner", func(t *testing.T) {
		got, err := svc.Get(context.Background(), userRequester(owner), booking.ID)
		require.NoError(t, err)
		assert.Equal(t, booking.ID, got.ID)
	})

	t.Run("Other user is forbidden", func(t *testing.T) {
		_, err := svc.Get(context.Background(), userRequester(uuid.New()), booking.ID)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("Admin", func(t *testing.T) {
		got, err := svc.Get(context.Background(), adminRequester(), booking.ID)
		require.NoError(t, err)
		assert.Equal(t, booking.ID, got.ID)
	})

	t.Run("Not found", func(t *testing.T) {
		_, err := svc.Get(context.Background(), userRequester(owner), uuid.New())
		assert.ErrorIs(t, err, models.ErrBookingNotFound)
	})

	t.Run("Store error", func(t *testing.T) {
		store.getErr = errors.New("connection refused")
		defer func() { store.getErr = nil }()

		_, err := svc.Get(context.Background(), userRequester(owner), booking.ID)
		assert.EqualError(t, err, "connection refused")
	})
}

func TestListBookings(t *testing.T) {
	svc, store, _ := newBookingService(t)
	owner := uuid.New()
	store.put(pendingBooking(owner, models.ServicePetSitting))
	store.put(pendingBooking(owner, models.ServiceDailyWalk30))
	store.put(pendingBooking(uuid.New(), models.ServiceOther))
	store.owners[owner] = models.BookingOwner{Name: strPtr("Dana"), Email: strPtr("dana@example.com")}

	mine, err := svc.ListForUser(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = svc.ListAll(context.Background(), userRequester(owner))
	assert.ErrorIs(t, err, models.ErrForbidden)

	all, err := svc.ListAll(context.Background(), adminRequester())
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, b := range all {
		assert.Equal(t, b.UserID, b.Owner.ID)
		if b.UserID == owner {
			assert.Equal(t, "dana@example.com", *b.Owner.Email)
		}
	}
}

func TestUpdateBooking_NonAdminCannotChangeStatusOrPrice(t *testing.T) {
	svc, store, publisher := newBookingService(t)
	owner := uuid.New()
	booking := store.put(pendingBooking(owner, models.ServicePetSitting))

	confirmed := models.BookingStatusConfirmed
	updated, err := svc.Update(context.Background(), userRequester(owner), booking.ID, &models.UpdateBookingRequest{
		DogName: strPtr("Rex"),
		Notes:   strPtr("Gate code 1234"),
		Status:  &confirmed,
		Price:   floatPtr(0.01),
	})
	require.NoError(t, err)

	assert.Equal(t, "Rex", updated.DogName)
	assert.Equal(t, "Gate code 1234", *updated.Notes)
	assert.Equal(t, models.BookingStatusPending, updated.Status)
	assert.Equal(t, 40.0, updated.Price)

	stored := store.get(booking.ID)
	assert.Equal(t, models.BookingStatusPending, stored.Status)
	assert.Equal(t, 40.0, stored.Price)
	assert.Equal(t, []string{events.BookingUpdated}, publisher.types())
}

func TestUpdateBooking_AdminCanChangeStatusAndPrice(t *testing.T) {
	svc, store, _ := newBookingService(t)
	booking := store.put(pendingBooking(uuid.New(), models.ServicePetSitting))

	completed := models.BookingStatusCompleted
	updated, err := svc.Update(context.Background(), adminRequester(), booking.ID, &models.UpdateBookingRequest{
		Status: &completed,
		Price:  floatPtr(32.5),
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCompleted, updated.Status)
	assert.Equal(t, 32.5, updated.Price)
}

func TestUpdateBooking_AdminValidation(t *testing.T) {
	svc, store, _ := newBookingService(t)
	booking := store.put(pendingBooking(uuid.New(), models.ServicePetSitting))

	bogus := models.BookingStatus("archived")
	_, err := svc.Update(context.Background(), adminRequester(), booking.ID, &models.UpdateBookingRequest{
		Status: &bogus,
		Price:  floatPtr(-1),
	})
	fields := fieldMessages(t, err)
	assert.Equal(t, "must be one of: pending, confirmed, completed, cancelled", fields["status"])
	assert.Equal(t, "must be greater than or equal to 0", fields["price"])
	assert.Equal(t, models.BookingStatusPending, store.get(booking.ID).Status)
}

func TestUpdateBooking_ServiceChangeKeepsPrice(t *testing.T) {
	svc, store, _ := newBookingService(t)
	owner := uuid.New()
	booking := store.put(pendingBooking(owner, models.ServiceDailyWalk30))

	updated, err := svc.Update(context.Background(), userRequester(owner), booking.ID, &models.UpdateBookingRequest{
		Service: strPtr(models.ServiceEmergencyVisit),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ServiceEmergencyVisit, updated.Service)
	assert.Equal(t, 25.0, updated.Price)
}

func TestUpdateBooking_KeepsPaymentConfirmationThatLandsMidUpdate(t *testing.T) {
	svc, store, _ := newBookingService(t)
	owner := uuid.New()
	b := pendingBooking(owner, models.ServicePetSitting)
	intent := "pi_race"
	b.ProviderIntentID = &intent
	b.PaymentStatus = models.PaymentStatusProcessing
	booking := store.put(b)

	// The success webhook settles the booking between the read and the write
	store.beforeUpdate = func(stored *models.Booking) {
		store.beforeUpdate = nil
		stored.Status = models.BookingStatusConfirmed
		stored.PaymentStatus = models.PaymentStatusSucceeded
	}

	updated, err := svc.Update(context.Background(), userRequester(owner), booking.ID, &models.UpdateBookingRequest{
		DogName: strPtr("Rex"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Rex", updated.DogName)
	assert.Equal(t, models.BookingStatusConfirmed, updated.Status)
	assert.Equal(t, models.PaymentStatusSucceeded, updated.PaymentStatus)

	stored := store.get(booking.ID)
	assert.Equal(t, models.BookingStatusConfirmed, stored.Status)
	assert.Equal(t, models.PaymentStatusSucceeded, stored.PaymentStatus)
	assert.Equal(t, "Rex", stored.DogName)
}

func TestUpdateBooking_AdminCannotReviveRefundedBooking(t *testing.T) {
	svc, store, _ := newBookingService(t)
	b := paidBooking(uuid.New(), models.ServicePetSitting)
	refundedAt := time.Now()
	b.Status = models.BookingStatusCancelled
	b.PaymentStatus = models.PaymentStatusRefunded
	b.RefundAmount = floatPtr(40)
	b.RefundedAt = &refundedAt
	booking := store.put(b)

	confirmed := models.BookingStatusConfirmed
	_, err := svc.Update(context.Background(), adminRequester(), booking.ID, &models.UpdateBookingRequest{
		Status: &confirmed,
		Price:  floatPtr(10),
	})
	fields := fieldMessages(t, err)
	assert.Equal(t, "must remain cancelled once the booking is refunded", fields["status"])
	assert.Equal(t, "cannot be lower than the refunded amount of 40.00", fields["price"])

	stored := store.get(booking.ID)
	assert.Equal(t, models.BookingStatusCancelled, stored.Status)
	assert.Equal(t, 40.0, stored.Price)
}

func TestUpdateBooking_AdminPriceFixedOncePaid(t *testing.T) {
	svc, store, _ := newBookingService(t)
	booking := store.put(paidBooking(uuid.New(), models.ServicePetSitting))

	_, err := svc.Update(context.Background(), adminRequester(), booking.ID, &models.UpdateBookingRequest{
		Price: floatPtr(55),
	})
	assert.Equal(t, "cannot change once payment has started", fieldMessages(t, err)["price"])
	assert.Equal(t, 40.0, store.get(booking.ID).Price)

	// Resending the current price and moving status along is fine
	completed := models.BookingStatusCompleted
	updated, err := svc.Update(context.Background(), adminRequester(), booking.ID, &models.UpdateBookingRequest{
		Status: &completed,
		Price:  floatPtr(40),
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCompleted, updated.Status)
	assert.Equal(t, 40.0, updated.Price)
}

func TestUpdateBooking_NonAdminLockedOnceConfirmed(t *testing.T) {
	svc, store, _ := newBookingService(t)
	owner := uuid.New()
	booking := store.put(paidBooking(owner, models.ServicePetSitting))

	_, err := svc.Update(context.Background(), userRequester(owner), booking.ID, &models.UpdateBookingRequest{
		DogName: strPtr("Rex"),
	})
	assert.ErrorIs(t, err, models.ErrBookingLocked)
	assert.Equal(t, "Biscuit", store.get(booking.ID).DogName)
}

func TestUpdateBooking_OtherUserForbidden(t *testing.T) {
	svc, store, _ := newBookingService(t)
	booking := store.put(pendingBooking(uuid.New(), models.ServicePetSitting))

	_, err := svc.Update(context.Background(), userRequester(uuid.New()), booking.ID, &models.UpdateBookingRequest{
		DogName: strPtr("Rex"),
	})
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestUpdateBooking_InvalidFields(t *testing.T) {
	svc, store, _ := newBookingService(t)
	owner := uuid.New()
	booking := store.put(pendingBooking(owner, models.ServicePetSitting))

	_, err := svc.Update(context.Background(), userRequester(owner), booking.ID, &models.UpdateBookingRequest{
		DogName: strPtr(""),
		Date:    strPtr("05/01/2030"),
		Time:    strPtr("9am"),
	})
	fields := fieldMessages(t, err)
	assert.Equal(t, "must be at least 1 characters", fields["dog_name"])
	assert.Equal(t, "must be a valid date in YYYY-MM-DD format", fields["date"])
	assert.Equal(t, "must be in HH:MM format (24-hour)", fields["time"])
}

func TestDeleteBooking(t *testing.T) {
	t.Run("Pending booking is removed", func(t *testing.T) {
		svc, store, publisher := newBookingService(t)
		owner := uuid.New()
		booking := store.put(pendingBooking(owner, models.ServicePetSitting))

		require.NoError(t, svc.Delete(context.Background(), userRequester(owner), booking.ID))
		assert.Nil(t, store.get(booking.ID))
		assert.Equal(t, []string{events.BookingDeleted}, publisher.types())
	})

	t.Run("Paid booking must be refunded first", func(t *testing.T) {
		svc, store, _ := newBookingService(t)
		booking := store.put(paidBooking(uuid.New(), models.ServicePetSitting))

		err := svc.Delete(context.Background(), adminRequester(), booking.ID)
		assert.ErrorIs(t, err, models.ErrPaidBookingDelete)
		assert.NotNil(t, store.get(booking.ID))
	})

	t.Run("Processing payment blocks delete", func(t *testing.T) {
		svc, store, _ := newBookingService(t)
		owner := uuid.New()
		b := pendingBooking(owner, models.ServicePetSitting)
		b.PaymentStatus = models.PaymentStatusProcessing
		store.put(b)

		err := svc.Delete(context.Background(), userRequester(owner), b.ID)
		assert.ErrorIs(t, err, models.ErrPaidBookingDelete)
	})

	t.Run("Refunded booking can be removed", func(t *testing.T) {
		svc, store, _ := newBookingService(t)
		b := paidBooking(uuid.New(), models.ServicePetSitting)
		b.PaymentStatus = models.PaymentStatusRefunded
		b.Status = models.BookingStatusCancelled
		store.put(b)

		require.NoError(t, svc.Delete(context.Background(), adminRequester(), b.ID))
		assert.Nil(t, store.get(b.ID))
	})

	t.Run("Other user is forbidden", func(t *testing.T) {
		svc, store, _ := newBookingService(t)
		booking := store.put(pendingBooking(uuid.New(), models.ServicePetSitting))

		err := svc.Delete(context.Background(), userRequester(uuid.New()), booking.ID)
		assert.ErrorIs(t, err, models.ErrForbidden)
		assert.NotNil(t, store.get(booking.ID))
	})
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	svc, _, publisher := newBookingService(t)
	publisher.err = errors.New("broker down")

	_, err := svc.Create(context.Background(), uuid.New(), validCreateRequest(models.ServiceDailyWalk60))
	assert.NoError(t, err)
}
