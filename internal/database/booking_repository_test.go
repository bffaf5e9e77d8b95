package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBooking(status models.BookingStatus) *models.Booking {
	now := time.Now().UTC()
	expires := now.Add(15 * time.Minute)
	return &models.Booking{
		ID:               uuid.New(),
		ResourceID:       uuid.New(),
		UserID:           uuid.New(),
		RequesterContact: "9876543210",
		Category:         models.CategoryLodging,
		IntervalStart:    time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC),
		IntervalEnd:      time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC),
		PartySize:        2,
		Units:            2,
		BaseAmount:       decimal.NewFromInt(6000),
		DiscountAmount:   decimal.NewFromInt(500),
		FinalAmount:      decimal.NewFromInt(5500),
		Currency:         "INR",
		Status:           status,
		ExpiresAt:        &expires,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestBookingRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		b := sampleBooking(models.BookingStatusDraft)
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WithArgs(b.ID).
			WillReturnRows(bookingRows(b))

		got, err := repo.GetByID(ctx, nil, b.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, b.ID, got.ID)
		assert.Equal(t, models.BookingStatusDraft, got.Status)
		assert.True(t, got.FinalAmount.Equal(decimal.NewFromInt(5500)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(BookingColumns))

		got, err := repo.GetByID(ctx, nil, id)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_CountOverlapping(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	resourceID := uuid.New()
	interval := models.Interval{
		Start: time.Date(2026, time.January, 11, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.January, 13, 0, 0, 0, 0, time.UTC),
	}

	now := time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE resource_id = \$1 AND status = ANY\(\$2\) AND interval_start < \$4 AND \$3 < interval_end AND NOT \(status = 'draft' AND expires_at <= \$5\)`).
		WithArgs(resourceID, sqlmock.AnyArg(), interval.Start, interval.End, now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountOverlapping(context.Background(), nil, resourceID, interval, now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_GuardedTransitions(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()
	now := time.Now()

	t.Run("MarkAwaitingPayment matches draft", func(t *testing.T) {
		b := sampleBooking(models.BookingStatusAwaitingPayment)
		orderID := "order_abc"
		b.PaymentOrderID = &orderID

		mock.ExpectQuery(`UPDATE bookings SET status = 'awaiting_payment'`).
			WithArgs(b.ID, orderID, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(bookingRows(b))

		got, err := repo.MarkAwaitingPayment(ctx, nil, b.ID, orderID, now.Add(10*time.Minute), now)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.BookingStatusAwaitingPayment, got.Status)
		assert.Equal(t, orderID, *got.PaymentOrderID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Confirm guard miss returns nil", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery(`UPDATE bookings SET status = 'confirmed'`).
			WithArgs(id, "pay_1", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(BookingColumns))

		got, err := repo.Confirm(ctx, nil, id, "pay_1", now)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Terminate with reason", func(t *testing.T) {
		b := sampleBooking(models.BookingStatusFailed)
		reason := "card declined"
		b.FailureReason = &reason

		mock.ExpectQuery(`UPDATE bookings SET status = \$2`).
			WithArgs(b.ID, models.BookingStatusFailed, sqlmock.AnyArg(), &reason, sqlmock.AnyArg()).
			WillReturnRows(bookingRows(b))

		got, err := repo.Terminate(ctx, nil, b.ID, models.BookingStatusFailed,
			[]models.BookingStatus{models.BookingStatusAwaitingPayment}, &reason, now)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "card declined", *got.FailureReason)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Expire database error", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery(`UPDATE bookings SET status = 'expired'`).
			WithArgs(id, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnError(fmt.Errorf("connection reset"))

		got, err := repo.Expire(ctx, nil, id, now)
		assert.Error(t, err)
		assert.Nil(t, got)
		assert.Contains(t, err.Error(), "failed to update booking status")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_ListExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	b1 := sampleBooking(models.BookingStatusDraft)
	b2 := sampleBooking(models.BookingStatusAwaitingPayment)

	mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE status = ANY\(\$1\) AND expires_at < \$2 ORDER BY expires_at ASC LIMIT \$3`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 50).
		WillReturnRows(bookingRows(b1, b2))

	bookings, err := repo.ListExpired(context.Background(), time.Now(), 50)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, b1.ID, bookings[0].ID)
	assert.Equal(t, models.BookingStatusAwaitingPayment, bookings[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	b := sampleBooking(models.BookingStatusDraft)

	mock.ExpectExec(`INSERT INTO bookings`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), db, b))
	assert.NoError(t, mock.ExpectationsWereMet())
}
