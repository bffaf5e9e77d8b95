package database

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*PostgresDB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PostgresDB{DB: sqlx.NewDb(db, "sqlmock")}, mock
}

func nullableString(s *string) driver.Value {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) driver.Value {
	if t == nil {
		return nil
	}
	return *t
}

func bookingRows(bookings ...*models.Booking) *sqlmock.Rows {
	rows := sqlmock.NewRows(BookingColumns)
	for _, b := range bookings {
		rows.AddRow(
			b.ID.String(), b.ResourceID.String(), b.UserID.String(), b.RequesterContact, string(b.Category),
			b.IntervalStart, b.IntervalEnd, b.PartySize, b.Units,
			b.BaseAmount.String(), b.DiscountAmount.String(), b.FinalAmount.String(), b.Currency, nullableString(b.CouponCode),
			string(b.Status), nullableString(b.PaymentOrderID), nullableString(b.PaymentReference), nullableString(b.FailureReason),
			nullableTime(b.ExpiresAt), b.CreatedAt, b.UpdatedAt,
		)
	}
	return rows
}
