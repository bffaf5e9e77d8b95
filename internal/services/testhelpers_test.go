package services

import (
	"context"
	"database/sql/driver"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/localbazaar/reservation-backend/internal/database"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fixedNow is a Monday morning a few days before the Jan 10-12 stay used across tests
var fixedNow = time.Date(2026, time.January, 5, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newMockDB(t *testing.T) (*database.PostgresDB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	postgresDB := &database.PostgresDB{DB: sqlx.NewDb(db, "sqlmock")}
	cleanup := func() {
		db.Close()
	}
	return postgresDB, mock, cleanup
}

func date(day int) time.Time {
	return time.Date(2026, time.January, day, 0, 0, 0, 0, time.UTC)
}

func lodgingResource() *models.Resource {
	return &models.Resource{
		ID:            uuid.MustParse("7d1f9a52-6a0e-4b39-9b8e-5b0c2a0f1e11"),
		OwnerID:       uuid.MustParse("0f3c6a1e-2222-4c3a-8d77-3f2b9d8f0a01"),
		Name:          "Lakeview Homestay - Room 2",
		Category:      models.CategoryLodging,
		CapacityUnit:  models.UnitRoomNight,
		UnitPrice:     decimal.NewFromInt(3000),
		TotalCapacity: 1,
		MaxPartySize:  3,
		IsActive:      true,
		CreatedAt:     fixedNow.AddDate(0, -2, 0),
		UpdatedAt:     fixedNow.AddDate(0, -2, 0),
	}
}

func resourceRows(resources ...*models.Resource) *sqlmock.Rows {
	rows := sqlmock.NewRows(database.ResourceColumns)
	for _, r := range resources {
		rows.AddRow(
			r.ID.String(), r.OwnerID.String(), r.Name, string(r.Category), string(r.CapacityUnit), r.UnitPrice.String(),
			r.TotalCapacity, r.MaxPartySize, r.SlotMinutes, r.IsActive,
			r.CreatedAt, r.UpdatedAt,
		)
	}
	return rows
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
	rows := sqlmock.NewRows(database.BookingColumns)
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

func sampleBooking(status models.BookingStatus) *models.Booking {
	expires := fixedNow.Add(15 * time.Minute)
	b := &models.Booking{
		ID:               uuid.MustParse("b7a4d1c2-1111-4f0e-9c3a-6d2e8f7a9b01"),
		ResourceID:       lodgingResource().ID,
		UserID:           uuid.MustParse("a1b2c3d4-0000-4e5f-8a9b-1c2d3e4f5a6b"),
		RequesterContact: "+919876543210",
		Category:         models.CategoryLodging,
		IntervalStart:    date(10),
		IntervalEnd:      date(12),
		PartySize:        2,
		Units:            2,
		BaseAmount:       decimal.NewFromInt(6000),
		DiscountAmount:   decimal.Zero,
		FinalAmount:      decimal.NewFromInt(6000),
		Currency:         "INR",
		Status:           status,
		ExpiresAt:        &expires,
		CreatedAt:        fixedNow,
		UpdatedAt:        fixedNow,
	}
	if status != models.BookingStatusDraft {
		orderID := "order_Pq1"
		b.PaymentOrderID = &orderID
	}
	return b
}

func save10Rows(usageCount int) *sqlmock.Rows {
	return sqlmock.NewRows(database.CouponColumns).AddRow(
		"SAVE10", nil, "percentage", "10", "500",
		"1000", 0, 1, usageCount,
		[]byte("{}"), fixedNow.AddDate(0, -1, 0), fixedNow.AddDate(0, 1, 0), fixedNow.AddDate(0, -1, 0),
	)
}

type publishedEvent struct {
	key   string
	event models.BookingEvent
}

// recordingPublisher captures events instead of sending them to a broker
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if event, ok := v.(models.BookingEvent); ok {
		p.events = append(p.events, publishedEvent{key: key, event: event})
	}
	return p.err
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.events))
	for _, e := range p.events {
		keys = append(keys, e.key)
	}
	return keys
}

// ledgerFixture wires the real ledger, availability and coupon services over sqlmock
type ledgerFixture struct {
	db        *database.PostgresDB
	mock      sqlmock.Sqlmock
	ledger    *BookingLedgerService
	coupons   *CouponService
	avail     *AvailabilityService
	publisher *recordingPublisher
}

func setupLedgerTest(t *testing.T) (*ledgerFixture, func()) {
	db, mock, cleanup := newMockDB(t)
	logger := testLogger()

	resourceRepo := database.NewResourceRepository(db)
	bookingRepo := database.NewBookingRepository(db)
	couponRepo := database.NewCouponRepository(db)

	avail := NewAvailabilityService(resourceRepo, bookingRepo, 30, logger)
	avail.now = clock
	coupons := NewCouponService(couponRepo, resourceRepo, logger)
	coupons.now = clock

	publisher := &recordingPublisher{}
	ledger := NewBookingLedgerService(db, resourceRepo, bookingRepo, avail, coupons, publisher, LedgerConfig{
		GracePeriod:   15 * time.Minute,
		PaymentWindow: 10 * time.Minute,
		LockTimeout:   3 * time.Second,
		Currency:      "INR",
	}, logger)
	ledger.now = clock

	return &ledgerFixture{
		db:        db,
		mock:      mock,
		ledger:    ledger,
		coupons:   coupons,
		avail:     avail,
		publisher: publisher,
	}, cleanup
}

func expectTxStart(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout = '3000ms'`).WillReturnResult(sqlmock.NewResult(0, 0))
}
