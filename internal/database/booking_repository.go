package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/localbazaar/reservation-backend/internal/models"
)

// BookingColumns lists the columns scanned into models.Booking
var BookingColumns = []string{
	"id", "resource_id", "user_id", "requester_contact", "category",
	"interval_start", "interval_end", "party_size", "units",
	"base_amount", "discount_amount", "final_amount", "currency", "coupon_code",
	"status", "payment_order_id", "payment_reference", "failure_reason",
	"expires_at", "created_at", "updated_at",
}

var (
	bookingColumnList = strings.Join(BookingColumns, ", ")
	bookingSelect     = "SELECT " + bookingColumnList + " FROM bookings"
	bookingReturning  = " RETURNING " + bookingColumnList
)

// BookingRepository persists bookings. Status changes are guarded updates:
// each one names the states it may leave, and a nil result means the guard
// did not match (wrong state, already expired, or missing row).
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// ============================================================================
// READS
// ============================================================================

// GetByID returns a booking, or nil if it does not exist.
// q may be an open transaction; nil reads through the repository handle.
func (r *BookingRepository) GetByID(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*models.Booking, error) {
	if q == nil {
		q = r.db
	}
	var booking models.Booking
	err := sqlx.GetContext(ctx, q, &booking, bookingSelect+" WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// CountOverlapping counts bookings in active states whose half-open interval
// overlaps [start, end) on the resource. Drafts past their deadline are left
// out: MarkAwaitingPayment refuses them, so they can never be confirmed.
// Lapsed awaiting_payment holds still count until the sweeper expires them.
func (r *BookingRepository) CountOverlapping(ctx context.Context, q sqlx.QueryerContext, resourceID uuid.UUID, interval models.Interval, now time.Time) (int, error) {
	if q == nil {
		q = r.db
	}
	query := `
		SELECT COUNT(*) FROM bookings
		WHERE resource_id = $1
		  AND status = ANY($2)
		  AND interval_start < $4
		  AND $3 < interval_end
		  AND NOT (status = 'draft' AND expires_at <= $5)`

	var count int
	err := sqlx.GetContext(ctx, q, &count, query,
		resourceID, statusArray(models.ActiveBookingStatuses), interval.Start, interval.End, now)
	if err != nil {
		return 0, fmt.Errorf("failed to count overlapping bookings: %w", err)
	}
	return count, nil
}

// ListExpired returns draft/awaiting_payment bookings whose hold ran out, oldest first
func (r *BookingRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.Booking, error) {
	query := bookingSelect + `
		WHERE status = ANY($1)
		  AND expires_at < $2
		ORDER BY expires_at ASC
		LIMIT $3`

	var bookings []*models.Booking
	err := r.db.SelectContext(ctx, &bookings, query,
		statusArray(models.SourceStatuses(models.BookingStatusExpired)), now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired bookings: %w", err)
	}
	return bookings, nil
}

// ListByUser returns a requester's bookings, newest first
func (r *BookingRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Booking, error) {
	query := bookingSelect + `
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var bookings []*models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// ============================================================================
// WRITES
// ============================================================================

// Create inserts a new booking row
func (r *BookingRepository) Create(ctx context.Context, q sqlx.ExecerContext, b *models.Booking) error {
	query := `
		INSERT INTO bookings (
			id, resource_id, user_id, requester_contact, category,
			interval_start, interval_end, party_size, units,
			base_amount, discount_amount, final_amount, currency, coupon_code,
			status, expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, $16, $17, $18
		)`

	_, err := q.ExecContext(ctx, query,
		b.ID, b.ResourceID, b.UserID, b.RequesterContact, b.Category,
		b.IntervalStart, b.IntervalEnd, b.PartySize, b.Units,
		b.BaseAmount, b.DiscountAmount, b.FinalAmount, b.Currency, b.CouponCode,
		b.Status, b.ExpiresAt, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// MarkAwaitingPayment moves an unexpired draft to awaiting_payment and pushes
// expires_at out to at least paymentDeadline.
func (r *BookingRepository) MarkAwaitingPayment(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID, orderID string, paymentDeadline, now time.Time) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET status = 'awaiting_payment',
		    payment_order_id = $2,
		    expires_at = GREATEST(expires_at, $3),
		    updated_at = $4
		WHERE id = $1 AND status = 'draft' AND expires_at > $4` + bookingReturning

	return r.guardedUpdate(ctx, q, query, id, orderID, paymentDeadline, now)
}

// Confirm moves awaiting_payment to confirmed and clears the hold deadline
func (r *BookingRepository) Confirm(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID, paymentReference string, now time.Time) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET status = 'confirmed',
		    payment_reference = $2,
		    expires_at = NULL,
		    updated_at = $3
		WHERE id = $1 AND status = 'awaiting_payment'` + bookingReturning

	return r.guardedUpdate(ctx, q, query, id, paymentReference, now)
}

// Terminate moves a booking from one of the from states into a terminal state
// (cancelled or failed), recording an optional reason.
func (r *BookingRepository) Terminate(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID, to models.BookingStatus, from []models.BookingStatus, reason *string, now time.Time) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $2,
		    failure_reason = COALESCE($4, failure_reason),
		    expires_at = NULL,
		    updated_at = $5
		WHERE id = $1 AND status = ANY($3)` + bookingReturning

	return r.guardedUpdate(ctx, q, query, id, to, statusArray(from), reason, now)
}

// Expire moves a booking whose hold deadline passed into expired
func (r *BookingRepository) Expire(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID, now time.Time) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET status = 'expired',
		    updated_at = $3
		WHERE id = $1 AND status = ANY($2) AND expires_at < $3` + bookingReturning

	return r.guardedUpdate(ctx, q, query, id,
		statusArray(models.SourceStatuses(models.BookingStatusExpired)), now)
}

func (r *BookingRepository) guardedUpdate(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*models.Booking, error) {
	if q == nil {
		q = r.db
	}
	var booking models.Booking
	err := sqlx.GetContext(ctx, q, &booking, query, args...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	return &booking, nil
}

func statusArray(statuses []models.BookingStatus) interface{} {
	strs := make([]string, len(statuses))
	for i, s := range statuses {
		strs[i] = string(s)
	}
	return pq.Array(strs)
}
