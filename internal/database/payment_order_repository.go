package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/localbazaar/reservation-backend/internal/models"
)

// PaymentOrderColumns lists the columns scanned into models.PaymentOrder
var PaymentOrderColumns = []string{
	"id", "booking_id", "amount", "currency", "status", "receipt",
	"provider_reference", "signature", "failure_reason",
	"created_at", "updated_at", "settled_at",
}

var paymentOrderSelect = "SELECT " + strings.Join(PaymentOrderColumns, ", ") + " FROM payment_orders"

// PaymentOrderRepository persists gateway orders
type PaymentOrderRepository struct {
	db DB
}

// NewPaymentOrderRepository creates a new PaymentOrderRepository
func NewPaymentOrderRepository(db DB) *PaymentOrderRepository {
	return &PaymentOrderRepository{db: db}
}

// Create inserts a new order. booking_id is UNIQUE, so a second order for
// the same booking fails with a unique violation.
func (r *PaymentOrderRepository) Create(ctx context.Context, q sqlx.ExecerContext, order *models.PaymentOrder) error {
	query := `
		INSERT INTO payment_orders (id, booking_id, amount, currency, status, receipt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := q.ExecContext(ctx, query,
		order.ID, order.BookingID, order.Amount, order.Currency,
		order.Status, order.Receipt, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment order: %w", err)
	}
	return nil
}

// GetByBookingID returns the order attached to a booking, or nil
func (r *PaymentOrderRepository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	err := r.db.GetContext(ctx, &order, paymentOrderSelect+" WHERE booking_id = $1", bookingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment order: %w", err)
	}
	return &order, nil
}

// LockByID reads an order under a row lock; concurrent deliveries of the
// same confirmation serialize here.
func (r *PaymentOrderRepository) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	err := tx.GetContext(ctx, &order, paymentOrderSelect+" WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock payment order: %w", err)
	}
	return &order, nil
}

// Settle moves a created order to paid or failed exactly once
func (r *PaymentOrderRepository) Settle(ctx context.Context, q sqlx.ExecerContext, id string, status models.PaymentOrderStatus, providerReference, signature string, reason *string, now time.Time) error {
	query := `
		UPDATE payment_orders
		SET status = $2,
		    provider_reference = $3,
		    signature = $4,
		    failure_reason = $5,
		    settled_at = $6,
		    updated_at = $6
		WHERE id = $1 AND status = 'created'`

	result, err := q.ExecContext(ctx, query, id, status, providerReference, signature, reason, now)
	if err != nil {
		return fmt.Errorf("failed to settle payment order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("payment order %s is not in created state", id)
	}
	return nil
}
