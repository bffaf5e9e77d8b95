package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/localbazaar/reservation-backend/internal/models"
)

// CouponColumns lists the columns scanned into models.Coupon
var CouponColumns = []string{
	"code", "description", "discount_kind", "discount_value", "max_discount_cap",
	"minimum_order_amount", "usage_limit", "per_user_limit", "usage_count",
	"applicable_categories", "valid_from", "valid_until", "created_at",
}

var couponSelect = "SELECT " + strings.Join(CouponColumns, ", ") + " FROM coupons"

// CouponRepository handles coupons and the redemption log
type CouponRepository struct {
	db DB
}

// NewCouponRepository creates a new CouponRepository
func NewCouponRepository(db DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// GetByCode returns a coupon without locking, or nil if the code is unknown
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.GetContext(ctx, &coupon, couponSelect+" WHERE code = $1", code)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return &coupon, nil
}

// LockByCode reads a coupon under a row lock so per-user counting and the
// usage increment see a stable view for the rest of the transaction.
func (r *CouponRepository) LockByCode(ctx context.Context, tx *sqlx.Tx, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := tx.GetContext(ctx, &coupon, couponSelect+" WHERE code = $1 FOR UPDATE", code)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock coupon: %w", err)
	}
	return &coupon, nil
}

// CountUserRedemptions counts how many times a user has redeemed a code.
// q may be an open transaction; nil reads through the repository handle.
func (r *CouponRepository) CountUserRedemptions(ctx context.Context, q sqlx.QueryerContext, code string, userID uuid.UUID) (int, error) {
	if q == nil {
		q = r.db
	}
	var count int
	err := sqlx.GetContext(ctx, q, &count,
		"SELECT COUNT(*) FROM coupon_redemptions WHERE coupon_code = $1 AND user_id = $2", code, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count coupon redemptions: %w", err)
	}
	return count, nil
}

// IncrementUsage bumps usage_count only while it is below usage_limit.
// Returns false when the limit was already reached.
func (r *CouponRepository) IncrementUsage(ctx context.Context, q sqlx.ExecerContext, code string) (bool, error) {
	query := `
		UPDATE coupons
		SET usage_count = usage_count + 1
		WHERE code = $1 AND (usage_limit = 0 OR usage_count < usage_limit)`

	result, err := q.ExecContext(ctx, query, code)
	if err != nil {
		return false, fmt.Errorf("failed to increment coupon usage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// CreateRedemption appends to the redemption log
func (r *CouponRepository) CreateRedemption(ctx context.Context, q sqlx.ExecerContext, redemption *models.CouponRedemption) error {
	query := `
		INSERT INTO coupon_redemptions (id, coupon_code, booking_id, user_id, discount_applied, redeemed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := q.ExecContext(ctx, query,
		redemption.ID, redemption.CouponCode, redemption.BookingID,
		redemption.UserID, redemption.DiscountApplied, redemption.RedeemedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record coupon redemption: %w", err)
	}
	return nil
}
