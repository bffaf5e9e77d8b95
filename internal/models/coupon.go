package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountKind describes how a coupon discount is computed
type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage" // DiscountValue is a percent of the base amount
	DiscountFixed      DiscountKind = "fixed"      // DiscountValue is an absolute amount
)

// Coupon is a discount code. Read-mostly; usage_count only moves through
// the conditional increment in CouponRepository.IncrementUsage.
type Coupon struct {
	Code                 string              `json:"code" db:"code"`
	Description          *string             `json:"description,omitempty" db:"description"`
	DiscountKind         DiscountKind        `json:"discountKind" db:"discount_kind"`
	DiscountValue        decimal.Decimal     `json:"discountValue" db:"discount_value"`
	MaxDiscountCap       decimal.NullDecimal `json:"maxDiscountCap" db:"max_discount_cap"`
	MinimumOrderAmount   decimal.Decimal     `json:"minimumOrderAmount" db:"minimum_order_amount"`
	UsageLimit           int                 `json:"usageLimit" db:"usage_limit"`     // 0 = unlimited
	PerUserLimit         int                 `json:"perUserLimit" db:"per_user_limit"` // 0 = unlimited
	UsageCount           int                 `json:"usageCount" db:"usage_count"`
	ApplicableCategories CategoryArray       `json:"applicableCategories" db:"applicable_categories"` // empty = all
	ValidFrom            time.Time           `json:"validFrom" db:"valid_from"`
	ValidUntil           time.Time           `json:"validUntil" db:"valid_until"`
	CreatedAt            time.Time           `json:"createdAt" db:"created_at"`
}

// AppliesTo checks the coupon's category restriction
func (c *Coupon) AppliesTo(category ResourceCategory) bool {
	return len(c.ApplicableCategories) == 0 || c.ApplicableCategories.Contains(category)
}

// HasGlobalCapacity checks usage_count against usage_limit
func (c *Coupon) HasGlobalCapacity() bool {
	return c.UsageLimit <= 0 || c.UsageCount < c.UsageLimit
}

// AllowsUser checks a user's past redemption count against per_user_limit
func (c *Coupon) AllowsUser(redemptions int) bool {
	return c.PerUserLimit <= 0 || redemptions < c.PerUserLimit
}

// NormalizeCouponCode trims and upper-cases a user supplied code
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CouponRedemption is an append-only record of one coupon use
type CouponRedemption struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	CouponCode      string          `json:"couponCode" db:"coupon_code"`
	BookingID       uuid.UUID       `json:"bookingId" db:"booking_id"`
	UserID          uuid.UUID       `json:"userId" db:"user_id"`
	DiscountApplied decimal.Decimal `json:"discountApplied" db:"discount_applied"`
	RedeemedAt      time.Time       `json:"redeemedAt" db:"redeemed_at"`
}

// CouponCandidate is the booking a coupon is evaluated against
type CouponCandidate struct {
	Category   ResourceCategory
	BaseAmount decimal.Decimal
}

// ValidateCouponRequest is the body of POST /coupons/validate
type ValidateCouponRequest struct {
	Code       string          `json:"code" binding:"required"`
	ResourceID uuid.UUID       `json:"resourceId" binding:"required"`
	BaseAmount decimal.Decimal `json:"baseAmount"`
	UserID     *uuid.UUID      `json:"userId,omitempty"`
}

// ValidateCouponResponse previews a discount without redeeming it
type ValidateCouponResponse struct {
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalAmount    decimal.Decimal `json:"finalAmount"`
}
