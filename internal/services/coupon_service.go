package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/localbazaar/reservation-backend/internal/database"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var hundred = decimal.NewFromInt(100)

// CouponService validates discount codes and computes discounts
type CouponService struct {
	couponRepo *database.CouponRepository
	catalog    ResourceCatalog
	logger     *logrus.Logger
	now        func() time.Time
}

// NewCouponService creates a new CouponService
func NewCouponService(couponRepo *database.CouponRepository, catalog ResourceCatalog, logger *logrus.Logger) *CouponService {
	return &CouponService{
		couponRepo: couponRepo,
		catalog:    catalog,
		logger:     logger,
		now:        time.Now,
	}
}

// Evaluate applies the coupon rules in order and returns the discount.
// It has no side effects.
func (s *CouponService) Evaluate(coupon *models.Coupon, candidate models.CouponCandidate, userRedemptions int, now time.Time) (decimal.Decimal, error) {
	// 1. Validity window
	if now.Before(coupon.ValidFrom) {
		return decimal.Zero, newError(KindCouponNotApplicable, "coupon %s is not active until %s", coupon.Code, coupon.ValidFrom.Format(time.RFC3339))
	}
	if !now.Before(coupon.ValidUntil) {
		return decimal.Zero, newError(KindCouponExpired, "coupon %s expired on %s", coupon.Code, coupon.ValidUntil.Format(time.RFC3339))
	}

	// 2. Category
	if !coupon.AppliesTo(candidate.Category) {
		return decimal.Zero, newError(KindCouponNotApplicable, "coupon %s cannot be used for %s bookings", coupon.Code, candidate.Category)
	}

	// 3. Minimum order amount
	if candidate.BaseAmount.LessThan(coupon.MinimumOrderAmount) {
		return decimal.Zero, newError(KindMinimumAmountNotMet, "coupon %s requires a minimum order of %s", coupon.Code, coupon.MinimumOrderAmount.StringFixed(2))
	}

	// 4. Global usage limit
	if !coupon.HasGlobalCapacity() {
		return decimal.Zero, newError(KindCouponLimitReached, "coupon %s has reached its usage limit", coupon.Code)
	}

	// 5. Per-user limit
	if !coupon.AllowsUser(userRedemptions) {
		return decimal.Zero, newError(KindCouponLimitReached, "coupon %s can be used %d time(s) per customer", coupon.Code, coupon.PerUserLimit)
	}

	return ComputeDiscount(coupon, candidate.BaseAmount), nil
}

// ComputeDiscount returns min(pct * base, cap) for percentage coupons or the
// fixed amount, clamped to [0, base].
func ComputeDiscount(coupon *models.Coupon, base decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal

	switch coupon.DiscountKind {
	case models.DiscountPercentage:
		discount = base.Mul(coupon.DiscountValue).Div(hundred)
		if coupon.MaxDiscountCap.Valid && coupon.MaxDiscountCap.Decimal.IsPositive() {
			discount = decimal.Min(discount, coupon.MaxDiscountCap.Decimal)
		}
	case models.DiscountFixed:
		discount = coupon.DiscountValue
	}

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(base) {
		discount = base
	}
	return discount.Round(2)
}

// Preview validates a code for a prospective booking without consuming a
// redemption slot
func (s *CouponService) Preview(ctx context.Context, req *models.ValidateCouponRequest, userID uuid.UUID) (*models.ValidateCouponResponse, error) {
	code := models.NormalizeCouponCode(req.Code)
	if code == "" {
		return nil, newError(KindValidation, "code is required")
	}
	if !req.BaseAmount.IsPositive() {
		return nil, newError(KindValidation, "baseAmount must be greater than zero")
	}

	resource, err := s.catalog.GetByID(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, newError(KindNotFound, "resource not found")
	}

	coupon, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, newError(KindCouponNotApplicable, "coupon %s does not exist", code)
	}

	redemptions, err := s.couponRepo.CountUserRedemptions(ctx, nil, code, userID)
	if err != nil {
		return nil, err
	}

	base := req.BaseAmount.Round(2)
	discount, err := s.Evaluate(coupon, models.CouponCandidate{Category: resource.Category, BaseAmount: base}, redemptions, s.now())
	if err != nil {
		return nil, err
	}

	return &models.ValidateCouponResponse{
		Code:           code,
		DiscountAmount: discount,
		FinalAmount:    base.Sub(discount),
	}, nil
}

// Redeem runs inside the booking creation transaction. It locks the coupon
// row, re-validates against the locked row, claims one usage slot and
// appends the redemption. bookingID is assigned before the booking row is
// inserted; the foreign key is checked at commit.
func (s *CouponService) Redeem(ctx context.Context, tx *sqlx.Tx, code string, candidate models.CouponCandidate, userID, bookingID uuid.UUID) (decimal.Decimal, error) {
	code = models.NormalizeCouponCode(code)

	coupon, err := s.couponRepo.LockByCode(ctx, tx, code)
	if err != nil {
		return decimal.Zero, err
	}
	if coupon == nil {
		return decimal.Zero, newError(KindCouponNotApplicable, "coupon %s does not exist", code)
	}

	redemptions, err := s.couponRepo.CountUserRedemptions(ctx, tx, code, userID)
	if err != nil {
		return decimal.Zero, err
	}

	discount, err := s.Evaluate(coupon, candidate, redemptions, s.now())
	if err != nil {
		return decimal.Zero, err
	}

	claimed, err := s.couponRepo.IncrementUsage(ctx, tx, code)
	if err != nil {
		return decimal.Zero, err
	}
	if !claimed {
		return decimal.Zero, newError(KindCouponLimitReached, "coupon %s has reached its usage limit", code)
	}

	redemption := &models.CouponRedemption{
		ID:              uuid.New(),
		CouponCode:      code,
		BookingID:       bookingID,
		UserID:          userID,
		DiscountApplied: discount,
		RedeemedAt:      s.now(),
	}
	if err := s.couponRepo.CreateRedemption(ctx, tx, redemption); err != nil {
		return decimal.Zero, err
	}

	s.logger.WithFields(logrus.Fields{
		"coupon_code": code,
		"booking_id":  bookingID,
		"user_id":     userID,
		"discount":    discount.StringFixed(2),
	}).Info("Coupon redeemed")

	return discount, nil
}
