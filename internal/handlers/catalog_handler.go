package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/localbazaar/reservation-backend/internal/middleware"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// AvailabilityPreviewer answers read-only capacity questions.
// Implemented by services.AvailabilityService.
type AvailabilityPreviewer interface {
	Preview(ctx context.Context, resourceID uuid.UUID, interval models.Interval, partySize int) (*models.AvailabilityResponse, error)
}

// CouponPreviewer prices a coupon without redeeming it.
// Implemented by services.CouponService.
type CouponPreviewer interface {
	Preview(ctx context.Context, req *models.ValidateCouponRequest, userID uuid.UUID) (*models.ValidateCouponResponse, error)
}

// PlanQuoter lists vendor subscription plans.
// Implemented by services.SubscriptionPricingService.
type PlanQuoter interface {
	Plans(now time.Time) *models.SubscriptionPlansResponse
}

// CatalogHandler serves the read-only pricing and availability endpoints
type CatalogHandler struct {
	availability AvailabilityPreviewer
	coupons      CouponPreviewer
	plans        PlanQuoter
	logger       *logrus.Logger
	now          func() time.Time
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(availability AvailabilityPreviewer, coupons CouponPreviewer, plans PlanQuoter, logger *logrus.Logger) *CatalogHandler {
	return &CatalogHandler{
		availability: availability,
		coupons:      coupons,
		plans:        plans,
		logger:       logger,
		now:          time.Now,
	}
}

// GetAvailability handles GET /api/v1/resources/:id/availability?start=&end=&party_size=
func (h *CatalogHandler) GetAvailability(c *gin.Context) {
	resourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid resource ID format")
		return
	}

	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		respondBadRequest(c, "start must be an RFC 3339 timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		respondBadRequest(c, "end must be an RFC 3339 timestamp")
		return
	}

	partySize := 1
	if raw := c.Query("party_size"); raw != "" {
		partySize, err = strconv.Atoi(raw)
		if err != nil {
			respondBadRequest(c, "party_size must be an integer")
			return
		}
	}

	resp, err := h.availability.Preview(c.Request.Context(), resourceID, models.Interval{Start: start, End: end}, partySize)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ValidateCoupon handles POST /api/v1/coupons/validate
func (h *CatalogHandler) ValidateCoupon(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.coupons.Preview(c.Request.Context(), &req, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetSubscriptionPlans handles GET /api/v1/subscription/plans
func (h *CatalogHandler) GetSubscriptionPlans(c *gin.Context) {
	c.JSON(http.StatusOK, h.plans.Plans(h.now()))
}
