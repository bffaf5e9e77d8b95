package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/localbazaar/reservation-backend/internal/middleware"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// BookingLedger is the booking lifecycle as seen by the HTTP layer.
// Implemented by services.BookingLedgerService.
type BookingLedger interface {
	Create(ctx context.Context, req *models.CreateBookingRequest, userID uuid.UUID) (*models.Booking, error)
	Get(ctx context.Context, bookingID, userID uuid.UUID) (*models.Booking, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Booking, error)
	Cancel(ctx context.Context, bookingID, userID uuid.UUID) (*models.Booking, error)
}

// PaymentOrderCreator opens gateway orders for draft bookings.
// Implemented by services.PaymentOrderService.
type PaymentOrderCreator interface {
	CreateOrder(ctx context.Context, bookingID, userID uuid.UUID) (*models.CreatePaymentOrderResponse, error)
}

// BookingHandler handles requester-facing booking endpoints
type BookingHandler struct {
	ledger BookingLedger
	orders PaymentOrderCreator
	logger *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(ledger BookingLedger, orders PaymentOrderCreator, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		ledger: ledger,
		orders: orders,
		logger: logger,
	}
}

// CreateBooking handles POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	booking, err := h.ledger.Create(c.Request.Context(), &req, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, models.NewBookingResponse(booking))
}

// ListBookings handles GET /api/v1/bookings?limit=
func (h *BookingHandler) ListBookings(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondBadRequest(c, "limit must be an integer")
			return
		}
		limit = parsed
	}

	bookings, err := h.ledger.List(c.Request.Context(), userCtx.UserID, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := models.BookingListResponse{Bookings: make([]models.BookingResponse, 0, len(bookings))}
	for _, b := range bookings {
		resp.Bookings = append(resp.Bookings, models.NewBookingResponse(b))
	}
	resp.Count = len(resp.Bookings)

	c.JSON(http.StatusOK, resp)
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	booking, err := h.ledger.Get(c.Request.Context(), bookingID, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.NewBookingResponse(booking))
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	booking, err := h.ledger.Cancel(c.Request.Context(), bookingID, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.NewBookingResponse(booking))
}

// CreatePaymentOrder handles POST /api/v1/bookings/:id/payment-order
func (h *BookingHandler) CreatePaymentOrder(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	resp, err := h.orders.CreateOrder(c.Request.Context(), bookingID, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func bookingIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid booking ID format")
		return uuid.Nil, false
	}
	return id, true
}
