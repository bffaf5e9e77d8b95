package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/localbazaar/reservation-backend/internal/database"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/localbazaar/reservation-backend/pkg/gateway"
	"github.com/sirupsen/logrus"
)

// OrderGateway creates orders with the payment provider.
// Implemented by gateway.Client.
type OrderGateway interface {
	CreateOrder(ctx context.Context, req *gateway.CreateOrderRequest) (*gateway.Order, error)
	KeyID() string
}

// PaymentOrderService bridges draft bookings to gateway orders
type PaymentOrderService struct {
	db          database.DB
	bookingRepo *database.BookingRepository
	orderRepo   *database.PaymentOrderRepository
	ledger      *BookingLedgerService
	gateway     OrderGateway
	audits      *PaymentAuditService
	timeout     time.Duration
	lockTimeout time.Duration
	logger      *logrus.Logger
	now         func() time.Time
}

// NewPaymentOrderService creates a new PaymentOrderService
func NewPaymentOrderService(
	db database.DB,
	bookingRepo *database.BookingRepository,
	orderRepo *database.PaymentOrderRepository,
	ledger *BookingLedgerService,
	gw OrderGateway,
	audits *PaymentAuditService,
	timeout time.Duration,
	lockTimeout time.Duration,
	logger *logrus.Logger,
) *PaymentOrderService {
	return &PaymentOrderService{
		db:          db,
		bookingRepo: bookingRepo,
		orderRepo:   orderRepo,
		ledger:      ledger,
		gateway:     gw,
		audits:      audits,
		timeout:     timeout,
		lockTimeout: lockTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateOrder opens a gateway order for a draft booking. Retries on a
// booking that already has an order return the existing order.
func (s *PaymentOrderService) CreateOrder(ctx context.Context, bookingID, userID uuid.UUID) (*models.CreatePaymentOrderResponse, error) {
	booking, err := s.bookingRepo.GetByID(ctx, nil, bookingID)
	if err != nil {
		return nil, translateDBError(err, "failed to load booking")
	}
	if booking == nil {
		return nil, newError(KindNotFound, "booking not found")
	}
	if booking.UserID != userID {
		return nil, newError(KindForbidden, "booking belongs to another user")
	}

	if booking.Status == models.BookingStatusAwaitingPayment && booking.PaymentOrderID != nil {
		return s.existingOrder(ctx, booking)
	}

	if !booking.CanCreatePaymentOrder(s.now()) {
		if booking.Status == models.BookingStatusDraft {
			return nil, newError(KindInvalidStateTransition, "booking hold has expired")
		}
		return nil, newError(KindInvalidStateTransition, "booking is %s and cannot be paid", booking.Status)
	}

	if !booking.FinalAmount.IsPositive() {
		return nil, newError(KindValidation, "booking total is %s, no payment order is needed", booking.FinalAmount.StringFixed(2))
	}

	// No transaction is open across the gateway call
	started := time.Now()
	req := &gateway.CreateOrderRequest{
		Amount:   gateway.ToMinorUnits(booking.FinalAmount),
		Currency: booking.Currency,
		Receipt:  receiptFor(booking.ID),
		Notes: map[string]string{
			"booking_id":  booking.ID.String(),
			"resource_id": booking.ResourceID.String(),
		},
	}
	s.audits.LogOrderRequested(ctx, booking, "/orders", map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	})

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	gwOrder, err := s.gateway.CreateOrder(gctx, req)
	cancel()
	if err != nil {
		kind := KindGatewayError
		if errors.Is(err, gateway.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			kind = KindGatewayTimeout
		}
		s.audits.LogOrderFailed(ctx, booking, kind, err, started)
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"kind":       kind,
		}).Warn("Gateway order creation failed, booking stays draft")
		return nil, &BookingError{Kind: kind, Message: "the payment provider could not create an order, please retry", Err: err}
	}

	now := s.now()
	order := &models.PaymentOrder{
		ID:        gwOrder.ID,
		BookingID: booking.ID,
		Amount:    booking.FinalAmount,
		Currency:  booking.Currency,
		Status:    models.PaymentOrderCreated,
		Receipt:   req.Receipt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var updated *models.Booking
	err = database.WithTx(ctx, s.db, s.lockTimeout, func(tx *sqlx.Tx) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return err
		}
		updated, err = s.ledger.MarkAwaitingPayment(ctx, tx, booking.ID, order.ID)
		return err
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			// A concurrent retry attached its order first
			s.logger.WithFields(logrus.Fields{
				"booking_id":   booking.ID,
				"orphan_order": order.ID,
			}).Warn("Payment order already exists for booking")
			current, getErr := s.bookingRepo.GetByID(ctx, nil, booking.ID)
			if getErr == nil && current != nil && current.Status == models.BookingStatusAwaitingPayment {
				return s.existingOrder(ctx, current)
			}
		}
		if IsKind(err, KindInvalidStateTransition) {
			s.logger.WithFields(logrus.Fields{
				"booking_id":   booking.ID,
				"orphan_order": order.ID,
			}).Warn("Booking hold lapsed during gateway call")
		}
		return nil, translateDBError(err, "failed to attach payment order")
	}

	s.audits.LogOrderCreated(ctx, updated, order, started)

	s.logger.WithFields(logrus.Fields{
		"booking_id": updated.ID,
		"order_id":   order.ID,
		"amount":     order.Amount.StringFixed(2),
		"expires_at": updated.ExpiresAt,
	}).Info("Payment order created")

	return s.response(updated, order), nil
}

func (s *PaymentOrderService) existingOrder(ctx context.Context, booking *models.Booking) (*models.CreatePaymentOrderResponse, error) {
	order, err := s.orderRepo.GetByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, translateDBError(err, "failed to load payment order")
	}
	if order == nil {
		return nil, newError(KindNotFound, "payment order not found")
	}
	return s.response(booking, order), nil
}

func (s *PaymentOrderService) response(booking *models.Booking, order *models.PaymentOrder) *models.CreatePaymentOrderResponse {
	return &models.CreatePaymentOrderResponse{
		OrderID: order.ID,
		ClientHandle: models.ClientHandle{
			OrderID:     order.ID,
			KeyID:       s.gateway.KeyID(),
			Amount:      gateway.ToMinorUnits(order.Amount),
			Currency:    order.Currency,
			BookingID:   booking.ID,
			Description: "Booking " + booking.ID.String()[:8],
		},
	}
}

// receiptFor fits the gateway's 40 character receipt limit
func receiptFor(bookingID uuid.UUID) string {
	return "bk_" + strings.ReplaceAll(bookingID.String(), "-", "")
}
