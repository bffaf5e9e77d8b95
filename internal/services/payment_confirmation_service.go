package services

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/localbazaar/reservation-backend/internal/database"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/localbazaar/reservation-backend/pkg/gateway"
	"github.com/sirupsen/logrus"
)

// PaymentConfirmationService settles gateway payment notices against bookings.
// Deliveries may be duplicated, reordered or replayed; each order settles once.
type PaymentConfirmationService struct {
	db            database.DB
	bookingRepo   *database.BookingRepository
	orderRepo     *database.PaymentOrderRepository
	ledger        *BookingLedgerService
	audits        *PaymentAuditService
	webhookSecret string
	lockTimeout   time.Duration
	logger        *logrus.Logger
	now           func() time.Time
}

// NewPaymentConfirmationService creates a new PaymentConfirmationService
func NewPaymentConfirmationService(
	db database.DB,
	bookingRepo *database.BookingRepository,
	orderRepo *database.PaymentOrderRepository,
	ledger *BookingLedgerService,
	audits *PaymentAuditService,
	webhookSecret string,
	lockTimeout time.Duration,
	logger *logrus.Logger,
) *PaymentConfirmationService {
	return &PaymentConfirmationService{
		db:            db,
		bookingRepo:   bookingRepo,
		orderRepo:     orderRepo,
		ledger:        ledger,
		audits:        audits,
		webhookSecret: webhookSecret,
		lockTimeout:   lockTimeout,
		logger:        logger,
		now:           time.Now,
	}
}

// settlement is what one confirmation transaction decided
type settlement struct {
	booking      *models.Booking
	duplicate    bool  // order was already settled before this delivery
	transitioned bool  // this delivery moved the booking
	lapsed       error // payment captured but booking no longer payable
}

// Confirm verifies and applies a payment notice. The response for a replay
// is identical to the first delivery.
func (s *PaymentConfirmationService) Confirm(ctx context.Context, req *models.ConfirmPaymentRequest, meta models.AuditMeta) (*models.ConfirmPaymentResponse, error) {
	started := time.Now()

	if req.Status != "" && req.Status != models.ProviderStatusPaid && req.Status != models.ProviderStatusFailed {
		return nil, newError(KindValidation, "status must be %q or %q", models.ProviderStatusPaid, models.ProviderStatusFailed)
	}
	failed := req.IsFailure()

	// 1. Authenticity
	payload, err := gateway.CanonicalPayload(req.OrderID, req.ProviderReference, failed)
	if err != nil {
		verr := newError(KindValidation, "orderId and providerReference must not contain '|'")
		s.audits.LogConfirmation(ctx, models.PaymentEventInvalidSignature, req, meta, started, WithError(verr))
		return nil, verr
	}
	if !gateway.VerifySignature(s.webhookSecret, payload, req.Signature) {
		err := newError(KindInvalidSignature, "payment signature does not match")
		s.audits.LogConfirmation(ctx, models.PaymentEventInvalidSignature, req, meta, started, WithError(err))
		s.logger.WithFields(logrus.Fields{
			"order_id":   req.OrderID,
			"ip_address": meta.IPAddress,
		}).Warn("Rejected payment notice with invalid signature")
		return nil, err
	}

	// 2-4. Settle under the order row lock
	var result settlement
	err = database.WithTx(ctx, s.db, s.lockTimeout, func(tx *sqlx.Tx) error {
		result = settlement{}

		order, err := s.orderRepo.LockByID(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return newError(KindUnknownOrder, "payment order %s is not known", req.OrderID)
		}

		if order.Status.IsFinal() {
			return s.replay(ctx, tx, order, &result)
		}

		return s.settle(ctx, tx, order, req, failed, &result)
	})
	if err != nil {
		eventType := models.PaymentEventError
		if IsKind(err, KindUnknownOrder) {
			eventType = models.PaymentEventUnknownOrder
			s.logger.WithField("order_id", req.OrderID).Warn("Discarding payment notice for unknown order")
		} else {
			s.logger.WithError(err).WithField("order_id", req.OrderID).Error("Failed to apply payment notice")
		}
		s.audits.LogConfirmation(ctx, eventType, req, meta, started, WithError(err))
		return nil, translateDBError(err, "failed to confirm payment")
	}

	booking := result.booking

	if result.lapsed != nil {
		opts := []AuditOption{WithBooking(booking), WithError(result.lapsed)}
		if result.duplicate {
			opts = append(opts, AsDuplicate())
		}
		s.audits.LogConfirmation(ctx, models.PaymentEventBookingConfirmFailed, req, meta, started, opts...)
		s.logger.WithFields(logrus.Fields{
			"booking_id":         booking.ID,
			"booking_status":     booking.Status,
			"order_id":           req.OrderID,
			"provider_reference": req.ProviderReference,
		}).Error("Payment captured for a booking that is no longer payable, refund required")
		return nil, result.lapsed
	}

	switch {
	case result.duplicate:
		s.audits.LogConfirmation(ctx, models.PaymentEventConfirmationReceived, req, meta, started, WithBooking(booking), AsDuplicate())
		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"order_id":   req.OrderID,
		}).Info("Duplicate payment notice ignored")
	case failed:
		s.audits.LogConfirmation(ctx, models.PaymentEventFailed, req, meta, started, WithBooking(booking))
		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"order_id":   req.OrderID,
			"status":     booking.Status,
		}).Info("Payment failed")
	default:
		s.audits.LogConfirmation(ctx, models.PaymentEventBookingConfirmed, req, meta, started, WithBooking(booking))
		s.logger.WithFields(logrus.Fields{
			"booking_id":         booking.ID,
			"order_id":           req.OrderID,
			"provider_reference": req.ProviderReference,
		}).Info("Booking confirmed")
	}

	// 5. Publish after commit
	if result.transitioned {
		s.ledger.NotifyTransition(ctx, booking)
	}

	return &models.ConfirmPaymentResponse{
		BookingID: booking.ID,
		Status:    booking.Status,
	}, nil
}

// settle moves a created order to paid or failed and drives the booking
func (s *PaymentConfirmationService) settle(ctx context.Context, tx *sqlx.Tx, order *models.PaymentOrder, req *models.ConfirmPaymentRequest, failed bool, result *settlement) error {
	status := models.PaymentOrderPaid
	var reason *string
	if failed {
		status = models.PaymentOrderFailed
		r := req.Reason
		if r == "" {
			r = "payment failed at provider"
		}
		reason = &r
	}

	if err := s.orderRepo.Settle(ctx, tx, order.ID, status, req.ProviderReference, req.Signature, reason, s.now()); err != nil {
		return err
	}

	var booking *models.Booking
	var err error
	if failed {
		booking, err = s.ledger.Fail(ctx, tx, order.BookingID, *reason)
	} else {
		booking, err = s.ledger.Confirm(ctx, tx, order.BookingID, req.ProviderReference)
	}

	if err != nil {
		if !IsKind(err, KindInvalidStateTransition) {
			return err
		}
		// Keep the settlement: the order outcome is a fact even if the
		// booking already left awaiting_payment
		current, getErr := s.bookingRepo.GetByID(ctx, tx, order.BookingID)
		if getErr != nil {
			return getErr
		}
		if current == nil {
			return newError(KindNotFound, "booking for order %s not found", order.ID)
		}
		result.booking = current
		if !failed {
			result.lapsed = err
		}
		return nil
	}

	result.booking = booking
	result.transitioned = true
	return nil
}

// replay answers a delivery for an order that was already settled
func (s *PaymentConfirmationService) replay(ctx context.Context, tx *sqlx.Tx, order *models.PaymentOrder, result *settlement) error {
	booking, err := s.bookingRepo.GetByID(ctx, tx, order.BookingID)
	if err != nil {
		return err
	}
	if booking == nil {
		return newError(KindNotFound, "booking for order %s not found", order.ID)
	}

	result.booking = booking
	result.duplicate = true
	if order.Status == models.PaymentOrderPaid && booking.Status != models.BookingStatusConfirmed {
		result.lapsed = newError(KindInvalidStateTransition, "booking is %s and cannot move to %s", booking.Status, models.BookingStatusConfirmed)
	}
	return nil
}
