package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/localbazaar/reservation-backend/internal/database"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/localbazaar/reservation-backend/pkg/events"
	"github.com/localbazaar/reservation-backend/pkg/validator"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// EventPublisher sends booking lifecycle events to the message bus.
// Implemented by events.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, key string, v any) error
}

// LedgerConfig holds the timing rules of the booking lifecycle
type LedgerConfig struct {
	GracePeriod   time.Duration // draft hold
	PaymentWindow time.Duration // minimum hold once a gateway order exists
	LockTimeout   time.Duration
	Currency      string
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
	publishTimeout   = 5 * time.Second
)

// BookingLedgerService owns every write to bookings.status
type BookingLedgerService struct {
	db           database.DB
	resourceRepo *database.ResourceRepository
	bookingRepo  *database.BookingRepository
	availability *AvailabilityService
	coupons      *CouponService
	contacts     *validator.ContactValidator
	publisher    EventPublisher
	config       LedgerConfig
	logger       *logrus.Logger
	now          func() time.Time
}

// NewBookingLedgerService creates a new BookingLedgerService. publisher may be nil.
func NewBookingLedgerService(
	db database.DB,
	resourceRepo *database.ResourceRepository,
	bookingRepo *database.BookingRepository,
	availability *AvailabilityService,
	coupons *CouponService,
	publisher EventPublisher,
	config LedgerConfig,
	logger *logrus.Logger,
) *BookingLedgerService {
	return &BookingLedgerService{
		db:           db,
		resourceRepo: resourceRepo,
		bookingRepo:  bookingRepo,
		availability: availability,
		coupons:      coupons,
		contacts:     validator.NewContactValidator(),
		publisher:    publisher,
		config:       config,
		logger:       logger,
		now:          time.Now,
	}
}

// ============================================================================
// CREATE
// ============================================================================

// Create reserves capacity for a new draft booking.
// Lock order: resource row, then coupon row.
func (s *BookingLedgerService) Create(ctx context.Context, req *models.CreateBookingRequest, userID uuid.UUID) (*models.Booking, error) {
	contact, _, err := s.contacts.Normalize(req.RequesterContact)
	if err != nil {
		return nil, newError(KindValidation, "requesterContact: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.LockTimeout+2*time.Second)
	defer cancel()

	interval := req.Interval()
	bookingID := uuid.New()
	var booking *models.Booking

	err = database.WithTx(ctx, s.db, s.config.LockTimeout, func(tx *sqlx.Tx) error {
		// 1. Serialize creators on this resource
		resource, err := s.resourceRepo.LockByID(ctx, tx, req.ResourceID)
		if err != nil {
			return err
		}

		// 2. Interval and party rules
		units, err := s.availability.ValidateRequest(resource, interval, req.PartySize)
		if err != nil {
			return err
		}

		// 3. Capacity
		result, err := s.availability.Check(ctx, tx, resource, interval)
		if err != nil {
			return err
		}
		if !result.Available {
			return newError(KindUnavailable, "%s is fully booked for the requested time", resource.Name)
		}

		base := BaseAmount(resource, units)
		discount := decimal.Zero
		var couponCode *string

		// 4. Coupon
		if req.HasCoupon() {
			code := models.NormalizeCouponCode(*req.CouponCode)
			candidate := models.CouponCandidate{Category: resource.Category, BaseAmount: base}
			discount, err = s.coupons.Redeem(ctx, tx, code, candidate, userID, bookingID)
			if err != nil {
				return err
			}
			couponCode = &code
		}

		// 5. Draft row
		now := s.now()
		expiresAt := now.Add(s.config.GracePeriod)
		booking = &models.Booking{
			ID:               bookingID,
			ResourceID:       resource.ID,
			UserID:           userID,
			RequesterContact: contact,
			Category:         resource.Category,
			IntervalStart:    interval.Start,
			IntervalEnd:      interval.End,
			PartySize:        req.PartySize,
			Units:            units,
			BaseAmount:       base,
			DiscountAmount:   discount,
			FinalAmount:      base.Sub(discount),
			Currency:         s.config.Currency,
			CouponCode:       couponCode,
			Status:           models.BookingStatusDraft,
			ExpiresAt:        &expiresAt,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return s.bookingRepo.Create(ctx, tx, booking)
	})
	if err != nil {
		if KindOf(err) == "" {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"resource_id": req.ResourceID,
				"user_id":     userID,
			}).Error("Failed to create booking")
		}
		return nil, translateDBError(err, "failed to create booking")
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":   booking.ID,
		"resource_id":  booking.ResourceID,
		"user_id":      userID,
		"final_amount": booking.FinalAmount.StringFixed(2),
		"expires_at":   booking.ExpiresAt,
	}).Info("Draft booking created")

	return booking, nil
}

// ============================================================================
// TRANSITIONS
// ============================================================================

// MarkAwaitingPayment attaches a gateway order to an unexpired draft and
// extends the hold to cover the payment window
func (s *BookingLedgerService) MarkAwaitingPayment(ctx context.Context, tx *sqlx.Tx, bookingID uuid.UUID, orderID string) (*models.Booking, error) {
	now := s.now()
	booking, err := s.bookingRepo.MarkAwaitingPayment(ctx, tx, bookingID, orderID, now.Add(s.config.PaymentWindow), now)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, s.resolveMiss(ctx, tx, bookingID, models.BookingStatusAwaitingPayment)
	}
	return booking, nil
}

// Confirm records a successful payment. A replay with the same reference
// returns the confirmed booking unchanged.
func (s *BookingLedgerService) Confirm(ctx context.Context, tx *sqlx.Tx, bookingID uuid.UUID, paymentReference string) (*models.Booking, error) {
	booking, err := s.bookingRepo.Confirm(ctx, tx, bookingID, paymentReference, s.now())
	if err != nil {
		return nil, err
	}
	if booking != nil {
		return booking, nil
	}

	current, err := s.bookingRepo.GetByID(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.Status == models.BookingStatusConfirmed &&
		current.PaymentReference != nil && *current.PaymentReference == paymentReference {
		return current, nil
	}
	return nil, s.missError(bookingID, current, models.BookingStatusConfirmed)
}

// Fail records a failed payment on an awaiting_payment booking
func (s *BookingLedgerService) Fail(ctx context.Context, tx *sqlx.Tx, bookingID uuid.UUID, reason string) (*models.Booking, error) {
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	booking, err := s.bookingRepo.Terminate(ctx, tx, bookingID, models.BookingStatusFailed,
		models.SourceStatuses(models.BookingStatusFailed), reasonPtr, s.now())
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, s.resolveMiss(ctx, tx, bookingID, models.BookingStatusFailed)
	}
	return booking, nil
}

// Cancel releases a draft or awaiting_payment booking. Only the requester may cancel.
func (s *BookingLedgerService) Cancel(ctx context.Context, bookingID, userID uuid.UUID) (*models.Booking, error) {
	var booking *models.Booking

	err := database.WithTx(ctx, s.db, s.config.LockTimeout, func(tx *sqlx.Tx) error {
		current, err := s.bookingRepo.GetByID(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if current == nil {
			return newError(KindNotFound, "booking not found")
		}
		if current.UserID != userID {
			return newError(KindForbidden, "only the requester can cancel this booking")
		}

		reason := "cancelled by requester"
		booking, err = s.bookingRepo.Terminate(ctx, tx, bookingID, models.BookingStatusCancelled,
			models.SourceStatuses(models.BookingStatusCancelled), &reason, s.now())
		if err != nil {
			return err
		}
		if booking == nil {
			return s.resolveMiss(ctx, tx, bookingID, models.BookingStatusCancelled)
		}
		return nil
	})
	if err != nil {
		return nil, translateDBError(err, "failed to cancel booking")
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"user_id":    userID,
	}).Info("Booking cancelled")

	s.NotifyTransition(ctx, booking)
	return booking, nil
}

// Expire moves a booking whose hold ran out into expired
func (s *BookingLedgerService) Expire(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	var booking *models.Booking

	err := database.WithTx(ctx, s.db, s.config.LockTimeout, func(tx *sqlx.Tx) error {
		var err error
		booking, err = s.bookingRepo.Expire(ctx, tx, bookingID, s.now())
		if err != nil {
			return err
		}
		if booking == nil {
			return s.resolveMiss(ctx, tx, bookingID, models.BookingStatusExpired)
		}
		return nil
	})
	if err != nil {
		return nil, translateDBError(err, "failed to expire booking")
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"resource_id": booking.ResourceID,
	}).Info("Booking expired")

	s.NotifyTransition(ctx, booking)
	return booking, nil
}

// ============================================================================
// READS
// ============================================================================

// Get returns a booking to its requester
func (s *BookingLedgerService) Get(ctx context.Context, bookingID, userID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, nil, bookingID)
	if err != nil {
		return nil, translateDBError(err, "failed to get booking")
	}
	if booking == nil {
		return nil, newError(KindNotFound, "booking not found")
	}
	if booking.UserID != userID {
		return nil, newError(KindForbidden, "booking belongs to another user")
	}
	return booking, nil
}

// List returns the requester's bookings, newest first
func (s *BookingLedgerService) List(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Booking, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	bookings, err := s.bookingRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, translateDBError(err, "failed to list bookings")
	}
	return bookings, nil
}

// ============================================================================
// HELPERS
// ============================================================================

// NotifyTransition publishes the booking's current state. Call only after
// the transaction that produced it committed.
func (s *BookingLedgerService) NotifyTransition(ctx context.Context, booking *models.Booking) {
	if s.publisher == nil || booking == nil {
		return
	}

	key, ok := events.RoutingKey(string(booking.Status))
	if !ok {
		return
	}

	// The request context may already be cancelled after commit
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, key, models.NewBookingEvent(booking, s.now())); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id":  booking.ID,
			"routing_key": key,
		}).Warn("Failed to publish booking event")
	}
}

// resolveMiss re-reads a booking after a guarded update matched no row
func (s *BookingLedgerService) resolveMiss(ctx context.Context, q sqlx.QueryerContext, bookingID uuid.UUID, target models.BookingStatus) error {
	current, err := s.bookingRepo.GetByID(ctx, q, bookingID)
	if err != nil {
		return err
	}
	return s.missError(bookingID, current, target)
}

func (s *BookingLedgerService) missError(bookingID uuid.UUID, current *models.Booking, target models.BookingStatus) error {
	if current == nil {
		return newError(KindNotFound, "booking not found")
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"from":       current.Status,
		"to":         target,
	}).Error("Rejected booking state transition")

	switch {
	case target == models.BookingStatusAwaitingPayment && current.Status == models.BookingStatusDraft:
		return newError(KindInvalidStateTransition, "booking hold has expired")
	case target == models.BookingStatusExpired &&
		(current.Status == models.BookingStatusDraft || current.Status == models.BookingStatusAwaitingPayment):
		return newError(KindInvalidStateTransition, "booking hold has not expired yet")
	}
	return newError(KindInvalidStateTransition, "booking is %s and cannot move to %s", current.Status, target)
}
