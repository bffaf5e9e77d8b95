package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ============================================================================
// BOOKING STATUS & TRANSITIONS (matches DB ENUM booking_status)
// ============================================================================

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusDraft           BookingStatus = "draft"            // Capacity held, no payment order yet
	BookingStatusAwaitingPayment BookingStatus = "awaiting_payment" // Gateway order created
	BookingStatusConfirmed       BookingStatus = "confirmed"        // Payment verified
	BookingStatusCancelled       BookingStatus = "cancelled"        // Cancelled by requester
	BookingStatusExpired         BookingStatus = "expired"          // Grace period ran out
	BookingStatusFailed          BookingStatus = "failed"           // Gateway reported failure
)

// ActiveBookingStatuses hold capacity on a resource
var ActiveBookingStatuses = []BookingStatus{
	BookingStatusDraft,
	BookingStatusAwaitingPayment,
	BookingStatusConfirmed,
}

// bookingTransitions lists the allowed target states per source state
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusDraft: {
		BookingStatusAwaitingPayment,
		BookingStatusCancelled,
		BookingStatusExpired,
	},
	BookingStatusAwaitingPayment: {
		BookingStatusConfirmed,
		BookingStatusCancelled,
		BookingStatusExpired,
		BookingStatusFailed,
	},
}

// CanTransition reports whether from -> to is a legal ledger transition
func CanTransition(from, to BookingStatus) bool {
	for _, allowed := range bookingTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// SourceStatuses returns every state from which target is reachable
func SourceStatuses(target BookingStatus) []BookingStatus {
	var sources []BookingStatus
	for _, from := range []BookingStatus{BookingStatusDraft, BookingStatusAwaitingPayment} {
		if CanTransition(from, target) {
			sources = append(sources, from)
		}
	}
	return sources
}

// IsActive reports whether bookings in this state occupy capacity
func (s BookingStatus) IsActive() bool {
	for _, active := range ActiveBookingStatuses {
		if s == active {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// ============================================================================
// BOOKING ENTITY
// ============================================================================

// Booking is the authoritative reservation record. Rows are never deleted.
type Booking struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	ResourceID       uuid.UUID        `json:"resourceId" db:"resource_id"`
	UserID           uuid.UUID        `json:"userId" db:"user_id"`
	RequesterContact string           `json:"requesterContact" db:"requester_contact"`
	Category         ResourceCategory `json:"category" db:"category"`
	IntervalStart    time.Time        `json:"intervalStart" db:"interval_start"`
	IntervalEnd      time.Time        `json:"intervalEnd" db:"interval_end"`
	PartySize        int              `json:"partySize" db:"party_size"`
	Units            int              `json:"units" db:"units"`

	// Pricing: final_amount = base_amount - discount_amount
	BaseAmount     decimal.Decimal `json:"baseAmount" db:"base_amount"`
	DiscountAmount decimal.Decimal `json:"discountAmount" db:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"finalAmount" db:"final_amount"`
	Currency       string          `json:"currency" db:"currency"`
	CouponCode     *string         `json:"couponCode,omitempty" db:"coupon_code"`

	Status           BookingStatus `json:"status" db:"status"`
	PaymentOrderID   *string       `json:"paymentOrderId,omitempty" db:"payment_order_id"`
	PaymentReference *string       `json:"paymentReference,omitempty" db:"payment_reference"`
	FailureReason    *string       `json:"failureReason,omitempty" db:"failure_reason"`

	ExpiresAt *time.Time `json:"expiresAt,omitempty" db:"expires_at"` // kept on expiry, cleared by every other exit from a hold
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

// Interval returns the half-open window the booking occupies
func (b *Booking) Interval() Interval {
	return Interval{Start: b.IntervalStart, End: b.IntervalEnd}
}

// IsExpired checks if the hold deadline has passed
func (b *Booking) IsExpired(now time.Time) bool {
	return b.ExpiresAt != nil && !now.Before(*b.ExpiresAt)
}

// CanCreatePaymentOrder checks if a gateway order may be attached
func (b *Booking) CanCreatePaymentOrder(now time.Time) bool {
	return b.Status == BookingStatusDraft && !b.IsExpired(now)
}

// AmountsConsistent checks the pricing invariants of the row
func (b *Booking) AmountsConsistent() bool {
	return !b.DiscountAmount.IsNegative() &&
		!b.FinalAmount.IsNegative() &&
		b.BaseAmount.Sub(b.DiscountAmount).Equal(b.FinalAmount)
}

// ============================================================================
// REQUEST / RESPONSE DTOs
// ============================================================================

// CreateBookingRequest is the body of POST /bookings
type CreateBookingRequest struct {
	ResourceID       uuid.UUID `json:"resourceId" binding:"required"`
	IntervalStart    time.Time `json:"intervalStart" binding:"required"`
	IntervalEnd      time.Time `json:"intervalEnd" binding:"required"`
	PartySize        int       `json:"partySize"`
	CouponCode       *string   `json:"couponCode,omitempty"`
	RequesterContact string    `json:"requesterContact" binding:"required"`
}

// Interval returns the requested window
func (r *CreateBookingRequest) Interval() Interval {
	return Interval{Start: r.IntervalStart, End: r.IntervalEnd}
}

// HasCoupon reports whether a non-blank coupon code was supplied
func (r *CreateBookingRequest) HasCoupon() bool {
	return r.CouponCode != nil && *r.CouponCode != ""
}

// BookingResponse is the client view of a booking
type BookingResponse struct {
	BookingID      uuid.UUID       `json:"bookingId"`
	ResourceID     uuid.UUID       `json:"resourceId"`
	Status         BookingStatus   `json:"status"`
	IntervalStart  time.Time       `json:"intervalStart"`
	IntervalEnd    time.Time       `json:"intervalEnd"`
	PartySize      int             `json:"partySize"`
	BaseAmount     decimal.Decimal `json:"baseAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalAmount    decimal.Decimal `json:"finalAmount"`
	Currency       string          `json:"currency"`
	CouponCode     *string         `json:"couponCode,omitempty"`
	PaymentOrderID *string         `json:"paymentOrderId,omitempty"`
	ExpiresAt      *time.Time      `json:"expiresAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// NewBookingResponse builds the client view from the entity
func NewBookingResponse(b *Booking) BookingResponse {
	return BookingResponse{
		BookingID:      b.ID,
		ResourceID:     b.ResourceID,
		Status:         b.Status,
		IntervalStart:  b.IntervalStart,
		IntervalEnd:    b.IntervalEnd,
		PartySize:      b.PartySize,
		BaseAmount:     b.BaseAmount,
		DiscountAmount: b.DiscountAmount,
		FinalAmount:    b.FinalAmount,
		Currency:       b.Currency,
		CouponCode:     b.CouponCode,
		PaymentOrderID: b.PaymentOrderID,
		ExpiresAt:      b.ExpiresAt,
		CreatedAt:      b.CreatedAt,
	}
}

// BookingListResponse wraps a page of bookings
type BookingListResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Count    int               `json:"count"`
}

// BookingEvent is published on the message bus after a ledger transition commits
type BookingEvent struct {
	BookingID        uuid.UUID       `json:"bookingId"`
	ResourceID       uuid.UUID       `json:"resourceId"`
	UserID           uuid.UUID       `json:"userId"`
	Status           BookingStatus   `json:"status"`
	FinalAmount      decimal.Decimal `json:"finalAmount"`
	Currency         string          `json:"currency"`
	PaymentReference *string         `json:"paymentReference,omitempty"`
	Reason           *string         `json:"reason,omitempty"`
	OccurredAt       time.Time       `json:"occurredAt"`
}

// NewBookingEvent snapshots a booking for publishing
func NewBookingEvent(b *Booking, at time.Time) BookingEvent {
	return BookingEvent{
		BookingID:        b.ID,
		ResourceID:       b.ResourceID,
		UserID:           b.UserID,
		Status:           b.Status,
		FinalAmount:      b.FinalAmount,
		Currency:         b.Currency,
		PaymentReference: b.PaymentReference,
		Reason:           b.FailureReason,
		OccurredAt:       at,
	}
}
