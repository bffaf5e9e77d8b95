package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentOrderStatus represents the state of a gateway order
type PaymentOrderStatus string

const (
	PaymentOrderCreated PaymentOrderStatus = "created"
	PaymentOrderPaid    PaymentOrderStatus = "paid"
	PaymentOrderFailed  PaymentOrderStatus = "failed"
)

// IsFinal reports whether the order has already been settled one way or the other
func (s PaymentOrderStatus) IsFinal() bool {
	return s == PaymentOrderPaid || s == PaymentOrderFailed
}

// PaymentOrder links a gateway order 1:1 to a booking
type PaymentOrder struct {
	ID                string             `json:"id" db:"id"` // gateway-assigned order id
	BookingID         uuid.UUID          `json:"bookingId" db:"booking_id"`
	Amount            decimal.Decimal    `json:"amount" db:"amount"`
	Currency          string             `json:"currency" db:"currency"`
	Status            PaymentOrderStatus `json:"status" db:"status"`
	Receipt           string             `json:"receipt" db:"receipt"`
	ProviderReference *string            `json:"providerReference,omitempty" db:"provider_reference"`
	Signature         *string            `json:"-" db:"signature"` // signature material accepted at settlement
	FailureReason     *string            `json:"failureReason,omitempty" db:"failure_reason"`
	CreatedAt         time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time          `json:"updatedAt" db:"updated_at"`
	SettledAt         *time.Time         `json:"settledAt,omitempty" db:"settled_at"`
}

// ClientHandle is everything the client checkout SDK needs to open the order
type ClientHandle struct {
	OrderID     string    `json:"orderId"`
	KeyID       string    `json:"keyId"`
	Amount      int64     `json:"amount"` // minor units (paise)
	Currency    string    `json:"currency"`
	BookingID   uuid.UUID `json:"bookingId"`
	Description string    `json:"description,omitempty"`
}

// CreatePaymentOrderResponse is returned by POST /bookings/{id}/payment-order
type CreatePaymentOrderResponse struct {
	OrderID      string       `json:"orderId"`
	ClientHandle ClientHandle `json:"clientHandle"`
}

// Provider outcomes accepted by the confirmation endpoint
const (
	ProviderStatusPaid   = "paid"
	ProviderStatusFailed = "failed"
)

// ConfirmPaymentRequest is the body of POST /payments/confirm
type ConfirmPaymentRequest struct {
	OrderID           string `json:"orderId" binding:"required"`
	ProviderReference string `json:"providerReference" binding:"required"`
	Signature         string `json:"signature"`
	Status            string `json:"status,omitempty"` // "paid" (default) or "failed"
	Reason            string `json:"reason,omitempty"`
}

// IsFailure reports whether the gateway reported a failed payment
func (r *ConfirmPaymentRequest) IsFailure() bool {
	return r.Status == ProviderStatusFailed
}

// ConfirmPaymentResponse is identical for first delivery and every replay
type ConfirmPaymentResponse struct {
	BookingID uuid.UUID     `json:"bookingId"`
	Status    BookingStatus `json:"status"`
}
