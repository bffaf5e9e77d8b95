package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventOrderRequested       PaymentEventType = "order_requested"
	PaymentEventOrderCreated         PaymentEventType = "order_created"
	PaymentEventOrderFailed          PaymentEventType = "order_failed"
	PaymentEventConfirmationReceived PaymentEventType = "confirmation_received"
	PaymentEventInvalidSignature     PaymentEventType = "invalid_signature"
	PaymentEventUnknownOrder         PaymentEventType = "unknown_order"
	PaymentEventSuccess              PaymentEventType = "payment_success"
	PaymentEventFailed               PaymentEventType = "payment_failed"
	PaymentEventBookingConfirmed     PaymentEventType = "booking_confirmed"
	PaymentEventBookingConfirmFailed PaymentEventType = "booking_confirmation_failed"
	PaymentEventError                PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend        PaymentEventSource = "backend"
	PaymentSourceGatewayAPI     PaymentEventSource = "gateway_api"
	PaymentSourceGatewayWebhook PaymentEventSource = "gateway_webhook"
	PaymentSourceClient         PaymentEventSource = "client_callback"
)

// PaymentAudit represents an immutable audit log entry for payment events
type PaymentAudit struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	BookingID         *uuid.UUID `json:"bookingId,omitempty" db:"booking_id"`
	OrderID           *string    `json:"orderId,omitempty" db:"order_id"`
	ProviderReference *string    `json:"providerReference,omitempty" db:"provider_reference"`

	// Event info
	EventType   PaymentEventType   `json:"eventType" db:"event_type"`
	EventSource PaymentEventSource `json:"eventSource" db:"event_source"`

	// Amount tracking
	Amount   decimal.NullDecimal `json:"amount" db:"amount"`
	Currency *string             `json:"currency,omitempty" db:"currency"`

	// Status
	PaymentStatus *string `json:"paymentStatus,omitempty" db:"payment_status"`

	// Raw payloads
	RequestPayload  JSONB `json:"requestPayload,omitempty" db:"request_payload"`
	ResponsePayload JSONB `json:"responsePayload,omitempty" db:"response_payload"`

	// HTTP details
	HTTPStatusCode *int    `json:"httpStatusCode,omitempty" db:"http_status_code"`
	HTTPMethod     *string `json:"httpMethod,omitempty" db:"http_method"`
	EndpointURL    *string `json:"endpointUrl,omitempty" db:"endpoint_url"`

	// Error tracking
	ErrorMessage *string `json:"errorMessage,omitempty" db:"error_message"`
	ErrorCode    *string `json:"errorCode,omitempty" db:"error_code"`

	// Processing info
	ProcessingTimeMs *int `json:"processingTimeMs,omitempty" db:"processing_time_ms"`
	IsDuplicate      bool `json:"isDuplicate" db:"is_duplicate"`

	// Caller metadata
	IPAddress  *string `json:"ipAddress,omitempty" db:"ip_address"`
	UserAgent  *string `json:"userAgent,omitempty" db:"user_agent"`
	DeviceType *string `json:"deviceType,omitempty" db:"device_type"`

	// Timestamps
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	ProcessedAt *time.Time `json:"processedAt,omitempty" db:"processed_at"`
}

// AuditMeta carries request metadata from the HTTP layer into services
type AuditMeta struct {
	IPAddress  string
	UserAgent  string
	DeviceType string
	Source     PaymentEventSource
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetBooking sets the booking ID for the audit
func (pa *PaymentAudit) SetBooking(bookingID uuid.UUID) *PaymentAudit {
	pa.BookingID = &bookingID
	return pa
}

// SetOrder sets the gateway order ID
func (pa *PaymentAudit) SetOrder(orderID string) *PaymentAudit {
	pa.OrderID = &orderID
	return pa
}

// SetProviderReference sets the gateway payment reference
func (pa *PaymentAudit) SetProviderReference(ref string) *PaymentAudit {
	if ref != "" {
		pa.ProviderReference = &ref
	}
	return pa
}

// SetAmount records the amount and currency the event concerns
func (pa *PaymentAudit) SetAmount(amount decimal.Decimal, currency string) *PaymentAudit {
	pa.Amount = decimal.NewNullDecimal(amount)
	pa.Currency = &currency
	return pa
}

// SetPaymentStatus sets the payment status from gateway
func (pa *PaymentAudit) SetPaymentStatus(status string) *PaymentAudit {
	pa.PaymentStatus = &status
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string, code string) *PaymentAudit {
	pa.ErrorMessage = &message
	if code != "" {
		pa.ErrorCode = &code
	}
	return pa
}

// SetHTTPDetails sets HTTP request/response details
func (pa *PaymentAudit) SetHTTPDetails(method string, url string, statusCode int) *PaymentAudit {
	pa.HTTPMethod = &method
	pa.EndpointURL = &url
	pa.HTTPStatusCode = &statusCode
	return pa
}

// SetRequestPayload sets the request payload sent or received
func (pa *PaymentAudit) SetRequestPayload(payload map[string]interface{}) *PaymentAudit {
	pa.RequestPayload = JSONB(payload)
	return pa
}

// SetResponsePayload sets the response payload received
func (pa *PaymentAudit) SetResponsePayload(payload map[string]interface{}) *PaymentAudit {
	pa.ResponsePayload = JSONB(payload)
	return pa
}

// SetMetadata sets caller metadata
func (pa *PaymentAudit) SetMetadata(meta AuditMeta) *PaymentAudit {
	if meta.IPAddress != "" {
		pa.IPAddress = &meta.IPAddress
	}
	if meta.UserAgent != "" {
		pa.UserAgent = &meta.UserAgent
	}
	if meta.DeviceType != "" {
		pa.DeviceType = &meta.DeviceType
	}
	return pa
}

// SetProcessingTime calculates and sets processing time
func (pa *PaymentAudit) SetProcessingTime(startTime time.Time) *PaymentAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	now := time.Now()
	pa.ProcessedAt = &now
	return pa
}

// MarkAsDuplicate marks this event as a replayed delivery
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}
