package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// PaymentAuditColumns lists the audit columns in scan order
var PaymentAuditColumns = []string{
	"id", "booking_id", "order_id", "provider_reference",
	"event_type", "event_source",
	"amount", "currency", "payment_status",
	"request_payload", "response_payload",
	"http_status_code", "http_method", "endpoint_url",
	"error_message", "error_code",
	"processing_time_ms", "is_duplicate",
	"ip_address", "user_agent", "device_type",
	"created_at", "processed_at",
}

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new payment audit entry.
// Audits are written outside booking transactions so a rolled back
// confirmation still leaves a trace.
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, booking_id, order_id, provider_reference,
			event_type, event_source,
			amount, currency, payment_status,
			request_payload, response_payload,
			http_status_code, http_method, endpoint_url,
			error_message, error_code,
			processing_time_ms, is_duplicate,
			ip_address, user_agent, device_type,
			created_at, processed_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9,
			$10, $11,
			$12, $13, $14,
			$15, $16,
			$17, $18,
			$19, $20, $21,
			$22, $23
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.BookingID, audit.OrderID, audit.ProviderReference,
		audit.EventType, audit.EventSource,
		audit.Amount, audit.Currency, audit.PaymentStatus,
		audit.RequestPayload, audit.ResponsePayload,
		audit.HTTPStatusCode, audit.HTTPMethod, audit.EndpointURL,
		audit.ErrorMessage, audit.ErrorCode,
		audit.ProcessingTimeMs, audit.IsDuplicate,
		audit.IPAddress, audit.UserAgent, audit.DeviceType,
		audit.CreatedAt, audit.ProcessedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"order_id":   audit.OrderID,
		}).Error("Failed to log payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
		"order_id":   audit.OrderID,
	}).Debug("Payment audit logged")

	return nil
}

// GetByOrderID retrieves all audit entries for a gateway order
func (r *PaymentAuditRepository) GetByOrderID(ctx context.Context, orderID string) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT ` + strings.Join(PaymentAuditColumns, ", ") + `
		FROM payment_audits
		WHERE order_id = $1
		ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &audits, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audits by order ID: %w", err)
	}

	return audits, nil
}
