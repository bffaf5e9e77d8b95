package services

import (
	"context"
	"time"

	"github.com/localbazaar/reservation-backend/internal/database"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// PaymentAuditService writes the immutable payment audit trail.
// Audit failures are logged and never fail the payment flow.
type PaymentAuditService struct {
	repo   *database.PaymentAuditRepository
	logger *logrus.Logger
}

// NewPaymentAuditService creates a new audit service
func NewPaymentAuditService(repo *database.PaymentAuditRepository, logger *logrus.Logger) *PaymentAuditService {
	return &PaymentAuditService{
		repo:   repo,
		logger: logger,
	}
}

// LogOrderRequested records an outgoing gateway order request
func (s *PaymentAuditService) LogOrderRequested(ctx context.Context, booking *models.Booking, endpoint string, payload map[string]interface{}) {
	audit := models.NewPaymentAudit(models.PaymentEventOrderRequested, models.PaymentSourceBackend).
		SetBooking(booking.ID).
		SetAmount(booking.FinalAmount, booking.Currency).
		SetHTTPDetails("POST", endpoint, 0).
		SetRequestPayload(payload)
	s.write(ctx, audit)
}

// LogOrderCreated records the gateway's answer to an order request
func (s *PaymentAuditService) LogOrderCreated(ctx context.Context, booking *models.Booking, order *models.PaymentOrder, started time.Time) {
	audit := models.NewPaymentAudit(models.PaymentEventOrderCreated, models.PaymentSourceGatewayAPI).
		SetBooking(booking.ID).
		SetOrder(order.ID).
		SetAmount(order.Amount, order.Currency).
		SetPaymentStatus(string(order.Status)).
		SetResponsePayload(map[string]interface{}{
			"order_id": order.ID,
			"receipt":  order.Receipt,
		}).
		SetProcessingTime(started)
	s.write(ctx, audit)
}

// LogOrderFailed records a gateway order that could not be created
func (s *PaymentAuditService) LogOrderFailed(ctx context.Context, booking *models.Booking, kind ErrorKind, err error, started time.Time) {
	audit := models.NewPaymentAudit(models.PaymentEventOrderFailed, models.PaymentSourceGatewayAPI).
		SetBooking(booking.ID).
		SetAmount(booking.FinalAmount, booking.Currency).
		SetError(err.Error(), string(kind)).
		SetProcessingTime(started)
	s.write(ctx, audit)
}

// LogConfirmation records an inbound payment notice and how it was resolved
func (s *PaymentAuditService) LogConfirmation(ctx context.Context, eventType models.PaymentEventType, req *models.ConfirmPaymentRequest, meta models.AuditMeta, started time.Time, opts ...AuditOption) {
	source := meta.Source
	if source == "" {
		source = models.PaymentSourceGatewayWebhook
	}

	status := models.ProviderStatusPaid
	if req.IsFailure() {
		status = models.ProviderStatusFailed
	}

	audit := models.NewPaymentAudit(eventType, source).
		SetOrder(req.OrderID).
		SetProviderReference(req.ProviderReference).
		SetPaymentStatus(status).
		SetRequestPayload(map[string]interface{}{
			"order_id":           req.OrderID,
			"provider_reference": req.ProviderReference,
			"status":             status,
			"reason":             req.Reason,
		}).
		SetMetadata(meta).
		SetProcessingTime(started)

	for _, opt := range opts {
		opt(audit)
	}
	s.write(ctx, audit)
}

// AuditOption decorates a confirmation audit entry
type AuditOption func(*models.PaymentAudit)

// WithBooking attaches the booking and its amount
func WithBooking(booking *models.Booking) AuditOption {
	return func(a *models.PaymentAudit) {
		if booking == nil {
			return
		}
		a.SetBooking(booking.ID).SetAmount(booking.FinalAmount, booking.Currency)
	}
}

// WithError records the failure that ended processing
func WithError(err error) AuditOption {
	return func(a *models.PaymentAudit) {
		if err == nil {
			return
		}
		kind := KindOf(err)
		if kind == "" {
			kind = "internal_error"
		}
		a.SetError(err.Error(), string(kind))
	}
}

// AsDuplicate flags a replayed delivery
func AsDuplicate() AuditOption {
	return func(a *models.PaymentAudit) {
		a.MarkAsDuplicate()
	}
}

func (s *PaymentAuditService) write(ctx context.Context, audit *models.PaymentAudit) {
	if s == nil || s.repo == nil {
		return
	}
	// Audits outlive a cancelled request
	if err := s.repo.Log(context.WithoutCancel(ctx), audit); err != nil {
		s.logger.WithError(err).WithField("event_type", audit.EventType).Error("AUDIT ERROR")
	}
}

// History returns the audit trail of one gateway order, oldest first
func (s *PaymentAuditService) History(ctx context.Context, orderID string) ([]*models.PaymentAudit, error) {
	if orderID == "" {
		return nil, newError(KindValidation, "order id is required")
	}
	audits, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(audits) == 0 {
		return nil, newError(KindNotFound, "no audit entries for order %s", orderID)
	}
	return audits, nil
}
