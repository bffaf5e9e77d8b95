package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// SignatureHeader carries the gateway signature when it is not in the body
const SignatureHeader = "X-Payment-Signature"

// PaymentConfirmer settles payment notices.
// Implemented by services.PaymentConfirmationService.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, req *models.ConfirmPaymentRequest, meta models.AuditMeta) (*models.ConfirmPaymentResponse, error)
}

// PaymentHandler handles gateway payment confirmations
type PaymentHandler struct {
	confirmer PaymentConfirmer
	logger    *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(confirmer PaymentConfirmer, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		confirmer: confirmer,
		logger:    logger,
	}
}

// ConfirmPayment handles POST /api/v1/payments/confirm.
// Authenticity comes from the signature, not from a session.
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	var req models.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Signature == "" {
		req.Signature = c.GetHeader(SignatureHeader)
	}

	resp, err := h.confirmer.Confirm(c.Request.Context(), &req, paymentCallerMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
