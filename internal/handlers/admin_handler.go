package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/localbazaar/reservation-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// JobStatusReporter describes scheduled jobs.
// Implemented by services.CronService.
type JobStatusReporter interface {
	GetJobStatus() map[string]interface{}
}

// AuditHistory reads the payment audit trail.
// Implemented by services.PaymentAuditService.
type AuditHistory interface {
	History(ctx context.Context, orderID string) ([]*models.PaymentAudit, error)
}

// AdminHandler handles operator endpoints
type AdminHandler struct {
	sweeper services.Sweeper
	jobs    JobStatusReporter
	audits  AuditHistory
	logger  *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(sweeper services.Sweeper, jobs JobStatusReporter, audits AuditHistory, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		sweeper: sweeper,
		jobs:    jobs,
		audits:  audits,
		logger:  logger,
	}
}

// RunSweeper handles POST /api/v1/admin/sweeper/run
func (h *AdminHandler) RunSweeper(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Minute)
	defer cancel()

	started := time.Now()
	result, err := h.sweeper.RunOnce(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Manual expiry sweep failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			ErrorKind: "internal_error",
			Message:   "Expiry sweep failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":      result,
		"duration_ms": time.Since(started).Milliseconds(),
	})
}

// GetSweeperStatus handles GET /api/v1/admin/sweeper/status
func (h *AdminHandler) GetSweeperStatus(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusOK, gin.H{"running": false, "job_count": 0})
		return
	}
	c.JSON(http.StatusOK, h.jobs.GetJobStatus())
}

// GetPaymentAudits handles GET /api/v1/admin/payments/:orderId/audits
func (h *AdminHandler) GetPaymentAudits(c *gin.Context) {
	audits, err := h.audits.History(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orderId": c.Param("orderId"),
		"audits":  audits,
		"count":   len(audits),
	})
}
