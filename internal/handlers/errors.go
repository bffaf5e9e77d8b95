package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/localbazaar/reservation-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	ErrorKind string `json:"errorKind"`
	Message   string `json:"message"`
}

var statusByKind = map[services.ErrorKind]int{
	services.KindValidation:             http.StatusBadRequest,
	services.KindUnavailable:            http.StatusConflict,
	services.KindCouponExpired:          http.StatusUnprocessableEntity,
	services.KindCouponNotApplicable:    http.StatusUnprocessableEntity,
	services.KindCouponLimitReached:     http.StatusUnprocessableEntity,
	services.KindMinimumAmountNotMet:    http.StatusUnprocessableEntity,
	services.KindInvalidStateTransition: http.StatusConflict,
	services.KindInvalidSignature:       http.StatusUnauthorized,
	services.KindUnknownOrder:           http.StatusNotFound,
	services.KindGatewayTimeout:         http.StatusGatewayTimeout,
	services.KindGatewayError:           http.StatusBadGateway,
	services.KindTemporarilyUnavailable: http.StatusServiceUnavailable,
	services.KindNotFound:               http.StatusNotFound,
	services.KindForbidden:              http.StatusForbidden,
}

// StatusForKind maps a service error kind to its HTTP status
func StatusForKind(kind services.ErrorKind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes a service error. Untyped errors become a generic 500
// so internals never reach the client.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	kind := services.KindOf(err)
	if kind == "" {
		logger.WithError(err).WithField("path", c.FullPath()).Error("Unhandled error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			ErrorKind: "internal_error",
			Message:   "An unexpected error occurred",
		})
		return
	}

	if kind == services.KindTemporarilyUnavailable {
		c.Header("Retry-After", "1")
	}

	message := err.Error()
	var bookingErr *services.BookingError
	if errors.As(err, &bookingErr) {
		message = bookingErr.Message
	}

	c.JSON(StatusForKind(kind), ErrorResponse{
		ErrorKind: string(kind),
		Message:   message,
	})
}

// respondBadRequest writes a validation failure for malformed input
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		ErrorKind: string(services.KindValidation),
		Message:   message,
	})
}
