package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/localbazaar/reservation-backend/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind services.ErrorKind
		want int
	}{
		{services.KindValidation, http.StatusBadRequest},
		{services.KindUnavailable, http.StatusConflict},
		{services.KindCouponNotApplicable, http.StatusUnprocessableEntity},
		{services.KindCouponLimitReached, http.StatusUnprocessableEntity},
		{services.KindInvalidStateTransition, http.StatusConflict},
		{services.KindInvalidSignature, http.StatusUnauthorized},
		{services.KindUnknownOrder, http.StatusNotFound},
		{services.KindNotFound, http.StatusNotFound},
		{services.KindForbidden, http.StatusForbidden},
		{services.KindGatewayTimeout, http.StatusGatewayTimeout},
		{services.KindGatewayError, http.StatusBadGateway},
		{services.KindTemporarilyUnavailable, http.StatusServiceUnavailable},
		{services.ErrorKind("something_new"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForKind(tt.kind))
		})
	}
}

func TestRespondError_WrappedBookingError(t *testing.T) {
	router := setupTestRouter()
	router.GET("/fail", func(c *gin.Context) {
		inner := &services.BookingError{Kind: services.KindUnavailable, Message: "resource is fully booked"}
		respondError(c, testLogger(), fmt.Errorf("create booking: %w", inner))
	})

	w := performRequest(router, http.MethodGet, "/fail", nil, nil)

	assertStatus(t, http.StatusConflict, w)
	resp := decodeError(t, w)
	assert.Equal(t, "unavailable", resp.ErrorKind)
	assert.Equal(t, "resource is fully booked", resp.Message)
	assert.Empty(t, w.Header().Get("Retry-After"))
}
