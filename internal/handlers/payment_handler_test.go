package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/localbazaar/reservation-backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockConfirmer struct {
	mock.Mock
}

func (m *mockConfirmer) Confirm(ctx context.Context, req *models.ConfirmPaymentRequest, meta models.AuditMeta) (*models.ConfirmPaymentResponse, error) {
	args := m.Called(ctx, req, meta)
	resp, _ := args.Get(0).(*models.ConfirmPaymentResponse)
	return resp, args.Error(1)
}

func TestConfirmPayment(t *testing.T) {
	bookingID := uuid.MustParse("b7a4d1c2-1111-4f0e-9c3a-6d2e8f7a9b01")
	confirmed := &models.ConfirmPaymentResponse{BookingID: bookingID, Status: models.BookingStatusConfirmed}

	t.Run("Signature in body", func(t *testing.T) {
		confirmer := &mockConfirmer{}
		router := setupTestRouter()
		router.POST("/payments/confirm", NewPaymentHandler(confirmer, testLogger()).ConfirmPayment)

		confirmer.On("Confirm", mock.Anything, mock.MatchedBy(func(req *models.ConfirmPaymentRequest) bool {
			return req.OrderID == "order_Pq1" && req.Signature == "abc123"
		}), mock.MatchedBy(func(meta models.AuditMeta) bool {
			return meta.Source == models.PaymentSourceClient
		})).Return(confirmed, nil)

		w := performRequest(router, http.MethodPost, "/payments/confirm", map[string]string{
			"orderId":           "order_Pq1",
			"providerReference": "pay_Zx9",
			"signature":         "abc123",
		}, map[string]string{"User-Agent": "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)"})

		assertStatus(t, http.StatusOK, w)
		var resp models.ConfirmPaymentResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, bookingID, resp.BookingID)
		assert.Equal(t, models.BookingStatusConfirmed, resp.Status)
		confirmer.AssertExpectations(t)
	})

	t.Run("Signature from header for webhook", func(t *testing.T) {
		confirmer := &mockConfirmer{}
		router := setupTestRouter()
		router.POST("/payments/confirm", NewPaymentHandler(confirmer, testLogger()).ConfirmPayment)

		confirmer.On("Confirm", mock.Anything, mock.MatchedBy(func(req *models.ConfirmPaymentRequest) bool {
			return req.Signature == "hdr-sig"
		}), mock.MatchedBy(func(meta models.AuditMeta) bool {
			return meta.Source == models.PaymentSourceGatewayWebhook
		})).Return(confirmed, nil)

		w := performRequest(router, http.MethodPost, "/payments/confirm", map[string]string{
			"orderId":           "order_Pq1",
			"providerReference": "pay_Zx9",
		}, map[string]string{
			SignatureHeader: "hdr-sig",
			"User-Agent":    "Razorpay-Webhook/v1",
		})

		assertStatus(t, http.StatusOK, w)
		confirmer.AssertExpectations(t)
	})

	t.Run("Missing order id", func(t *testing.T) {
		confirmer := &mockConfirmer{}
		router := setupTestRouter()
		router.POST("/payments/confirm", NewPaymentHandler(confirmer, testLogger()).ConfirmPayment)

		w := performRequest(router, http.MethodPost, "/payments/confirm", map[string]string{
			"providerReference": "pay_Zx9",
		}, nil)

		assertStatus(t, http.StatusBadRequest, w)
		confirmer.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything)
	})

	errorCases := []struct {
		name       string
		kind       services.ErrorKind
		wantStatus int
	}{
		{"Bad signature", services.KindInvalidSignature, http.StatusUnauthorized},
		{"Unknown order", services.KindUnknownOrder, http.StatusNotFound},
		{"Booking already expired", services.KindInvalidStateTransition, http.StatusConflict},
	}

	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			confirmer := &mockConfirmer{}
			router := setupTestRouter()
			router.POST("/payments/confirm", NewPaymentHandler(confirmer, testLogger()).ConfirmPayment)

			confirmer.On("Confirm", mock.Anything, mock.Anything, mock.Anything).
				Return(nil, &services.BookingError{Kind: tc.kind, Message: "rejected"})

			w := performRequest(router, http.MethodPost, "/payments/confirm", map[string]string{
				"orderId":           "order_Pq1",
				"providerReference": "pay_Zx9",
				"signature":         "abc123",
			}, nil)

			assertStatus(t, tc.wantStatus, w)
			assert.Equal(t, string(tc.kind), decodeError(t, w).ErrorKind)
		})
	}
}
