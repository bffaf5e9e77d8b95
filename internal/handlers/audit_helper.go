package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/localbazaar/reservation-backend/internal/utils"
)

// paymentCallerMeta describes who delivered a payment notice. Server-side
// agents are gateway webhooks; anything else is the client relaying the
// checkout callback.
func paymentCallerMeta(c *gin.Context) models.AuditMeta {
	source := models.PaymentSourceClient
	if utils.ParseUserAgent(utils.GetUserAgent(c)).DeviceType == "server" {
		source = models.PaymentSourceGatewayWebhook
	}
	return utils.AuditMetaFromRequest(c, source)
}
