package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/tollgate/internal/app/service/webhook"
	"github.com/fatflowers/tollgate/pkg/response"
)

// @Summary      Telegram Webhook
// @Description  Receives Telegram updates. Every classified update is audited; handler failures answer 200 with success=false so Telegram does not redeliver.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        X-Telegram-Bot-Api-Secret-Token  header  string  false  "Secret token registered with setWebhook"
// @Param        update  body      object  true  "Telegram Update"
// @Success      200     {object}  response.WebhookResponse
// @Failure      400     {object}  response.WebhookResponse
// @Failure      500     {object}  response.WebhookResponse
// @Router       /api/v1/telegram/webhook [post]
func ApiTelegramWebhook(router *webhook.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, response.WebhookFailed("unreadable body"))
			return
		}
		res := router.Handle(c.Request.Context(), raw)
		c.JSON(res.StatusCode, res.Body)
	}
}

func RegisterTelegramRoutes(r gin.IRouter, router *webhook.Router) {
	r.POST("/webhook", ApiTelegramWebhook(router))
}
