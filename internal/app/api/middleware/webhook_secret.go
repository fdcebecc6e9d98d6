package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/tollgate/pkg/logctx"
	"github.com/fatflowers/tollgate/pkg/response"
)

// HeaderTelegramSecret carries the secret_token registered with setWebhook.
const HeaderTelegramSecret = "X-Telegram-Bot-Api-Secret-Token"

// WebhookSecretMiddleware rejects updates whose secret header does not match.
// An empty secret disables the check.
func WebhookSecretMiddleware(secret string, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(HeaderTelegramSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			logctx.FromGin(c, base).Warnw("webhook_secret_mismatch", "client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.WebhookFailed("invalid secret token"))
			return
		}
		c.Next()
	}
}
