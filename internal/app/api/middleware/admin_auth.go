package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"

	"github.com/fatflowers/tollgate/pkg/logctx"
	"github.com/fatflowers/tollgate/pkg/response"
)

// AdminSubjectKey holds the token subject of an authenticated admin request.
const AdminSubjectKey = "adminSubject"

// AdminAuthMiddleware requires an HS256 bearer token signed with secret.
// An empty secret leaves the admin API open, which config validation forbids in prod.
func AdminAuthMiddleware(secret string, base *zap.SugaredLogger) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		raw, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		claims := &jwt.StandardClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			logctx.FromGin(c, base).Warnw("admin_token_rejected", "err", err)
			abortUnauthorized(c, "invalid token")
			return
		}
		c.Set(AdminSubjectKey, claims.Subject)
		c.Next()
	}
}

// SignAdminToken issues a token accepted by AdminAuthMiddleware.
func SignAdminToken(secret string, claims jwt.StandardClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorMsg(response.APIResponseCodeUnauthorized, msg))
}
