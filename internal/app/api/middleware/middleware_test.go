package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/tollgate/pkg/logctx"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, "%s|%s", logctx.TraceID(c.Request.Context()), c.GetString(AdminSubjectKey))
	})
	return r
}

func do(r http.Handler, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTraceAndRequestLogger(t *testing.T) {
	r := newEngine(TraceMiddleware(), RequestLoggerMiddleware(zap.NewNop().Sugar()), AccessLogMiddleware())

	w := do(r, map[string]string{HeaderRequestID: "req-1"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "req-1|", w.Body.String())
	require.Equal(t, "req-1", w.Header().Get(HeaderRequestID))

	w = do(r, nil)
	generated := w.Header().Get(HeaderRequestID)
	require.NotEmpty(t, generated)
	require.Equal(t, generated+"|", w.Body.String())
}

func TestWebhookSecretMiddleware(t *testing.T) {
	log := zap.NewNop().Sugar()

	r := newEngine(WebhookSecretMiddleware("s3cret", log))
	require.Equal(t, http.StatusUnauthorized, do(r, nil).Code)
	require.Equal(t, http.StatusUnauthorized, do(r, map[string]string{HeaderTelegramSecret: "nope"}).Code)
	require.Equal(t, http.StatusOK, do(r, map[string]string{HeaderTelegramSecret: "s3cret"}).Code)

	open := newEngine(WebhookSecretMiddleware("", log))
	require.Equal(t, http.StatusOK, do(open, nil).Code)
}

func TestAdminAuthMiddleware(t *testing.T) {
	const secret = "admin-secret"
	r := newEngine(AdminAuthMiddleware(secret, zap.NewNop().Sugar()))

	valid, err := SignAdminToken(secret, jwt.StandardClaims{Subject: "ops", ExpiresAt: time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)
	expired, err := SignAdminToken(secret, jwt.StandardClaims{Subject: "ops", ExpiresAt: time.Now().Add(-time.Hour).Unix()})
	require.NoError(t, err)
	foreign, err := SignAdminToken("other", jwt.StandardClaims{Subject: "ops"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, want: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, want: http.StatusUnauthorized},
		{name: "wrong key", header: "Bearer " + foreign, want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + valid, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, map[string]string{"Authorization": tt.header})
			require.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				require.Equal(t, "|ops", w.Body.String())
			}
		})
	}
}

func TestAdminAuthMiddleware_OpenWithoutSecret(t *testing.T) {
	r := newEngine(AdminAuthMiddleware("", zap.NewNop().Sugar()))
	require.Equal(t, http.StatusOK, do(r, nil).Code)
}
