package logctx

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromCtx_EnrichesWithTraceID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core).Sugar()

	ctx := WithTraceID(context.Background(), "trace-1")
	require.Equal(t, "trace-1", TraceID(ctx))
	FromCtx(ctx, base).Infow("sweep_started")

	require.Equal(t, 1, logs.Len())
	require.Equal(t, "trace-1", logs.All()[0].ContextMap()["trace_id"])
}

func TestFromCtx_PrefersAttachedLogger(t *testing.T) {
	attached := zap.NewNop().Sugar()
	ctx := WithLogger(context.Background(), attached)
	require.Same(t, attached, FromCtx(ctx, zap.NewExample().Sugar()))

	base := zap.NewNop().Sugar()
	require.Same(t, base, FromCtx(context.Background(), base))
}

func TestFromGin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	reqLogger := zap.NewNop().Sugar()
	c.Set(GinLoggerKey, reqLogger)

	require.Same(t, reqLogger, FromGin(c, zap.NewExample().Sugar()))

	base := zap.NewNop().Sugar()
	require.Same(t, base, FromGin(nil, base))
}
