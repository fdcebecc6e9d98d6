package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/tollgate/docs"
	"github.com/fatflowers/tollgate/internal/app/api/handlers"
	mw "github.com/fatflowers/tollgate/internal/app/api/middleware"
	"github.com/fatflowers/tollgate/internal/app/service/broadcast"
	"github.com/fatflowers/tollgate/internal/app/service/invitelink"
	"github.com/fatflowers/tollgate/internal/app/service/membership"
	"github.com/fatflowers/tollgate/internal/app/service/payment"
	"github.com/fatflowers/tollgate/internal/app/service/statistics"
	"github.com/fatflowers/tollgate/internal/app/service/webhook"
	"github.com/fatflowers/tollgate/internal/store"
	cfgpkg "github.com/fatflowers/tollgate/pkg/config"
	"github.com/fatflowers/tollgate/pkg/metrics"
)

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type routeDeps struct {
	fx.In

	Log       *zap.SugaredLogger
	Cfg       *cfgpkg.Config
	Store     store.Store
	Router    *webhook.Router
	Members   *membership.Service
	Broadcast *broadcast.Engine
	Links     *invitelink.Manager
	Payments  *payment.Service
	Stats     *statistics.Service
}

func newPrometheus(log *zap.SugaredLogger) *metrics.Prometheus {
	return metrics.NewPrometheus(metrics.NewPrometheusOptions{Subsystem: metrics.Subsystem, Logger: log})
}

func registerRoutes(r *gin.Engine, p *metrics.Prometheus, d routeDeps) {
	log := d.Log
	// HTTP metrics; the scrape endpoint lives on its own listener
	if d.Cfg.MetricsAddr != "" {
		r.Use(p.HandlerFunc())
	}
	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Telegram updates, authenticated by the secret token registered with setWebhook
	tg := r.Group("/api/v1/telegram")
	tg.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(), mw.WebhookSecretMiddleware(d.Cfg.Telegram.WebhookSecret, log))
	handlers.RegisterTelegramRoutes(tg, d.Router)

	// Admin APIs
	admin := r.Group("/api/v1/admin")
	admin.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(), mw.AdminAuthMiddleware(d.Cfg.Admin.JWTSecret, log))
	if d.Cfg.Admin.JWTSecret == "" {
		log.Warnw("admin.jwt_secret is empty, admin API is unauthenticated")
	}
	handlers.RegisterAdminRoutes(admin, d.Store, d.Members, d.Broadcast, d.Links, d.Payments, d.Stats)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			// broadcasts run inside requests, so give them time to finish
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// runMetricsServer exposes /metrics on metrics_addr.
func runMetricsServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, p *metrics.Prometheus) {
	if cfg.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(p.MetricsPath, p.Handler())
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("metrics started", "addr", cfg.MetricsAddr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorw("metrics server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine, newPrometheus),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
	fx.Invoke(runMetricsServer),
)
