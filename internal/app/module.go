package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/tollgate/internal/app/api/server"
	"github.com/fatflowers/tollgate/internal/app/service/admission"
	"github.com/fatflowers/tollgate/internal/app/service/broadcast"
	"github.com/fatflowers/tollgate/internal/app/service/invitelink"
	"github.com/fatflowers/tollgate/internal/app/service/membership"
	"github.com/fatflowers/tollgate/internal/app/service/payment"
	"github.com/fatflowers/tollgate/internal/app/service/statistics"
	"github.com/fatflowers/tollgate/internal/app/service/sweeper"
	"github.com/fatflowers/tollgate/internal/app/service/webhook"
	"github.com/fatflowers/tollgate/internal/platform/cache"
	"github.com/fatflowers/tollgate/internal/platform/db"
	"github.com/fatflowers/tollgate/internal/platform/telegram"
	"github.com/fatflowers/tollgate/pkg/config"
	"github.com/fatflowers/tollgate/pkg/logger"
	"github.com/fatflowers/tollgate/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	// DefaultStopTimeout covers an in-flight broadcast or sweep.
	DefaultStopTimeout = 2 * time.Minute
)

// Core is everything both binaries need: config, logging, storage, Telegram and the services.
var Core = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	db.Module,
	cache.Module,
	telegram.Module,
	invitelink.Module,
	membership.Module,
	admission.Module,
	payment.Module,
	broadcast.Module,
	statistics.Module,
	webhook.Module,
	sweeper.Module,
)

// Module is the HTTP application.
var Module = fx.Options(
	Core,
	server.Module,
)

// SweeperModule is the scheduled expiry job.
var SweeperModule = fx.Options(
	Core,
	sweeper.CronModule,
)
