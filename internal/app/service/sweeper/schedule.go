package sweeper

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/tollgate/pkg/config"
)

// NewCron builds the scheduler that runs RunOnce on sweeper.spec. Runs never overlap.
func NewCron(s *Sweeper, cfg *config.Config, log *zap.SugaredLogger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})))
	timeout := s.lockTTL
	_, err := c.AddFunc(cfg.Sweeper.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			log.Errorw("sweep_failed", "err", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweeper.spec %q: %w", cfg.Sweeper.Spec, err)
	}
	return c, nil
}

// RegisterCron starts and stops the scheduler with the fx app.
func RegisterCron(lc fx.Lifecycle, c *cron.Cron, cfg *config.Config, log *zap.SugaredLogger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c.Start()
			log.Infow("sweeper scheduled", "spec", cfg.Sweeper.Spec)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			done := c.Stop()
			select {
			case <-done.Done():
				log.Infow("sweeper stopped")
			case <-ctx.Done():
				log.Warnw("sweeper stop timed out")
			}
			return nil
		},
	})
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw("cron_"+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("cron_"+msg, append(keysAndValues, "err", err)...)
}

var _ cron.Logger = cronLogger{}

var Module = fx.Options(
	fx.Provide(New),
)

// CronModule schedules the sweep; only cmd/sweeper includes it.
var CronModule = fx.Options(
	fx.Provide(NewCron),
	fx.Invoke(RegisterCron),
)
