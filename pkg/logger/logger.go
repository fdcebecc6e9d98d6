package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fatflowers/tollgate/pkg/config"
)

// New builds the process logger. Dev runs log at debug level; every line carries the env.
func New(cfg *config.Config) (*zap.SugaredLogger, error) {
	zc := zap.NewProductionConfig()
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.TimeKey = "time"
	if cfg != nil && cfg.Env == config.EnvDev {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := zc.Build()
	if err != nil {
		return nil, err
	}
	sugar := l.Sugar().With("service", "tollgate")
	if cfg != nil {
		sugar = sugar.With("env", string(cfg.Env))
	}
	return sugar, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
