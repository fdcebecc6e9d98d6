package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Run starts an fx application built from opts, blocks until SIGINT/SIGTERM or an
// fx.Shutdowner call, then stops it. It returns the process exit code.
func Run(name string, opts fx.Option) int {
	a := fx.New(opts)
	// Logging might not be wired when start fails, so errors go to a throwaway logger.
	fallback := zap.NewExample().Sugar().With("app", name)

	startCtx, cancel := context.WithTimeout(context.Background(), DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		fallback.Errorw("app_start_failed", "err", err)
		return 1
	}

	sig := <-a.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), DefaultStopTimeout)
	defer cancelStop()
	if err := a.Stop(stopCtx); err != nil {
		fallback.Errorw("app_stop_failed", "err", err)
		return 1
	}
	return sig.ExitCode
}
