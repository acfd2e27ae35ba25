package expiration

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/emporia/internal/config"
	orderrepo "github.com/Additional-Code/emporia/internal/repository/order"
)

// Module wires the expiration service.
var Module = fx.Options(
	fx.Provide(func(r *orderrepo.Repository) Orders { return r }),
	fx.Provide(NewService),
)

// SweeperModule additionally runs the periodic sweep. Only the worker process
// includes it so the API never competes for order locks on a timer.
var SweeperModule = fx.Options(
	Module,
	fx.Invoke(runSweeper),
)

func runSweeper(lc fx.Lifecycle, cfg config.Config, svc *Service, logger *zap.Logger) {
	if !cfg.Orders.SweepEnabled {
		logger.Info("unpaid order sweep disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(cfg.Orders.SweepInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if _, err := svc.Sweep(ctx); err != nil {
							logger.Error("unpaid order sweep failed", zap.Error(err))
						}
					}
				}
			}()
			logger.Info("unpaid order sweep started", zap.Duration("interval", cfg.Orders.SweepInterval))
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
