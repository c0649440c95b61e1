package outbox

import (
	"context"
	"time"

	"github.com/smallbiznis/qalam/internal/outbox/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("outbox",
	fx.Provide(ProvideConfig),
	fx.Provide(repository.Provide),
	fx.Provide(New),
	fx.Invoke(runDispatcher),
)

func runDispatcher(lc fx.Lifecycle, dispatcher *Dispatcher) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go dispatcher.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

// RunForever polls until ctx is cancelled.
func (d *Dispatcher) RunForever(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := d.ProcessPending(ctx); err != nil {
			d.log.Error("dispatch cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
