package metrics

import (
	"github.com/smallbiznis/qalam/internal/config"
	"go.uber.org/fx"
)

func ProvideConfig(appCfg config.Config) Config {
	return Config{
		Enabled:          appCfg.Metrics.Enabled,
		ExporterEndpoint: appCfg.Metrics.Endpoint,
		ExporterProtocol: appCfg.Metrics.Exporter,
		ServiceName:      appCfg.AppName,
	}
}

// Module wires the meter provider and application instruments.
var Module = fx.Module("observability.metrics",
	fx.Provide(ProvideConfig),
	fx.Provide(NewProvider),
	fx.Provide(New),
)
