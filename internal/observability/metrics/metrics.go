// Package metrics exposes application-level OpenTelemetry instruments for
// the purchase and fulfillment pipeline.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
}

// Metrics exposes counters recorded by the purchase service and dispatcher.
type Metrics struct {
	ordersCreated   metric.Int64Counter
	ordersCompleted metric.Int64Counter
	outboxDispatch  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch protocol {
	case "http":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	case "grpc", "":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported metrics exporter protocol %q", protocol)
	}
}

// New builds the instrument set from the registered meter provider.
func New(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("qalam")

	ordersCreated, err := meter.Int64Counter("orders_created_total")
	if err != nil {
		return nil, err
	}
	ordersCompleted, err := meter.Int64Counter("orders_completed_total")
	if err != nil {
		return nil, err
	}
	outboxDispatch, err := meter.Int64Counter("outbox_dispatch_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ordersCreated:   ordersCreated,
		ordersCompleted: ordersCompleted,
		outboxDispatch:  outboxDispatch,
	}, nil
}

func (m *Metrics) RecordOrderCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersCreated.Add(ctx, 1)
}

func (m *Metrics) RecordOrderCompleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersCompleted.Add(ctx, 1)
}

// RecordOutboxDispatch records one dispatch outcome (completed, retry, failed).
func (m *Metrics) RecordOutboxDispatch(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	m.outboxDispatch.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	))
}
