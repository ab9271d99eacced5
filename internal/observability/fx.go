// Package observability assembles logging, tracing, and metrics.
package observability

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Romeobluesky/callup-api/internal/config"
	"github.com/Romeobluesky/callup-api/internal/observability/logger"
	"github.com/Romeobluesky/callup-api/internal/observability/metrics"
	"github.com/Romeobluesky/callup-api/internal/observability/tracing"
)

var Module = fx.Module("observability",
	fx.Provide(newLogger),
	fx.Provide(newTracerProvider),
	fx.Provide(metrics.NewMeterProvider),
	fx.Provide(newMetricsConfig),
	fx.Provide(metrics.NewHTTPMetrics),
	fx.Provide(newCallMetrics),
	// Forces tracer-provider construction; nothing else depends on it
	// directly because instrumentation goes through the otel globals.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logger.New(cfg.Environment)
}

func newTracerProvider(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*sdktrace.TracerProvider, error) {
	return tracing.NewProvider(lc, tracing.Config{
		Enabled:          cfg.TracingEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.ServiceVersion,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OTLPEndpoint,
		ExporterProtocol: cfg.OTLPProtocol,
		SamplingRatio:    cfg.TraceSampleRatio,
	}, log)
}

func newMetricsConfig(cfg config.Config) metrics.Config {
	return metrics.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}
}

func newCallMetrics(cfg metrics.Config) *metrics.CallMetrics {
	return metrics.Call(cfg)
}
