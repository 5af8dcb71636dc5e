package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"

	"github.com/pilab-dev/tiktok-auth/log"
)

// InitMeterProvider exposes OpenTelemetry instruments, such as the outbound
// request durations recorded by otelhttp, through reg.
func InitMeterProvider(reg prometheus.Registerer, serviceName string) (*metric.MeterProvider, error) {
	exporter, err := prometheusexporter.New(prometheusexporter.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	mp := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Shutdown flushes and stops the tracer and meter providers. Either may be nil.
func Shutdown(ctx context.Context, logger log.Logger, tp *sdktrace.TracerProvider, mp *metric.MeterProvider) {
	if tp != nil {
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error(ctx, "Error shutting down OpenTelemetry TracerProvider", err)
		} else {
			logger.Debug(ctx, "OpenTelemetry TracerProvider shut down successfully")
		}
	}
	if mp != nil {
		if err := mp.Shutdown(ctx); err != nil {
			logger.Error(ctx, "Error shutting down OpenTelemetry MeterProvider", err)
		} else {
			logger.Debug(ctx, "OpenTelemetry MeterProvider shut down successfully")
		}
	}
}
