package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// newMeterProvider exports over OTLP/gRPC when an endpoint is configured.
// Without one, instruments are still recorded but never exported.
func newMeterProvider(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceID),
		attribute.String("messaging.destination.name", cfg.KafkaTopic),
	)
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if endpoint := strings.TrimSpace(cfg.MetricsOTLPEndpoint); endpoint != "" {
		exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(endpoint)}
		if cfg.MetricsInsecure {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.MetricsExportInterval)),
		))
	}

	provider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)
	return provider, nil
}
