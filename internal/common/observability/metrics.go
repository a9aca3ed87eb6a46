package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	drainCounter  otelmetric.Int64Counter
	drainDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	drainCounter, _ := meter.Int64Counter(
		"drains.completed",
		otelmetric.WithDescription("Number of drain passes completed"),
	)

	drainDuration, _ := meter.Float64Histogram(
		"drains.duration",
		otelmetric.WithDescription("Drain pass duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		drainCounter:  drainCounter,
		drainDuration: drainDuration,
	}
}

func (o *Observability) RecordDrain(ctx context.Context, tag string, duration time.Duration) {
	if o.drainCounter != nil {
		o.drainCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("tag", tag),
		))
	}
	if o.drainDuration != nil {
		o.drainDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("tag", tag),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
