package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards.
// It also implements Recorder.
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	registry      *promclient.Registry
	collector     Collector

	// OTel meters and instruments
	meter             metric.Meter
	recordsGauge      metric.Int64ObservableGauge
	capturedCounter   metric.Int64Counter
	synthesisCounter  metric.Int64Counter
	synthesisDuration metric.Float64Histogram
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	// Each exporter owns its registry so several can coexist in one process
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(
		"webhook-inspector",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		registry:      registry,
		collector:     collector,
		meter:         meter,
	}

	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	oe.recordsGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.records",
		metric.WithDescription("Number of captured webhooks in the store"),
		metric.WithUnit("{webhooks}"),
		metric.WithInt64Callback(oe.observeRecords),
	)
	if err != nil {
		return fmt.Errorf("creating records gauge: %w", err)
	}

	oe.capturedCounter, err = oe.meter.Int64Counter(
		"webhook.captured",
		metric.WithDescription("Number of webhooks captured since start"),
		metric.WithUnit("{webhooks}"),
	)
	if err != nil {
		return fmt.Errorf("creating captured counter: %w", err)
	}

	oe.synthesisCounter, err = oe.meter.Int64Counter(
		"webhook.synthesis.requests",
		metric.WithDescription("Number of code synthesis requests by outcome"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return fmt.Errorf("creating synthesis counter: %w", err)
	}

	oe.synthesisDuration, err = oe.meter.Float64Histogram(
		"webhook.synthesis.duration",
		metric.WithDescription("Time spent producing code, generator call included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("creating synthesis histogram: %w", err)
	}

	return nil
}

// observeRecords is a callback that reports the store size
func (oe *OTelExporter) observeRecords(ctx context.Context, observer metric.Int64Observer) error {
	n, err := oe.collector.GetRecordCount(ctx)
	if err != nil {
		return err
	}
	observer.Observe(n)
	return nil
}

func (oe *OTelExporter) Captured(ctx context.Context, method string) {
	oe.capturedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.method", method),
	))
}

func (oe *OTelExporter) Synthesized(ctx context.Context, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	oe.synthesisCounter.Add(ctx, 1, attrs)
	oe.synthesisDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// ServeHTTP serves Prometheus-formatted metrics on the given HTTP handler
func (oe *OTelExporter) ServeHTTP() http.Handler {
	return promhttp.HandlerFor(oe.registry, promhttp.HandlerOpts{})
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
