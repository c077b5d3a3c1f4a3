package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
)

const (
	ServiceName    = "canml-converter"
	ServiceVersion = "1.2.0"
	MeterName      = "canmlio"
)

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	MeterProvider  *sdkmetric.MeterProvider
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel initializes the OpenTelemetry meter provider backed by
// a Prometheus exporter. The pipeline is a one-shot batch process, so
// only metrics are wired; there is no request fan-out to trace.
func InitializeOTel(logger *slog.Logger) (*OTelProviders, error) {
	ctx := context.Background()

	res, err := createResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otelprometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)

	providers := &OTelProviders{
		MeterProvider:  mp,
		Meter:          mp.Meter(MeterName, metric.WithInstrumentationVersion(ServiceVersion)),
		PrometheusHTTP: promhttp.Handler(),
		Logger:         logger,
	}

	logger.InfoContext(ctx, "Metrics initialized",
		slog.String("service", ServiceName),
		slog.String("exporter", "prometheus"))

	return providers, nil
}

// createResource creates the OpenTelemetry resource
func createResource() (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(ServiceVersion),
		attribute.String("service.instance.id", generateInstanceID()),
	), nil
}

// Shutdown gracefully shuts down the OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("meter provider shutdown: %w", err)
		}
	}
	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// PipelineMetrics holds the decode pipeline's instruments
type PipelineMetrics struct {
	FramesRead       metric.Int64Counter
	FramesFiltered   metric.Int64Counter
	DecodeFailures   metric.Int64Counter
	RowsBuffered     metric.Int64Counter
	ChunksEmitted    metric.Int64Counter
	ConversionsTotal metric.Int64Counter
	ConversionErrors metric.Int64Counter
	ConversionTime   metric.Float64Histogram
}

// CreatePipelineMetrics creates the pipeline's instruments on the meter
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	framesRead, err := meter.Int64Counter(
		"canml_frames_read_total",
		metric.WithDescription("Total number of frames read from log sources"),
	)
	if err != nil {
		return nil, err
	}

	framesFiltered, err := meter.Int64Counter(
		"canml_frames_filtered_total",
		metric.WithDescription("Total number of frames skipped by the id filter"),
	)
	if err != nil {
		return nil, err
	}

	decodeFailures, err := meter.Int64Counter(
		"canml_decode_failures_total",
		metric.WithDescription("Total number of frames dropped by the lossy decode policy"),
	)
	if err != nil {
		return nil, err
	}

	rowsBuffered, err := meter.Int64Counter(
		"canml_rows_buffered_total",
		metric.WithDescription("Total number of decoded rows buffered into chunks"),
	)
	if err != nil {
		return nil, err
	}

	chunksEmitted, err := meter.Int64Counter(
		"canml_chunks_emitted_total",
		metric.WithDescription("Total number of table chunks emitted"),
	)
	if err != nil {
		return nil, err
	}

	conversionsTotal, err := meter.Int64Counter(
		"canml_conversions_total",
		metric.WithDescription("Total number of conversion runs"),
	)
	if err != nil {
		return nil, err
	}

	conversionErrors, err := meter.Int64Counter(
		"canml_conversion_errors_total",
		metric.WithDescription("Total number of failed conversion runs"),
	)
	if err != nil {
		return nil, err
	}

	conversionTime, err := meter.Float64Histogram(
		"canml_conversion_duration_seconds",
		metric.WithDescription("Conversion run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		FramesRead:       framesRead,
		FramesFiltered:   framesFiltered,
		DecodeFailures:   decodeFailures,
		RowsBuffered:     rowsBuffered,
		ChunksEmitted:    chunksEmitted,
		ConversionsTotal: conversionsTotal,
		ConversionErrors: conversionErrors,
		ConversionTime:   conversionTime,
	}, nil
}

// RecordConversion records the outcome of one conversion run
func RecordConversion(ctx context.Context, m *PipelineMetrics, format string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("format", format))
	m.ConversionsTotal.Add(ctx, 1, attrs)
	if err != nil {
		m.ConversionErrors.Add(ctx, 1, attrs)
	}
	m.ConversionTime.Record(ctx, duration.Seconds(), attrs)
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}
