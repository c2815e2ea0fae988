package metrics

import (
	"context"
	"fmt"
	"strings"
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
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	eventsAppended  metric.Int64Counter
	submitAttempts  metric.Int64Counter
	gateRejections  metric.Int64Counter
	rateLimitDenied metric.Int64Counter
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

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "packflow"
	}
	meter := provider.Meter(name)

	eventsAppended, err := meter.Int64Counter("packflow_submission_events_total")
	if err != nil {
		return nil, err
	}
	submitAttempts, err := meter.Int64Counter("packflow_submit_attempts_total")
	if err != nil {
		return nil, err
	}
	gateRejections, err := meter.Int64Counter("packflow_submit_gate_rejections_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("packflow_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		eventsAppended:  eventsAppended,
		submitAttempts:  submitAttempts,
		gateRejections:  gateRejections,
		rateLimitDenied: rateLimitDenied,
	}, nil
}

// RecordEventAppended increments appended event counts by event type.
func (m *Metrics) RecordEventAppended(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.eventsAppended.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
	))
}

// RecordSubmitAttempt increments submit attempt counts by outcome.
func (m *Metrics) RecordSubmitAttempt(ctx context.Context, submissionType, outcome string) {
	if m == nil {
		return
	}
	m.submitAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("submission_type", strings.TrimSpace(submissionType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	))
}

// RecordGateRejection increments gate rejection counts.
func (m *Metrics) RecordGateRejection(ctx context.Context, submissionType string) {
	if m == nil {
		return
	}
	m.gateRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("submission_type", strings.TrimSpace(submissionType)),
	))
}

// RecordRateLimitDenied increments denied request counts by endpoint and reason.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}
