package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.uber.org/zap"
)

const (
	// ServerServiceName identifies the HTTP API in traces
	ServerServiceName = "assistant-chat-api"
	// WorkerServiceName identifies the profile worker in traces
	WorkerServiceName = "assistant-chat-worker"
)

// Version is stamped at build time with -ldflags "-X .../telemetry.Version=..."
var Version = "dev"

// Options configures trace export for one process
type Options struct {
	Enabled  bool
	Service  string
	Endpoint string
	Insecure bool
	// SampleRatio applies to root spans; children follow their parent.
	// Values outside (0, 1] mean sample everything.
	SampleRatio float64
}

func (o Options) ratio() float64 {
	if o.SampleRatio <= 0 || o.SampleRatio > 1 {
		return 1
	}
	return o.SampleRatio
}

// NewTracerProvider builds a batching OTLP/HTTP provider and installs it globally
// along with W3C trace context and baggage propagation.
func NewTracerProvider(ctx context.Context, opts Options) (*sdktrace.TracerProvider, error) {
	exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.Service),
			semconv.ServiceVersion(Version),
		),
		resource.WithHost(),
		resource.WithProcessRuntimeName(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.ratio()))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

// Setup starts tracing when enabled and an endpoint is configured. A failure to
// build the exporter is logged and tracing stays off; the process keeps running.
// The returned shutdown func is always non-nil.
func Setup(ctx context.Context, opts Options, logger *zap.Logger) (shutdown func(context.Context) error, active bool) {
	noop := func(context.Context) error { return nil }
	switch {
	case !opts.Enabled:
		return noop, false
	case opts.Endpoint == "":
		logger.Warn("otel_enabled_but_endpoint_not_configured")
		return noop, false
	}

	tp, err := NewTracerProvider(ctx, opts)
	if err != nil {
		logger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		return noop, false
	}
	logger.Info("otel_tracer_initialized",
		zap.String("endpoint", opts.Endpoint),
		zap.Float64("sample_ratio", opts.ratio()),
		zap.String("version", Version),
	)
	return tp.Shutdown, true
}
