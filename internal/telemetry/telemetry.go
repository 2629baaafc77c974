// Package telemetry initializes OpenTelemetry tracing and metrics. Spans and
// metrics are exported to rotating files under the configured directory so a
// collector-less deployment still has inspectable traces.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "phonewise"

// Config controls telemetry initialization.
type Config struct {
	Enabled bool
	Dir     string // export directory for trace and metric files
	Version string
}

// Telemetry bundles the tracer, meter, and the instruments shared across the
// server. A disabled instance carries no-op implementations so call sites
// never branch.
type Telemetry struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	ChatRequests metric.Int64Counter
	ToolCalls    metric.Int64Counter
	ChatDuration metric.Float64Histogram

	shutdown []func(context.Context) error
}

// Init sets up tracing and metrics per cfg. When disabled it returns a no-op
// instance whose Shutdown does nothing.
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return noop()
	}

	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating telemetry directory: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	traceFile := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, "phonewise_traces.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	traceExporter, err := stdouttrace.New(
		stdouttrace.WithWriter(traceFile),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricsFile := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, "phonewise_metrics.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	metricExporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(metricsFile),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				metricExporter,
				sdkmetric.WithInterval(10*time.Second),
			),
		),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	t := &Telemetry{
		Tracer: tp.Tracer(serviceName),
		Meter:  mp.Meter(serviceName),
		shutdown: []func(context.Context) error{
			tp.Shutdown,
			mp.Shutdown,
			func(context.Context) error { return traceFile.Close() },
			func(context.Context) error { return metricsFile.Close() },
		},
	}
	if err := t.initInstruments(); err != nil {
		return nil, err
	}
	return t, nil
}

func noop() (*Telemetry, error) {
	t := &Telemetry{
		Tracer: tracenoop.NewTracerProvider().Tracer(serviceName),
		Meter:  metricnoop.NewMeterProvider().Meter(serviceName),
	}
	if err := t.initInstruments(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Telemetry) initInstruments() error {
	var err error
	t.ChatRequests, err = t.Meter.Int64Counter("phonewise.chat.requests",
		metric.WithDescription("Chat requests received, by outcome"))
	if err != nil {
		return fmt.Errorf("creating chat request counter: %w", err)
	}
	t.ToolCalls, err = t.Meter.Int64Counter("phonewise.tool.calls",
		metric.WithDescription("Catalog tool executions, by tool"))
	if err != nil {
		return fmt.Errorf("creating tool call counter: %w", err)
	}
	t.ChatDuration, err = t.Meter.Float64Histogram("phonewise.chat.duration",
		metric.WithDescription("End-to-end chat request duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("creating duration histogram: %w", err)
	}
	return nil
}

// Shutdown flushes exporters and closes the export files.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	for _, fn := range t.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
