// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package otelsetup bootstraps the OpenTelemetry SDK for processes that host
// decorated HTTP servers, and owns the shared instrumentation logger.
package otelsetup

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/y1yang0/otel-go-server-decorator/internal/ex"
)

const (
	defaultTraceBatchTimeout = 5 * time.Second
	defaultTraceBatchSize    = 512
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

// Logger returns the shared instrumentation logger: JSON on stdout at the
// level named by OTEL_LOG_LEVEL (debug, info, warn, error; info by default).
func Logger() *slog.Logger {
	loggerOnce.Do(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: LogLevel(os.Getenv("OTEL_LOG_LEVEL")),
		}))
	})
	return logger
}

// LogLevel parses a level name, falling back to info.
func LogLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config holds the SDK settings that cannot come from OTEL_* variables.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// RuntimeMetrics starts Go runtime metrics on the meter provider.
	RuntimeMetrics bool
	// Global installs the providers and a W3C trace context + baggage
	// propagator as the otel globals.
	Global bool
}

// SDK holds the providers created by Setup.
type SDK struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Propagator     propagation.TextMapPropagator
}

// Setup creates tracer and meter providers configured by cfg and by the
// standard OTEL_* environment variables. Exporters are picked by
// autoexport; without an OTLP endpoint or OTEL_TRACES_EXPORTER, spans are
// created but not exported. A panic inside the SDK is returned as an error so
// that instrumentation never takes the host process down.
func Setup(ctx context.Context, cfg Config) (sdk *SDK, retErr error) {
	defer func() {
		if rec := recover(); rec != nil {
			Logger().Error("panic during OpenTelemetry setup", "panic", rec)
			sdk, retErr = nil, ex.Newf("panic during OpenTelemetry setup: %v", rec)
		}
	}()

	res, err := newResource(ctx, cfg)
	if err != nil {
		Logger().Warn("failed to create resource", "error", err)
		if res == nil {
			res = resource.Default()
		}
	}

	sdk = &SDK{
		Propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}
	if sdk.TracerProvider, err = newTracerProvider(ctx, res); err != nil {
		return nil, err
	}
	if sdk.MeterProvider, err = newMeterProvider(ctx, res); err != nil {
		return nil, errors.Join(err, sdk.TracerProvider.Shutdown(ctx))
	}

	if cfg.Global {
		otel.SetTracerProvider(sdk.TracerProvider)
		otel.SetMeterProvider(sdk.MeterProvider)
		otel.SetTextMapPropagator(sdk.Propagator)
	}
	if cfg.RuntimeMetrics {
		if err := runtime.Start(runtime.WithMeterProvider(sdk.MeterProvider)); err != nil {
			Logger().Warn("failed to start runtime metrics", "error", err)
		} else {
			Logger().Info("runtime metrics enabled")
		}
	}

	Logger().Info("OpenTelemetry initialized",
		"service_name", serviceName(cfg),
		"global", cfg.Global)
	return sdk, nil
}

func serviceName(cfg Config) string {
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return cfg.ServiceName
}

// newResource builds the resource. Detected attributes come first, then the
// configured service name and version, and OTEL_RESOURCE_ATTRIBUTES /
// OTEL_SERVICE_NAME last so that the environment wins.
func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	opts := []resource.Option{
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
	}
	if name := serviceName(cfg); name != "" {
		opts = append(opts, resource.WithAttributes(semconv.ServiceName(name)))
	}
	if cfg.ServiceVersion != "" {
		opts = append(opts, resource.WithAttributes(semconv.ServiceVersion(cfg.ServiceVersion)))
	}
	opts = append(opts, resource.WithFromEnv())
	return resource.New(ctx, opts...)
}

func exportConfigured() bool {
	for _, env := range []string{
		"OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT",
		"OTEL_TRACES_EXPORTER",
	} {
		if os.Getenv(env) != "" {
			return true
		}
	}
	return false
}

func newTracerProvider(ctx context.Context, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exportConfigured() {
		exporter, err := autoexport.NewSpanExporter(ctx)
		if err != nil {
			return nil, ex.Wrapf(err, "failed to create span exporter")
		}
		opts = append(opts, sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(defaultTraceBatchTimeout),
			sdktrace.WithMaxExportBatchSize(defaultTraceBatchSize),
		))
		Logger().Info("trace exporter initialized")
	} else {
		Logger().Debug("no trace exporter configured, spans are not exported")
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func newMeterProvider(ctx context.Context, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	reader, err := autoexport.NewMetricReader(ctx)
	if err != nil {
		return nil, ex.Wrapf(err, "failed to create metric reader")
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	), nil
}

// Shutdown flushes and stops both providers.
func (s *SDK) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.TracerProvider.Shutdown(ctx); err != nil {
		Logger().Error("failed to shutdown tracer provider", "error", err)
		errs = append(errs, err)
	}
	if err := s.MeterProvider.Shutdown(ctx); err != nil {
		Logger().Error("failed to shutdown meter provider", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
