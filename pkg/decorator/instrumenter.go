// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package decorator

import (
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/y1yang0/otel-go-server-decorator/pkg/instrumenter"
	"github.com/y1yang0/otel-go-server-decorator/pkg/otelsetup"
)

const ScopePrefix = "github.com/y1yang0/otel-go-server-decorator/pkg/decorator/"

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	propagator     propagation.TextMapPropagator
	config         *Config
}

type Option func(*options)

// WithTracerProvider sets the provider spans are created with. Defaults to
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the provider server metrics are recorded with.
// Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithPropagator sets how the upstream context is read from request headers.
// Defaults to the global propagator.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(o *options) { o.propagator = p }
}

// WithConfig sets the enable/disable configuration. Defaults to
// ConfigFromEnv.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.config = &cfg }
}

// moduleVersion reports the main module version, "dev" when unknown.
func moduleVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" || bi.Main.Version == "(devel)" {
		return "dev"
	}
	return bi.Main.Version
}

// NewInstrumenter builds a server instrumenter driven by d. carrier exposes
// the inbound headers of a request for upstream context extraction; it may be
// nil when the framework has no headers to offer. When d also implements
// instrumenter.ContextCustomizer it prepares the context the request is
// served with, after the span has started.
func NewInstrumenter[REQUEST any, RESPONSE any](
	d HTTPServerDecorator[REQUEST, RESPONSE],
	carrier func(REQUEST) propagation.TextMapCarrier,
	opts ...Option,
) instrumenter.Instrumenter[REQUEST, RESPONSE] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.config == nil {
		cfg := ConfigFromEnv()
		o.config = &cfg
	}
	if o.meterProvider == nil {
		o.meterProvider = otel.GetMeterProvider()
	}

	guarded := Guard(d)
	scope := instrumentation.Scope{
		Name:      ScopePrefix + guarded.Component(),
		Version:   moduleVersion(),
		SchemaURL: semconv.SchemaURL,
	}
	builder := &instrumenter.Builder[REQUEST, RESPONSE]{}
	builder.SetInstrumentationScope(scope).
		SetTracerProvider(o.tracerProvider).
		SetInstrumentEnabler(NewEnabler(*o.config, guarded)).
		SetSpanNameExtractor(&SpanNameExtractor[REQUEST, RESPONSE]{Decorator: guarded}).
		SetSpanKindExtractor(&instrumenter.AlwaysServerExtractor[REQUEST]{}).
		SetSpanStatusExtractor(&SpanStatusExtractor[REQUEST, RESPONSE]{Decorator: guarded}).
		AddAttributesExtractor(&AttrsExtractor[REQUEST, RESPONSE]{Decorator: guarded})
	if customizer, ok := d.(instrumenter.ContextCustomizer[REQUEST]); ok {
		builder.AddContextCustomizers(customizer)
	}

	meter := o.meterProvider.Meter(scope.Name,
		metric.WithInstrumentationVersion(scope.Version),
		metric.WithSchemaURL(scope.SchemaURL))
	if m, err := NewServerMetrics(meter); err != nil {
		otelsetup.Logger().Warn("server metrics disabled", "component", guarded.Component(), "error", err)
	} else {
		builder.AddOperationListeners(m)
	}
	return builder.BuildPropagatingFromUpstreamInstrumenter(carrier, o.propagator)
}
