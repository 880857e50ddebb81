// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package instrumenter

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/trace"
)

// Builder assembles an Instrumenter. Fields left nil get defaults in Build*:
// always enabled, internal span kind, a span named after the scope, error
// status on a non-nil error, and the global tracer provider and propagator.
type Builder[REQUEST any, RESPONSE any] struct {
	Enabler              InstrumentEnabler
	SpanNameExtractor    SpanNameExtractor[REQUEST]
	SpanKindExtractor    SpanKindExtractor[REQUEST]
	SpanStatusExtractor  SpanStatusExtractor[REQUEST, RESPONSE]
	AttributesExtractors []AttributesExtractor[REQUEST, RESPONSE]
	OperationListeners   []OperationListener
	ContextCustomizers   []ContextCustomizer[REQUEST]
	TracerProvider       trace.TracerProvider
	Scope                instrumentation.Scope
}

func (b *Builder[REQUEST, RESPONSE]) SetInstrumentationScope(scope instrumentation.Scope) *Builder[REQUEST, RESPONSE] {
	b.Scope = scope
	return b
}

func (b *Builder[REQUEST, RESPONSE]) SetInstrumentEnabler(enabler InstrumentEnabler) *Builder[REQUEST, RESPONSE] {
	b.Enabler = enabler
	return b
}

func (b *Builder[REQUEST, RESPONSE]) SetSpanNameExtractor(
	spanNameExtractor SpanNameExtractor[REQUEST],
) *Builder[REQUEST, RESPONSE] {
	b.SpanNameExtractor = spanNameExtractor
	return b
}

func (b *Builder[REQUEST, RESPONSE]) SetSpanKindExtractor(
	spanKindExtractor SpanKindExtractor[REQUEST],
) *Builder[REQUEST, RESPONSE] {
	b.SpanKindExtractor = spanKindExtractor
	return b
}

func (b *Builder[REQUEST, RESPONSE]) SetSpanStatusExtractor(
	spanStatusExtractor SpanStatusExtractor[REQUEST, RESPONSE],
) *Builder[REQUEST, RESPONSE] {
	b.SpanStatusExtractor = spanStatusExtractor
	return b
}

func (b *Builder[REQUEST, RESPONSE]) SetTracerProvider(tp trace.TracerProvider) *Builder[REQUEST, RESPONSE] {
	b.TracerProvider = tp
	return b
}

func (b *Builder[REQUEST, RESPONSE]) AddAttributesExtractor(
	attributesExtractor ...AttributesExtractor[REQUEST, RESPONSE],
) *Builder[REQUEST, RESPONSE] {
	b.AttributesExtractors = append(b.AttributesExtractors, attributesExtractor...)
	return b
}

func (b *Builder[REQUEST, RESPONSE]) AddOperationListeners(
	operationListener ...OperationListener,
) *Builder[REQUEST, RESPONSE] {
	b.OperationListeners = append(b.OperationListeners, operationListener...)
	return b
}

func (b *Builder[REQUEST, RESPONSE]) AddContextCustomizers(
	contextCustomizers ...ContextCustomizer[REQUEST],
) *Builder[REQUEST, RESPONSE] {
	b.ContextCustomizers = append(b.ContextCustomizers, contextCustomizers...)
	return b
}

func (b *Builder[REQUEST, RESPONSE]) tracer() trace.Tracer {
	tp := b.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(b.Scope.Name,
		trace.WithInstrumentationVersion(b.Scope.Version),
		trace.WithSchemaURL(b.Scope.SchemaURL))
}

func (b *Builder[REQUEST, RESPONSE]) BuildInstrumenter() *InternalInstrumenter[REQUEST, RESPONSE] {
	inst := &InternalInstrumenter[REQUEST, RESPONSE]{
		enabler:              b.Enabler,
		spanNameExtractor:    b.SpanNameExtractor,
		spanKindExtractor:    b.SpanKindExtractor,
		spanStatusExtractor:  b.SpanStatusExtractor,
		attributesExtractors: b.AttributesExtractors,
		operationListeners:   b.OperationListeners,
		contextCustomizers:   b.ContextCustomizers,
		tracer:               b.tracer(),
	}
	if inst.enabler == nil {
		inst.enabler = alwaysEnabled{}
	}
	if inst.spanNameExtractor == nil {
		inst.spanNameExtractor = &constSpanNameExtractor[REQUEST]{name: b.Scope.Name}
	}
	if inst.spanKindExtractor == nil {
		inst.spanKindExtractor = &AlwaysInternalExtractor[REQUEST]{}
	}
	if inst.spanStatusExtractor == nil {
		inst.spanStatusExtractor = &defaultSpanStatusExtractor[REQUEST, RESPONSE]{}
	}
	return inst
}

// BuildPropagatingFromUpstreamInstrumenter builds a server side instrumenter.
// carrierGetter exposes the inbound headers of a request; a nil prop means the
// global propagator at build time.
func (b *Builder[REQUEST, RESPONSE]) BuildPropagatingFromUpstreamInstrumenter(
	carrierGetter func(REQUEST) propagation.TextMapCarrier,
	prop propagation.TextMapPropagator,
) *PropagatingFromUpstreamInstrumenter[REQUEST, RESPONSE] {
	if prop == nil {
		prop = otel.GetTextMapPropagator()
	}
	return &PropagatingFromUpstreamInstrumenter[REQUEST, RESPONSE]{
		base:          b.BuildInstrumenter(),
		carrierGetter: carrierGetter,
		prop:          prop,
	}
}
