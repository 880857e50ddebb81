// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package instrumenter

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Invocation carries everything End needs to finish an operation.
type Invocation[REQUEST any, RESPONSE any] struct {
	Request        REQUEST
	Response       RESPONSE
	Err            error
	StartTimeStamp time.Time
	EndTimeStamp   time.Time
}

// Instrumenter turns one request/response lifecycle into a span and feeds the
// registered operation listeners. Start must always be paired with End,
// otherwise the span is never exported and its context leaks.
type Instrumenter[REQUEST any, RESPONSE any] interface {
	// ShouldStart reports whether the operation is instrumented at all.
	ShouldStart(parentContext context.Context, request REQUEST) bool
	// Start begins an operation. The returned context carries the span and
	// must be passed to End.
	Start(parentContext context.Context, request REQUEST, options ...trace.SpanStartOption) context.Context
	// End finishes the operation started with ctx.
	End(ctx context.Context, invocation Invocation[REQUEST, RESPONSE], options ...trace.SpanEndOption)
	// StartAndEnd records an operation whose start and end are already known.
	StartAndEnd(parentContext context.Context, invocation Invocation[REQUEST, RESPONSE])
}

const defaultAttributesSliceSize = 25

// InternalInstrumenter creates spans in the parent context it is given.
type InternalInstrumenter[REQUEST any, RESPONSE any] struct {
	enabler              InstrumentEnabler
	spanNameExtractor    SpanNameExtractor[REQUEST]
	spanKindExtractor    SpanKindExtractor[REQUEST]
	spanStatusExtractor  SpanStatusExtractor[REQUEST, RESPONSE]
	attributesExtractors []AttributesExtractor[REQUEST, RESPONSE]
	operationListeners   []OperationListener
	contextCustomizers   []ContextCustomizer[REQUEST]
	tracer               trace.Tracer
	attributesPool       sync.Pool
}

// PropagatingFromUpstreamInstrumenter extracts the remote parent from the
// request carrier before starting the span. Used for server side operations.
type PropagatingFromUpstreamInstrumenter[REQUEST any, RESPONSE any] struct {
	carrierGetter func(REQUEST) propagation.TextMapCarrier
	prop          propagation.TextMapPropagator
	base          *InternalInstrumenter[REQUEST, RESPONSE]
}

func (i *InternalInstrumenter[REQUEST, RESPONSE]) ShouldStart(_ context.Context, _ REQUEST) bool {
	return i.enabler == nil || i.enabler.Enable()
}

func (i *InternalInstrumenter[REQUEST, RESPONSE]) Start(
	parentContext context.Context,
	request REQUEST,
	options ...trace.SpanStartOption,
) context.Context {
	return i.doStart(parentContext, request, time.Now(), options...)
}

func (i *InternalInstrumenter[REQUEST, RESPONSE]) StartAndEnd(
	parentContext context.Context,
	invocation Invocation[REQUEST, RESPONSE],
) {
	ctx := i.doStart(parentContext, invocation.Request, invocation.StartTimeStamp)
	i.End(ctx, invocation)
}

func (i *InternalInstrumenter[REQUEST, RESPONSE]) doStart(
	parentContext context.Context,
	request REQUEST,
	timestamp time.Time,
	options ...trace.SpanStartOption,
) context.Context {
	if !i.ShouldStart(parentContext, request) {
		return parentContext
	}
	for _, listener := range i.operationListeners {
		//nolint:fatcontext // a handful of listeners at most
		parentContext = listener.OnBeforeStart(parentContext, timestamp)
	}
	spanName := i.spanNameExtractor.Extract(request)
	spanKind := i.spanKindExtractor.Extract(request)
	options = append(options, trace.WithSpanKind(spanKind), trace.WithTimestamp(timestamp))
	ctx, span := i.tracer.Start(parentContext, spanName, options...)

	attrs := make([]attribute.KeyValue, 0, defaultAttributesSliceSize)
	for _, extractor := range i.attributesExtractors {
		attrs, ctx = extractor.OnStart(ctx, attrs, request)
	}
	for _, customizer := range i.contextCustomizers {
		//nolint:fatcontext // a handful of customizers at most
		ctx = customizer.OnStart(ctx, request, attrs)
	}
	for _, listener := range i.operationListeners {
		//nolint:fatcontext // a handful of listeners at most
		ctx = listener.OnBeforeEnd(ctx, attrs, timestamp)
	}
	span.SetAttributes(attrs...)
	return ctx
}

// End finishes the span found in ctx. A zero EndTimeStamp means now.
func (i *InternalInstrumenter[REQUEST, RESPONSE]) End(
	ctx context.Context,
	invocation Invocation[REQUEST, RESPONSE],
	options ...trace.SpanEndOption,
) {
	if !i.ShouldStart(ctx, invocation.Request) {
		return
	}
	timestamp := invocation.EndTimeStamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	for _, listener := range i.operationListeners {
		listener.OnAfterStart(ctx, timestamp)
	}
	span := trace.SpanFromContext(ctx)
	if invocation.Err != nil {
		span.RecordError(invocation.Err)
		span.SetStatus(codes.Error, invocation.Err.Error())
	}

	attrsPtr, ok := i.attributesPool.Get().(*[]attribute.KeyValue)
	if !ok {
		s := make([]attribute.KeyValue, 0, defaultAttributesSliceSize)
		attrsPtr = &s
	}
	attrs := (*attrsPtr)[:0]
	defer func() {
		*attrsPtr = attrs[:0]
		i.attributesPool.Put(attrsPtr)
	}()

	for _, extractor := range i.attributesExtractors {
		attrs, ctx = extractor.OnEnd(ctx, attrs, invocation.Request, invocation.Response, invocation.Err)
	}
	i.spanStatusExtractor.Extract(span, invocation.Request, invocation.Response, invocation.Err)
	span.SetAttributes(attrs...)
	options = append(options, trace.WithTimestamp(timestamp))
	span.End(options...)
	for _, listener := range i.operationListeners {
		listener.OnAfterEnd(ctx, attrs, timestamp)
	}
}

func (p *PropagatingFromUpstreamInstrumenter[REQUEST, RESPONSE]) ShouldStart(
	parentContext context.Context,
	request REQUEST,
) bool {
	return p.base.ShouldStart(parentContext, request)
}

func (p *PropagatingFromUpstreamInstrumenter[REQUEST, RESPONSE]) extract(
	parentContext context.Context,
	request REQUEST,
) context.Context {
	if p.carrierGetter == nil {
		return parentContext
	}
	carrier := p.carrierGetter(request)
	if carrier == nil {
		return parentContext
	}
	return p.prop.Extract(parentContext, carrier)
}

func (p *PropagatingFromUpstreamInstrumenter[REQUEST, RESPONSE]) Start(
	parentContext context.Context,
	request REQUEST,
	options ...trace.SpanStartOption,
) context.Context {
	if !p.base.ShouldStart(parentContext, request) {
		return parentContext
	}
	return p.base.Start(p.extract(parentContext, request), request, options...)
}

func (p *PropagatingFromUpstreamInstrumenter[REQUEST, RESPONSE]) StartAndEnd(
	parentContext context.Context,
	invocation Invocation[REQUEST, RESPONSE],
) {
	if !p.base.ShouldStart(parentContext, invocation.Request) {
		return
	}
	ctx := p.base.doStart(p.extract(parentContext, invocation.Request), invocation.Request, invocation.StartTimeStamp)
	p.base.End(ctx, invocation)
}

func (p *PropagatingFromUpstreamInstrumenter[REQUEST, RESPONSE]) End(
	ctx context.Context,
	invocation Invocation[REQUEST, RESPONSE],
	options ...trace.SpanEndOption,
) {
	p.base.End(ctx, invocation, options...)
}
