// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package decorator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/y1yang0/otel-go-server-decorator/internal/ex"
)

/**
HTTP server metrics follow https://opentelemetry.io/docs/specs/semconv/http/http-metrics/
Only the stable http.server.request.duration histogram and the
http.server.active_requests counter are recorded.
*/

const (
	serverRequestDuration = "http.server.request.duration"
	serverActiveRequests  = "http.server.active_requests"
)

// Span attributes such as url.path and network.peer.* are high-cardinality
// and must not reach metric streams.
var serverDurationAttrs = map[attribute.Key]bool{
	semconv.HTTPRequestMethodKey:      true,
	semconv.URLSchemeKey:              true,
	semconv.ErrorTypeKey:              true,
	semconv.HTTPResponseStatusCodeKey: true,
	semconv.HTTPRouteKey:              true,
	semconv.ServerAddressKey:          true,
	semconv.ServerPortKey:             true,
	ComponentKey:                      true,
}

var serverActiveAttrs = map[attribute.Key]bool{
	semconv.HTTPRequestMethodKey: true,
	semconv.URLSchemeKey:         true,
	semconv.ServerAddressKey:     true,
	semconv.ServerPortKey:        true,
	ComponentKey:                 true,
}

type metricContextKey struct{}

type serverMetricContext struct {
	startTime   time.Time
	startAttrs  []attribute.KeyValue
	activeAttrs attribute.Set
}

// ServerMetrics is an instrumenter.OperationListener recording server
// request metrics.
type ServerMetrics struct {
	requestDuration metric.Float64Histogram
	activeRequests  metric.Int64UpDownCounter
}

func NewServerMetrics(meter metric.Meter) (*ServerMetrics, error) {
	if meter == nil {
		return nil, ex.New("nil meter")
	}
	duration, err := meter.Float64Histogram(serverRequestDuration,
		metric.WithDescription("Duration of HTTP server requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10),
	)
	if err != nil {
		return nil, ex.Wrapf(err, "failed to create %s histogram", serverRequestDuration)
	}
	active, err := meter.Int64UpDownCounter(serverActiveRequests,
		metric.WithDescription("Number of active HTTP server requests."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, ex.Wrapf(err, "failed to create %s counter", serverActiveRequests)
	}
	return &ServerMetrics{requestDuration: duration, activeRequests: active}, nil
}

func (*ServerMetrics) OnBeforeStart(parentContext context.Context, _ time.Time) context.Context {
	return parentContext
}

func (m *ServerMetrics) OnBeforeEnd(ctx context.Context, startAttributes []attribute.KeyValue,
	startTime time.Time,
) context.Context {
	startAttrs := append([]attribute.KeyValue(nil), startAttributes...)
	n, active := shadow(append([]attribute.KeyValue(nil), startAttrs...), serverActiveAttrs)
	mc := serverMetricContext{
		startTime:   startTime,
		startAttrs:  startAttrs,
		activeAttrs: attribute.NewSet(active[:n]...),
	}
	m.activeRequests.Add(ctx, 1, metric.WithAttributeSet(mc.activeAttrs))
	return context.WithValue(ctx, metricContextKey{}, mc)
}

func (*ServerMetrics) OnAfterStart(_ context.Context, _ time.Time) {}

func (m *ServerMetrics) OnAfterEnd(ctx context.Context, endAttributes []attribute.KeyValue, endTime time.Time) {
	mc, ok := ctx.Value(metricContextKey{}).(serverMetricContext)
	if !ok {
		return
	}
	m.activeRequests.Add(ctx, -1, metric.WithAttributeSet(mc.activeAttrs))
	attrs := make([]attribute.KeyValue, 0, len(endAttributes)+len(mc.startAttrs))
	attrs = append(attrs, endAttributes...)
	attrs = append(attrs, mc.startAttrs...)
	n, attrs := shadow(attrs, serverDurationAttrs)
	m.requestDuration.Record(ctx, endTime.Sub(mc.startTime).Seconds(),
		metric.WithAttributeSet(attribute.NewSet(attrs[:n]...)))
}

// shadow moves the attributes whose key is in keep to the front of attrs and
// returns how many there are.
func shadow(attrs []attribute.KeyValue, keep map[attribute.Key]bool) (int, []attribute.KeyValue) {
	index := 0
	for i, attr := range attrs {
		if keep[attr.Key] {
			if index != i {
				attrs[i], attrs[index] = attrs[index], attrs[i]
			}
			index++
		}
	}
	return index, attrs
}
