// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package grizzly

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/y1yang0/otel-go-server-decorator/pkg/decorator"
)

type fakeRequest struct {
	method      string
	scheme      string
	serverName  string
	serverPort  int
	requestURI  string
	queryString string
	remoteAddr  string
	remotePort  int
	headers     http.Header
}

func (r *fakeRequest) Method() string { return r.method }
func (r *fakeRequest) Scheme() string { return r.scheme }
func (r *fakeRequest) ServerName() string { return r.serverName }
func (r *fakeRequest) ServerPort() int { return r.serverPort }
func (r *fakeRequest) RequestURI() string { return r.requestURI }
func (r *fakeRequest) QueryString() string { return r.queryString }
func (r *fakeRequest) RemoteAddr() string { return r.remoteAddr }
func (r *fakeRequest) RemotePort() int { return r.remotePort }
func (r *fakeRequest) Header(n string) string { return r.headers.Get(n) }

func (r *fakeRequest) HeaderNames() []string {
	names := make([]string, 0, len(r.headers))
	for name := range r.headers {
		names = append(names, name)
	}
	return names
}

type fakeResponse struct {
	status int
}

func (r *fakeResponse) Status() int { return r.status }

func healthRequest() *fakeRequest {
	return &fakeRequest{
		method:     "GET",
		scheme:     "http",
		serverName: "example.com",
		serverPort: 8080,
		requestURI: "/health",
		remoteAddr: "10.0.0.5",
		remotePort: 4444,
		headers:    http.Header{"User-Agent": []string{"healthcheck/1.0"}},
	}
}

func TestDecoratorHealthScenario(t *testing.T) {
	d := NewDecorator()
	req := healthRequest()

	assert.Equal(t, "GET", d.Method(req))
	ip, ok := d.PeerHostIP(req)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.5", ip)
	port, ok := d.PeerPort(req)
	require.True(t, ok)
	assert.Equal(t, 4444, port)
	status, ok := d.Status(&fakeResponse{status: 200})
	require.True(t, ok)
	assert.Equal(t, 200, status)
	assert.Equal(t, "grizzly", d.Component())
	assert.Equal(t, []string{"grizzly"}, d.InstrumentationNames())

	uri := d.URL(req)
	require.True(t, uri.IsValid())
	assert.Equal(t, "http", uri.Scheme())
	assert.Equal(t, "example.com", uri.Host())
	assert.Equal(t, "/health", uri.Path())
	uriPort, ok := uri.Port()
	require.True(t, ok)
	assert.Equal(t, 8080, uriPort)
	assert.Equal(t, "http://example.com:8080/health", uri.String())
}

func TestDecoratorMissingRemoteAddress(t *testing.T) {
	d := NewDecorator()
	req := healthRequest()
	req.remoteAddr = ""
	req.remotePort = 0

	ip, ok := d.PeerHostIP(req)
	assert.False(t, ok)
	assert.Empty(t, ip)
	_, ok = d.PeerPort(req)
	assert.False(t, ok)
	assert.Equal(t, "GET", d.Method(req))
	assert.True(t, d.URL(req).IsValid())
}

func TestDecoratorUnixSocketPeer(t *testing.T) {
	d := NewDecorator()
	for _, addr := range []string{"/var/run/app.sock", "@", "localhost"} {
		req := healthRequest()
		req.remoteAddr = addr
		ip, ok := d.PeerHostIP(req)
		assert.False(t, ok, addr)
		assert.Empty(t, ip, addr)
	}

	req := healthRequest()
	req.remoteAddr = "fe80::1%en0"
	ip, ok := d.PeerHostIP(req)
	require.True(t, ok)
	assert.Equal(t, "fe80::1", ip)
}

func TestDecoratorIPv6ServerName(t *testing.T) {
	req := healthRequest()
	req.serverName = "::1"

	uri := NewDecorator().URL(req)
	require.True(t, uri.IsValid())
	assert.Equal(t, "::1", uri.Host())
	port, ok := uri.Port()
	require.True(t, ok)
	assert.Equal(t, 8080, port)
	assert.Equal(t, "http://[::1]:8080/health", uri.String())
}

func TestDecoratorUncommittedResponse(t *testing.T) {
	_, ok := NewDecorator().Status(&fakeResponse{})
	assert.False(t, ok)
}

func TestDecoratorQueryString(t *testing.T) {
	req := healthRequest()
	req.requestURI = "/search"
	req.queryString = "q=a%20b&page=2"
	uri := NewDecorator().URL(req)
	assert.Equal(t, "/search", uri.Path())
	assert.Equal(t, "q=a b&page=2", uri.Query())
	assert.Equal(t, "q=a%20b&page=2", uri.RawQuery())
}

func TestDecoratorConstants(t *testing.T) {
	d := NewDecorator()
	for range 3 {
		assert.Equal(t, "grizzly", d.Component())
		assert.Equal(t, []string{"grizzly"}, d.InstrumentationNames())
	}
}

func TestGuardedNilHandles(t *testing.T) {
	g := decorator.Guard[Request, Response](NewDecorator())
	var req *fakeRequest
	assert.NotPanics(t, func() {
		assert.Empty(t, g.Method(req))
		assert.False(t, g.URL(req).IsValid())
		_, ok := g.PeerHostIP(req)
		assert.False(t, ok)
		_, ok = g.PeerPort(req)
		assert.False(t, ok)
		_, ok = g.Status(nil)
		assert.False(t, ok)
		_, ok = g.UserAgent(req)
		assert.False(t, ok)
	})
}

func TestRegister(t *testing.T) {
	r := decorator.NewRegistry()
	require.NoError(t, Register(r))
	d, ok := r.Lookup("GRIZZLY")
	require.True(t, ok)
	assert.Equal(t, Component, d.Component())
	require.Error(t, Register(r))
}

func newTestTracer(t *testing.T, cfg decorator.Config) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	return NewTracer(NewDecorator(),
		decorator.WithTracerProvider(tp),
		decorator.WithMeterProvider(mp),
		decorator.WithPropagator(propagation.TraceContext{}),
		decorator.WithConfig(cfg),
	), sr
}

func TestTracerStartFinish(t *testing.T) {
	tracer, sr := newTestTracer(t, decorator.Config{})
	req := healthRequest()
	req.headers.Set("Traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

	ctx := tracer.Start(context.Background(), req)
	tracer.Finish(ctx, req, &fakeResponse{status: 200}, nil)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())
	assert.True(t, span.Parent().IsRemote())
	attrs := span.Attributes()
	assert.Contains(t, attrs, semconv.HTTPRequestMethodKey.String("GET"))
	assert.Contains(t, attrs, semconv.NetworkPeerAddress("10.0.0.5"))
	assert.Contains(t, attrs, semconv.NetworkPeerPort(4444))
	assert.Contains(t, attrs, semconv.HTTPResponseStatusCode(200))
	assert.Contains(t, attrs, semconv.URLPath("/health"))
	assert.Contains(t, attrs, semconv.UserAgentOriginal("healthcheck/1.0"))
	assert.Contains(t, attrs, attribute.String("component", "grizzly"))
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestTracerOmitsMissingPeer(t *testing.T) {
	tracer, sr := newTestTracer(t, decorator.Config{})
	req := healthRequest()
	req.remoteAddr, req.remotePort = "", 0

	ctx := tracer.Start(context.Background(), req)
	tracer.Finish(ctx, req, &fakeResponse{status: 503}, nil)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	for _, kv := range spans[0].Attributes() {
		assert.NotEqual(t, semconv.NetworkPeerAddressKey, kv.Key)
		assert.NotEqual(t, semconv.NetworkPeerPortKey, kv.Key)
	}
	assert.Contains(t, spans[0].Attributes(), semconv.ErrorTypeKey.String("503"))
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTracerDisabled(t *testing.T) {
	tracer, sr := newTestTracer(t, decorator.Config{Disabled: []string{"grizzly"}})
	req := healthRequest()
	parent := context.Background()
	ctx := tracer.Start(parent, req)
	assert.Equal(t, parent, ctx)
	tracer.Finish(ctx, req, &fakeResponse{status: 200}, nil)
	assert.Empty(t, sr.Ended())
}
