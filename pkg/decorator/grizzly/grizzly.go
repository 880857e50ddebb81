// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package grizzly binds the server decorator contract to Grizzly style
// request and response handles.
package grizzly

import (
	"context"
	"net/textproto"
	"strings"

	"go.opentelemetry.io/otel/propagation"

	"github.com/y1yang0/otel-go-server-decorator/pkg/decorator"
	"github.com/y1yang0/otel-go-server-decorator/pkg/instrumenter"
)

const (
	Component           = "grizzly"
	InstrumentationName = "grizzly"
)

// Request is the accessor surface of an inbound Grizzly request. The
// framework owns the value; it is only valid while the request is in flight.
type Request interface {
	Method() string
	Scheme() string
	ServerName() string
	ServerPort() int
	RequestURI() string
	QueryString() string
	RemoteAddr() string
	RemotePort() int
	Header(name string) string
	HeaderNames() []string
}

// Response is the accessor surface of the response being produced. Status
// is 0 until the response has been committed.
type Response interface {
	Status() int
}

// Decorator maps Request and Response to the server decorator contract.
type Decorator struct{}

var (
	_ decorator.HTTPServerDecorator[Request, Response] = Decorator{}
	_ decorator.UserAgentDecorator[Request]            = Decorator{}
)

func NewDecorator() Decorator {
	return Decorator{}
}

// Register adds the Grizzly decorator to r.
func Register(r *decorator.Registry) error {
	return r.Register(NewDecorator())
}

func (Decorator) Method(request Request) string {
	return request.Method()
}

func (Decorator) URL(request Request) decorator.URIDataAdapter {
	return newRequestURIAdapter(request)
}

// PeerHostIP is absent unless RemoteAddr is an IP address, which rules out
// unix socket paths.
func (Decorator) PeerHostIP(request Request) (string, bool) {
	return decorator.PeerIP(request.RemoteAddr())
}

func (Decorator) PeerPort(request Request) (int, bool) {
	port := request.RemotePort()
	return port, port > 0
}

func (Decorator) Status(response Response) (int, bool) {
	status := response.Status()
	return status, status > 0
}

func (Decorator) UserAgent(request Request) (string, bool) {
	ua := request.Header("User-Agent")
	return ua, ua != ""
}

func (Decorator) InstrumentationNames() []string {
	return []string{InstrumentationName}
}

func (Decorator) Component() string {
	return Component
}

// newRequestURIAdapter normalizes the URI pieces Grizzly reports separately.
// RequestURI carries no query string in Grizzly, it is appended here.
func newRequestURIAdapter(request Request) decorator.URI {
	target := request.RequestURI()
	if query := request.QueryString(); query != "" {
		target += "?" + query
	}
	return decorator.ParseRequestURI(request.Scheme(), bracketIPv6(request.ServerName()), target).
		WithPort(request.ServerPort())
}

// bracketIPv6 turns a bare IPv6 literal server name into host form so that
// its colons are not taken for a port separator.
func bracketIPv6(name string) string {
	if strings.Contains(name, ":") && !strings.HasPrefix(name, "[") {
		if _, ok := decorator.PeerIP(name); ok {
			return "[" + name + "]"
		}
	}
	return name
}

// headerCarrier exposes request headers to a propagator. Injection is not
// needed on inbound requests, so Set does nothing.
type headerCarrier struct {
	request Request
}

func (c headerCarrier) Get(key string) string {
	return c.request.Header(textproto.CanonicalMIMEHeaderKey(key))
}

func (headerCarrier) Set(string, string) {}

func (c headerCarrier) Keys() []string {
	return c.request.HeaderNames()
}

func carrier(request Request) propagation.TextMapCarrier {
	return headerCarrier{request: request}
}

// Tracer is what the instrumentation engine calls around a Grizzly service
// invocation: Start when the request enters the handler chain and Finish
// once the response is committed.
type Tracer struct {
	inst instrumenter.Instrumenter[Request, Response]
}

func NewTracer(d Decorator, opts ...decorator.Option) *Tracer {
	return &Tracer{inst: decorator.NewInstrumenter[Request, Response](d, carrier, opts...)}
}

// Start returns a context carrying the server span for request.
func (t *Tracer) Start(ctx context.Context, request Request) context.Context {
	return t.inst.Start(ctx, request)
}

// Finish ends the span started for request.
func (t *Tracer) Finish(ctx context.Context, request Request, response Response, err error) {
	t.inst.End(ctx, instrumenter.Invocation[Request, Response]{
		Request:  request,
		Response: response,
		Err:      err,
	})
}
