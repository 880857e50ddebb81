// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package fasthttp binds the server decorator contract to valyala/fasthttp.
package fasthttp

import (
	"context"
	"fmt"
	"net"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/propagation"

	"github.com/y1yang0/otel-go-server-decorator/pkg/decorator"
	"github.com/y1yang0/otel-go-server-decorator/pkg/instrumenter"
)

const (
	Component           = "fasthttp"
	InstrumentationName = "fasthttp"
)

const contextKey = "otel-go-server-decorator.context"

// Decorator reads a *fasthttp.RequestCtx and its *fasthttp.Response.
type Decorator struct{}

var (
	_ decorator.HTTPServerDecorator[*fasthttp.RequestCtx, *fasthttp.Response] = Decorator{}
	_ decorator.UserAgentDecorator[*fasthttp.RequestCtx]                      = Decorator{}
)

func NewDecorator() Decorator {
	return Decorator{}
}

// Register adds the fasthttp decorator to r.
func Register(r *decorator.Registry) error {
	return r.Register(NewDecorator())
}

func (Decorator) Method(rc *fasthttp.RequestCtx) string {
	return string(rc.Method())
}

func (Decorator) URL(rc *fasthttp.RequestCtx) decorator.URIDataAdapter {
	scheme := "http"
	if rc.IsTLS() {
		scheme = "https"
	}
	return decorator.ParseRequestURI(scheme, string(rc.Host()), string(rc.RequestURI()))
}

// PeerHostIP is absent for connections without an IP peer. A RequestCtx
// that was never bound to a connection reports the unspecified address,
// which is treated as absent too.
func (Decorator) PeerHostIP(rc *fasthttp.RequestCtx) (string, bool) {
	ip, _, ok := peer(rc.RemoteAddr())
	return ip, ok
}

func (Decorator) PeerPort(rc *fasthttp.RequestCtx) (int, bool) {
	_, port, ok := peer(rc.RemoteAddr())
	return port, ok && port > 0
}

func peer(addr net.Addr) (string, int, bool) {
	switch a := addr.(type) {
	case nil:
		return "", 0, false
	case *net.TCPAddr:
		if a.IP == nil || a.IP.IsUnspecified() {
			return "", 0, false
		}
		return a.IP.String(), a.Port, true
	default:
		ip, port, hasIP, _ := decorator.SplitPeer(addr.String())
		return ip, port, hasIP
	}
}

// Status is absent when no response is available, which is the case when
// the handler panicked.
func (Decorator) Status(resp *fasthttp.Response) (int, bool) {
	if resp == nil {
		return 0, false
	}
	return resp.StatusCode(), true
}

func (Decorator) UserAgent(rc *fasthttp.RequestCtx) (string, bool) {
	ua := rc.UserAgent()
	return string(ua), len(ua) > 0
}

func (Decorator) InstrumentationNames() []string {
	return []string{InstrumentationName}
}

func (Decorator) Component() string {
	return Component
}

// headerCarrier exposes request headers to a propagator. It is read only.
type headerCarrier struct {
	header *fasthttp.RequestHeader
}

var _ propagation.TextMapCarrier = headerCarrier{}

func (c headerCarrier) Get(key string) string {
	return string(c.header.Peek(key))
}

func (headerCarrier) Set(string, string) {}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, c.header.Len())
	c.header.VisitAll(func(k, _ []byte) {
		keys = append(keys, string(k))
	})
	return keys
}

func carrier(rc *fasthttp.RequestCtx) propagation.TextMapCarrier {
	return headerCarrier{header: &rc.Request.Header}
}

// Context returns the span context stored by Wrap for rc, or rc itself when
// the request was not instrumented.
func Context(rc *fasthttp.RequestCtx) context.Context {
	if ctx, ok := rc.UserValue(contextKey).(context.Context); ok {
		return ctx
	}
	return rc
}

// Wrap instruments next. Handlers obtain the span context with Context.
func Wrap(next fasthttp.RequestHandler, opts ...decorator.Option) fasthttp.RequestHandler {
	inst := decorator.NewInstrumenter[*fasthttp.RequestCtx, *fasthttp.Response](NewDecorator(), carrier, opts...)
	return func(rc *fasthttp.RequestCtx) {
		ctx := inst.Start(context.Background(), rc)
		rc.SetUserValue(contextKey, ctx)

		defer func() {
			invocation := instrumenter.Invocation[*fasthttp.RequestCtx, *fasthttp.Response]{Request: rc}
			rec := recover()
			if rec != nil {
				invocation.Err = fmt.Errorf("handler panic: %v", rec)
			} else {
				invocation.Response = &rc.Response
			}
			inst.End(ctx, invocation)
			if rec != nil {
				panic(rec)
			}
		}()
		next(rc)
	}
}
