// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package nethttp binds the server decorator contract to net/http and
// provides a tracing middleware built on it.
package nethttp

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"github.com/y1yang0/otel-go-server-decorator/pkg/decorator"
	"github.com/y1yang0/otel-go-server-decorator/pkg/instrumenter"
)

const (
	Component           = "net/http"
	InstrumentationName = "nethttp"
)

// Decorator reads *http.Request and the status observed by ResponseWriter.
type Decorator struct{}

var (
	_ decorator.HTTPServerDecorator[*http.Request, *ResponseWriter] = Decorator{}
	_ decorator.RouteDecorator[*http.Request]                       = Decorator{}
	_ decorator.UserAgentDecorator[*http.Request]                   = Decorator{}
	_ decorator.BodySizeDecorator[*ResponseWriter]                  = Decorator{}
	_ instrumenter.ContextCustomizer[*http.Request]                 = Decorator{}
)

func NewDecorator() Decorator {
	return Decorator{}
}

// Register adds the net/http decorator to r.
func Register(r *decorator.Registry) error {
	return r.Register(NewDecorator())
}

func (Decorator) Method(request *http.Request) string {
	return request.Method
}

func (Decorator) URL(request *http.Request) decorator.URIDataAdapter {
	return decorator.NewURIFromURL(request.URL, request.Host, request.TLS != nil)
}

func (Decorator) PeerHostIP(request *http.Request) (string, bool) {
	ip, _, ok, _ := decorator.SplitPeer(request.RemoteAddr)
	return ip, ok
}

func (Decorator) PeerPort(request *http.Request) (int, bool) {
	_, port, _, ok := decorator.SplitPeer(request.RemoteAddr)
	return port, ok
}

func (Decorator) Status(response *ResponseWriter) (int, bool) {
	return response.StatusCode()
}

// ResponseBodySize is absent for a hijacked connection, whose bytes bypass
// the writer.
func (Decorator) ResponseBodySize(response *ResponseWriter) (int64, bool) {
	if _, ok := response.StatusCode(); !ok {
		return 0, false
	}
	return response.BytesWritten(), true
}

// OnStart gives the request served under the span a place for
// RouteMiddleware to record the matched route. It remembers the pattern an
// enclosing mux already set.
func (Decorator) OnStart(ctx context.Context, request *http.Request, _ []attribute.KeyValue) context.Context {
	return context.WithValue(ctx, routeKey{}, &routeHolder{parentPattern: request.Pattern})
}

func (Decorator) UserAgent(request *http.Request) (string, bool) {
	ua := request.UserAgent()
	return ua, ua != ""
}

// Route returns the path template recorded by RouteMiddleware for gorilla/mux
// routers, or the pattern matched by an http.ServeMux inside the Handler. A
// pattern that was already set when the request reached the Handler belongs
// to an enclosing mux and is not reported.
func (Decorator) Route(request *http.Request) (string, bool) {
	holder, _ := request.Context().Value(routeKey{}).(*routeHolder)
	if holder != nil && holder.template != "" {
		return holder.template, true
	}
	if holder != nil && request.Pattern == holder.parentPattern {
		return "", false
	}
	if route := patternRoute(request.Pattern); route != "" {
		return route, true
	}
	return "", false
}

func (Decorator) InstrumentationNames() []string {
	return []string{InstrumentationName}
}

func (Decorator) Component() string {
	return Component
}

// patternRoute strips the method and host from a ServeMux pattern such as
// "GET example.com/api/{id}".
func patternRoute(pattern string) string {
	if idx := strings.IndexByte(pattern, '/'); idx >= 0 {
		return pattern[idx:]
	}
	return ""
}

type routeKey struct{}

type routeHolder struct {
	template      string
	parentPattern string
}

// RouteMiddleware records the path template of the gorilla/mux route that
// matched, so the enclosing Handler can report it. Install it with
// router.Use.
func RouteMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if holder, ok := r.Context().Value(routeKey{}).(*routeHolder); ok {
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					holder.template = tpl
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

var _ mux.MiddlewareFunc = RouteMiddleware

type handler struct {
	next http.Handler
	inst instrumenter.Instrumenter[*http.Request, *ResponseWriter]
}

// NewHandler wraps next so that every request produces a server span.
func NewHandler(next http.Handler, opts ...decorator.Option) http.Handler {
	return &handler{
		next: next,
		inst: decorator.NewInstrumenter[*http.Request, *ResponseWriter](NewDecorator(), carrier, opts...),
	}
}

func carrier(request *http.Request) propagation.TextMapCarrier {
	return propagation.HeaderCarrier(request.Header)
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := h.inst.Start(r.Context(), r)
	rw := NewResponseWriter(w)
	req := r.WithContext(ctx)

	var err error
	defer func() {
		rec := recover()
		if rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		} else {
			rw.finalize()
		}
		h.inst.End(ctx, instrumenter.Invocation[*http.Request, *ResponseWriter]{
			Request:  req,
			Response: rw,
			Err:      err,
		})
		if rec != nil {
			panic(rec)
		}
	}()
	h.next.ServeHTTP(rw, req)
}
