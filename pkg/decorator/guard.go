// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package decorator

import (
	"github.com/y1yang0/otel-go-server-decorator/pkg/otelsetup"
)

// Guard wraps d so that a panic raised by any accessor, typically a nil or
// already recycled framework handle, is reported as an absent field. The
// returned decorator always implements the optional decorator interfaces;
// they report absent when d does not.
func Guard[REQUEST any, RESPONSE any](d HTTPServerDecorator[REQUEST, RESPONSE]) *Guarded[REQUEST, RESPONSE] {
	if g, ok := d.(*Guarded[REQUEST, RESPONSE]); ok {
		return g
	}
	return &Guarded[REQUEST, RESPONSE]{d: d}
}

// Guarded is a decorator whose accessors never panic.
type Guarded[REQUEST any, RESPONSE any] struct {
	d HTTPServerDecorator[REQUEST, RESPONSE]
}

func unavailable(component, field string, rec any) {
	otelsetup.Logger().Debug("decorator field unavailable",
		"component", component,
		"field", field,
		"panic", rec)
}

func (g *Guarded[REQUEST, RESPONSE]) Method(request REQUEST) (method string) {
	defer func() {
		if rec := recover(); rec != nil {
			method = ""
			unavailable(g.d.Component(), "method", rec)
		}
	}()
	return g.d.Method(request)
}

func (g *Guarded[REQUEST, RESPONSE]) URL(request REQUEST) (uri URIDataAdapter) {
	defer func() {
		if rec := recover(); rec != nil {
			uri = URI{}
			unavailable(g.d.Component(), "url", rec)
		}
	}()
	if uri = g.d.URL(request); uri == nil {
		uri = URI{}
	}
	return uri
}

func (g *Guarded[REQUEST, RESPONSE]) PeerHostIP(request REQUEST) (ip string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			ip, ok = "", false
			unavailable(g.d.Component(), "peer_host_ip", rec)
		}
	}()
	return g.d.PeerHostIP(request)
}

func (g *Guarded[REQUEST, RESPONSE]) PeerPort(request REQUEST) (port int, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			port, ok = 0, false
			unavailable(g.d.Component(), "peer_port", rec)
		}
	}()
	return g.d.PeerPort(request)
}

func (g *Guarded[REQUEST, RESPONSE]) Status(response RESPONSE) (status int, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			status, ok = 0, false
			unavailable(g.d.Component(), "status", rec)
		}
	}()
	return g.d.Status(response)
}

func (g *Guarded[REQUEST, RESPONSE]) Route(request REQUEST) (route string, ok bool) {
	rd, supported := g.d.(RouteDecorator[REQUEST])
	if !supported {
		return "", false
	}
	defer func() {
		if rec := recover(); rec != nil {
			route, ok = "", false
			unavailable(g.d.Component(), "route", rec)
		}
	}()
	return rd.Route(request)
}

func (g *Guarded[REQUEST, RESPONSE]) UserAgent(request REQUEST) (ua string, ok bool) {
	ud, supported := g.d.(UserAgentDecorator[REQUEST])
	if !supported {
		return "", false
	}
	defer func() {
		if rec := recover(); rec != nil {
			ua, ok = "", false
			unavailable(g.d.Component(), "user_agent", rec)
		}
	}()
	return ud.UserAgent(request)
}

func (g *Guarded[REQUEST, RESPONSE]) ResponseBodySize(response RESPONSE) (size int64, ok bool) {
	bd, supported := g.d.(BodySizeDecorator[RESPONSE])
	if !supported {
		return 0, false
	}
	defer func() {
		if rec := recover(); rec != nil {
			size, ok = 0, false
			unavailable(g.d.Component(), "response_body_size", rec)
		}
	}()
	return bd.ResponseBodySize(response)
}

func (g *Guarded[REQUEST, RESPONSE]) InstrumentationNames() []string {
	return g.d.InstrumentationNames()
}

func (g *Guarded[REQUEST, RESPONSE]) Component() string {
	return g.d.Component()
}
