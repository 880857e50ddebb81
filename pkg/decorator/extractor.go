// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package decorator

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
)

// ComponentKey tags server spans with the decorator's component label.
const ComponentKey = attribute.Key("component")

/**
Server attributes follow the OpenTelemetry HTTP semantic conventions:
https://opentelemetry.io/docs/specs/semconv/http/http-spans/
A field the decorator reports absent is omitted, never zero-filled.
*/

type AttrsExtractor[REQUEST any, RESPONSE any] struct {
	Decorator *Guarded[REQUEST, RESPONSE]
}

func (a *AttrsExtractor[REQUEST, RESPONSE]) OnStart(parentContext context.Context,
	attributes []attribute.KeyValue,
	request REQUEST,
) ([]attribute.KeyValue, context.Context) {
	d := a.Decorator
	if method := d.Method(request); method != "" {
		standard := StandardizeHTTPMethod(method)
		attributes = append(attributes, semconv.HTTPRequestMethodKey.String(standard))
		if standard != method {
			attributes = append(attributes, semconv.HTTPRequestMethodOriginal(method))
		}
	}
	if uri := d.URL(request); uri.IsValid() {
		if scheme := uri.Scheme(); scheme != "" {
			attributes = append(attributes, semconv.URLScheme(scheme))
		}
		attributes = append(attributes, semconv.URLPath(uri.Path()))
		if query := uri.Query(); query != "" {
			attributes = append(attributes, semconv.URLQuery(query))
		}
		if host := uri.Host(); host != "" {
			attributes = append(attributes, semconv.ServerAddress(host))
			if port, ok := uri.Port(); ok {
				attributes = append(attributes, semconv.ServerPort(port))
			}
		}
	}
	if ip, ok := d.PeerHostIP(request); ok {
		attributes = append(attributes, semconv.NetworkPeerAddress(ip))
	}
	if port, ok := d.PeerPort(request); ok {
		attributes = append(attributes, semconv.NetworkPeerPort(port))
	}
	if ua, ok := d.UserAgent(request); ok {
		attributes = append(attributes, semconv.UserAgentOriginal(ua))
	}
	attributes = append(attributes, ComponentKey.String(d.Component()))
	return attributes, parentContext
}

func (a *AttrsExtractor[REQUEST, RESPONSE]) OnEnd(ctx context.Context,
	attributes []attribute.KeyValue,
	request REQUEST, response RESPONSE, err error,
) ([]attribute.KeyValue, context.Context) {
	d := a.Decorator
	status, hasStatus := d.Status(response)
	if hasStatus {
		attributes = append(attributes, semconv.HTTPResponseStatusCode(status))
	}
	if size, ok := d.ResponseBodySize(response); ok {
		attributes = append(attributes, semconv.HTTPResponseBodySize(int(size)))
	}
	if route, ok := d.Route(request); ok {
		attributes = append(attributes, semconv.HTTPRoute(route))
		// Routers usually match after the span has started.
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetName((&SpanNameExtractor[REQUEST, RESPONSE]{Decorator: d}).Extract(request))
		}
	}
	if errorType := errorType(status, hasStatus, err); errorType != "" {
		attributes = append(attributes, semconv.ErrorTypeKey.String(errorType))
	}
	return attributes, ctx
}

// errorType follows the same status classification as SpanStatusExtractor.
func errorType(status int, hasStatus bool, err error) string {
	if err != nil {
		return fmt.Sprintf("%T", err)
	}
	if hasStatus && (status < 100 || status >= 500) {
		return strconv.Itoa(status)
	}
	return ""
}

/**
HTTP server span names are "{method} {route}" when a route is known, "{method}"
otherwise, and "HTTP" when the method is missing or not a known method.
*/

type SpanNameExtractor[REQUEST any, RESPONSE any] struct {
	Decorator *Guarded[REQUEST, RESPONSE]
}

func (s *SpanNameExtractor[REQUEST, RESPONSE]) Extract(request REQUEST) string {
	method := StandardizeHTTPMethod(s.Decorator.Method(request))
	if method == "_OTHER" {
		return "HTTP"
	}
	if route, ok := s.Decorator.Route(request); ok && route != "" {
		return method + " " + route
	}
	return method
}

/**
For an HTTP server, a status code >= 500 or < 100 is an error. 4xx codes are the
client's fault and leave the span status unset.
*/

type SpanStatusExtractor[REQUEST any, RESPONSE any] struct {
	Decorator *Guarded[REQUEST, RESPONSE]
}

func (s *SpanStatusExtractor[REQUEST, RESPONSE]) Extract(span trace.Span, _ REQUEST, response RESPONSE, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return
	}
	status, ok := s.Decorator.Status(response)
	if !ok {
		return
	}
	if status < 100 || status >= 600 {
		span.SetStatus(codes.Error, fmt.Sprintf("Invalid HTTP status code %d", status))
	} else if status >= 500 {
		span.SetStatus(codes.Error, "")
	}
}
