// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package decorator defines how an HTTP server framework exposes the fields a
// server span needs, and turns any such decorator into an instrumenter.
//
// A decorator is a pure projection of framework owned request and response
// handles. It never mutates them, holds no state and is safe for concurrent
// use. Values the framework cannot provide are reported absent through the
// second "ok" result instead of a made up default; see Guard for turning
// accessor panics into absent values.
package decorator

// HTTPServerDecorator extracts the identifying fields of one server request.
// REQUEST and RESPONSE are the framework's own handle types.
type HTTPServerDecorator[REQUEST any, RESPONSE any] interface {
	// Method returns the request method token as reported by the framework,
	// or "" when the framework reports none.
	Method(request REQUEST) string
	// URL returns the normalized view of the request URI.
	URL(request REQUEST) URIDataAdapter
	// PeerHostIP returns the remote peer IP address. It is absent for
	// transports without an IP peer such as unix sockets.
	PeerHostIP(request REQUEST) (string, bool)
	// PeerPort returns the remote peer port.
	PeerPort(request REQUEST) (int, bool)
	// Status returns the response status code. It is absent while the
	// response has not been finalized.
	Status(response RESPONSE) (int, bool)
	// InstrumentationNames returns the names used to enable or disable the
	// decorator.
	InstrumentationNames() []string
	// Component returns the fixed label of the integrated framework.
	Component() string
}

// RouteDecorator is implemented by decorators that know the low-cardinality
// route template a request matched.
type RouteDecorator[REQUEST any] interface {
	Route(request REQUEST) (string, bool)
}

// UserAgentDecorator is implemented by decorators that can read the
// User-Agent request header.
type UserAgentDecorator[REQUEST any] interface {
	UserAgent(request REQUEST) (string, bool)
}

// BodySizeDecorator is implemented by decorators whose response handle counts
// the body bytes sent to the client.
type BodySizeDecorator[RESPONSE any] interface {
	ResponseBodySize(response RESPONSE) (int64, bool)
}

// Descriptor is the request independent part of a decorator.
type Descriptor interface {
	InstrumentationNames() []string
	Component() string
}
