// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package decorator

import (
	"net/url"
	"strconv"
	"strings"
)

// URIDataAdapter is a read-only, normalized view of a request URI.
type URIDataAdapter interface {
	Scheme() string
	Host() string
	Port() (int, bool)
	Path() string
	Fragment() string
	Query() string
	RawPath() string
	RawQuery() string
	// SupportsRaw reports whether RawPath and RawQuery hold the undecoded
	// form received on the wire.
	SupportsRaw() bool
	// IsValid reports whether the request target could be parsed.
	IsValid() bool
	String() string
}

// URI is the value implementation of URIDataAdapter. The zero URI is invalid.
type URI struct {
	scheme   string
	host     string
	port     int
	hasPort  bool
	path     string
	rawPath  string
	query    string
	rawQuery string
	fragment string
	valid    bool
}

var _ URIDataAdapter = URI{}

// NewURIFromURL normalizes a parsed URL. Server requests usually carry only a
// path in u, so host is used when u has none and tls picks the scheme when u
// has none.
func NewURIFromURL(u *url.URL, host string, tls bool) URI {
	if u == nil {
		return URI{}
	}
	uri := URI{
		scheme:   strings.ToLower(u.Scheme),
		path:     u.Path,
		rawPath:  u.EscapedPath(),
		rawQuery: u.RawQuery,
		fragment: u.Fragment,
		valid:    true,
	}
	if uri.scheme == "" {
		uri.scheme = "http"
		if tls {
			uri.scheme = "https"
		}
	}
	if u.Host != "" {
		host = u.Host
	}
	uri.host, uri.port, uri.hasPort = splitHost(host)
	uri.query = decodeQuery(u.RawQuery)
	return uri
}

// ParseRequestURI builds a URI from the pieces a server framework reports:
// the scheme, the Host header or server name (optionally with a port), and
// the raw request target. An unparsable target yields an invalid URI that
// still reports scheme and host.
func ParseRequestURI(scheme, hostport, requestURI string) URI {
	host, port, hasPort := splitHost(hostport)
	u, err := url.ParseRequestURI(requestURI)
	if err != nil {
		return URI{scheme: strings.ToLower(scheme), host: host, port: port, hasPort: hasPort}
	}
	uri := NewURIFromURL(u, hostport, false)
	if scheme != "" {
		uri.scheme = strings.ToLower(scheme)
	}
	return uri
}

// WithPort returns a copy of u reporting port, unless u already has one.
func (u URI) WithPort(port int) URI {
	if !u.hasPort && port > 0 && port <= 65535 {
		u.port, u.hasPort = port, true
	}
	return u
}

func (u URI) Scheme() string { return u.scheme }
func (u URI) Host() string { return u.host }
func (u URI) Port() (int, bool) { return u.port, u.hasPort }
func (u URI) Path() string { return u.path }
func (u URI) Fragment() string { return u.fragment }
func (u URI) Query() string { return u.query }
func (u URI) RawPath() string { return u.rawPath }
func (u URI) RawQuery() string { return u.rawQuery }
func (u URI) SupportsRaw() bool { return u.valid }
func (u URI) IsValid() bool { return u.valid }

func (u URI) String() string {
	if !u.valid {
		return ""
	}
	host := u.host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if u.hasPort {
		host += ":" + strconv.Itoa(u.port)
	}
	out := url.URL{
		Scheme:   u.scheme,
		Host:     host,
		Path:     u.path,
		RawPath:  u.rawPath,
		RawQuery: u.rawQuery,
		Fragment: u.fragment,
	}
	return out.String()
}

func splitHost(hostport string) (string, int, bool) {
	host, port := SplitHostPort(hostport)
	return host, port, port > 0
}

func decodeQuery(raw string) string {
	if raw == "" {
		return ""
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}
