// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package decorator

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// SplitHostPort splits a network address of the form "host", "host%zone",
// "[host]", "[host%zone]", "host:port", "host%zone:port", "[host]:port",
// "[host%zone]:port" or ":port" into host and port.
//
// An empty host is returned if it is not provided or unparsable. A negative
// port is returned if it is not provided or unparsable.
func SplitHostPort(hostport string) (host string, port int) {
	port = -1

	if strings.HasPrefix(hostport, "[") {
		addrEnd := strings.LastIndexByte(hostport, ']')
		if addrEnd < 0 {
			return host, port
		}
		if i := strings.LastIndexByte(hostport[addrEnd:], ':'); i < 0 {
			host = hostport[1:addrEnd]
			return host, port
		}
	} else if i := strings.LastIndexByte(hostport, ':'); i < 0 {
		host = hostport
		return host, port
	}

	host, pStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return host, port
	}

	p, err := strconv.ParseUint(pStr, 10, 16)
	if err != nil {
		return host, port
	}
	return host, int(p) //nolint:gosec // bit size checked above
}

// SplitPeer splits a remote address into an IP and a port, each reported
// absent when the address does not carry it. Unix socket peers ("@", a path)
// and empty addresses yield no IP.
func SplitPeer(remoteAddr string) (ip string, port int, hasIP bool, hasPort bool) {
	host, p := SplitHostPort(remoteAddr)
	if ip, hasIP = PeerIP(host); !hasIP {
		return "", 0, false, false
	}
	return ip, p, true, p > 0
}

// PeerIP validates a bare IP address without port, dropping an IPv6 zone.
func PeerIP(addr string) (string, bool) {
	if i := strings.IndexByte(addr, '%'); i >= 0 {
		addr = addr[:i]
	}
	if net.ParseIP(addr) == nil {
		return "", false
	}
	return addr, true
}

// StandardizeHTTPMethod upper-cases a method and maps methods unknown to the
// HTTP semantic conventions to "_OTHER".
func StandardizeHTTPMethod(method string) string {
	method = strings.ToUpper(method)
	switch method {
	case http.MethodConnect, http.MethodDelete, http.MethodGet, http.MethodHead,
		http.MethodOptions, http.MethodPatch, http.MethodPost, http.MethodPut, http.MethodTrace, "QUERY":
	default:
		method = "_OTHER"
	}
	return method
}
