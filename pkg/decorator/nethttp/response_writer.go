// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package nethttp

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

var errNotHijacker = errors.New("responseWriter does not implement http.Hijacker")

// ResponseWriter wraps an http.ResponseWriter to observe the status code. It
// is the response handle the net/http decorator reads.
type ResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	finalized   bool
	hijacked    bool
	written     int64
}

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w}
}

// WriteHeader records the first status code and forwards every call.
func (w *ResponseWriter) WriteHeader(statusCode int) {
	// 1xx informational headers do not commit the response.
	if !w.wroteHeader && (statusCode >= 200 || statusCode == http.StatusSwitchingProtocols) {
		w.statusCode = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write implies a 200 status when no header was written, as net/http does.
func (w *ResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

// StatusCode returns the committed status code. A handler that returns
// without writing anything commits 200, which is reported once the writer is
// finalized. Nothing is reported for a hijacked connection.
func (w *ResponseWriter) StatusCode() (int, bool) {
	if w.hijacked {
		return 0, false
	}
	if w.wroteHeader {
		return w.statusCode, true
	}
	if w.finalized {
		return http.StatusOK, true
	}
	return 0, false
}

// BytesWritten returns the number of body bytes written so far.
func (w *ResponseWriter) BytesWritten() int64 {
	return w.written
}

func (w *ResponseWriter) finalize() {
	w.finalized = true
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *ResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *ResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		conn, rw, err := h.Hijack()
		if err == nil {
			w.hijacked = true
		}
		return conn, rw, err
	}
	return nil, nil, errNotHijacker
}

func (w *ResponseWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
