// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/y1yang0/otel-go-server-decorator/pkg/decorator"
)

func testApp() *app {
	return newApp(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testOptions(sr *tracetest.SpanRecorder) []decorator.Option {
	return []decorator.Option{
		decorator.WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))),
		decorator.WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))),
		decorator.WithPropagator(propagation.TraceContext{}),
		decorator.WithConfig(decorator.Config{}),
	}
}

func TestNetHTTPGreet(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	h := testApp().netHTTPHandler(testOptions(sr)...)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/greet", strings.NewReader(`{"name":"otel"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp greetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hello, otel!", resp.Message)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /greet", spans[0].Name())
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), resp.TraceID)
}

func TestNetHTTPUserRoute(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	h := testApp().netHTTPHandler(testOptions(sr)...)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /users/{id}", spans[0].Name())
}

func TestNetHTTPMetricsUninstrumented(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	a := testApp()
	h := a.netHTTPHandler(testOptions(sr)...)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/greet?name=a", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `demo_greetings_total{framework="nethttp"} 1`)
	assert.Len(t, sr.Ended(), 1)
}

func newFastRequest(method, uri, body string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.Header.SetHost("example.com")
	req.SetRequestURI(uri)
	req.SetBodyString(body)
	rc := &fasthttp.RequestCtx{}
	rc.Init(&req, nil, nil)
	return rc
}

func TestFastHTTPRoutes(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	h := testApp().fastHTTPHandler(testOptions(sr)...)

	rc := newFastRequest(http.MethodGet, "/greet?name=fast", "")
	h(rc)
	require.Equal(t, fasthttp.StatusOK, rc.Response.StatusCode())
	var resp greetResponse
	require.NoError(t, json.Unmarshal(rc.Response.Body(), &resp))
	assert.Equal(t, "Hello, fast!", resp.Message)
	assert.NotEmpty(t, resp.TraceID)

	rc = newFastRequest(http.MethodGet, "/users/7", "")
	h(rc)
	assert.Equal(t, fasthttp.StatusOK, rc.Response.StatusCode())
	assert.JSONEq(t, `{"id":7}`, string(rc.Response.Body()))

	rc = newFastRequest(http.MethodPost, "/greet", "{")
	h(rc)
	assert.Equal(t, fasthttp.StatusBadRequest, rc.Response.StatusCode())

	rc = newFastRequest(http.MethodGet, "/missing", "")
	h(rc)
	assert.Equal(t, fasthttp.StatusNotFound, rc.Response.StatusCode())

	rc = newFastRequest(http.MethodGet, "/metrics", "")
	h(rc)
	assert.Equal(t, fasthttp.StatusOK, rc.Response.StatusCode())
	assert.Contains(t, string(rc.Response.Body()), `demo_greetings_total{framework="fasthttp"} 1`)

	assert.Len(t, sr.Ended(), 4)
}

func TestListCommand(t *testing.T) {
	path := writeFile(t, "demo.yaml", "env_file: \"\"\ninstrumentation:\n  disabled: [grizzly]\n")
	var out bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out
	require.NoError(t, cmd.Run(context.Background(), []string{"decorator-demo", "list", "--config", path}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"grizzly", "grizzly", "disabled"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"nethttp", "net/http", "enabled"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"fasthttp", "fasthttp", "enabled"}, strings.Fields(lines[2]))
}

func TestListCommandBadConfig(t *testing.T) {
	cmd := newCommand()
	cmd.Writer = io.Discard
	err := cmd.Run(context.Background(),
		[]string{"decorator-demo", "list", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestNewRegistry(t *testing.T) {
	r, err := newRegistry()
	require.NoError(t, err)
	assert.Len(t, r.Descriptors(), 3)
}
