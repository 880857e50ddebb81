// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.opentelemetry.io/otel/trace"

	"github.com/y1yang0/otel-go-server-decorator/pkg/decorator"
	fasthttpdecorator "github.com/y1yang0/otel-go-server-decorator/pkg/decorator/fasthttp"
	"github.com/y1yang0/otel-go-server-decorator/pkg/decorator/nethttp"
)

type greetRequest struct {
	Name string `json:"name"`
}

type greetResponse struct {
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

type userResponse struct {
	ID int `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// app is the demo service. Its routes are served by either framework.
type app struct {
	logger    *slog.Logger
	registry  *prometheus.Registry
	greetings *prometheus.CounterVec
}

func newApp(logger *slog.Logger) *app {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	greetings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "demo_greetings_total",
		Help: "Number of greetings served.",
	}, []string{"framework"})
	registry.MustRegister(greetings)
	return &app{logger: logger, registry: registry, greetings: greetings}
}

func (a *app) greet(framework, name string, sc trace.SpanContext) greetResponse {
	if name == "" {
		name = "world"
	}
	a.greetings.WithLabelValues(framework).Inc()
	resp := greetResponse{Message: "Hello, " + name + "!"}
	if sc.IsValid() {
		resp.TraceID = sc.TraceID().String()
	}
	return resp
}

func (a *app) metricsHandler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}

// netHTTPHandler serves the app with gorilla/mux behind the net/http
// decorator. /metrics is left uninstrumented.
func (a *app) netHTTPHandler(opts ...decorator.Option) http.Handler {
	router := mux.NewRouter()
	router.Use(nethttp.RouteMiddleware)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	router.HandleFunc("/greet", a.handleGreet).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/users/{id}", a.handleUser).Methods(http.MethodGet)

	root := http.NewServeMux()
	root.Handle("/metrics", a.metricsHandler())
	root.Handle("/", nethttp.NewHandler(router, opts...))
	return root
}

func (a *app) handleGreet(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if r.Method == http.MethodPost {
		var req greetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.logger.Warn("bad greet request", "error", err, "path", r.URL.Path)
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		name = req.Name
	}
	writeJSON(w, http.StatusOK, a.greet(frameworkNetHTTP, name, trace.SpanContextFromContext(r.Context())))
}

func (a *app) handleUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "id must be a number"})
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: id})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// fastHTTPHandler serves the app with fasthttp behind the fasthttp
// decorator.
func (a *app) fastHTTPHandler(opts ...decorator.Option) fasthttp.RequestHandler {
	metrics := fasthttpadaptor.NewFastHTTPHandler(a.metricsHandler())
	instrumented := fasthttpdecorator.Wrap(a.routeFast, opts...)
	return func(rc *fasthttp.RequestCtx) {
		if string(rc.Path()) == "/metrics" {
			metrics(rc)
			return
		}
		instrumented(rc)
	}
}

func (a *app) routeFast(rc *fasthttp.RequestCtx) {
	path := string(rc.Path())
	switch {
	case path == "/healthz" && rc.IsGet():
		rc.SetStatusCode(fasthttp.StatusOK)
	case path == "/greet" && (rc.IsGet() || rc.IsPost()):
		name := string(rc.QueryArgs().Peek("name"))
		if rc.IsPost() {
			var req greetRequest
			if err := json.Unmarshal(rc.PostBody(), &req); err != nil {
				a.logger.Warn("bad greet request", "error", err, "path", path)
				writeFastJSON(rc, fasthttp.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
			name = req.Name
		}
		sc := trace.SpanContextFromContext(fasthttpdecorator.Context(rc))
		writeFastJSON(rc, fasthttp.StatusOK, a.greet(frameworkFastHTTP, name, sc))
	case strings.HasPrefix(path, "/users/") && rc.IsGet():
		id, err := strconv.Atoi(strings.TrimPrefix(path, "/users/"))
		if err != nil {
			writeFastJSON(rc, fasthttp.StatusBadRequest, errorResponse{Error: "id must be a number"})
			return
		}
		writeFastJSON(rc, fasthttp.StatusOK, userResponse{ID: id})
	default:
		rc.Error("not found", fasthttp.StatusNotFound)
	}
}

func writeFastJSON(rc *fasthttp.RequestCtx, status int, body any) {
	rc.SetContentType("application/json")
	rc.SetStatusCode(status)
	_ = json.NewEncoder(rc).Encode(body)
}
