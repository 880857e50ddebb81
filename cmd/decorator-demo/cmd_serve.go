// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/valyala/fasthttp"

	"github.com/y1yang0/otel-go-server-decorator/internal/ex"
	"github.com/y1yang0/otel-go-server-decorator/pkg/decorator"
	"github.com/y1yang0/otel-go-server-decorator/pkg/otelsetup"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

//nolint:gochecknoglobals // Implementation of a CLI command
var commandServe = cli.Command{
	Name:        "serve",
	Description: "Serve the demo app instrumented by the selected decorator",
	Flags: []cli.Flag{
		configFlag,
		&cli.StringFlag{
			Name:    "framework",
			Aliases: []string{"f"},
			Usage:   "Server framework: nethttp or fasthttp",
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Listen port, overrides the configuration file",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd.String(configFlag.Name))
		if err != nil {
			return err
		}
		if cmd.IsSet("framework") {
			cfg.Framework = cmd.String("framework")
		}
		if cmd.IsSet("port") {
			cfg.Server.Port = int(cmd.Int("port"))
		}
		if err = cfg.validate(); err != nil {
			return err
		}
		if err = cfg.loadEnv(); err != nil {
			return err
		}
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *demoConfig) error {
	logger := otelsetup.Logger()
	sdk, err := otelsetup.Setup(ctx, otelsetup.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		RuntimeMetrics: cfg.RuntimeMetrics,
		Global:         true,
	})
	if err != nil {
		return ex.Wrapf(err, "failed to set up telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := sdk.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	opts := []decorator.Option{
		decorator.WithTracerProvider(sdk.TracerProvider),
		decorator.WithMeterProvider(sdk.MeterProvider),
		decorator.WithPropagator(sdk.Propagator),
		decorator.WithConfig(cfg.instrumentation()),
	}
	a := newApp(logger)

	ln, err := net.Listen("tcp", cfg.addr())
	if err != nil {
		return ex.Wrapf(err, "failed to listen on %s", cfg.addr())
	}
	logger.Info("server starting", "framework", cfg.Framework, "addr", ln.Addr().String())

	switch cfg.Framework {
	case frameworkFastHTTP:
		server := &fasthttp.Server{
			Handler:     a.fastHTTPHandler(opts...),
			Name:        cfg.Service.Name,
			ReadTimeout: readHeaderTimeout,
		}
		return runServer(ctx, func() error { return server.Serve(ln) }, func(context.Context) error {
			return server.Shutdown()
		})
	default:
		server := &http.Server{
			Handler:           a.netHTTPHandler(opts...),
			ReadHeaderTimeout: readHeaderTimeout,
		}
		return runServer(ctx, func() error { return server.Serve(ln) }, server.Shutdown)
	}
}

// runServer runs serveFn until it fails or ctx is canceled, in which case
// the server is shut down gracefully.
func runServer(ctx context.Context, serveFn func() error, shutdown func(context.Context) error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- serveFn() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return ex.Wrapf(err, "server failed")
		}
		return nil
	case <-ctx.Done():
	}
	otelsetup.Logger().Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil {
		return ex.Wrapf(err, "failed to shut down server")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return ex.Wrapf(err, "server failed")
	}
	return nil
}
