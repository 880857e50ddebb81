// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Command decorator-demo serves a small HTTP app traced through one of the
// server decorators, and lists the decorators it knows about.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/y1yang0/otel-go-server-decorator/internal/ex"
	"github.com/y1yang0/otel-go-server-decorator/pkg/decorator"
	fasthttpdecorator "github.com/y1yang0/otel-go-server-decorator/pkg/decorator/fasthttp"
	"github.com/y1yang0/otel-go-server-decorator/pkg/decorator/grizzly"
	"github.com/y1yang0/otel-go-server-decorator/pkg/decorator/nethttp"
)

const exitCodeFailure = 1

// These variables are set by the linker.
//
//nolint:gochecknoglobals // these variables are set by the linker
var (
	Version    = "v0.0.0"
	CommitHash = "unknown"
)

//nolint:gochecknoglobals // shared by every subcommand
var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "YAML configuration file",
}

// newRegistry registers every decorator this module ships.
func newRegistry() (*decorator.Registry, error) {
	r := decorator.NewRegistry()
	for _, register := range []func(*decorator.Registry) error{
		grizzly.Register,
		nethttp.Register,
		fasthttpdecorator.Register,
	} {
		if err := register(r); err != nil {
			return nil, ex.Wrapf(err, "failed to register decorator")
		}
	}
	return r, nil
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "decorator-demo",
		Usage:   "Demo server for the HTTP server tracing decorators",
		Version: Version + "+" + CommitHash,
		Commands: []*cli.Command{
			&commandServe,
			&commandList,
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		stop()
		ex.Fatal(err)
	}
}
