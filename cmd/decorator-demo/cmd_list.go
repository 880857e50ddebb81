// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/y1yang0/otel-go-server-decorator/internal/ex"
)

//nolint:gochecknoglobals // Implementation of a CLI command
var commandList = cli.Command{
	Name:        "list",
	Description: "List the registered decorators and whether the configuration enables them",
	Flags:       []cli.Flag{configFlag},
	Action: func(_ context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd.String(configFlag.Name))
		if err != nil {
			return err
		}
		if err = cfg.loadEnv(); err != nil {
			return err
		}
		registry, err := newRegistry()
		if err != nil {
			return err
		}
		// Instrumentation names are unique in a registry, so the joined names
		// identify a descriptor.
		enabled := make(map[string]bool)
		for _, d := range registry.Enabled(cfg.instrumentation()) {
			enabled[strings.Join(d.InstrumentationNames(), ",")] = true
		}
		for _, d := range registry.Descriptors() {
			names := strings.Join(d.InstrumentationNames(), ",")
			state := "disabled"
			if enabled[names] {
				state = "enabled"
			}
			_, err = fmt.Fprintf(cmd.Root().Writer, "%-10s %-10s %s\n", names, d.Component(), state)
			if err != nil {
				return ex.Wrapf(err, "failed to print decorator list with exit code %d", exitCodeFailure)
			}
		}
		return nil
	},
}
