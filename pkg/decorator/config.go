// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package decorator

import (
	"os"
	"slices"
	"strings"

	"github.com/y1yang0/otel-go-server-decorator/pkg/instrumenter"
)

const (
	EnabledInstrumentationsEnv  = "OTEL_GO_ENABLED_INSTRUMENTATIONS"
	DisabledInstrumentationsEnv = "OTEL_GO_DISABLED_INSTRUMENTATIONS"
)

// Config selects which decorators produce telemetry. Names are compared
// case-insensitively.
//
//  1. If Enabled is non-empty, a decorator is enabled only when one of its
//     instrumentation names is listed.
//  2. A decorator with any instrumentation name in Disabled is disabled.
//  3. Otherwise every decorator is enabled.
type Config struct {
	Enabled  []string `yaml:"enabled"`
	Disabled []string `yaml:"disabled"`
}

// ConfigFromEnv reads OTEL_GO_ENABLED_INSTRUMENTATIONS and
// OTEL_GO_DISABLED_INSTRUMENTATIONS, both comma separated lists.
func ConfigFromEnv() Config {
	return Config{
		Enabled:  ParseInstrumentationList(os.Getenv(EnabledInstrumentationsEnv)),
		Disabled: ParseInstrumentationList(os.Getenv(DisabledInstrumentationsEnv)),
	}
}

// ParseInstrumentationList splits a comma separated list, dropping blanks.
func ParseInstrumentationList(list string) []string {
	var result []string
	for _, item := range strings.Split(list, ",") {
		if trimmed := strings.TrimSpace(strings.ToLower(item)); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Instrumented reports whether a decorator with the given instrumentation
// names is enabled.
func (c Config) Instrumented(names ...string) bool {
	if len(c.Enabled) > 0 && !slices.ContainsFunc(names, c.listed(c.Enabled)) {
		return false
	}
	return !slices.ContainsFunc(names, c.listed(c.Disabled))
}

func (Config) listed(list []string) func(string) bool {
	return func(name string) bool {
		return slices.ContainsFunc(list, func(item string) bool {
			return strings.EqualFold(strings.TrimSpace(item), name)
		})
	}
}

type configEnabler struct {
	enabled bool
}

func (c configEnabler) Enable() bool {
	return c.enabled
}

// NewEnabler resolves cfg for d once.
func NewEnabler(cfg Config, d Descriptor) instrumenter.InstrumentEnabler {
	return configEnabler{enabled: cfg.Instrumented(d.InstrumentationNames()...)}
}
