// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/y1yang0/otel-go-server-decorator/pkg/decorator"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, frameworkNetHTTP, cfg.Framework)
	assert.Equal(t, "decorator-demo", cfg.Service.Name)
	assert.Equal(t, "127.0.0.1:8080", cfg.addr())
}

func TestLoadConfigFile(t *testing.T) {
	path := writeFile(t, "demo.yaml", `
framework: fasthttp
service:
  name: shop
  version: v1.2.3
server:
  address: 0.0.0.0
  port: 9090
runtime_metrics: true
instrumentation:
  disabled: [grizzly]
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, frameworkFastHTTP, cfg.Framework)
	assert.Equal(t, "shop", cfg.Service.Name)
	assert.Equal(t, "v1.2.3", cfg.Service.Version)
	assert.Equal(t, "0.0.0.0:9090", cfg.addr())
	assert.True(t, cfg.RuntimeMetrics)
	assert.Equal(t, decorator.Config{Disabled: []string{"grizzly"}}, cfg.instrumentation())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = loadConfig(writeFile(t, "bad.yaml", "framework: [nethttp"))
	require.Error(t, err)

	_, err = loadConfig(writeFile(t, "gin.yaml", "framework: gin"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown framework "gin"`)

	_, err = loadConfig(writeFile(t, "port.yaml", "server:\n  port: 70000"))
	require.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv(decorator.DisabledInstrumentationsEnv, "")
	t.Setenv(decorator.EnabledInstrumentationsEnv, "nethttp")
	cfg := defaultConfig()
	cfg.EnvFile = writeFile(t, ".env",
		decorator.EnabledInstrumentationsEnv+"=fasthttp\nDECORATOR_DEMO_OVERLAY=from-dotenv\n")
	t.Cleanup(func() { _ = os.Unsetenv("DECORATOR_DEMO_OVERLAY") })
	require.NoError(t, cfg.loadEnv())
	assert.Equal(t, "from-dotenv", os.Getenv("DECORATOR_DEMO_OVERLAY"))

	instrumentation := cfg.instrumentation()
	assert.Equal(t, []string{"nethttp"}, instrumentation.Enabled, "process environment wins over .env")

	cfg.EnvFile = filepath.Join(t.TempDir(), "missing.env")
	assert.NoError(t, cfg.loadEnv())
}
