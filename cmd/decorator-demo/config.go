// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/y1yang0/otel-go-server-decorator/internal/ex"
	"github.com/y1yang0/otel-go-server-decorator/pkg/decorator"
)

const (
	frameworkNetHTTP  = "nethttp"
	frameworkFastHTTP = "fasthttp"

	defaultAddress = "127.0.0.1"
	defaultPort    = 8080
	defaultEnvFile = ".env"
)

type demoConfig struct {
	Framework string `yaml:"framework"`
	EnvFile   string `yaml:"env_file"`
	Service   struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"service"`
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
	} `yaml:"server"`
	RuntimeMetrics  bool             `yaml:"runtime_metrics"`
	Instrumentation decorator.Config `yaml:"instrumentation"`
}

func defaultConfig() *demoConfig {
	cfg := &demoConfig{Framework: frameworkNetHTTP, EnvFile: defaultEnvFile}
	cfg.Service.Name = "decorator-demo"
	cfg.Server.Address = defaultAddress
	cfg.Server.Port = defaultPort
	return cfg
}

// loadConfig reads the YAML file at path over the defaults. An empty path
// keeps the defaults.
func loadConfig(path string) (*demoConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ex.Wrapf(err, "failed to read config %s", path)
	}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, ex.Wrapf(err, "failed to parse config %s", path)
	}
	if err = cfg.validate(); err != nil {
		return nil, ex.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

func (c *demoConfig) validate() error {
	switch c.Framework {
	case frameworkNetHTTP, frameworkFastHTTP:
	default:
		return ex.Newf("unknown framework %q", c.Framework)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return ex.Newf("port %d out of range", c.Server.Port)
	}
	return nil
}

// loadEnv overlays variables from the .env file onto the process
// environment. Variables that are already set win. A missing file is fine.
func (c *demoConfig) loadEnv() error {
	if c.EnvFile == "" {
		return nil
	}
	err := godotenv.Load(c.EnvFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ex.Wrapf(err, "failed to load %s", c.EnvFile)
	}
	return nil
}

// instrumentation returns the configured enable/disable lists, falling back
// to the OTEL_GO_* variables when the file sets none.
func (c *demoConfig) instrumentation() decorator.Config {
	if len(c.Instrumentation.Enabled) == 0 && len(c.Instrumentation.Disabled) == 0 {
		return decorator.ConfigFromEnv()
	}
	return c.Instrumentation
}

func (c *demoConfig) addr() string {
	return net.JoinHostPort(c.Server.Address, strconv.Itoa(c.Server.Port))
}
