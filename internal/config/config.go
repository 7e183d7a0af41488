// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

// Package config loads gxemon's YAML configuration with environment
// variable overrides.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all daemon configuration.
type Config struct {
	Device DeviceConfig `yaml:"device"`
	Poll   PollConfig   `yaml:"poll"`
	Server ServerConfig `yaml:"server"`
	Debug  bool         `yaml:"debug"`
}

// DeviceConfig describes the serial link and the UPS bus address.
type DeviceConfig struct {
	Path     string `yaml:"path"`
	BaudRate int    `yaml:"baud_rate"`
	// Address is the 2-character ASCII device address on the bus.
	Address string `yaml:"address"`
}

type PollConfig struct {
	IntervalSec int `yaml:"interval_sec"`
}

type ServerConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// MinPollInterval is the floor for the poll interval: the UPS ignores a
// second frame sent within this window after a prior one.
const MinPollInterval = 5 * time.Second

// Default returns a config with sensible defaults.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Path:     "/dev/ttyS0",
			BaudRate: 2400,
			Address:  "01",
		},
		Poll: PollConfig{
			IntervalSec: 5,
		},
		Server: ServerConfig{
			Enabled:    true,
			ListenAddr: ":3493",
		},
	}
}

// Load reads config from a YAML file, then applies environment variable
// overrides. A missing file is not an error: defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		log.Printf("[config] no config at %s, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		log.Printf("[config] loaded from %s", path)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides reads environment variables and overrides config
// values. Supported: GXE_PORT, GXE_BAUD, GXE_ADDR, GXE_POLL_SEC,
// GXE_LISTEN, GXE_DEBUG.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GXE_PORT"); v != "" {
		c.Device.Path = v
	}
	if v := os.Getenv("GXE_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Device.BaudRate = n
		}
	}
	if v := os.Getenv("GXE_ADDR"); v != "" {
		c.Device.Address = v
	}
	if v := os.Getenv("GXE_POLL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Poll.IntervalSec = n
		}
	}
	if v := os.Getenv("GXE_LISTEN"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("GXE_DEBUG"); v != "" {
		c.Debug = v == "1" || v == "true" || v == "yes"
	}
}

// Validate checks field correctness and normalizes the poll interval to
// its protocol floor.
func (c *Config) Validate() error {
	if c.Device.Path == "" {
		return fmt.Errorf("config: device path required")
	}
	if c.Device.BaudRate <= 0 {
		return fmt.Errorf("config: baud rate must be > 0")
	}
	if len(c.Device.Address) != 2 {
		return fmt.Errorf("config: device address must be 2 characters, got %q", c.Device.Address)
	}
	if d := c.PollInterval(); d < MinPollInterval {
		log.Printf("[config] poll interval %v below device minimum, using %v", d, MinPollInterval)
		c.Poll.IntervalSec = int(MinPollInterval / time.Second)
	}
	return nil
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSec) * time.Second
}
