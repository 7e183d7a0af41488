// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

package cmd

import (
	"fmt"
	"time"

	"github.com/gxetools/gxemon/internal/config"
	"github.com/gxetools/gxemon/internal/serio"
)

// settleDelay is the pause between opening the port and the first frame,
// giving USB-serial adapters time to quiesce.
const settleDelay = 100 * time.Millisecond

// loadConfig reads the config file and layers flag overrides on top.
// Flags beat the file and the GXE_* environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if portName != "" {
		cfg.Device.Path = portName
	}
	if baudRate != 0 {
		cfg.Device.BaudRate = baudRate
	}
	if devAddr != "" {
		cfg.Device.Address = devAddr
	}
	if debugMode {
		cfg.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openDevice opens the configured serial port and waits out the settle
// delay so the first exchange does not race the adapter.
func openDevice(cfg *config.Config) (serio.Port, string, error) {
	port, err := serio.Open(cfg.Device.Path, cfg.Device.BaudRate)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open serial port %s: %v", cfg.Device.Path, err)
	}

	time.Sleep(settleDelay)

	return port, fmt.Sprintf("Serial: %s @ %d baud", cfg.Device.Path, cfg.Device.BaudRate), nil
}
