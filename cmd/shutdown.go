// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

package cmd

import (
	"fmt"

	"github.com/gxetools/gxemon/internal/driver"
	"github.com/gxetools/gxemon/internal/dstate"
	"github.com/spf13/cobra"
)

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Attempt to power down the UPS",
	Long: `Attempt a full remote power-down of the UPS.

The GXE hardware cannot be remotely powered down; this command exists
for host shutdown scripts that call it unconditionally across UPS
models. It identifies the UPS and reports the limitation. Use
"instcmd load.off" to switch off the output load instead.`,
	RunE: runShutdown,
}

func init() {
	rootCmd.AddCommand(shutdownCmd)
}

func runShutdown(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	port, _, err := openDevice(cfg)
	if err != nil {
		return err
	}
	defer port.Close()

	store := dstate.New()
	drv := driver.New(port, store, cfg.Device.Address, cfg.Debug)

	if err := drv.Probe(); err != nil {
		return fmt.Errorf("no GXE UPS found on %s: %v", cfg.Device.Path, err)
	}

	drv.Shutdown()
	return nil
}
