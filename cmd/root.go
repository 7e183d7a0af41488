// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Config file flag
	configPath string

	// Serial connection flags
	portName string
	baudRate int
	devAddr  string

	// Diagnostics
	debugMode bool
)

var rootCmd = &cobra.Command{
	Use:   "gxemon",
	Short: "Liebert GXE UPS monitor",
	Long: `Gxemon - a monitoring daemon for Liebert GXE series UPS units speaking
the YDN23 point-to-point serial protocol.

The daemon polls the UPS over RS-232, publishes its state over HTTP and
WebSocket, and accepts instant commands (battery test, load switching).

Connection settings come from a YAML config file, overridable per-run
with flags or GXE_* environment variables.`,
	Version: "1.0.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/gxemon.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (default 2400)")
	rootCmd.PersistentFlags().StringVar(&devAddr, "addr", "", "Device address, 2 hex characters (default 01)")
	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "Log protocol frames")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
