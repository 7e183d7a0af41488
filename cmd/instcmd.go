// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

package cmd

import (
	"fmt"

	"github.com/gxetools/gxemon/internal/driver"
	"github.com/gxetools/gxemon/internal/dstate"
	"github.com/spf13/cobra"
)

var instcmdCmd = &cobra.Command{
	Use:   "instcmd <command>",
	Short: "Execute one instant command and exit",
	Long: `Execute a single instant command against the UPS:

  test.battery.start   Start a battery self-test
  test.battery.stop    Abort a running battery self-test
  load.on              Switch the output load on
  load.off             Switch the output load off

The UPS is identified first; an unanswered probe aborts the command.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstcmd,
}

func init() {
	rootCmd.AddCommand(instcmdCmd)
}

func runInstcmd(cmd *cobra.Command, args []string) error {
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

	if err := drv.Instcmd(args[0], ""); err != nil {
		return fmt.Errorf("%s: %v", args[0], err)
	}

	fmt.Printf("%s: OK\n", args[0])
	return nil
}
