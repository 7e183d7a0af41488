// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

package cmd

import (
	"fmt"
	"sort"

	"github.com/gxetools/gxemon/internal/driver"
	"github.com/gxetools/gxemon/internal/dstate"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Identify the UPS and exit",
	Long: `Send a vendor-info request and print what answered. Useful for
checking wiring, the device address, and which instant commands the
driver accepts, without starting the daemon.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	port, connInfo, err := openDevice(cfg)
	if err != nil {
		return err
	}
	defer port.Close()

	store := dstate.New()
	drv := driver.New(port, store, cfg.Device.Address, cfg.Debug)

	if err := drv.Probe(); err != nil {
		return fmt.Errorf("no GXE UPS found on %s: %v", cfg.Device.Path, err)
	}

	snap := store.Snapshot()

	fmt.Printf("Connection: %s\n", connInfo)
	names := make([]string, 0, len(snap.Facts))
	for name := range snap.Facts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s: %s\n", name, snap.Facts[name])
	}
	fmt.Printf("commands: %v\n", snap.Commands)

	return nil
}
