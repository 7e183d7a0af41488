// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

package cmd

import (
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gxetools/gxemon/internal/driver"
	"github.com/gxetools/gxemon/internal/dstate"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the UPS and serve its state",
	Long: `Run the monitoring daemon: identify the UPS, then poll it on the
configured interval, publishing facts, status and alarms over the HTTP
and WebSocket endpoints.

Instant commands arriving over WebSocket are serialized onto the same
poll loop - the UPS handles one exchange at a time.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// commandRequest carries an instant command from a WebSocket client into
// the poll loop, which owns the serial port.
type commandRequest struct {
	name string
	done chan error
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	port, connInfo, err := openDevice(cfg)
	if err != nil {
		return err
	}
	defer port.Close()

	log.Printf("[gxemon] connection: %s", connInfo)

	store := dstate.New()
	drv := driver.New(port, store, cfg.Device.Address, cfg.Debug)

	if err := drv.Probe(); err != nil {
		return fmt.Errorf("no GXE UPS found on %s: %v", cfg.Device.Path, err)
	}
	log.Printf("[gxemon] found %s %s", store.GetInfo("ups.mfr"), store.GetInfo("ups.model"))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmdCh := make(chan commandRequest)

	if cfg.Server.Enabled {
		srv := dstate.NewServer(store, cfg.Server.ListenAddr, func(name string) error {
			req := commandRequest{name: name, done: make(chan error, 1)}
			select {
			case cmdCh <- req:
				return <-req.done
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("[server] %v", err)
			}
		}()
	}

	ticker := time.NewTicker(cfg.PollInterval())
	defer ticker.Stop()

	drv.Poll()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[gxemon] shutting down")
			// Give the HTTP server a moment to close client connections.
			time.Sleep(100 * time.Millisecond)
			return nil
		case <-ticker.C:
			drv.Poll()
		case req := <-cmdCh:
			req.done <- drv.Instcmd(req.name, "")
		}
	}
}
