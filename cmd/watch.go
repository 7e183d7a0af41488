// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

package cmd

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gxetools/gxemon/internal/dstate"
	"github.com/spf13/cobra"
)

var watchURL string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow state updates from a running daemon",
	Long: `Connect to a running gxemon daemon over WebSocket and print every
state update as it arrives: status, active alarms, and readings.

Useful for watching a UPS ride through a mains failure without tailing
the daemon's logs.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&watchURL, "url", "u", "ws://localhost:3493/ws", "Daemon WebSocket URL")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, watchURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return fmt.Errorf("connection failed: %v", err)
	}
	defer conn.Close()

	fmt.Printf("Gxemon - State Watch\n")
	fmt.Printf("Connection: %s\n", watchURL)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	// Unblock the read below when interrupted.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var snap dstate.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %v", err)
		}
		fmt.Print(formatSnapshot(snap))
	}
}

func formatSnapshot(snap dstate.Snapshot) string {
	timestamp := time.Now().Format("15:04:05")

	freshness := "ok"
	if snap.Stale {
		freshness = "stale"
	}

	line := fmt.Sprintf("[%s] status=%q data=%s", timestamp, snap.Facts["ups.status"], freshness)
	if alarm := snap.Facts["ups.alarm"]; alarm != "" {
		line += fmt.Sprintf(" ALARM: %s", alarm)
	}
	line += "\n"

	readings := []string{}
	for _, name := range []string{"input.voltage", "output.voltage", "battery.voltage", "ups.realpower"} {
		if val := snap.Facts[name]; val != "" {
			readings = append(readings, fmt.Sprintf("%s=%s", name, val))
		}
	}
	if len(readings) > 0 {
		line += "  " + strings.Join(readings, " ") + "\n"
	}

	return line
}
