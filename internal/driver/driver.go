// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

// Package driver implements the Liebert GXE UPS driver: one frame
// exchange at a time over the serial transport, a polling state machine
// that publishes facts into the device-state store, and a small set of
// instant commands.
package driver

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gxetools/gxemon/internal/dstate"
	"github.com/gxetools/gxemon/internal/serio"
	"github.com/gxetools/gxemon/pkg/gxe"
)

const (
	protoVersion = "21"

	probeRetries   = 3
	commandRetries = 3

	recvTimeout = 1 * time.Second

	// A vendor-info reply must carry the full 20-hex-character model
	// name field to be usable.
	minVendorInfoLen = 35

	cmdBufSize  = 64
	dataBufSize = 128
)

// Phase is the current polling category.
type Phase int

const (
	PhaseOnOff Phase = iota
	PhaseAnalog
	PhaseWarning
	PhaseSysParam
)

func (p Phase) String() string {
	switch p {
	case PhaseOnOff:
		return "ONOFF"
	case PhaseAnalog:
		return "ANALOG"
	case PhaseWarning:
		return "WARNING"
	case PhaseSysParam:
		return "SYSPARAM"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Driver owns the serial transport and the poll phase for a single UPS.
// All methods must run from one execution context: the protocol permits
// only one exchange in flight.
type Driver struct {
	port  serio.Port
	store *dstate.Store
	addr  string
	phase Phase
	debug bool
}

// New creates a driver for the UPS at the given 2-character bus address.
func New(port serio.Port, store *dstate.Store, addr string, debug bool) *Driver {
	return &Driver{
		port:  port,
		store: store,
		addr:  addr,
		phase: PhaseSysParam,
		debug: debug,
	}
}

// Phase returns the current poll phase.
func (d *Driver) Phase() Phase { return d.phase }

// Store returns the driver's publication store.
func (d *Driver) Store() *dstate.Store { return d.store }

// exchange flushes stale input, sends one request frame and waits for
// exactly one reply into buf. The flush is the driver's only
// resynchronization mechanism: the device answers only the first of two
// frames sent in quick succession, so a half-completed prior exchange
// must not pollute this one.
func (d *Driver) exchange(buf []byte, cmd gxe.Command, info []byte) (int, error) {
	if err := d.port.Flush(); err != nil {
		return 0, fmt.Errorf("flush: %w", err)
	}

	var framebuf [32]byte
	n, err := gxe.BuildFrame(framebuf[:], cmd, protoVersion, d.addr, info)
	if err != nil {
		return 0, err
	}
	if d.debug {
		log.Printf("[driver] send: % X", framebuf[:n])
	}

	if _, err := d.port.Send(framebuf[:n]); err != nil {
		log.Printf("[driver] send: %v", err)
		return 0, err
	}

	n, err = d.port.Recv(buf, recvTimeout)
	if err != nil {
		if isTimeout(err) {
			log.Printf("[driver] read: timeout")
		} else {
			log.Printf("[driver] read: %v", err)
		}
		return 0, err
	}
	if d.debug {
		log.Printf("[driver] read: % X", buf[:n])
	}
	return n, nil
}

// request performs one exchange and validates the reply against minlen.
func (d *Driver) request(buf []byte, cmd gxe.Command, info []byte, minlen int) (int, error) {
	n, err := d.exchange(buf, cmd, info)
	if err != nil {
		return 0, err
	}
	n, err = gxe.ValidateReply(buf, n, minlen)
	if err != nil {
		log.Printf("[driver] %s reply rejected: %v", cmd, err)
		return 0, err
	}
	return n, nil
}

// withRetry runs fn up to attempts times, stopping at the first success.
// Both the startup probe and command dispatch share this policy.
func withRetry(attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}

// Probe identifies the UPS by reading its vendor info. It is the one
// non-recoverable path: a device that never answers adequately leaves no
// meaningful way to continue, and the caller should abort.
//
// On success the model name, manufacturer and bus address are published,
// the instant commands are registered, and polling starts at the
// system-parameter phase to pick up configuration before the first
// status display.
func (d *Driver) Probe() error {
	buf := make([]byte, cmdBufSize)
	var n int

	err := withRetry(probeRetries, func() error {
		var err error
		n, err = d.exchange(buf, gxe.CmdGetVendorInfo, nil)
		if err != nil {
			return fmt.Errorf("failed reading response: %w", err)
		}
		if n < minVendorInfoLen {
			return fmt.Errorf("not enough data: %d bytes", n)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("driver: probe: %w", err)
	}

	// UPS name, 10 bytes hex-encoded at the start of the payload.
	model := gxe.StringFromHex(buf[13:33], cmdBufSize)
	d.store.SetInfo("ups.mfr", "EmersonNetworkPower")
	d.store.SetInfo("ups.model", model)
	d.store.SetInfo("ups.id", d.addr)
	log.Printf("[driver] identified %q at address %s", model, d.addr)

	for name := range instantCommands {
		d.store.AddCommand(name)
	}

	d.probeFirmware()

	d.phase = PhaseSysParam
	return nil
}

// probeFirmware reads the firmware version once, best effort. Not every
// unit answers this request; a failure is logged and tolerated.
func (d *Driver) probeFirmware() {
	buf := make([]byte, cmdBufSize)
	if _, err := d.request(buf, gxe.CmdGetFirmwareVer, nil, gxe.MinReplyLen+4); err != nil {
		log.Printf("[driver] firmware version unavailable: %v", err)
		return
	}
	d.store.SetInfof("ups.firmware", "%04X", gxe.ValueFromHex(buf[13:17]))
}

// Shutdown is a no-operation: the hardware cannot be remotely powered
// down.
func (d *Driver) Shutdown() {
	log.Printf("[driver] GXE UPS can't fully shutdown, NOOP")
}

// isTimeout reports whether err is a transport timeout rather than an
// I/O failure.
func isTimeout(err error) bool {
	return errors.Is(err, serio.ErrTimeout)
}
