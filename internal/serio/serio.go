// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

// Package serio wraps the serial link the UPS driver talks over. It keeps
// the transport surface narrow: flush, bounded send, bounded receive.
package serio

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// ErrTimeout reports that no reply byte arrived within the wait window.
// It is distinct from an underlying I/O failure.
var ErrTimeout = errors.New("serio: read timeout")

// interCharTimeout ends a receive once the device has gone quiet after the
// first byte. At the low baud rates these UPSes use, characters within one
// frame arrive a few milliseconds apart.
const interCharTimeout = 100 * time.Millisecond

// Port is the transport consumed by the driver.
type Port interface {
	// Flush discards any pending input, recovering from a half-completed
	// prior exchange.
	Flush() error
	// Send writes the whole buffer and returns the byte count.
	Send(p []byte) (int, error)
	// Recv reads one reply into p, waiting up to timeout for the first
	// byte and then accumulating until the device goes quiet, p fills,
	// or the end marker arrives. Returns ErrTimeout if nothing arrived.
	Recv(p []byte, timeout time.Duration) (int, error)
	Close() error
}

type serialPort struct {
	port serial.Port
	path string
}

// Open opens the named device path at the given baud rate, 8N1.
func Open(path string, baud int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("serio: open %s: %w", path, err)
	}
	return &serialPort{port: p, path: path}, nil
}

func (s *serialPort) Flush() error {
	return s.port.ResetInputBuffer()
}

func (s *serialPort) Send(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("serio: send: %w", err)
	}
	if n < len(p) {
		return n, fmt.Errorf("serio: send: wrote %d of %d bytes", n, len(p))
	}
	return n, nil
}

func (s *serialPort) Recv(p []byte, timeout time.Duration) (int, error) {
	if err := s.port.SetReadTimeout(timeout); err != nil {
		return 0, fmt.Errorf("serio: set timeout: %w", err)
	}

	got := 0
	for got < len(p) {
		n, err := s.port.Read(p[got:])
		if err != nil {
			return got, fmt.Errorf("serio: read: %w", err)
		}
		if n == 0 {
			// Read timeout. Nothing at all is a dead exchange; quiet
			// after data means the reply is complete.
			if got == 0 {
				return 0, ErrTimeout
			}
			break
		}
		got += n
		if p[got-1] == 0x0D {
			break
		}
		// One frame in flight: after the first byte, only a short
		// inter-character gap is tolerated.
		if err := s.port.SetReadTimeout(interCharTimeout); err != nil {
			return got, fmt.Errorf("serio: set timeout: %w", err)
		}
	}
	return got, nil
}

func (s *serialPort) Close() error {
	return s.port.Close()
}
