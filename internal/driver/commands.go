// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

package driver

import (
	"errors"
	"log"
	"strings"

	"github.com/gxetools/gxemon/pkg/gxe"
)

var (
	// ErrUnknownCommand reports a command name with no mapped code.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrCommandFailed reports a command the UPS rejected or that got
	// no valid reply within the retry budget.
	ErrCommandFailed = errors.New("command failed")
)

// instantCommands maps command names to the remote-command payload
// understood by the UPS.
var instantCommands = map[string]string{
	"test.battery.start": "1002",
	"test.battery.stop":  "1003",
	"load.on":            "2001",
	"load.off":           "2003",
}

// Instcmd executes a named instant command. Names are matched
// case-insensitively; extra data is not used by any known command.
// A successful command restarts the poll cycle at SYSPARAM so the
// changed state is picked up promptly.
func (d *Driver) Instcmd(name, extra string) error {
	code, ok := instantCommands[strings.ToLower(name)]
	if !ok {
		log.Printf("[driver] instcmd: unknown command %q", name)
		return ErrUnknownCommand
	}

	buf := make([]byte, cmdBufSize)
	err := withRetry(commandRetries, func() error {
		_, err := d.request(buf, gxe.CmdRemoteCommand, []byte(code), gxe.MinReplyLen)
		return err
	})
	if err != nil {
		log.Printf("[driver] instcmd %s: %v", name, err)
		return ErrCommandFailed
	}

	log.Printf("[driver] instcmd %s: ok", name)
	d.phase = PhaseSysParam
	return nil
}
