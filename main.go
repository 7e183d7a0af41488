// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors
//
// Gxemon - Liebert GXE UPS monitor
//
// A monitoring daemon for Liebert GXE series UPS units speaking the
// YDN23 point-to-point serial protocol.

package main

import (
	"os"

	"github.com/gxetools/gxemon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
