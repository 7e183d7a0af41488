// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

package gxe

import "fmt"

// BuildFrame writes a complete request frame into buf and returns the
// encoded length, len(info)+Overhead. buf is caller-allocated; a fixed
// small buffer suffices since all known request payloads are short.
//
// Layout: SOI, VER, ADR, CID1+CID2, LENGTH (with checksum nibble), INFO,
// CHKSUM, EOI. The payload checksum covers VER through the end of INFO.
func BuildFrame(buf []byte, cmd Command, ver, adr string, info []byte) (int, error) {
	if len(info) > MaxInfoSize {
		return 0, fmt.Errorf("gxe: payload too large: %d chars (max %d)", len(info), MaxInfoSize)
	}
	n := len(info) + Overhead
	if len(buf) < n {
		return 0, fmt.Errorf("gxe: frame buffer too small: %d bytes, need %d", len(buf), n)
	}
	if len(ver) != 2 || len(adr) != 2 || len(cmd) != 4 {
		return 0, fmt.Errorf("gxe: bad header field lengths ver=%q adr=%q cid=%q", ver, adr, cmd)
	}

	buf[0] = SOI
	copy(buf[1:3], ver)
	copy(buf[3:5], adr)
	copy(buf[5:9], cmd)
	putHex16(buf[9:13], LengthWord(uint16(len(info))))
	copy(buf[13:], info)
	putHex16(buf[13+len(info):], PayloadChecksum(buf[1:13+len(info)]))
	buf[n-1] = EOI

	return n, nil
}
