// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

package gxe

// ValueFromHex interprets up to 15 ASCII hex characters as an unsigned
// base-16 integer. Longer inputs return 0: degenerate field widths are
// ignored rather than treated as fatal, since the surrounding frame has
// already been validated. Parsing stops at the first non-hex character.
func ValueFromHex(b []byte) int64 {
	if len(b) > 15 {
		return 0
	}
	var v int64
	for _, c := range b {
		d, ok := hexVal(c)
		if !ok {
			break
		}
		v = v<<4 | int64(d)
	}
	return v
}

// StringFromHex decodes pairs of hex characters into raw bytes, stopping
// early at a decoded ASCII space: the device right-pads fixed-width name
// fields with 0x20. At most max bytes are produced.
func StringFromHex(src []byte, max int) string {
	out := make([]byte, 0, max)
	for i := 0; i+1 < len(src); i += 2 {
		v := ValueFromHex(src[i : i+2])
		if v == 0x20 {
			break
		}
		if len(out) >= max {
			break
		}
		out = append(out, byte(v))
	}
	return string(out)
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
