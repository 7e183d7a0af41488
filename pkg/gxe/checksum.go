// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

package gxe

const hexDigits = "0123456789ABCDEF"

// LengthWord computes the 16-bit LENGTH field value for a payload of dlen
// encoded characters: the length occupies the low 12 bits and a 4-bit
// checksum nibble the top 4. The nibble is the two's complement of the sum
// of the length's four nibbles, reduced modulo 16, which lets a receiver
// verify the declared length without a separate checksum byte.
func LengthWord(dlen uint16) uint16 {
	sum := dlen&0x000F + dlen>>4&0x000F + dlen>>8&0x000F + dlen>>12&0x000F
	chk := (16 - sum%16) % 16
	return dlen | chk<<12
}

// PayloadChecksum sums data as unsigned bytes, reduces modulo 65536 and
// negates as a 16-bit value. Sent frames checksum everything between the
// start marker and the CHKSUM field itself.
func PayloadChecksum(data []byte) uint16 {
	var sum uint32
	for _, b := range data {
		sum += uint32(b)
	}
	return uint16(^(sum % 65536) + 1)
}

// putHex16 renders v as four uppercase hex characters into dst.
func putHex16(dst []byte, v uint16) {
	dst[0] = hexDigits[v>>12&0xF]
	dst[1] = hexDigits[v>>8&0xF]
	dst[2] = hexDigits[v>>4&0xF]
	dst[3] = hexDigits[v&0xF]
}
