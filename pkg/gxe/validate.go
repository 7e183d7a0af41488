// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

package gxe

import (
	"errors"
	"fmt"
)

// ErrShortRead reports a reply shorter than the minimum acceptable length
// for the requested data category.
var ErrShortRead = errors.New("gxe: short read")

// ReplyError is a protocol-level rejection: the device answered with a
// nonzero return code in place of CID2.
type ReplyError struct {
	Code int64
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("gxe: command failed: %s (0x%02X)", RtnString(e.Code), e.Code)
}

// ValidateReply checks a received frame of n bytes against the minimum
// acceptable length and the 2-hex-character return code at its fixed
// offset. On success it returns n. Transport failures (timeout, I/O error)
// are the caller's concern; ValidateReply sees only completed reads.
func ValidateReply(buf []byte, n, minlen int) (int, error) {
	if n < minlen {
		return 0, fmt.Errorf("%w: got %d bytes, want at least %d", ErrShortRead, n, minlen)
	}
	if code := ValueFromHex(buf[OffReturnCode : OffReturnCode+2]); code != RtnOK {
		return 0, &ReplyError{Code: code}
	}
	return n, nil
}
