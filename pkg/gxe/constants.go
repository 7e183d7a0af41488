// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

// Package gxe implements the Liebert GXE series UPS serial protocol.
//
// The protocol exchanges ASCII-hex framed request/reply units over a
// point-to-point serial link. Every multi-byte header field is literal
// ASCII characters and the payload encodes binary values as two hex
// characters per byte. This package provides frame construction, the two
// checksum algorithms, reply validation, and fixed-offset field decoding.
package gxe

// Protocol framing bytes
const (
	SOI = 0x7E // start of information
	EOI = 0x0D // end of information
)

// Frame geometry (encoded ASCII characters)
const (
	// Overhead is the fixed cost of a frame around its payload:
	// SOI(1) + VER(2) + ADR(2) + CID(4) + LENGTH(4) + CHKSUM(4) + EOI(1).
	Overhead = 18

	// MaxInfoSize bounds the payload so a full data reply fits the
	// largest receive buffer the driver uses.
	MaxInfoSize  = 110
	MaxFrameSize = Overhead + MaxInfoSize

	// MinReplyLen is the shortest well-formed reply: a frame header up to
	// and including the LENGTH field. The return code sits inside it.
	MinReplyLen = 13
)

// Command identifies a CID1+CID2 pair, sent as four ASCII hex characters.
type Command string

// Command identifiers
const (
	CmdGetAnalogData  Command = "2A42"
	CmdGetOnOffData   Command = "2A43"
	CmdGetWarningData Command = "2A44"
	CmdRemoteCommand  Command = "2A45"
	CmdGetSysParam    Command = "2A47"
	CmdSetSysParam    Command = "2A49"
	CmdGetProtoVer    Command = "2A4F"
	CmdGetDevAddr     Command = "2A50"
	CmdGetVendorInfo  Command = "2A51"
	CmdGetVendorVer   Command = "2A80"
	CmdGetFirmwareVer Command = "2AE5"
	CmdParaAnalogData Command = "2AE6"
)

// Data-flag bits present in every data reply. A set bit announces that
// another data category has pending changes and takes priority over the
// default poll cycle order.
const (
	DataFlagWarning = 1 << 0
	DataFlagOnOff   = 1 << 4
)

// Minimum acceptable reply lengths per data category.
const (
	MinOnOffLen    = MinReplyLen + 0x14
	MinAnalogLen   = MinReplyLen + 0x56
	MinWarningLen  = MinReplyLen + 0x36
	MinSysParamLen = MinReplyLen + 0x6A
)

// Return codes reported in the reply's CID2 position.
const (
	RtnOK               = 0x00
	RtnBadVersion       = 0x01
	RtnBadChecksum      = 0x02
	RtnBadLengthChk     = 0x03
	RtnInvalidCID2      = 0x04
	RtnBadCommandFormat = 0x05
	RtnBadData          = 0x06
)

var rtnNames = [...]string{
	"OK",
	"Bad VER",
	"Bad CHKSUM",
	"Bad LCHKSUM",
	"Invalid CID2",
	"Bad Command Format",
	"Bad Data",
}

// RtnString maps a decoded return code to its protocol name.
func RtnString(code int64) string {
	if code >= 0 && code < int64(len(rtnNames)) {
		return rtnNames[code]
	}
	return "Unknown RTN"
}

// Reply field offsets (byte positions within the encoded reply frame).
// Payload data starts at offset 13, directly after the LENGTH field.
const (
	OffReturnCode = 7  // 2 hex chars, replaces CID2 in replies
	OffDataFlag   = 13 // 2 hex chars, first payload field of data replies
)

// On/off status reply fields (2 hex chars each)
const (
	OffPowerSupply     = 15 // field 1: 01=UPS, 02=bypass
	OffRectifierSupply = 19 // field 3: E0=none, E1=city power, E2=battery
	OffBatteryStatus   = 21 // field 4: E0=resting, E1/E2=charging, E3=discharging
	OffBatteryTest     = 23 // field 5: E0=in progress, E1=idle
)

// Analog measurement reply fields (4 hex chars each, fixed-point raw/100
// unless noted)
const (
	OffInputVoltage    = 15      // field 1, Vac
	OffOutputVoltage   = 15 + 12 // field 4, Vac
	OffOutputCurrent   = 15 + 24 // field 7, A
	OffBatteryVoltage  = 15 + 36 // field 10, Vdc
	OffOutputFrequency = 15 + 40 // field 11, Hz
	OffInputFrequency  = 15 + 52 // field 15, Hz
	OffRealPower       = 15 + 64 // field 18, raw*10 W
	OffApparentPower   = 15 + 68 // field 19, raw*10 VA
	OffBatteryRuntime  = 15 + 80 // field 22, raw/100 h
)

// System parameter reply fields (4 hex chars each)
const (
	OffNominalVoltage   = 13 + 18      // field 6, Vac
	OffNominalFrequency = 13 + 18 + 4  // field 7, Hz
	OffBypassHighFlag   = 13 + 18 + 16 // field 10 enable flag
	OffBypassLowFlag    = 13 + 18 + 20 // field 11 enable flag
	OffTestInterval     = 13 + 18 + 60 // field 21, per 3 months
)

// OffWarningBase is the first slot of the warning bitmap; slot i sits at
// OffWarningBase + 2*i.
const OffWarningBase = 15

// WarningNames maps warning-table slots to alarm strings. Empty slots are
// positional placeholders (slot 0 carries the data flag, slots 7 and 8 are
// user-defined) and must stay in place: lookups are by offset, not name.
var WarningNames = [26]string{
	1:  "Inverter Out-of-Sync",
	2:  "Unhealthy Main Circuit",
	3:  "Rectifier Failure",
	4:  "Inverter Failure",
	5:  "Unhealthy Bypass",
	6:  "Unhealthy Battery Voltage",
	9:  "Power Module Overheated",
	10: "Unhealthy Fan",
	11: "Netural Input Missing",
	12: "Master Line Abnormally Turned-off",
	13: "Charger Failure",
	14: "Battery Discharge Declined",
	15: "Backup Power Supply Failure",
	16: "Ouput Overloaded",
	17: "Ouput Shorted",
	18: "Overload Timed-out",
	19: "Unhealthy Parallel Machine Current",
	20: "Parallel Machine Connection Failure",
	21: "Parallel Machine Address Error",
	22: "Unhealthy Internal Communication",
	23: "System Overloaded",
	24: "Battery Installed Backwards",
	25: "Battery Not Found",
}
