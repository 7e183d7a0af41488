// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

package driver

import (
	"log"

	"github.com/gxetools/gxemon/pkg/gxe"
)

// Poll performs one polling tick: it requests the current phase's data
// category, publishes the derived facts, and computes the next phase.
// Failures mark the fact batch stale and are retried on the next tick.
//
// Default cycle after a successful probe or command:
// SYSPARAM -> WARNING -> ONOFF -> ANALOG (which then repeats), with
// data-flag bits overriding the default successor.
func (d *Driver) Poll() {
	switch d.phase {
	case PhaseOnOff:
		log.Printf("[driver] polling ONOFF data")
		d.pollOnOff()
	case PhaseAnalog:
		log.Printf("[driver] polling ANALOG data")
		d.pollAnalog()
	case PhaseWarning:
		log.Printf("[driver] polling WARNING data")
		d.pollWarning()
	case PhaseSysParam:
		log.Printf("[driver] polling SYSPARAM data")
		d.pollSysParam()
	}
}

// applyDataFlag reads the in-band data flag and lets pending categories
// preempt the default successor. The warning bit wins when both are set.
func (d *Driver) applyDataFlag(buf []byte) {
	dflag := gxe.ValueFromHex(buf[gxe.OffDataFlag : gxe.OffDataFlag+2])
	if dflag&gxe.DataFlagOnOff != 0 {
		d.phase = PhaseOnOff
	}
	if dflag&gxe.DataFlagWarning != 0 {
		d.phase = PhaseWarning
	}
}

func (d *Driver) pollOnOff() {
	buf := make([]byte, cmdBufSize)

	_, err := d.request(buf, gxe.CmdGetOnOffData, nil, gxe.MinOnOffLen)
	if err != nil {
		d.phase = PhaseOnOff
		d.store.DataStale()
		return
	}
	d.phase = PhaseAnalog
	d.applyDataFlag(buf)

	field := func(off int) int64 { return gxe.ValueFromHex(buf[off : off+2]) }

	d.store.StatusInit()

	pwrval := field(gxe.OffPowerSupply)
	rectval := field(gxe.OffRectifierSupply)
	switch {
	case pwrval == 0x01 && rectval == 0xE2:
		d.store.StatusSet("OB")
	case pwrval == 0x01:
		d.store.StatusSet("OL")
	case pwrval == 0x02:
		d.store.StatusSet("OL")
		d.store.StatusSet("BYPASS")
	default:
		log.Printf("[driver] unknown ups state: %x %x", pwrval, rectval)
	}

	d.store.StatusCommit()

	switch field(gxe.OffBatteryStatus) {
	case 0xE0:
		d.store.SetInfo("battery.charger.status", "resting")
	case 0xE1, 0xE2:
		d.store.SetInfo("battery.charger.status", "charging")
	case 0xE3:
		d.store.SetInfo("battery.charger.status", "discharging")
	default:
		log.Printf("[driver] unknown battery status, ignored")
	}

	switch field(gxe.OffBatteryTest) {
	case 0xE0:
		d.store.SetInfo("ups.test.result", "In progress")
	case 0xE1:
		d.store.SetInfo("ups.test.result", "Idle")
	default:
		log.Printf("[driver] unknown battery test state, ignored")
	}

	d.store.DataOK()
}

func (d *Driver) pollAnalog() {
	buf := make([]byte, dataBufSize)

	_, err := d.request(buf, gxe.CmdGetAnalogData, nil, gxe.MinAnalogLen)
	if err != nil {
		d.store.DataStale()
		return
	}

	// The data flag here is not entirely reliable, but honored anyway.
	d.applyDataFlag(buf)

	field := func(off int) int64 { return gxe.ValueFromHex(buf[off : off+4]) }

	// A zero input voltage while believed on line (or the reverse) means
	// the on/off category is out of date: correct the status now and go
	// read the warnings. No debounce; a single reading decides.
	volt := field(gxe.OffInputVoltage) / 100

	if volt == 0 && d.store.StatusGet("OL") {
		d.store.StatusInit()
		d.store.StatusSet("OB")
		d.store.StatusCommit()
		d.phase = PhaseWarning
	}

	if volt > 0 && d.store.StatusGet("OB") {
		d.store.StatusInit()
		d.store.StatusSet("OL")
		d.store.StatusCommit()
		d.phase = PhaseWarning
	}

	d.store.SetInfof("input.voltage", "%.02f", float64(field(gxe.OffInputVoltage))/100)
	d.store.SetInfof("output.voltage", "%.02f", float64(field(gxe.OffOutputVoltage))/100)
	d.store.SetInfof("output.current", "%.02f", float64(field(gxe.OffOutputCurrent))/100)
	d.store.SetInfof("battery.voltage", "%.02f", float64(field(gxe.OffBatteryVoltage))/100)
	d.store.SetInfof("output.frequency", "%.02f", float64(field(gxe.OffOutputFrequency))/100)
	d.store.SetInfof("input.frequency", "%.02f", float64(field(gxe.OffInputFrequency))/100)
	d.store.SetInfof("ups.realpower", "%d", field(gxe.OffRealPower)*10)
	d.store.SetInfof("ups.power", "%d", field(gxe.OffApparentPower)*10)
	d.store.SetInfof("battery.runtime.low", "%.2f", float64(field(gxe.OffBatteryRuntime))/100*60)

	d.store.DataOK()
}

func (d *Driver) pollWarning() {
	buf := make([]byte, dataBufSize)

	_, err := d.request(buf, gxe.CmdGetWarningData, nil, gxe.MinWarningLen)
	if err != nil {
		d.phase = PhaseWarning
		d.store.DataStale()
		return
	}
	d.phase = PhaseOnOff

	d.store.AlarmInit()
	for i, name := range gxe.WarningNames {
		if name == "" {
			continue
		}
		off := gxe.OffWarningBase + 2*i
		val := gxe.ValueFromHex(buf[off : off+2])
		switch val {
		case 0x00:
		case 0x01, 0x02, 0x03, 0xF0:
			d.store.AlarmSet(name)
		default:
			log.Printf("[driver] unexpected warning val %x", val)
		}
	}
	d.store.AlarmCommit()

	d.store.DataOK()
}

func (d *Driver) pollSysParam() {
	buf := make([]byte, dataBufSize)

	_, err := d.request(buf, gxe.CmdGetSysParam, nil, gxe.MinSysParamLen)
	if err != nil {
		d.store.DataStale()
		return
	}
	d.phase = PhaseWarning

	field := func(off int) int64 { return gxe.ValueFromHex(buf[off : off+4]) }

	nominal := field(gxe.OffNominalVoltage)
	d.store.SetInfof("output.voltage.nominal", "%d", nominal)
	d.store.SetInfof("output.frequency.nominal", "%d", field(gxe.OffNominalFrequency))

	// Bypass transfer thresholds are published only when enabled. The
	// high threshold is always 115% of nominal; the low one is fixed.
	if field(gxe.OffBypassHighFlag) == 1 {
		d.store.SetInfof("input.transfer.bypass.high", "%.2f", float64(nominal)*1.15)
	}
	if field(gxe.OffBypassLowFlag) == 1 {
		d.store.SetInfo("input.transfer.bypass.low", "120")
	}

	// Battery test interval is reported in quarters; publish seconds.
	d.store.SetInfof("ups.test.interval", "%d", field(gxe.OffTestInterval)*3*108000)

	d.store.DataOK()
}
