// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

package driver

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/gxetools/gxemon/internal/dstate"
	"github.com/gxetools/gxemon/internal/serio"
	"github.com/gxetools/gxemon/pkg/gxe"
)

// ============================================================
// Test fixtures
// ============================================================

type fakeReply struct {
	data []byte
	err  error
}

// fakePort is a scripted serial port: every Send is recorded, every Recv
// pops the next prepared reply. An exhausted script behaves like a quiet
// line and times out.
type fakePort struct {
	sent    [][]byte
	replies []fakeReply
}

func (p *fakePort) Flush() error { return nil }

func (p *fakePort) Send(b []byte) (int, error) {
	p.sent = append(p.sent, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Recv(b []byte, timeout time.Duration) (int, error) {
	if len(p.replies) == 0 {
		return 0, serio.ErrTimeout
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	if r.err != nil {
		return 0, r.err
	}
	return copy(b, r.data), nil
}

func (p *fakePort) Close() error { return nil }

func (p *fakePort) queue(data []byte) {
	p.replies = append(p.replies, fakeReply{data: data})
}

func (p *fakePort) queueErr(err error) {
	p.replies = append(p.replies, fakeReply{err: err})
}

// reply builds a well-formed device reply carrying the given return code
// and INFO text. Replies reuse the request frame geometry with the return
// code in the CID2 position.
func reply(t *testing.T, rtn, info string) []byte {
	t.Helper()
	buf := make([]byte, gxe.MaxFrameSize)
	n, err := gxe.BuildFrame(buf, gxe.Command("2A"+rtn), "21", "01", []byte(info))
	if err != nil {
		t.Fatalf("building reply: %v", err)
	}
	return buf[:n]
}

// zeroInfo returns an all-'0' INFO field of n characters that individual
// tests splice values into.
func zeroInfo(n int) []byte {
	return bytes.Repeat([]byte{'0'}, n)
}

// splice overwrites the INFO field starting at the given frame offset.
// INFO character 0 lives at frame offset 13.
func splice(info []byte, frameOff int, val string) {
	copy(info[frameOff-13:], val)
}

func newTestDriver(replies ...[]byte) (*Driver, *fakePort, *dstate.Store) {
	port := &fakePort{}
	for _, r := range replies {
		port.queue(r)
	}
	store := dstate.New()
	return New(port, store, "01", false), port, store
}

// ============================================================
// On/off phase
// ============================================================

func onoffInfo(dataflag, pwr, rect, batt, test string) []byte {
	info := zeroInfo(0x14)
	splice(info, gxe.OffDataFlag, dataflag)
	splice(info, gxe.OffPowerSupply, pwr)
	splice(info, gxe.OffRectifierSupply, rect)
	splice(info, gxe.OffBatteryStatus, batt)
	splice(info, gxe.OffBatteryTest, test)
	return info
}

func TestPollOnOff_OnLine(t *testing.T) {
	d, _, store := newTestDriver(reply(t, "00", string(onoffInfo("00", "01", "E0", "E1", "E1"))))
	d.phase = PhaseOnOff

	d.Poll()

	if got := store.GetInfo("ups.status"); got != "OL" {
		t.Errorf("ups.status = %q, want %q", got, "OL")
	}
	if got := store.GetInfo("battery.charger.status"); got != "charging" {
		t.Errorf("battery.charger.status = %q, want %q", got, "charging")
	}
	if got := store.GetInfo("ups.test.result"); got != "Idle" {
		t.Errorf("ups.test.result = %q, want %q", got, "Idle")
	}
	if store.Stale() {
		t.Error("store still stale after successful poll")
	}
	if d.Phase() != PhaseAnalog {
		t.Errorf("phase = %v, want %v", d.Phase(), PhaseAnalog)
	}
}

func TestPollOnOff_OnBattery(t *testing.T) {
	d, _, store := newTestDriver(reply(t, "00", string(onoffInfo("00", "01", "E2", "E3", "E1"))))
	d.phase = PhaseOnOff

	d.Poll()

	if got := store.GetInfo("ups.status"); got != "OB" {
		t.Errorf("ups.status = %q, want %q", got, "OB")
	}
	if got := store.GetInfo("battery.charger.status"); got != "discharging" {
		t.Errorf("battery.charger.status = %q, want %q", got, "discharging")
	}
}

func TestPollOnOff_Bypass(t *testing.T) {
	d, _, store := newTestDriver(reply(t, "00", string(onoffInfo("00", "02", "E0", "E0", "E0"))))
	d.phase = PhaseOnOff

	d.Poll()

	if got := store.GetInfo("ups.status"); got != "OL BYPASS" {
		t.Errorf("ups.status = %q, want %q", got, "OL BYPASS")
	}
	if got := store.GetInfo("battery.charger.status"); got != "resting" {
		t.Errorf("battery.charger.status = %q, want %q", got, "resting")
	}
	if got := store.GetInfo("ups.test.result"); got != "In progress" {
		t.Errorf("ups.test.result = %q, want %q", got, "In progress")
	}
}

func TestPollOnOff_DataFlagTransitions(t *testing.T) {
	tests := []struct {
		name     string
		dataflag string
		want     Phase
	}{
		{"no pending data", "00", PhaseAnalog},
		{"warning pending", "01", PhaseWarning},
		{"onoff pending", "10", PhaseOnOff},
		{"warning wins over onoff", "11", PhaseWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, _ := newTestDriver(reply(t, "00", string(onoffInfo(tt.dataflag, "01", "E0", "E0", "E1"))))
			d.phase = PhaseOnOff

			d.Poll()

			if d.Phase() != tt.want {
				t.Errorf("phase = %v, want %v", d.Phase(), tt.want)
			}
		})
	}
}

func TestPollOnOff_FailureStaysPut(t *testing.T) {
	d, _, store := newTestDriver()
	d.phase = PhaseOnOff
	store.DataOK()

	d.Poll()

	if d.Phase() != PhaseOnOff {
		t.Errorf("phase = %v, want %v after failed poll", d.Phase(), PhaseOnOff)
	}
	if !store.Stale() {
		t.Error("store not marked stale after failed poll")
	}
}

func TestPollOnOff_RejectedReply(t *testing.T) {
	d, _, store := newTestDriver(reply(t, "02", string(onoffInfo("00", "01", "E0", "E0", "E1"))))
	d.phase = PhaseOnOff

	d.Poll()

	if d.Phase() != PhaseOnOff {
		t.Errorf("phase = %v, want %v after rejected reply", d.Phase(), PhaseOnOff)
	}
	if !store.Stale() {
		t.Error("store not marked stale after rejected reply")
	}
}

// ============================================================
// Analog phase
// ============================================================

func analogInfo(values map[int]string) []byte {
	info := zeroInfo(0x56)
	for off, val := range values {
		splice(info, off, val)
	}
	return info
}

func TestPollAnalog_PublishesReadings(t *testing.T) {
	info := analogInfo(map[int]string{
		gxe.OffInputVoltage:    "55F0", // 220.00 V
		gxe.OffOutputVoltage:   "55F0",
		gxe.OffOutputCurrent:   "00FA", // 2.50 A
		gxe.OffBatteryVoltage:  "1518", // 54.00 V
		gxe.OffOutputFrequency: "1388", // 50.00 Hz
		gxe.OffInputFrequency:  "1388",
		gxe.OffRealPower:       "002D", // 450 W
		gxe.OffApparentPower:   "0032", // 500 VA
		gxe.OffBatteryRuntime:  "000A", // 0.10 h -> 6.00 min
	})
	d, _, store := newTestDriver(reply(t, "00", string(info)))
	d.phase = PhaseAnalog

	d.Poll()

	want := map[string]string{
		"input.voltage":       "220.00",
		"output.voltage":      "220.00",
		"output.current":      "2.50",
		"battery.voltage":     "54.00",
		"output.frequency":    "50.00",
		"input.frequency":     "50.00",
		"ups.realpower":       "450",
		"ups.power":           "500",
		"battery.runtime.low": "6.00",
	}
	for name, val := range want {
		if got := store.GetInfo(name); got != val {
			t.Errorf("%s = %q, want %q", name, got, val)
		}
	}
	if d.Phase() != PhaseAnalog {
		t.Errorf("phase = %v, want %v (analog keeps polling analog)", d.Phase(), PhaseAnalog)
	}
}

func TestPollAnalog_MainsLossCorrectsStatus(t *testing.T) {
	info := analogInfo(map[int]string{gxe.OffInputVoltage: "0000"})
	d, _, store := newTestDriver(reply(t, "00", string(info)))
	d.phase = PhaseAnalog
	store.StatusInit()
	store.StatusSet("OL")
	store.StatusCommit()

	d.Poll()

	if got := store.GetInfo("ups.status"); got != "OB" {
		t.Errorf("ups.status = %q, want %q", got, "OB")
	}
	if d.Phase() != PhaseWarning {
		t.Errorf("phase = %v, want %v after status correction", d.Phase(), PhaseWarning)
	}
}

func TestPollAnalog_MainsReturnCorrectsStatus(t *testing.T) {
	info := analogInfo(map[int]string{gxe.OffInputVoltage: "55F0"})
	d, _, store := newTestDriver(reply(t, "00", string(info)))
	d.phase = PhaseAnalog
	store.StatusInit()
	store.StatusSet("OB")
	store.StatusCommit()

	d.Poll()

	if got := store.GetInfo("ups.status"); got != "OL" {
		t.Errorf("ups.status = %q, want %q", got, "OL")
	}
	if d.Phase() != PhaseWarning {
		t.Errorf("phase = %v, want %v after status correction", d.Phase(), PhaseWarning)
	}
}

// ============================================================
// Warning phase
// ============================================================

func TestPollWarning_SingleAlarm(t *testing.T) {
	info := zeroInfo(0x36)
	// Slot 3, "Rectifier Failure".
	splice(info, gxe.OffWarningBase+2*3, "02")
	d, _, store := newTestDriver(reply(t, "00", string(info)))
	d.phase = PhaseWarning

	d.Poll()

	if got := store.GetInfo("ups.alarm"); got != "Rectifier Failure" {
		t.Errorf("ups.alarm = %q, want %q", got, "Rectifier Failure")
	}
	if d.Phase() != PhaseOnOff {
		t.Errorf("phase = %v, want %v", d.Phase(), PhaseOnOff)
	}
}

func TestPollWarning_MultipleAlarms(t *testing.T) {
	info := zeroInfo(0x36)
	splice(info, gxe.OffWarningBase+2*3, "01")
	splice(info, gxe.OffWarningBase+2*16, "F0")
	d, _, store := newTestDriver(reply(t, "00", string(info)))
	d.phase = PhaseWarning

	d.Poll()

	if got := store.GetInfo("ups.alarm"); got != "Rectifier Failure, Ouput Overloaded" {
		t.Errorf("ups.alarm = %q", got)
	}
}

func TestPollWarning_ClearsOldAlarms(t *testing.T) {
	d, _, store := newTestDriver(reply(t, "00", string(zeroInfo(0x36))))
	d.phase = PhaseWarning
	store.AlarmInit()
	store.AlarmSet("Rectifier Failure")
	store.AlarmCommit()

	d.Poll()

	if got := store.GetInfo("ups.alarm"); got != "" {
		t.Errorf("ups.alarm = %q, want cleared", got)
	}
}

func TestPollWarning_FailureStaysPut(t *testing.T) {
	d, _, store := newTestDriver()
	d.phase = PhaseWarning

	d.Poll()

	if d.Phase() != PhaseWarning {
		t.Errorf("phase = %v, want %v after failed poll", d.Phase(), PhaseWarning)
	}
	if !store.Stale() {
		t.Error("store not marked stale after failed poll")
	}
}

// ============================================================
// System parameter phase
// ============================================================

func TestPollSysParam(t *testing.T) {
	info := zeroInfo(0x6A)
	splice(info, gxe.OffNominalVoltage, "00DC")   // 220 V
	splice(info, gxe.OffNominalFrequency, "0032") // 50 Hz
	splice(info, gxe.OffBypassHighFlag, "0001")
	splice(info, gxe.OffBypassLowFlag, "0001")
	splice(info, gxe.OffTestInterval, "0004")
	d, _, store := newTestDriver(reply(t, "00", string(info)))
	d.phase = PhaseSysParam

	d.Poll()

	want := map[string]string{
		"output.voltage.nominal":     "220",
		"output.frequency.nominal":   "50",
		"input.transfer.bypass.high": "253.00",
		"input.transfer.bypass.low":  "120",
		"ups.test.interval":          "1296000",
	}
	for name, val := range want {
		if got := store.GetInfo(name); got != val {
			t.Errorf("%s = %q, want %q", name, got, val)
		}
	}
	if d.Phase() != PhaseWarning {
		t.Errorf("phase = %v, want %v", d.Phase(), PhaseWarning)
	}
}

func TestPollSysParam_DisabledBypassThresholds(t *testing.T) {
	info := zeroInfo(0x6A)
	splice(info, gxe.OffNominalVoltage, "00DC")
	d, _, store := newTestDriver(reply(t, "00", string(info)))
	d.phase = PhaseSysParam

	d.Poll()

	if got := store.GetInfo("input.transfer.bypass.high"); got != "" {
		t.Errorf("input.transfer.bypass.high = %q, want unset", got)
	}
	if got := store.GetInfo("input.transfer.bypass.low"); got != "" {
		t.Errorf("input.transfer.bypass.low = %q, want unset", got)
	}
}

// ============================================================
// Instant commands
// ============================================================

func TestInstcmd_LoadOn(t *testing.T) {
	d, port, _ := newTestDriver(reply(t, "00", ""))

	if err := d.Instcmd("load.on", ""); err != nil {
		t.Fatalf("Instcmd: %v", err)
	}
	if len(port.sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(port.sent))
	}
	if !bytes.Contains(port.sent[0], []byte("2A45")) {
		t.Errorf("sent frame %q missing remote-command CID", port.sent[0])
	}
	if !bytes.Contains(port.sent[0], []byte("2001")) {
		t.Errorf("sent frame %q missing load.on payload", port.sent[0])
	}
	if d.Phase() != PhaseSysParam {
		t.Errorf("phase = %v, want %v after successful command", d.Phase(), PhaseSysParam)
	}
}

func TestInstcmd_CaseInsensitive(t *testing.T) {
	d, port, _ := newTestDriver(reply(t, "00", ""))

	if err := d.Instcmd("Test.Battery.Start", ""); err != nil {
		t.Fatalf("Instcmd: %v", err)
	}
	if !bytes.Contains(port.sent[0], []byte("1002")) {
		t.Errorf("sent frame %q missing test.battery.start payload", port.sent[0])
	}
}

func TestInstcmd_Unknown(t *testing.T) {
	d, port, _ := newTestDriver()

	if err := d.Instcmd("beeper.mute", ""); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("Instcmd error = %v, want ErrUnknownCommand", err)
	}
	if len(port.sent) != 0 {
		t.Errorf("sent %d frames for unknown command, want 0", len(port.sent))
	}
}

func TestInstcmd_RetriesThenFails(t *testing.T) {
	d, port, _ := newTestDriver()

	if err := d.Instcmd("load.off", ""); !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("Instcmd error = %v, want ErrCommandFailed", err)
	}
	if len(port.sent) != commandRetries {
		t.Errorf("sent %d frames, want %d", len(port.sent), commandRetries)
	}
	if d.Phase() != PhaseSysParam {
		t.Errorf("phase = %v, want unchanged initial %v", d.Phase(), PhaseSysParam)
	}
}

func TestInstcmd_RetriesThenSucceeds(t *testing.T) {
	port := &fakePort{}
	port.queueErr(serio.ErrTimeout)
	port.queue(reply(t, "00", ""))
	d := New(port, dstate.New(), "01", false)

	if err := d.Instcmd("load.on", ""); err != nil {
		t.Fatalf("Instcmd: %v", err)
	}
	if len(port.sent) != 2 {
		t.Errorf("sent %d frames, want 2", len(port.sent))
	}
}

// ============================================================
// Probe
// ============================================================

func TestProbe(t *testing.T) {
	// Vendor info reply: model "GXE" then a terminating space.
	info := zeroInfo(40)
	splice(info, 13, "47584520")
	d, _, store := newTestDriver(reply(t, "00", string(info)))

	if err := d.Probe(); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if got := store.GetInfo("ups.mfr"); got != "EmersonNetworkPower" {
		t.Errorf("ups.mfr = %q", got)
	}
	if got := store.GetInfo("ups.model"); got != "GXE" {
		t.Errorf("ups.model = %q, want %q", got, "GXE")
	}
	for name := range instantCommands {
		if !store.HasCommand(name) {
			t.Errorf("command %q not registered", name)
		}
	}
	if d.Phase() != PhaseSysParam {
		t.Errorf("phase = %v, want %v after probe", d.Phase(), PhaseSysParam)
	}
}

func TestProbe_NoResponse(t *testing.T) {
	d, port, _ := newTestDriver()

	if err := d.Probe(); err == nil {
		t.Fatal("Probe succeeded with no device")
	}
	if len(port.sent) != probeRetries {
		t.Errorf("sent %d frames, want %d", len(port.sent), probeRetries)
	}
}

func TestProbe_ShortReply(t *testing.T) {
	d, _, _ := newTestDriver(reply(t, "00", "4758"))

	if err := d.Probe(); err == nil {
		t.Fatal("Probe accepted a truncated vendor reply")
	}
}
