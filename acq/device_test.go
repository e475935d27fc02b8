// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-sigrok/lwla/wire"
)

// Raw status register bits of the 36-bit models. The decoded flags
// are these shifted left by one.
const (
	rawCapturing = uint32(1) << 0
	rawTriggered = uint32(1) << 3
	rawMemAvail  = uint32(1) << 4
)

// flags16 is the running status of the 16-channel models, which
// report the decoded flag positions directly.
const flags16 = wire.StatusCapturing | wire.StatusTriggered | wire.StatusMemAvail

// unit1034 renders one 34-channel sample unit.
func unit1034(sample uint64) []byte {
	return []byte{
		byte(sample), byte(sample >> 8), byte(sample >> 16),
		byte(sample >> 24), byte(sample >> 32),
	}
}

func TestCaptureRun(t *testing.T) {
	tr := newFakeXport(false)
	tr.statuses = []fakeStatus{
		{fill: 0, dur: 0, raw: rawCapturing | rawTriggered | rawMemAvail},
		{fill: 12, dur: 5, raw: rawCapturing | rawTriggered | rawMemAvail},
	}
	tr.memFill = 12
	tr.mem = make([]uint64, 12)
	for i := 0; i < 8; i++ {
		// 8 capture words, each repeated twice.
		tr.mem[4+i] = uint64(0x100+i) | 1<<34
	}

	sink := new(fakeSink)
	dev, err := New(tr, "LWLA1034", sink,
		WithSamplerate(100e6),
		WithLimitSamples(16),
		WithPollInterval(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("could not create device: %+v", err)
	}

	if err := dev.Start(); err != nil {
		t.Fatalf("could not start acquisition: %+v", err)
	}
	if err := dev.Wait(); err != nil {
		t.Fatalf("acquisition failed: %+v", err)
	}

	if got, want := sink.rate, uint64(100e6); got != want {
		t.Fatalf("invalid samplerate: got=%d, want=%d", got, want)
	}
	if got, want := sink.headers, 1; got != want {
		t.Fatalf("invalid number of headers: got=%d, want=%d", got, want)
	}
	if got, want := sink.ends, 1; got != want {
		t.Fatalf("invalid number of session ends: got=%d, want=%d", got, want)
	}
	if got, want := sink.triggers, []int{0}; len(got) != 1 || got[0] != want[0] {
		t.Fatalf("invalid trigger marks: got=%v, want=%v", got, want)
	}

	var want []byte
	for i := 0; i < 8; i++ {
		want = append(want, unit1034(uint64(0x100+i))...)
		want = append(want, unit1034(uint64(0x100+i))...)
	}
	if !bytes.Equal(sink.data, want) {
		t.Fatalf("invalid samples:\ngot= %x\nwant=%x", sink.data, want)
	}
	for _, unit := range sink.units {
		if unit != 5 {
			t.Fatalf("invalid unit size: got=%d, want=5", unit)
		}
	}

	// Capture configuration as seen by the device.
	if got, want := tr.lregs[lregChanMask], uint64(1)<<34-1; got != want {
		t.Fatalf("invalid channel mask: got=0x%x, want=0x%x", got, want)
	}
	if got, want := tr.lregs[lregDivCount], uint64(0); got != want {
		t.Fatalf("invalid clock divider: got=%d, want=%d", got, want)
	}
	if got, want := tr.lregs[lregMemFill], uint64(256*1024-16); got != want {
		t.Fatalf("invalid fill threshold: got=%d, want=%d", got, want)
	}
	if got, want := tr.lregs[lregCapCtrl], uint64(0); got != want {
		t.Fatalf("capture still armed: got=0x%x, want=0x%x", got, want)
	}
	if got, want := tr.regs[regClkBoost], uint32(0); got != want {
		t.Fatalf("clock boost still active: got=%d, want=%d", got, want)
	}

	// A fresh session on the same device decodes the same capture.
	tr.statuses = []fakeStatus{
		{fill: 12, dur: 5, raw: rawCapturing | rawTriggered | rawMemAvail},
	}
	if err := dev.Start(); err != nil {
		t.Fatalf("could not restart acquisition: %+v", err)
	}
	if err := dev.Wait(); err != nil {
		t.Fatalf("second acquisition failed: %+v", err)
	}
	if got, want := sink.headers, 2; got != want {
		t.Fatalf("invalid number of headers: got=%d, want=%d", got, want)
	}
	if got, want := sink.ends, 2; got != want {
		t.Fatalf("invalid number of session ends: got=%d, want=%d", got, want)
	}
	if got, want := sink.data, append(want, want...); !bytes.Equal(got, want) {
		t.Fatalf("invalid samples after restart:\ngot= %x\nwant=%x", got, want)
	}
}

func TestCaptureStop(t *testing.T) {
	tr := newFakeXport(false)
	tr.statuses = []fakeStatus{
		{fill: 0, dur: 0, raw: rawCapturing | rawMemAvail},
	}

	sink := new(fakeSink)
	dev, err := New(tr, "LWLA1034", sink,
		WithSamplerate(100e6),
		WithPollInterval(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("could not create device: %+v", err)
	}

	if err := dev.Start(); err != nil {
		t.Fatalf("could not start acquisition: %+v", err)
	}
	if err := dev.Stop(); err != nil {
		t.Fatalf("could not stop acquisition: %+v", err)
	}
	if err := dev.Err(); err != nil {
		t.Fatalf("unexpected session error: %+v", err)
	}

	if got, want := sink.ends, 1; got != want {
		t.Fatalf("invalid number of session ends: got=%d, want=%d", got, want)
	}
	if len(sink.data) != 0 {
		t.Fatalf("unexpected samples: got=%x", sink.data)
	}
	if len(sink.triggers) != 0 {
		t.Fatalf("unexpected trigger marks: got=%v", sink.triggers)
	}
}

func TestCaptureMemoryFull(t *testing.T) {
	tr := newFakeXport(false)
	tr.statuses = []fakeStatus{
		// Capture memory full: the memory-available bit is cleared.
		{fill: 256 * 1024, dur: 100, raw: rawCapturing | rawTriggered},
	}
	tr.memFill = 12
	tr.mem = make([]uint64, 12)
	for i := 0; i < 8; i++ {
		tr.mem[4+i] = uint64(i) | 1<<34
	}

	sink := new(fakeSink)
	dev, err := New(tr, "LWLA1034", sink,
		WithSamplerate(100e6),
		WithPollInterval(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("could not create device: %+v", err)
	}

	if err := dev.Start(); err != nil {
		t.Fatalf("could not start acquisition: %+v", err)
	}
	if err := dev.Wait(); err != nil {
		t.Fatalf("acquisition failed: %+v", err)
	}

	if got, want := len(sink.data), 16*5; got != want {
		t.Fatalf("invalid number of sample bytes: got=%d, want=%d", got, want)
	}
}

func TestCaptureZeroLength(t *testing.T) {
	tr := newFakeXport(false)
	tr.statuses = []fakeStatus{
		{fill: 0, dur: 5, raw: rawCapturing | rawTriggered | rawMemAvail},
	}
	tr.memFill = 4 // empty capture: fill level equals the start address

	sink := new(fakeSink)
	dev, err := New(tr, "LWLA1034", sink,
		WithSamplerate(100e6),
		WithLimitDuration(3*time.Millisecond),
		WithPollInterval(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("could not create device: %+v", err)
	}

	if err := dev.Start(); err != nil {
		t.Fatalf("could not start acquisition: %+v", err)
	}
	if err := dev.Wait(); err != nil {
		t.Fatalf("acquisition failed: %+v", err)
	}

	if len(sink.data) != 0 {
		t.Fatalf("unexpected samples: got=%x", sink.data)
	}
	if got, want := sink.ends, 1; got != want {
		t.Fatalf("invalid number of session ends: got=%d, want=%d", got, want)
	}
}

func TestCaptureFullPacket(t *testing.T) {
	const words = 5000 // two samples each: exactly one full packet

	tr := newFakeXport(false)
	tr.statuses = []fakeStatus{
		{fill: 0, dur: 0, raw: rawCapturing | rawTriggered | rawMemAvail},
		{fill: words + 4, dur: 5, raw: rawCapturing | rawTriggered | rawMemAvail},
	}
	tr.memFill = words + 4
	tr.mem = make([]uint64, words+4)
	for i := 0; i < words; i++ {
		tr.mem[4+i] = uint64(i) | 1<<34
	}

	sink := new(fakeSink)
	dev, err := New(tr, "LWLA1034", sink,
		WithSamplerate(100e6),
		WithLimitSamples(2*words),
		WithPollInterval(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("could not create device: %+v", err)
	}

	if err := dev.Start(); err != nil {
		t.Fatalf("could not start acquisition: %+v", err)
	}
	if err := dev.Wait(); err != nil {
		t.Fatalf("acquisition failed: %+v", err)
	}

	if got, want := len(sink.units), 1; got != want {
		t.Fatalf("invalid number of packets: got=%d, want=%d", got, want)
	}
	if got, want := len(sink.data), 2*words*5; got != want {
		t.Fatalf("invalid number of sample bytes: got=%d, want=%d", got, want)
	}
	if got, want := sink.data[:10], append(unit1034(0), unit1034(0)...); !bytes.Equal(got, want) {
		t.Fatalf("invalid first samples: got=%x, want=%x", got, want)
	}
	if got, want := sink.data[len(sink.data)-5:], unit1034(words-1); !bytes.Equal(got, want) {
		t.Fatalf("invalid last sample: got=%x, want=%x", got, want)
	}
}

func TestCaptureEmptyReplies(t *testing.T) {
	tr := newFakeXport(false)
	tr.statuses = []fakeStatus{
		{fill: 12, dur: 5, raw: rawCapturing | rawTriggered | rawMemAvail},
	}
	tr.memFill = 12
	tr.mem = make([]uint64, 12)
	for i := 0; i < 8; i++ {
		tr.mem[4+i] = uint64(i)
	}
	tr.emptyIn = 3 // retried in place, session proceeds

	sink := new(fakeSink)
	dev, err := New(tr, "LWLA1034", sink,
		WithSamplerate(100e6),
		WithLimitSamples(8),
		WithPollInterval(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("could not create device: %+v", err)
	}

	if err := dev.Start(); err != nil {
		t.Fatalf("could not start acquisition: %+v", err)
	}
	if err := dev.Wait(); err != nil {
		t.Fatalf("acquisition failed: %+v", err)
	}
	if got, want := len(sink.data), 8*5; got != want {
		t.Fatalf("invalid number of sample bytes: got=%d, want=%d", got, want)
	}
}

func TestCaptureNoReply(t *testing.T) {
	tr := newFakeXport(false)
	tr.statuses = []fakeStatus{
		{fill: 0, dur: 0, raw: rawCapturing | rawMemAvail},
	}
	tr.emptyIn = 4 // one more than the device retries

	sink := new(fakeSink)
	dev, err := New(tr, "LWLA1034", sink,
		WithSamplerate(100e6),
		WithPollInterval(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("could not create device: %+v", err)
	}

	if err := dev.Start(); err != nil {
		t.Fatalf("could not start acquisition: %+v", err)
	}
	err = dev.Wait()
	if err == nil {
		t.Fatalf("expected a session error")
	}
	if !strings.Contains(err.Error(), "no reply from device after 4 attempts") {
		t.Fatalf("invalid error: %+v", err)
	}
	if got, want := sink.ends, 1; got != want {
		t.Fatalf("invalid number of session ends: got=%d, want=%d", got, want)
	}
}

func TestCaptureDeviceGone(t *testing.T) {
	tr := newFakeXport(false)
	tr.statuses = []fakeStatus{
		{fill: 0, dur: 0, raw: rawCapturing | rawMemAvail},
	}

	sink := new(fakeSink)
	dev, err := New(tr, "LWLA1034", sink,
		WithSamplerate(100e6),
		WithPollInterval(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("could not create device: %+v", err)
	}

	if err := dev.Start(); err != nil {
		t.Fatalf("could not start acquisition: %+v", err)
	}
	tr.disconnect()

	err = dev.Wait()
	if err == nil {
		t.Fatalf("expected a session error")
	}
	if !strings.Contains(err.Error(), "device gone") {
		t.Fatalf("invalid error: %+v", err)
	}
	if got, want := sink.ends, 1; got != want {
		t.Fatalf("invalid number of session ends: got=%d, want=%d", got, want)
	}
}

func TestCaptureRun1016(t *testing.T) {
	tr := newFakeXport(true)
	tr.statuses = []fakeStatus{
		{fill: 0, dur: 0, raw: flags16},
		{fill: 6, dur: 5, raw: flags16},
	}
	tr.memFill = 5 // device words past the read start address, plus one
	tr.mem = make([]uint64, 8)
	for i := 0; i < 4; i++ {
		// Two samples per word, high half first.
		tr.mem[2+i] = uint64(0xA000+2*i)<<16 | uint64(0xA001+2*i)
	}

	sink := new(fakeSink)
	dev, err := New(tr, "LWLA1016", sink,
		WithSamplerate(10e6),
		WithLimitSamples(6),
		WithPollInterval(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("could not create device: %+v", err)
	}

	if err := dev.Start(); err != nil {
		t.Fatalf("could not start acquisition: %+v", err)
	}
	if err := dev.Wait(); err != nil {
		t.Fatalf("acquisition failed: %+v", err)
	}

	var want []byte
	for i := 0; i < 6; i++ {
		want = binary.LittleEndian.AppendUint16(want, uint16(0xA000+i))
	}
	if !bytes.Equal(sink.data, want) {
		t.Fatalf("invalid samples:\ngot= %x\nwant=%x", sink.data, want)
	}
	if got, want := sink.triggers, []int{0}; len(got) != 1 || got[0] != want[0] {
		t.Fatalf("invalid trigger marks: got=%v, want=%v", got, want)
	}

	if got, want := tr.regs[reg16ChanMask], uint32(0xFFFF); got != want {
		t.Fatalf("invalid channel mask: got=0x%x, want=0x%x", got, want)
	}
	if got, want := tr.regs[reg16CapCount], uint32(256*1024-5); got != want {
		t.Fatalf("invalid capture count: got=%d, want=%d", got, want)
	}
	if got, want := tr.regs[reg16DivCount], uint32(0); got != want {
		t.Fatalf("clock divider not cleared: got=%d, want=%d", got, want)
	}
}

func TestCaptureRun1016RLE(t *testing.T) {
	tr := newFakeXport(true)
	tr.statuses = []fakeStatus{
		{fill: 0, dur: 0, raw: flags16},
		{fill: 4, dur: 5, raw: flags16},
	}
	tr.memFill = 3
	tr.mem = make([]uint64, 4)
	tr.mem[2] = 0x000B<<16 | 2 // sample 0xB, repeated 3 times
	tr.mem[3] = 0x000C << 16   // sample 0xC, once

	sink := new(fakeSink)
	dev, err := New(tr, "LWLA1016", sink,
		WithSamplerate(100e6),
		WithLimitSamples(4),
		WithRLE(true),
		WithPollInterval(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("could not create device: %+v", err)
	}

	if err := dev.Start(); err != nil {
		t.Fatalf("could not start acquisition: %+v", err)
	}
	if err := dev.Wait(); err != nil {
		t.Fatalf("acquisition failed: %+v", err)
	}

	want := []byte{0x0B, 0, 0x0B, 0, 0x0B, 0, 0x0C, 0}
	if !bytes.Equal(sink.data, want) {
		t.Fatalf("invalid samples:\ngot= %x\nwant=%x", sink.data, want)
	}
}

func TestStartErrors(t *testing.T) {
	sink := new(fakeSink)

	_, err := New(newFakeXport(false), "LWLA2034", sink)
	if err == nil || !strings.Contains(err.Error(), "unknown device model") {
		t.Fatalf("invalid error for unknown model: %+v", err)
	}

	for _, tc := range []struct {
		name string
		opts []Option
		want string
	}{
		{
			name: "zero-samples",
			opts: []Option{WithLimitSamples(0)},
			want: "acq: invalid sample count limit 0",
		},
		{
			name: "zero-duration",
			opts: []Option{WithLimitDuration(0)},
			want: "acq: invalid capture time limit 0 ms",
		},
		{
			name: "bad-samplerate",
			opts: []Option{WithSamplerate(42)},
			want: "acq: could not configure samplerate",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dev, err := New(newFakeXport(false), "LWLA1034", sink, tc.opts...)
			if err != nil {
				t.Fatalf("could not create device: %+v", err)
			}
			err = dev.Start()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("invalid error: got=%+v, want prefix %q", err, tc.want)
			}
		})
	}

	t.Run("setup-failure", func(t *testing.T) {
		tr := newFakeXport(false)
		tr.errOut = errors.New("boom")
		dev, err := New(tr, "LWLA1034", sink, WithSamplerate(100e6))
		if err != nil {
			t.Fatalf("could not create device: %+v", err)
		}
		err = dev.Start()
		if err == nil || !strings.Contains(err.Error(), "could not set up device") {
			t.Fatalf("invalid error: %+v", err)
		}
	})

	t.Run("not-started", func(t *testing.T) {
		dev, err := New(newFakeXport(false), "LWLA1034", sink)
		if err != nil {
			t.Fatalf("could not create device: %+v", err)
		}
		if err := dev.Stop(); err == nil {
			t.Fatalf("expected an error for stop without start")
		}
		if err := dev.Wait(); err == nil {
			t.Fatalf("expected an error for wait without start")
		}
		if err := dev.Err(); err != nil {
			t.Fatalf("unexpected session error: %+v", err)
		}
	})
}
