// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owsim

import (
	"errors"
	"testing"
	"time"

	"github.com/GermanBionicSystems/owrmt/pulse"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/onewire"
)

var (
	reset = pulse.Symbol{Level0: gpio.Low, Duration0: 480 * time.Microsecond, Level1: gpio.High}
	one   = pulse.Symbol{Level0: gpio.Low, Duration0: 2 * time.Microsecond, Level1: gpio.High, Duration1: 73 * time.Microsecond}
	zero  = pulse.Symbol{Level0: gpio.Low, Duration0: 65 * time.Microsecond, Level1: gpio.High, Duration1: 10 * time.Microsecond}
)

func newBus(t *testing.T, devs ...Device) *Bus {
	b := New(devs...)
	if err := b.Attach(&gpiotest.Pin{N: "GPIO4"}); err != nil {
		t.Fatal(err)
	}
	return b
}

func transmit(t *testing.T, b *Bus, s ...pulse.Symbol) []pulse.Symbol {
	var tr pulse.Train
	for _, x := range s {
		tr.Add(x)
	}
	tr.End()
	if err := b.Transmit(&tr); err != nil {
		t.Fatal(err)
	}
	rx, err := b.Receive(time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	return rx
}

func writeByte(t *testing.T, b *Bus, v byte) {
	var s []pulse.Symbol
	for i := 0; i < 8; i++ {
		if v&(1<<uint(i)) != 0 {
			s = append(s, one)
		} else {
			s = append(s, zero)
		}
	}
	transmit(t, b, s...)
}

func readByte(t *testing.T, b *Bus) byte {
	rx := transmit(t, b, one, one, one, one, one, one, one, one)
	var v byte
	for i, s := range rx {
		if s.Duration0 < 13*time.Microsecond {
			v |= 1 << uint(i)
		}
	}
	return v
}

func TestBus_reset(t *testing.T) {
	b := newBus(t, &Plain{Addr: NewROM(0x01, 1)})
	if err := b.SetIdleThreshold(540 * time.Microsecond); err != nil {
		t.Fatal(err)
	}
	want := []pulse.Symbol{
		{Level0: gpio.Low, Duration0: 480 * time.Microsecond, Level1: gpio.High, Duration1: presenceWait},
		{Level0: gpio.Low, Duration0: presenceLow, Level1: gpio.High},
	}
	if diff := cmp.Diff(want, transmit(t, b, reset)); diff != "" {
		t.Fatalf("capture (-want +got):\n%s", diff)
	}
}

func TestBus_reset_empty(t *testing.T) {
	b := newBus(t)
	if err := b.SetIdleThreshold(540 * time.Microsecond); err != nil {
		t.Fatal(err)
	}
	want := []pulse.Symbol{{Level0: gpio.Low, Duration0: 480 * time.Microsecond, Level1: gpio.High}}
	if diff := cmp.Diff(want, transmit(t, b, reset)); diff != "" {
		t.Fatalf("capture (-want +got):\n%s", diff)
	}
}

func TestBus_reset_idleTooShort(t *testing.T) {
	b := newBus(t, &Plain{Addr: NewROM(0x01, 1)})
	// The default threshold is shorter than the reset pulse.
	rx := transmit(t, b, reset)
	if len(rx) != 1 || rx[0].Level1 != gpio.Low || rx[0].Duration0 != b.IdleThreshold() {
		t.Fatalf("unexpected capture %v", rx)
	}
}

func TestBus_readROM(t *testing.T) {
	rom := NewROM(0x28, 0x0102030405)
	b := newBus(t, &Plain{Addr: rom})
	transmit(t, b, reset)
	writeByte(t, b, 0x33)
	var got [8]byte
	for i := range got {
		got[i] = readByte(t, b)
	}
	if got != rom {
		t.Fatalf("%x != %x", got, rom)
	}
}

func TestBus_skipThenSilent(t *testing.T) {
	b := newBus(t, &Plain{Addr: NewROM(0x28, 1)})
	transmit(t, b, reset)
	writeByte(t, b, 0xcc)
	// A plain device has no function layer; the line stays released.
	if v := readByte(t, b); v != 0xff {
		t.Fatalf("got %#x", v)
	}
}

func TestBus_unknownCommand(t *testing.T) {
	b := newBus(t, &Plain{Addr: NewROM(0x28, 1)})
	transmit(t, b, reset)
	writeByte(t, b, 0x00)
	if v := readByte(t, b); v != 0xff {
		t.Fatalf("got %#x", v)
	}
}

func TestBus_Receive_empty(t *testing.T) {
	b := newBus(t)
	if _, err := b.Receive(time.Millisecond); !errors.Is(err, pulse.ErrTimeout) {
		t.Fatal(err)
	}
}

func TestBus_Attach(t *testing.T) {
	b := New()
	if b.Attach(nil) == nil {
		t.Fatal("nil pin")
	}
	var tr pulse.Train
	tr.Add(one)
	if b.Transmit(&tr) == nil {
		t.Fatal("transmit before attach")
	}
	p := &gpiotest.Pin{N: "GPIO4"}
	for i := 0; i < 2; i++ {
		if err := b.Attach(p); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Attach(&gpiotest.Pin{N: "GPIO5"}); err != nil {
		t.Fatal(err)
	}
	if b.Attaches != 2 {
		t.Fatalf("Attaches = %d", b.Attaches)
	}
}

func TestBus_TxErr(t *testing.T) {
	b := newBus(t)
	b.TxErr = errors.New("oops")
	var tr pulse.Train
	tr.Add(one)
	if err := b.Transmit(&tr); err != b.TxErr {
		t.Fatal(err)
	}
}

func TestBus_SetIdleThreshold(t *testing.T) {
	b := New()
	if b.SetIdleThreshold(0) == nil {
		t.Fatal("zero threshold")
	}
	if b.IdleThreshold() != 77*time.Microsecond {
		t.Fatal(b.IdleThreshold())
	}
}

func TestBus_Disconnect(t *testing.T) {
	p := &Plain{Addr: NewROM(0x01, 1)}
	b := newBus(t, p)
	b.Disconnect(p)
	if err := b.SetIdleThreshold(540 * time.Microsecond); err != nil {
		t.Fatal(err)
	}
	if rx := transmit(t, b, reset); len(rx) != 1 {
		t.Fatalf("unexpected presence %v", rx)
	}
}

func TestNewROM(t *testing.T) {
	// DS18B20 address recorded from hardware.
	r := NewROM(0x28, 0x070e41ac)
	want := [8]byte{0x28, 0xac, 0x41, 0x0e, 0x07, 0x00, 0x00, 0x74}
	if r != want {
		t.Fatalf("%x", r)
	}
	if !onewire.CheckCRC(r[:]) {
		t.Fatal("bad crc")
	}
}

func TestThermometer(t *testing.T) {
	th := NewThermometer(1, 21.5)
	b := newBus(t, th)
	readSpad := func() []byte {
		transmit(t, b, reset)
		writeByte(t, b, 0xcc)
		writeByte(t, b, 0xbe)
		s := make([]byte, 9)
		for i := range s {
			s[i] = readByte(t, b)
		}
		if !onewire.CheckCRC(s) {
			t.Fatalf("bad crc %x", s)
		}
		return s
	}
	// Power-on value, 85°C.
	if s := readSpad(); s[0] != 0x50 || s[1] != 0x05 {
		t.Fatalf("%x", s)
	}
	transmit(t, b, reset)
	writeByte(t, b, 0xcc)
	writeByte(t, b, 0x44)
	if th.Conversions != 1 {
		t.Fatal(th.Conversions)
	}
	// 21.5 * 16 = 344 = 0x158
	if s := readSpad(); s[0] != 0x58 || s[1] != 0x01 {
		t.Fatalf("%x", s)
	}

	// Switch to 9 bits: the 3 low bits are undefined, reported as 0.
	transmit(t, b, reset)
	writeByte(t, b, 0xcc)
	writeByte(t, b, 0x4e)
	writeByte(t, b, 0x10)
	writeByte(t, b, 0x20)
	writeByte(t, b, 0x1f)
	th.Celsius = -10.125
	transmit(t, b, reset)
	writeByte(t, b, 0xcc)
	writeByte(t, b, 0x44)
	s := readSpad()
	if diff := cmp.Diff([]byte{0x58, 0xff, 0x10, 0x20, 0x1f}, s[:5]); diff != "" {
		t.Fatalf("scratchpad (-want +got):\n%s", diff)
	}
}

func TestThermometer_alarmSearch(t *testing.T) {
	th := NewThermometer(1, 20)
	b := newBus(t, th)
	transmit(t, b, reset)
	writeByte(t, b, 0xec)
	// Not in alarm: both the bit and its complement read 1.
	if rx := transmit(t, b, one, one); rx[0] != one || rx[1] != one {
		t.Fatalf("unexpected answer %v", rx)
	}
	th.Alarmed = true
	transmit(t, b, reset)
	writeByte(t, b, 0xec)
	// Family 0x28 starts with a 0 bit.
	rx := transmit(t, b, one, one)
	if rx[0] == one || rx[1] != one {
		t.Fatalf("unexpected answer %v", rx)
	}
}
