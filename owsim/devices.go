// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owsim

import (
	"math"
	"sync"

	"periph.io/x/conn/v3/onewire"
)

// NewROM returns the wire order address of a device with the given family
// code and 48-bit serial number, CRC included.
func NewROM(family byte, serial uint64) [8]byte {
	var r [8]byte
	r[0] = family
	for i := 1; i < 7; i++ {
		r[i] = byte(serial)
		serial >>= 8
	}
	r[7] = onewire.CalcCRC(r[:7])
	return r
}

// Plain is a device that only implements the ROM layer, like a DS2401 serial
// number.
type Plain struct {
	Addr    [8]byte
	Alarmed bool
}

// ROM implements Device.
func (p *Plain) ROM() [8]byte { return p.Addr }

// Alarm implements Device.
func (p *Plain) Alarm() bool { return p.Alarmed }

// Reset implements Device.
func (p *Plain) Reset() {}

// Write implements Device.
func (p *Plain) Write(byte) []byte { return nil }

// Thermometer simulates the function layer of a DS18B20.
//
// The temperature register keeps its 85°C power-on value until a conversion
// is requested. Each conversion also updates Alarmed from the TH and TL
// registers.
type Thermometer struct {
	sync.Mutex
	Addr    [8]byte
	Alarmed bool
	// Celsius is the temperature latched by the next conversion.
	Celsius float64
	// Conversions counts the convert commands received.
	Conversions int

	spad    [9]byte
	init    bool
	pending int // scratchpad bytes still expected by a write scratchpad
}

// NewThermometer returns a DS18B20 in 12 bits resolution.
func NewThermometer(serial uint64, celsius float64) *Thermometer {
	return &Thermometer{Addr: NewROM(0x28, serial), Celsius: celsius}
}

// ROM implements Device.
func (t *Thermometer) ROM() [8]byte { return t.Addr }

// Alarm implements Device.
func (t *Thermometer) Alarm() bool {
	t.Lock()
	defer t.Unlock()
	return t.Alarmed
}

// Reset implements Device.
func (t *Thermometer) Reset() {
	t.Lock()
	defer t.Unlock()
	t.powerOn()
	t.pending = 0
}

// Write implements Device.
func (t *Thermometer) Write(b byte) []byte {
	t.Lock()
	defer t.Unlock()
	t.powerOn()
	if t.pending != 0 {
		// TH, TL then configuration.
		t.spad[5-t.pending] = b
		t.pending--
		t.spad[8] = onewire.CalcCRC(t.spad[:8])
		return nil
	}
	switch b {
	case 0x44: // convert
		t.Conversions++
		raw := int16(math.Round(t.Celsius * 16))
		bits := int(t.spad[4]>>5&3) + 9
		raw &^= int16(1)<<uint(12-bits) - 1
		t.spad[0] = byte(raw)
		t.spad[1] = byte(uint16(raw) >> 8)
		t.spad[8] = onewire.CalcCRC(t.spad[:8])
		// The alarm compares the whole degrees with TH and TL.
		deg := int8(raw >> 4)
		t.Alarmed = deg >= int8(t.spad[2]) || deg <= int8(t.spad[3])
	case 0x4e: // write scratchpad
		t.pending = 3
	case 0xbe: // read scratchpad
		return append([]byte(nil), t.spad[:]...)
	case 0xb4: // read power supply: externally powered
		return []byte{0xff}
	}
	return nil
}

func (t *Thermometer) powerOn() {
	if t.init {
		return
	}
	t.init = true
	t.spad = [9]byte{0x50, 0x05, 0x4b, 0x46, 0x7f, 0xff, 0x0c, 0x10}
	t.spad[8] = onewire.CalcCRC(t.spad[:8])
}
