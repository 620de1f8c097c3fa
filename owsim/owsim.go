// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owsim

import (
	"errors"
	"sync"
	"time"

	"github.com/GermanBionicSystems/owrmt/pulse"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/onewire"
)

// Wire timings as seen from the devices.
const (
	// A low phase at least this long resets the bus.
	resetMin = 400 * time.Microsecond
	// Devices sample the master's bit this long after the falling edge.
	sampleAt = 15 * time.Microsecond
	// A device answering 0 holds the line low this long.
	holdLow = 30 * time.Microsecond
	// Presence pulse: wait after the master releases, then low phase.
	presenceWait = 30 * time.Microsecond
	presenceLow  = 120 * time.Microsecond
	slot         = 75 * time.Microsecond
)

// Device is a slave on the simulated bus.
type Device interface {
	// ROM returns the address of the device in wire order.
	ROM() [8]byte
	// Alarm reports whether the device answers an alarm search.
	Alarm() bool
	// Reset is called on every bus reset.
	Reset()
	// Write is called with every byte the master sends once the device is
	// addressed. The returned bytes are sent back on the following read
	// slots.
	Write(b byte) []byte
}

// Bus is a pulse.Channel connected to simulated devices.
//
// Transmitted trains are interpreted slot by slot as the devices would, and
// the capture is the resulting waveform: the wired-AND of the master and all
// devices.
type Bus struct {
	sync.Mutex
	// TxErr, when set, is returned by Transmit.
	TxErr error
	// Pulls is the line driver of every transmitted train.
	Pulls []onewire.Pullup
	// Attaches is the number of times the paths were reconfigured.
	Attaches int

	pin      gpio.PinIO
	idle     time.Duration
	nodes    []*node
	captures [][]pulse.Symbol
}

// New returns a bus with devs connected.
func New(devs ...Device) *Bus {
	b := &Bus{idle: slot + 2*time.Microsecond}
	for _, d := range devs {
		b.Connect(d)
	}
	return b
}

// Connect adds a device to the bus. It takes part from the next reset on.
func (b *Bus) Connect(d Device) {
	b.Lock()
	defer b.Unlock()
	b.nodes = append(b.nodes, &node{dev: d})
}

// Disconnect removes a device from the bus.
func (b *Bus) Disconnect(d Device) {
	b.Lock()
	defer b.Unlock()
	for i, n := range b.nodes {
		if n.dev == d {
			b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
			return
		}
	}
}

func (b *Bus) String() string {
	return "owsim"
}

// Halt implements conn.Resource.
func (b *Bus) Halt() error {
	return nil
}

// Attach implements pulse.Channel.
func (b *Bus) Attach(p gpio.PinIO) error {
	if p == nil {
		return errors.New("owsim: nil pin")
	}
	b.Lock()
	defer b.Unlock()
	if b.pin != nil && b.pin.Name() == p.Name() {
		return nil
	}
	b.pin = p
	b.Attaches++
	b.captures = nil
	return nil
}

// Transmit implements pulse.Channel.
func (b *Bus) Transmit(t *pulse.Train) error {
	b.Lock()
	defer b.Unlock()
	if b.TxErr != nil {
		return b.TxErr
	}
	if b.pin == nil {
		return errors.New("owsim: transmit before attach")
	}
	b.Pulls = append(b.Pulls, t.Pull)
	var c []pulse.Symbol
	for _, s := range t.Symbols() {
		if s.Level0 == gpio.Low && s.Duration0 >= resetMin {
			c = append(c, b.reset(s)...)
			continue
		}
		c = append(c, b.slot(s))
	}
	b.captures = append(b.captures, c)
	return nil
}

// Receive implements pulse.Channel.
func (b *Bus) Receive(time.Duration) ([]pulse.Symbol, error) {
	b.Lock()
	defer b.Unlock()
	if len(b.captures) == 0 {
		return nil, pulse.ErrTimeout
	}
	c := b.captures[0]
	b.captures = b.captures[1:]
	return c, nil
}

// Flush implements pulse.Channel.
func (b *Bus) Flush() {
	b.Lock()
	defer b.Unlock()
	b.captures = nil
}

// SetIdleThreshold implements pulse.Channel.
func (b *Bus) SetIdleThreshold(d time.Duration) error {
	if d <= 0 {
		return errors.New("owsim: invalid idle threshold")
	}
	b.Lock()
	defer b.Unlock()
	b.idle = d
	return nil
}

// IdleThreshold implements pulse.Channel.
func (b *Bus) IdleThreshold() time.Duration {
	b.Lock()
	defer b.Unlock()
	return b.idle
}

// reset returns the capture of a reset pulse.
func (b *Bus) reset(s pulse.Symbol) []pulse.Symbol {
	for _, n := range b.nodes {
		n.reset()
	}
	if s.Duration0 >= b.idle {
		// The receiver gives up during the low phase.
		return []pulse.Symbol{{Level0: gpio.Low, Duration0: b.idle, Level1: gpio.Low}}
	}
	if len(b.nodes) == 0 {
		return []pulse.Symbol{{Level0: gpio.Low, Duration0: s.Duration0, Level1: gpio.High}}
	}
	return []pulse.Symbol{
		{Level0: gpio.Low, Duration0: s.Duration0, Level1: gpio.High, Duration1: presenceWait},
		{Level0: gpio.Low, Duration0: presenceLow, Level1: gpio.High},
	}
}

// slot returns the capture of one bit slot.
func (b *Bus) slot(s pulse.Symbol) pulse.Symbol {
	bit := s.Duration0 < sampleAt
	pulled := false
	for _, n := range b.nodes {
		if n.slot(bit) {
			pulled = true
		}
	}
	if pulled && s.Duration0 < holdLow {
		total := s.Duration0 + s.Duration1
		if total < slot {
			total = slot
		}
		return pulse.Symbol{Level0: gpio.Low, Duration0: holdLow, Level1: gpio.High, Duration1: total - holdLow}
	}
	return s
}

var _ pulse.Channel = &Bus{}
