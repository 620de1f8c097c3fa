// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owmaster

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/GermanBionicSystems/owrmt/pulse"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/onewire"
)

// ROM commands.
const (
	cmdSearchROM = 0xf0 // walk the address tree
	cmdAlarm     = 0xec // same, only devices with an alarm condition answer
	cmdMatchROM  = 0x55 // address one device
	cmdSkipROM   = 0xcc // address all devices
	cmdReadROM   = 0x33 // read the address of the only device
)

// Opts contains options to pass to the constructor.
type Opts struct {
	// ResetTimeout bounds the wait for the capture of a reset.
	ResetTimeout time.Duration
	// ReadTimeout bounds the wait for the capture of a read group. A group
	// lasts well under a millisecond; the bound only catches a dead channel.
	ReadTimeout time.Duration
	// Logger receives debug records of raw captures and search results. Nil
	// disables logging.
	Logger *slog.Logger
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	ResetTimeout: 100 * time.Millisecond,
	ReadTimeout:  10 * time.Millisecond,
}

// New returns a 1-Wire master driving the bus on pin through ch.
//
// The master owns ch from then on. It implements onewire.Bus, so sensor
// drivers written for periph work on top of it.
func New(ch pulse.Channel, pin gpio.PinIO, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{ch: ch, pin: pin, opts: *opts}
	if d.opts.ResetTimeout <= 0 {
		d.opts.ResetTimeout = DefaultOpts.ResetTimeout
	}
	if d.opts.ReadTimeout <= 0 {
		d.opts.ReadTimeout = DefaultOpts.ReadTimeout
	}
	if err := ch.Attach(pin); err != nil {
		return nil, &channelError{"attach", err}
	}
	if err := ch.SetIdleThreshold(idleSlot); err != nil {
		return nil, &channelError{"idle threshold", err}
	}
	return d, nil
}

// Dev is a 1-Wire master on top of a pulse channel.
//
// The primitive operations (Reset, Write*, Read*, Select, Skip, the search
// functions) are not safe for concurrent use and depend on each other's
// sequencing: callers sharing a Dev must hold its lock across a whole
// transaction. Tx and Search take the lock themselves.
type Dev struct {
	sync.Mutex // serializes transactions

	ch     pulse.Channel
	pin    gpio.PinIO
	opts   Opts
	search SearchState
	tx     pulse.Train
}

func (d *Dev) String() string {
	return "owmaster{" + d.ch.String() + "}"
}

// Halt implements conn.Resource.
//
// It releases a strong pull-up and halts the channel.
func (d *Dev) Halt() error {
	if err := d.Depower(); err != nil {
		return err
	}
	return d.ch.Halt()
}

// Q implements onewire.Pins.
func (d *Dev) Q() gpio.PinIO {
	return d.pin
}

// Tx implements onewire.Bus.
//
// It resets the bus, writes w, reads r and, if power is StrongPullup, leaves
// the line strongly pulled up after the last byte.
func (d *Dev) Tx(w, r []byte, power onewire.Pullup) error {
	d.Lock()
	defer d.Unlock()

	if present, err := d.Reset(); err != nil {
		return err
	} else if !present {
		return errNoPresence
	}
	pull := onewire.WeakPullup
	if len(r) == 0 {
		pull = power
	}
	if err := d.WriteBytes(w, pull); err != nil {
		return err
	}
	if len(r) == 0 {
		return nil
	}
	if err := d.ReadBytes(r); err != nil {
		return err
	}
	if power == onewire.StrongPullup {
		return d.WriteBits(0, 0, onewire.StrongPullup)
	}
	return nil
}

// Reset issues a reset pulse and returns true if at least one device
// answered with a presence pulse.
//
// A timeout or a malformed capture is reported as no presence. Only channel
// failures return an error, including a failure to restore the idle
// threshold afterwards.
func (d *Dev) Reset() (present bool, err error) {
	if err := d.ch.Attach(d.pin); err != nil {
		return false, &channelError{"attach", err}
	}
	t := d.train(onewire.WeakPullup)
	t.Add(resetSymbol())

	old := d.ch.IdleThreshold()
	if err := d.ch.SetIdleThreshold(idleReset); err != nil {
		return false, &channelError{"idle threshold", err}
	}
	defer func() {
		if rerr := d.ch.SetIdleThreshold(old); rerr != nil && err == nil {
			present, err = false, &channelError{"idle threshold", rerr}
		}
	}()

	d.ch.Flush()
	if err := d.ch.Transmit(t); err != nil {
		return false, &channelError{"transmit", err}
	}
	rx, err := d.ch.Receive(d.opts.ResetTimeout)
	if err != nil {
		if errors.Is(err, pulse.ErrTimeout) {
			d.debug("reset timed out")
			return false, nil
		}
		return false, &channelError{"receive", err}
	}
	present = isPresence(rx)
	d.debug("reset", "capture", rx, "present", present)
	return present, nil
}

// WriteBit writes a single bit.
func (d *Dev) WriteBit(v bool) error {
	var b byte
	if v {
		b = 1
	}
	return d.WriteBits(b, 1, onewire.WeakPullup)
}

// WriteByte writes one byte, LSB first.
func (d *Dev) WriteByte(b byte) error {
	return d.WriteBits(b, 8, onewire.WeakPullup)
}

// WriteBytes writes buf. With StrongPullup the line driver switches to
// push-pull for the last byte and stays so until the next operation.
func (d *Dev) WriteBytes(buf []byte, power onewire.Pullup) error {
	for i, b := range buf {
		pull := onewire.WeakPullup
		if i == len(buf)-1 {
			pull = power
		}
		if err := d.WriteBits(b, 8, pull); err != nil {
			return err
		}
	}
	return nil
}

// WriteBits writes the n low bits of data, LSB first, as a single burst.
//
// n may be 0, in which case only the line driver is switched.
func (d *Dev) WriteBits(data byte, n int, power onewire.Pullup) error {
	if n < 0 || n > 8 {
		return ErrBitCount
	}
	if err := d.ch.Attach(d.pin); err != nil {
		return &channelError{"attach", err}
	}
	t := d.train(power)
	for i := 0; i < n; i++ {
		t.Add(writeSymbol(data&1 != 0))
		data >>= 1
	}
	t.End()
	if err := d.ch.Transmit(t); err != nil {
		return &channelError{"transmit", err}
	}
	return nil
}

// Depower ends a strong pull-up and returns the line to open-drain.
func (d *Dev) Depower() error {
	return d.WriteBits(0, 0, onewire.WeakPullup)
}

// ReadBit reads a single bit.
func (d *Dev) ReadBit() (bool, error) {
	v, err := d.ReadBits(1)
	return v != 0, err
}

// ReadByte reads one byte, LSB first.
func (d *Dev) ReadByte() (byte, error) {
	return d.ReadBits(8)
}

// ReadBytes fills buf. On error, the bytes already read are kept and the
// remaining ones are left untouched.
func (d *Dev) ReadBytes(buf []byte) error {
	for i := range buf {
		b, err := d.ReadByte()
		if err != nil {
			return err
		}
		buf[i] = b
	}
	return nil
}

// ReadBits reads n bits as a single burst and returns them packed LSB first.
//
// The group either succeeds or fails as a whole; on failure the returned value
// is 0.
func (d *Dev) ReadBits(n int) (byte, error) {
	if n < 1 || n > 8 {
		return 0, ErrBitCount
	}
	if err := d.ch.Attach(d.pin); err != nil {
		return 0, &channelError{"attach", err}
	}
	t := d.train(onewire.WeakPullup)
	for i := 0; i < n; i++ {
		t.Add(readSymbol())
	}
	t.End()

	d.ch.Flush()
	if err := d.ch.Transmit(t); err != nil {
		return 0, &channelError{"transmit", err}
	}
	rx, err := d.ch.Receive(d.opts.ReadTimeout)
	if err != nil {
		if errors.Is(err, pulse.ErrTimeout) {
			return 0, timeoutError("owmaster: read slot capture timed out")
		}
		return 0, &channelError{"receive", err}
	}
	if len(rx) < n {
		d.debug("short read capture", "capture", rx, "bits", n)
		return 0, errShortCapture
	}
	return decodeBits(rx, n), nil
}

// Select addresses the device with the given ROM; all others stay silent
// until the next reset.
func (d *Dev) Select(rom ROM) error {
	if err := d.WriteByte(cmdMatchROM); err != nil {
		return err
	}
	return d.WriteBytes(rom[:], onewire.WeakPullup)
}

// Skip addresses all devices at once. Only valid when at most one device is
// expected to answer the following command.
func (d *Dev) Skip() error {
	return d.WriteByte(cmdSkipROM)
}

// ReadROM reads the address of the only device on the bus. With more than one
// device the result is the wired-AND of all their addresses.
func (d *Dev) ReadROM() (ROM, error) {
	var r ROM
	if err := d.WriteByte(cmdReadROM); err != nil {
		return r, err
	}
	err := d.ReadBytes(r[:])
	return r, err
}

// train returns the burst buffer, emptied and set to the line driver pull.
func (d *Dev) train(pull onewire.Pullup) *pulse.Train {
	d.tx.Reset()
	d.tx.Pull = pull
	return &d.tx
}

func (d *Dev) debug(msg string, args ...any) {
	if d.opts.Logger != nil {
		d.opts.Logger.Debug(msg, args...)
	}
}

var _ conn.Resource = &Dev{}
var _ onewire.Bus = &Dev{}
var _ onewire.Pins = &Dev{}
