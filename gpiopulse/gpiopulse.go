// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiopulse

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/owrmt/pulse"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/onewire"
)

// Opts contains options to pass to the constructor.
type Opts struct {
	// MaxCaptures is the number of captures kept until received. The oldest
	// one is dropped when full.
	MaxCaptures int
	// MaxWatch bounds the time the line is watched after a train when it
	// keeps toggling.
	MaxWatch time.Duration
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	MaxCaptures: 16,
	MaxWatch:    10 * time.Millisecond,
}

// New returns a pulse channel bit-banging a GPIO pin.
//
// No pin is used until Attach is called.
func New(opts *Opts) *Dev {
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.MaxCaptures <= 0 {
		o.MaxCaptures = DefaultOpts.MaxCaptures
	}
	if o.MaxWatch <= 0 {
		o.MaxWatch = DefaultOpts.MaxWatch
	}
	return &Dev{
		opts:     o,
		idle:     100 * time.Microsecond,
		captures: make(chan []pulse.Symbol, o.MaxCaptures),
	}
}

// Dev is a pulse.Channel on a GPIO pin.
//
// The pin is driven low to emit low phases and released, or driven high under
// a strong pull-up, for high phases. The line is sampled continuously while
// transmitting and until it stays idle, so the capture includes what the
// devices on the bus did.
type Dev struct {
	sync.Mutex
	opts     Opts
	pin      gpio.PinIO
	idle     time.Duration
	captures chan []pulse.Symbol
}

func (d *Dev) String() string {
	d.Lock()
	defer d.Unlock()
	if d.pin == nil {
		return "gpiopulse"
	}
	return "gpiopulse{" + d.pin.Name() + "}"
}

// Halt implements conn.Resource.
//
// It releases the line.
func (d *Dev) Halt() error {
	d.Lock()
	defer d.Unlock()
	if d.pin == nil {
		return nil
	}
	return d.release(onewire.WeakPullup)
}

// Attach implements pulse.Channel.
func (d *Dev) Attach(p gpio.PinIO) error {
	if p == nil {
		return errors.New("gpiopulse: nil pin")
	}
	d.Lock()
	defer d.Unlock()
	if d.pin != nil && d.pin.Name() == p.Name() {
		return nil
	}
	if d.pin != nil {
		if err := d.release(onewire.WeakPullup); err != nil {
			return err
		}
	}
	d.pin = p
	d.drain()
	return d.release(onewire.WeakPullup)
}

// Transmit implements pulse.Channel.
//
// It returns once the train was emitted and the line went idle.
func (d *Dev) Transmit(t *pulse.Train) error {
	d.Lock()
	defer d.Unlock()
	if d.pin == nil {
		return errors.New("gpiopulse: transmit before attach")
	}
	syms := t.Symbols()
	if len(syms) == 0 {
		// Only the line driver changes.
		return d.release(t.Pull)
	}
	r := recorder{idle: d.idle, level: gpio.High, since: time.Now()}
	for _, s := range syms {
		if err := d.hold(&r, s.Level0, s.Duration0, t.Pull); err != nil {
			return err
		}
		if err := d.hold(&r, s.Level1, s.Duration1, t.Pull); err != nil {
			return err
		}
	}
	if err := d.release(t.Pull); err != nil {
		return err
	}
	for end := time.Now().Add(d.opts.MaxWatch); !r.ended && time.Now().Before(end); {
		r.sample(d.pin.Read(), time.Now())
	}
	d.push(r.symbols())
	return nil
}

// Receive implements pulse.Channel.
func (d *Dev) Receive(timeout time.Duration) ([]pulse.Symbol, error) {
	select {
	case c := <-d.captures:
		return c, nil
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case c := <-d.captures:
		return c, nil
	case <-t.C:
		return nil, pulse.ErrTimeout
	}
}

// Flush implements pulse.Channel.
func (d *Dev) Flush() {
	d.Lock()
	defer d.Unlock()
	d.drain()
}

// SetIdleThreshold implements pulse.Channel.
func (d *Dev) SetIdleThreshold(t time.Duration) error {
	if t <= 0 {
		return errors.New("gpiopulse: invalid idle threshold")
	}
	d.Lock()
	defer d.Unlock()
	d.idle = t
	return nil
}

// IdleThreshold implements pulse.Channel.
func (d *Dev) IdleThreshold() time.Duration {
	d.Lock()
	defer d.Unlock()
	return d.idle
}

// hold keeps the line at l for dur while sampling it.
func (d *Dev) hold(r *recorder, l gpio.Level, dur time.Duration, pull onewire.Pullup) error {
	if dur == 0 {
		return nil
	}
	var err error
	if l == gpio.Low {
		err = d.pin.Out(gpio.Low)
	} else {
		err = d.release(pull)
	}
	if err != nil {
		return fmt.Errorf("gpiopulse: %w", err)
	}
	start := time.Now()
	if l == gpio.Low {
		// The line follows the pin; only its release needs watching.
		r.sample(gpio.Low, start)
		for time.Since(start) < dur {
		}
		return nil
	}
	for now := start; now.Sub(start) < dur; now = time.Now() {
		r.sample(d.pin.Read(), now)
	}
	return nil
}

// release lets the line go high: passively with a weak pull-up, actively
// driven with a strong one.
func (d *Dev) release(pull onewire.Pullup) error {
	var err error
	if pull == onewire.StrongPullup {
		err = d.pin.Out(gpio.High)
	} else {
		err = d.pin.In(gpio.PullUp, gpio.NoEdge)
	}
	if err != nil {
		return fmt.Errorf("gpiopulse: %w", err)
	}
	return nil
}

func (d *Dev) push(c []pulse.Symbol) {
	for {
		select {
		case d.captures <- c:
			return
		default:
		}
		select {
		case <-d.captures:
		default:
		}
	}
}

func (d *Dev) drain() {
	for {
		select {
		case <-d.captures:
		default:
			return
		}
	}
}

// segment is a stable level on the line.
type segment struct {
	level gpio.Level
	d     time.Duration
}

// recorder turns line samples into a capture.
//
// The capture starts at the first falling edge and ends once the line stayed
// at the same level longer than the idle threshold, the way a hardware
// receiver does.
type recorder struct {
	idle  time.Duration
	level gpio.Level
	since time.Time
	segs  []segment
	ended bool
}

func (r *recorder) sample(l gpio.Level, now time.Time) {
	if r.ended {
		return
	}
	if l != r.level {
		// Leading high is the idle line before the capture.
		if len(r.segs) != 0 || r.level == gpio.Low {
			r.segs = append(r.segs, segment{r.level, now.Sub(r.since)})
		}
		r.level = l
		r.since = now
		return
	}
	if (len(r.segs) != 0 || l == gpio.Low) && now.Sub(r.since) > r.idle {
		if l == gpio.Low {
			r.segs = append(r.segs, segment{gpio.Low, r.idle})
		}
		r.segs = append(r.segs, segment{l, 0})
		r.ended = true
	}
}

// symbols pairs the segments. A capture that did not end cleanly is closed
// with a zero length segment.
func (r *recorder) symbols() []pulse.Symbol {
	segs := r.segs
	if !r.ended && len(segs) != 0 {
		segs = append(segs, segment{r.level, 0})
	}
	out := make([]pulse.Symbol, 0, (len(segs)+1)/2)
	for i := 0; i < len(segs); i += 2 {
		s := pulse.Symbol{Level0: segs[i].level, Duration0: segs[i].d, Level1: !segs[i].level}
		if i+1 < len(segs) {
			s.Level1 = segs[i+1].level
			s.Duration1 = segs[i+1].d
		}
		out = append(out, s)
	}
	return out
}

var _ conn.Resource = &Dev{}
var _ pulse.Channel = &Dev{}
