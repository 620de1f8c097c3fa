// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pulsetest is meant to be used to test drivers over a pulse.Channel.
package pulsetest

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/GermanBionicSystems/owrmt/pulse"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/onewire"
)

// Loopback is a pulse.Channel whose captures echo what was transmitted, as if
// nothing else drove the wire.
type Loopback struct {
	sync.Mutex
	Pin      gpio.PinIO
	Attaches int              // number of times the paths were reconfigured
	Pulls    []onewire.Pullup // line driver of every transmitted train
	Idle     time.Duration

	pending [][]pulse.Symbol
}

func (l *Loopback) String() string {
	return "loopback"
}

// Halt implements conn.Resource.
func (l *Loopback) Halt() error {
	return nil
}

// Attach implements pulse.Channel.
func (l *Loopback) Attach(p gpio.PinIO) error {
	l.Lock()
	defer l.Unlock()
	if l.Pin != nil && p != nil && l.Pin.Name() == p.Name() {
		return nil
	}
	l.Pin = p
	l.Attaches++
	return nil
}

// Transmit implements pulse.Channel.
func (l *Loopback) Transmit(t *pulse.Train) error {
	l.Lock()
	defer l.Unlock()
	l.Pulls = append(l.Pulls, t.Pull)
	l.pending = append(l.pending, append([]pulse.Symbol(nil), t.Symbols()...))
	return nil
}

// Receive implements pulse.Channel.
func (l *Loopback) Receive(time.Duration) ([]pulse.Symbol, error) {
	l.Lock()
	defer l.Unlock()
	if len(l.pending) == 0 {
		return nil, pulse.ErrTimeout
	}
	c := l.pending[0]
	l.pending = l.pending[1:]
	return c, nil
}

// Flush implements pulse.Channel.
func (l *Loopback) Flush() {
	l.Lock()
	defer l.Unlock()
	l.pending = nil
}

// SetIdleThreshold implements pulse.Channel.
func (l *Loopback) SetIdleThreshold(d time.Duration) error {
	l.Lock()
	defer l.Unlock()
	l.Idle = d
	return nil
}

// IdleThreshold implements pulse.Channel.
func (l *Loopback) IdleThreshold() time.Duration {
	l.Lock()
	defer l.Unlock()
	return l.Idle
}

// IO registers one transmission and the capture it produced.
type IO struct {
	// W is the expected train content, end marker excluded. It is not
	// checked when nil.
	W []pulse.Symbol
	// R is queued for the next Receive. A nil R makes Receive time out.
	R []pulse.Symbol
	// Pull is the expected line driver.
	Pull onewire.Pullup
	// Err is returned by Transmit instead of emitting the train.
	Err error
}

// Playback implements pulse.Channel and plays back a recorded I/O flow.
//
// While "replay" type of unit tests are of limited value, they still present
// an easy way to do basic code coverage.
type Playback struct {
	sync.Mutex
	Ops   []IO
	Count int
	Idle  time.Duration
	// RecvErr, when set, is returned by every Receive.
	RecvErr error

	pending [][]pulse.Symbol
}

func (p *Playback) String() string {
	return "playback"
}

// Close verifies that all the expected Ops have been consumed.
func (p *Playback) Close() error {
	p.Lock()
	defer p.Unlock()
	if len(p.Ops) != p.Count {
		return fmt.Errorf("pulsetest: expected playback to be empty: I/O count %d; expected %d", p.Count, len(p.Ops))
	}
	return nil
}

// Halt implements conn.Resource.
func (p *Playback) Halt() error {
	return nil
}

// Attach implements pulse.Channel.
func (p *Playback) Attach(gpio.PinIO) error {
	return nil
}

// Transmit implements pulse.Channel.
func (p *Playback) Transmit(t *pulse.Train) error {
	p.Lock()
	defer p.Unlock()
	if p.Count >= len(p.Ops) {
		return errors.New("pulsetest: unexpected Transmit()")
	}
	op := p.Ops[p.Count]
	p.Count++
	if op.Err != nil {
		return op.Err
	}
	if op.W != nil && !reflect.DeepEqual(op.W, t.Symbols()) {
		return fmt.Errorf("pulsetest: unexpected write %v != %v", t.Symbols(), op.W)
	}
	if op.Pull != t.Pull {
		return fmt.Errorf("pulsetest: unexpected pull %t != %t", t.Pull, op.Pull)
	}
	if op.R != nil {
		p.pending = append(p.pending, op.R)
	}
	return nil
}

// Receive implements pulse.Channel.
func (p *Playback) Receive(time.Duration) ([]pulse.Symbol, error) {
	p.Lock()
	defer p.Unlock()
	if p.RecvErr != nil {
		return nil, p.RecvErr
	}
	if len(p.pending) == 0 {
		return nil, pulse.ErrTimeout
	}
	c := p.pending[0]
	p.pending = p.pending[1:]
	return c, nil
}

// Flush implements pulse.Channel.
func (p *Playback) Flush() {
	p.Lock()
	defer p.Unlock()
	p.pending = nil
}

// SetIdleThreshold implements pulse.Channel.
func (p *Playback) SetIdleThreshold(d time.Duration) error {
	p.Lock()
	defer p.Unlock()
	p.Idle = d
	return nil
}

// IdleThreshold implements pulse.Channel.
func (p *Playback) IdleThreshold() time.Duration {
	p.Lock()
	defer p.Unlock()
	return p.Idle
}

var _ pulse.Channel = &Loopback{}
var _ pulse.Channel = &Playback{}
