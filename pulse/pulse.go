// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pulse

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/onewire"
)

// ErrTimeout is returned by Channel.Receive when no capture completed within
// the requested timeout.
var ErrTimeout = errors.New("pulse: receive timeout")

// Symbol is one pair of (level, duration) segments.
//
// A Symbol with a zero Duration0 ends a train.
type Symbol struct {
	Level0    gpio.Level
	Duration0 time.Duration
	Level1    gpio.Level
	Duration1 time.Duration
}

// IsEnd reports whether s is an end marker.
func (s Symbol) IsEnd() bool {
	return s.Duration0 == 0
}

func (s Symbol) String() string {
	return fmt.Sprintf("%s:%s/%s:%s", s.Level0, s.Duration0, s.Level1, s.Duration1)
}

// MaxSymbols is the capacity of a Train, end marker included.
const MaxSymbols = 9

// Train is a pulse pattern transmitted as one burst.
//
// It is stored inline so that building one does not allocate.
type Train struct {
	// Pull selects the line driver for the burst: WeakPullup keeps the pin
	// open-drain, StrongPullup drives it push-pull so that the high phases
	// power parasitic devices.
	Pull onewire.Pullup

	n       int
	symbols [MaxSymbols]Symbol
}

// Add appends s to the train. It returns false if the train is full.
func (t *Train) Add(s Symbol) bool {
	if t.n == len(t.symbols) {
		return false
	}
	t.symbols[t.n] = s
	t.n++
	return true
}

// End appends the end marker. It returns false if the train is full.
func (t *Train) End() bool {
	return t.Add(Symbol{Level0: gpio.High})
}

// Symbols returns the symbols up to, and excluding, the first end marker.
func (t *Train) Symbols() []Symbol {
	for i := 0; i < t.n; i++ {
		if t.symbols[i].IsEnd() {
			return t.symbols[:i]
		}
	}
	return t.symbols[:t.n]
}

// Reset empties the train, keeping Pull.
func (t *Train) Reset() {
	t.n = 0
}

// Channel is a single-pin pulse generation and capture capability.
//
// A Channel is not safe for concurrent use; it is owned by a single protocol
// engine.
type Channel interface {
	conn.Resource

	// Attach routes the transmit and receive paths to p.
	//
	// Attaching the pin already in use is a no-op. Attaching another pin
	// reconfigures both paths before returning.
	Attach(p gpio.PinIO) error
	// Transmit sends the train and returns once it was fully emitted.
	//
	// The waveform seen on the wire while transmitting is captured and made
	// available to Receive.
	Transmit(t *Train) error
	// Receive returns the oldest pending capture.
	//
	// A capture ends once the line stayed idle for longer than the idle
	// threshold. It returns ErrTimeout if none was available in time.
	Receive(timeout time.Duration) ([]Symbol, error)
	// Flush drops all pending captures.
	Flush()
	// SetIdleThreshold sets the idle duration that ends a capture.
	SetIdleThreshold(d time.Duration) error
	// IdleThreshold returns the current idle threshold.
	IdleThreshold() time.Duration
}
