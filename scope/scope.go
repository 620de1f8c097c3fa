// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scope

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/GermanBionicSystems/owrmt/pulse"
	"github.com/fxamacker/cbor/v2"
	"periph.io/x/conn/v3/onewire"
)

// Kind is the type of a recorded event.
type Kind uint8

const (
	// Transmit is a pulse train sent by the master.
	Transmit Kind = iota + 1
	// Capture is a waveform returned by the receiver.
	Capture
	// Timeout is a receive that returned nothing.
	Timeout
	// Idle is a change of the receiver idle threshold.
	Idle
	// Fault is a receive that failed for another reason than a timeout.
	Fault
)

func (k Kind) String() string {
	switch k {
	case Transmit:
		return "tx"
	case Capture:
		return "rx"
	case Timeout:
		return "timeout"
	case Idle:
		return "idle"
	case Fault:
		return "fault"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Event is one operation seen on the channel.
type Event struct {
	Kind Kind `cbor:"1,keyasint"`
	// At is the time elapsed since the recording started.
	At      time.Duration  `cbor:"2,keyasint"`
	Pull    onewire.Pullup `cbor:"3,keyasint,omitempty"`
	Symbols []pulse.Symbol `cbor:"4,keyasint,omitempty"`
	Idle    time.Duration  `cbor:"5,keyasint,omitempty"`
	Err     string         `cbor:"6,keyasint,omitempty"`
}

// Duration returns the total length of the waveform of the event.
func (e *Event) Duration() time.Duration {
	var d time.Duration
	for _, s := range e.Symbols {
		d += s.Duration0 + s.Duration1
	}
	return d
}

func (e *Event) String() string {
	switch e.Kind {
	case Transmit, Capture:
		return fmt.Sprintf("%-7s %10s %v", e.Kind, e.At, e.Symbols)
	case Idle:
		return fmt.Sprintf("%-7s %10s %s", e.Kind, e.At, e.Idle)
	default:
		return fmt.Sprintf("%-7s %10s %s", e.Kind, e.At, e.Err)
	}
}

// encMode encodes events deterministically.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	if encMode, err = encOpts.EncMode(); err != nil {
		panic(fmt.Sprintf("scope: failed to create CBOR encoder mode: %v", err))
	}
	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	if decMode, err = decOpts.DecMode(); err != nil {
		panic(fmt.Sprintf("scope: failed to create CBOR decoder mode: %v", err))
	}
}

// WriteEvents writes events to w as a stream of CBOR items.
func WriteEvents(w io.Writer, events []Event) error {
	enc := encMode.NewEncoder(w)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return err
		}
	}
	return nil
}

// ReadEvents reads a stream written by WriteEvents or a Recorder until the
// end of r.
func ReadEvents(r io.Reader) ([]Event, error) {
	dec := decMode.NewDecoder(r)
	var out []Event
	for {
		var e Event
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, e)
	}
}

// Opts contains options to pass to NewRecorder.
type Opts struct {
	// Stream receives every event as a CBOR item as soon as it is recorded.
	Stream io.Writer
}

// NewRecorder returns a channel that records the traffic going through ch.
func NewRecorder(ch pulse.Channel, opts *Opts) *Recorder {
	r := &Recorder{Channel: ch, start: time.Now()}
	if opts != nil && opts.Stream != nil {
		r.enc = encMode.NewEncoder(opts.Stream)
	}
	return r
}

// Recorder is a pulse.Channel that records every train transmitted and
// every capture received through another channel.
//
// It is safe for concurrent use to the extent the wrapped channel is.
type Recorder struct {
	pulse.Channel

	mu     sync.Mutex
	start  time.Time
	events []Event
	enc    *cbor.Encoder
	err    error
}

func (r *Recorder) String() string {
	return "scope{" + r.Channel.String() + "}"
}

// Transmit implements pulse.Channel.
func (r *Recorder) Transmit(t *pulse.Train) error {
	e := Event{Kind: Transmit, Pull: t.Pull, Symbols: append([]pulse.Symbol(nil), t.Symbols()...)}
	err := r.Channel.Transmit(t)
	if err != nil {
		e.Err = err.Error()
	}
	r.add(e)
	return err
}

// Receive implements pulse.Channel.
func (r *Recorder) Receive(timeout time.Duration) ([]pulse.Symbol, error) {
	c, err := r.Channel.Receive(timeout)
	switch {
	case err == nil:
		r.add(Event{Kind: Capture, Symbols: append([]pulse.Symbol(nil), c...)})
	case errors.Is(err, pulse.ErrTimeout):
		r.add(Event{Kind: Timeout, Err: err.Error()})
	default:
		r.add(Event{Kind: Fault, Err: err.Error()})
	}
	return c, err
}

// SetIdleThreshold implements pulse.Channel.
func (r *Recorder) SetIdleThreshold(d time.Duration) error {
	err := r.Channel.SetIdleThreshold(d)
	e := Event{Kind: Idle, Idle: d}
	if err != nil {
		e.Err = err.Error()
	}
	r.add(e)
	return err
}

// Events returns a copy of the events recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Reset drops the events recorded so far and restarts the clock.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.start = time.Now()
}

// Err returns the first error that happened while streaming events.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.At = time.Since(r.start)
	r.events = append(r.events, e)
	if r.enc != nil && r.err == nil {
		r.err = r.enc.Encode(&e)
	}
}

var _ pulse.Channel = &Recorder{}
