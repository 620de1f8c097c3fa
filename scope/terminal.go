// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scope

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"time"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/gpio"
)

// TerminalOpts represents the options of a Terminal.
type TerminalOpts struct {
	// Resolution is the time represented by one character cell.
	Resolution time.Duration
	// Palette defaults to ansi256.Default.
	Palette *ansi256.Palette
	// High, Low are the colors of the line levels.
	High, Low color.NRGBA
}

// DefaultTerminalOpts is the recommended default options.
var DefaultTerminalOpts = TerminalOpts{
	Resolution: 5 * time.Microsecond,
	High:       color.NRGBA{0x30, 0xd0, 0x30, 0xff},
	Low:        color.NRGBA{0x10, 0x20, 0x90, 0xff},
}

// Terminal prints waveforms to the console using ANSI color codes.
type Terminal struct {
	w       io.Writer
	opts    TerminalOpts
	palette ansi256.Palette
	buf     bytes.Buffer
}

// NewTerminal returns a Terminal that prints on stdout.
func NewTerminal(opts *TerminalOpts) *Terminal {
	if opts == nil {
		opts = &DefaultTerminalOpts
	}
	t := &Terminal{w: colorable.NewColorableStdout(), opts: *opts}
	if t.opts.Resolution <= 0 {
		t.opts.Resolution = DefaultTerminalOpts.Resolution
	}
	if t.opts.High.A == 0 && t.opts.Low.A == 0 {
		t.opts.High = DefaultTerminalOpts.High
		t.opts.Low = DefaultTerminalOpts.Low
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	t.palette = *p
	return t
}

func (t *Terminal) String() string {
	return "Terminal"
}

// Halt implements conn.Resource.
//
// It resets the terminal colors.
func (t *Terminal) Halt() error {
	_, err := t.w.Write([]byte("\033[0m\n"))
	return err
}

// Print writes one line per event. Waveforms are drawn as colored cells,
// every cell covering the configured resolution.
func (t *Terminal) Print(events ...Event) error {
	// This code is designed to minimize the amount of memory allocated per call.
	t.buf.Reset()
	for i := range events {
		e := &events[i]
		fmt.Fprintf(&t.buf, "\033[0m%-7s %10s ", e.Kind, e.At.Round(time.Microsecond))
		if len(e.Symbols) == 0 {
			if e.Kind == Idle {
				_, _ = t.buf.WriteString(e.Idle.String())
			} else {
				_, _ = t.buf.WriteString(e.Err)
			}
		}
		for _, s := range e.Symbols {
			t.segment(s.Level0, s.Duration0)
			t.segment(s.Level1, s.Duration1)
		}
		_, _ = t.buf.WriteString("\033[0m\n")
	}
	_, err := t.buf.WriteTo(t.w)
	return err
}

func (t *Terminal) segment(l gpio.Level, d time.Duration) {
	if d == 0 {
		return
	}
	n := int((d + t.opts.Resolution/2) / t.opts.Resolution)
	if n == 0 {
		n = 1
	}
	c := t.opts.Low
	if l == gpio.High {
		c = t.opts.High
	}
	b := t.palette.Block(c)
	for i := 0; i < n; i++ {
		_, _ = io.WriteString(&t.buf, b)
	}
}
