// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owsim

type state int

const (
	stateIdle     state = iota // waits for a reset
	stateCommand               // receives the ROM command
	stateSearch                // takes part in a search
	stateMatch                 // compares a match ROM address
	stateFunction              // addressed, exchanges bytes with the device
)

// node is the ROM layer of one device.
type node struct {
	dev   Device
	state state

	rom   [8]byte
	pos   int // search or match position, 0..63
	phase int // search: 0 bit, 1 complement, 2 direction

	in   byte // byte being received
	nIn  int
	out  []byte // bytes queued for the master
	nOut int    // bits of out[0] already sent
}

func (n *node) reset() {
	n.state = stateCommand
	n.rom = n.dev.ROM()
	n.pos, n.phase = 0, 0
	n.in, n.nIn = 0, 0
	n.out, n.nOut = nil, 0
	n.dev.Reset()
}

func (n *node) romBit(i int) bool {
	return n.rom[i/8]>>(uint(i)%8)&1 != 0
}

// slot processes one slot where the master sent bit. It returns true if the
// device pulls the line low.
func (n *node) slot(bit bool) bool {
	switch n.state {
	case stateCommand:
		if b, ok := n.receive(bit); ok {
			n.command(b)
		}
	case stateSearch:
		own := n.romBit(n.pos)
		switch n.phase {
		case 0:
			n.phase = 1
			return !own
		case 1:
			n.phase = 2
			return own
		default:
			n.phase = 0
			if bit != own {
				n.state = stateIdle
				return false
			}
			if n.pos++; n.pos == 64 {
				n.state = stateFunction
			}
		}
	case stateMatch:
		if bit != n.romBit(n.pos) {
			n.state = stateIdle
			return false
		}
		if n.pos++; n.pos == 64 {
			n.state = stateFunction
		}
	case stateFunction:
		if len(n.out) != 0 {
			return !n.send()
		}
		if b, ok := n.receive(bit); ok {
			n.out = append(n.out, n.dev.Write(b)...)
		}
	}
	return false
}

// receive accumulates bit and returns the byte once complete.
func (n *node) receive(bit bool) (byte, bool) {
	if bit {
		n.in |= 1 << uint(n.nIn)
	}
	if n.nIn++; n.nIn < 8 {
		return 0, false
	}
	b := n.in
	n.in, n.nIn = 0, 0
	return b, true
}

// send pops the next bit to send.
func (n *node) send() bool {
	bit := n.out[0]>>uint(n.nOut)&1 != 0
	if n.nOut++; n.nOut == 8 {
		n.out = n.out[1:]
		n.nOut = 0
	}
	return bit
}

func (n *node) command(c byte) {
	n.pos, n.phase = 0, 0
	switch c {
	case 0xf0:
		n.state = stateSearch
	case 0xec:
		n.state = stateIdle
		if n.dev.Alarm() {
			n.state = stateSearch
		}
	case 0x55:
		n.state = stateMatch
	case 0xcc:
		n.state = stateFunction
	case 0x33:
		n.state = stateFunction
		n.out = append(n.out, n.rom[:]...)
	default:
		n.state = stateIdle
	}
}
