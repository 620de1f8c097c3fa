// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owmaster

import (
	"time"

	"github.com/GermanBionicSystems/owrmt/pulse"
	"periph.io/x/conn/v3/gpio"
)

// Standard speed timings. They are fixed by the protocol, not by the caller.
const (
	durationReset = 480 * time.Microsecond // low phase of a bus reset
	durationSlot  = 75 * time.Microsecond  // one bit slot

	durationWrite1Low  = 2 * time.Microsecond // also starts a read slot
	durationWrite1High = durationSlot - durationWrite1Low
	durationWrite0Low  = 65 * time.Microsecond
	durationWrite0High = durationSlot - durationWrite0Low

	// A rising edge seen before this offset into a read slot is a 1.
	durationSample = 15*time.Microsecond - durationWrite1Low

	// idleSlot must exceed any single segment of a write or read slot so that
	// a burst is captured in one piece.
	idleSlot = durationSlot + 2*time.Microsecond
	// idleReset covers the reset low phase plus the presence window.
	idleReset = durationReset + 60*time.Microsecond

	// presenceTolerance is how much shorter than durationReset the captured
	// low phase of a reset may be.
	presenceTolerance = 2 * time.Microsecond
)

func resetSymbol() pulse.Symbol {
	return pulse.Symbol{Level0: gpio.Low, Duration0: durationReset, Level1: gpio.High}
}

func writeSymbol(bit bool) pulse.Symbol {
	if bit {
		return pulse.Symbol{Level0: gpio.Low, Duration0: durationWrite1Low, Level1: gpio.High, Duration1: durationWrite1High}
	}
	return pulse.Symbol{Level0: gpio.Low, Duration0: durationWrite0Low, Level1: gpio.High, Duration1: durationWrite0High}
}

// readSymbol briefly forces the line low then releases it for the remainder
// of the slot; the device holds it low to answer 0.
func readSymbol() pulse.Symbol {
	return writeSymbol(true)
}

// decodeBit returns the logical value of one captured read slot.
func decodeBit(s pulse.Symbol) bool {
	return s.Level0 == gpio.Low && s.Level1 == gpio.High && s.Duration0 < durationSample
}

// decodeBits packs the first n captured slots LSB-first.
func decodeBits(rx []pulse.Symbol, n int) byte {
	var v byte
	for i := 0; i < n; i++ {
		if decodeBit(rx[i]) {
			v |= 1 << uint(i)
		}
	}
	return v
}

// isPresence reports whether a reset capture contains a presence pulse: the
// reset low phase, the line released high, then a device pulling it low.
func isPresence(rx []pulse.Symbol) bool {
	if len(rx) < 2 {
		return false
	}
	return rx[0].Level0 == gpio.Low && rx[0].Duration0 >= durationReset-presenceTolerance &&
		rx[0].Level1 == gpio.High && rx[0].Duration1 > 0 &&
		rx[1].Level0 == gpio.Low
}
