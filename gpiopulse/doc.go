// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gpiopulse implements a pulse channel by bit-banging a GPIO pin.
//
// It is a software stand-in for a hardware pulse peripheral: timings rely on
// busy waiting, so on a multitasking OS a preemption during a slot corrupts
// it. It works best on an otherwise idle core. The pin must be open-drain
// capable or wired through a transistor, and the bus needs its usual external
// pull-up resistor.
package gpiopulse
