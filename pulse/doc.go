// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pulse defines a half-duplex pulse generation and capture channel.
//
// A Channel sends a Train of Symbols on a single pin with microsecond
// fidelity and captures the resulting waveform, including the parts driven by
// other parties on the wire. It models peripherals such as the ESP32 RMT or the
// RP2040 PIO, where each symbol is two (level, duration) segments.
//
// Protocol engines like a 1-Wire master build trains from a timing table and
// decode the captured symbols into logical bits.
package pulse
