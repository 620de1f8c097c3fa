// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package owrmt is a container for a 1-Wire bus master built on a pulse
// channel, and the drivers and tools around it.
//
// Package pulse defines the channel: a single pin that transmits bursts of
// (level, duration) pairs and captures the waveform seen on the wire.
// Package owmaster implements the 1-Wire protocol on top of it and exposes
// the bus as a periph onewire.Bus. Package gpiopulse provides a channel on a
// plain GPIO and package owsim a simulated bus with devices.
package owrmt
