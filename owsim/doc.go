// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package owsim simulates a 1-Wire bus and its devices behind a pulse.Channel.
//
// It interprets every transmitted slot the way devices on a real wire do:
// reset pulses trigger presence pulses, read slots are stretched low by the
// devices answering 0 and the search command makes every device send its
// address bit and complement. The resulting capture is the wired-AND of the
// master and all devices, so a bus master can be exercised end to end without
// hardware.
package owsim
