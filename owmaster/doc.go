// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package owmaster drives a 1-Wire bus through a pulse generation and capture
// channel.
//
// Every bus operation is a pulse train built from the standard speed timings:
// a 480µs low reset followed by the observation of the presence pulse, write
// slots with a 2µs (1) or 65µs (0) low phase and read slots whose captured
// rising edge, before or after 13µs, gives the bit value. On top of this the
// package implements ROM addressing and the search algorithm that enumerates
// every device on the bus.
//
// Dev implements onewire.Bus so periph sensor drivers can use it directly.
//
// # Datasheets
//
// https://www.analog.com/en/resources/technical-articles/1wire-search-algorithm.html
//
// https://www.analog.com/en/resources/technical-articles/guidelines-for-reliable-long-line-1wire-networks.html
package owmaster
