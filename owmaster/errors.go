// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owmaster

import "errors"

// ErrBitCount is returned when a bit group is larger than one byte. Nothing
// is transmitted in that case.
var ErrBitCount = errors.New("owmaster: bit group must be 1 to 8 bits")

// channelError is a failure of the underlying pulse channel.
type channelError struct {
	op  string
	err error
}

func (e *channelError) Error() string { return "owmaster: " + e.op + ": " + e.err.Error() }
func (e *channelError) Unwrap() error { return e.err }

// timeoutError implements error and onewire.BusError.
//
// Nothing answered within the receive bound, which usually means the bus is
// disconnected.
type timeoutError string

func (e timeoutError) Error() string  { return string(e) }
func (e timeoutError) BusError() bool { return true }
func (e timeoutError) Timeout() bool  { return true }

// busError implements error and onewire.BusError.
type busError string

func (e busError) Error() string  { return string(e) }
func (e busError) BusError() bool { return true }

const (
	errNoPresence   = busError("owmaster: no device present")
	errNoResponse   = busError("owmaster: no device answered the search")
	errShortCapture = busError("owmaster: capture shorter than the read group")
	errSearchDone   = busError("owmaster: search already enumerated the last device")
)
