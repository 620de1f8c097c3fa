// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package scope records the traffic of a pulse channel and displays it.
//
// A Recorder sits between a bus master and its channel. The events it
// collects can be saved as a CBOR stream, read back, rendered as a PNG
// timing diagram or printed on an ANSI terminal.
package scope
