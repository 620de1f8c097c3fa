// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owmaster

import (
	"encoding/binary"
	"fmt"

	"periph.io/x/conn/v3/onewire"
)

// ROM is the 64-bit address of a device in wire order: byte 0 is the family
// code, bytes 1 to 6 the serial number and byte 7 the CRC.
//
// The CRC is not verified here, see onewire.CheckCRC.
type ROM [8]byte

// ROMFromAddress converts a periph address to wire order.
func ROMFromAddress(a onewire.Address) ROM {
	var r ROM
	binary.LittleEndian.PutUint64(r[:], uint64(a))
	return r
}

// Family returns the family code.
func (r ROM) Family() byte {
	return r[0]
}

// Address returns r as a periph address, with the family code in the least
// significant byte.
func (r ROM) Address() onewire.Address {
	return onewire.Address(binary.LittleEndian.Uint64(r[:]))
}

func (r ROM) String() string {
	return fmt.Sprintf("%#016x", uint64(r.Address()))
}
