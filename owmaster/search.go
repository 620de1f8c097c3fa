// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owmaster

import (
	"errors"

	"periph.io/x/conn/v3/onewire"
)

// SearchMode selects which devices take part in a search.
type SearchMode byte

const (
	// SearchAll enumerates every device.
	SearchAll SearchMode = cmdSearchROM
	// SearchAlarm enumerates devices with an alarm condition.
	SearchAlarm SearchMode = cmdAlarm
)

func (m SearchMode) String() string {
	switch m {
	case SearchAll:
		return "SearchAll"
	case SearchAlarm:
		return "SearchAlarm"
	default:
		return "SearchMode(invalid)"
	}
}

// SearchState is the progress of an enumeration.
//
// Bit positions are numbered 1 to 64 in wire order; 0 means none.
type SearchState struct {
	// ROM holds the address found by the last successful search.
	ROM ROM
	// LastDiscrepancy is the position of the last branch where 0 was taken;
	// the next search takes 1 there.
	LastDiscrepancy int
	// LastFamilyDiscrepancy is the last such branch within the family code.
	LastFamilyDiscrepancy int
	// LastDevice is set once the last device was enumerated.
	LastDevice bool
}

// idle brings s back to the state of a search that never ran, keeping the
// ROM buffer.
func (s *SearchState) idle() {
	s.LastDiscrepancy = 0
	s.LastFamilyDiscrepancy = 0
	s.LastDevice = false
}

// SearchState returns a copy of the search progress.
func (d *Dev) SearchState() SearchState {
	return d.search
}

// ResetSearch restarts the enumeration from the beginning of the address
// space.
func (d *Dev) ResetSearch() {
	d.search = SearchState{}
}

// TargetSearch makes the next SearchNext look for a device of the family
// first. If none of this family is on the bus, another device is found
// instead.
func (d *Dev) TargetSearch(family byte) {
	d.search = SearchState{LastDiscrepancy: 64}
	d.search.ROM[0] = family
}

// SearchNext finds the next device and returns its address.
//
// It returns false once all devices were enumerated, and keeps returning
// false until ResetSearch or TargetSearch is called. It also returns false if
// the bus failed; the enumeration then restarts from scratch on the next call.
func (d *Dev) SearchNext(mode SearchMode) (ROM, bool) {
	r, err := d.next(mode)
	if err != nil {
		d.debug("search ended", "mode", mode, "err", err)
		return ROM{}, false
	}
	d.debug("search found", "mode", mode, "rom", r, "state", d.search)
	return r, true
}

// Search implements onewire.Bus.
//
// It enumerates the devices on the bus, or only the ones in alarm state if
// alarmOnly is true. If the bus fails during the search, the devices already
// discovered are returned with the error.
func (d *Dev) Search(alarmOnly bool) ([]onewire.Address, error) {
	d.Lock()
	defer d.Unlock()

	mode := SearchAll
	if alarmOnly {
		mode = SearchAlarm
	}
	var out []onewire.Address
	d.ResetSearch()
	for {
		r, err := d.next(mode)
		switch {
		case err == nil:
			out = append(out, r.Address())
			if d.search.LastDevice {
				return out, nil
			}
		case errors.Is(err, errNoPresence) && len(out) == 0:
			// Empty bus.
			return out, nil
		case errors.Is(err, errNoResponse) && (alarmOnly || len(out) == 0):
			return out, nil
		default:
			return out, err
		}
	}
}

// next runs one pass of the tree walk (Dallas application note 187).
//
// At every position the devices still taking part send their address bit and
// its complement; the master writes back the branch to follow, which drops
// the devices on the other branch.
func (d *Dev) next(mode SearchMode) (ROM, error) {
	s := &d.search
	if s.LastDevice {
		return ROM{}, errSearchDone
	}
	if present, err := d.Reset(); err != nil {
		s.idle()
		return ROM{}, err
	} else if !present {
		s.idle()
		return ROM{}, errNoPresence
	}
	if err := d.WriteByte(byte(mode)); err != nil {
		s.idle()
		return ROM{}, err
	}

	lastZero := 0
	// (index, mask) addresses the ROM bit of position id.
	index, mask := 0, byte(1)
	for id := 1; id <= 64; id++ {
		idBit, err := d.ReadBit()
		if err != nil {
			s.idle()
			return ROM{}, err
		}
		cmpBit, err := d.ReadBit()
		if err != nil {
			s.idle()
			return ROM{}, err
		}
		var dir bool
		switch {
		case idBit && cmpBit:
			s.idle()
			return ROM{}, errNoResponse
		case idBit != cmpBit:
			dir = idBit
		default:
			if id < s.LastDiscrepancy {
				dir = s.ROM[index]&mask != 0
			} else {
				dir = id == s.LastDiscrepancy
			}
			if !dir {
				lastZero = id
				if lastZero < 9 {
					s.LastFamilyDiscrepancy = lastZero
				}
			}
		}
		if dir {
			s.ROM[index] |= mask
		} else {
			s.ROM[index] &^= mask
		}
		if err := d.WriteBit(dir); err != nil {
			s.idle()
			return ROM{}, err
		}
		if mask <<= 1; mask == 0 {
			index++
			mask = 1
		}
	}

	s.LastDiscrepancy = lastZero
	s.LastDevice = lastZero == 0
	if s.ROM[0] == 0 {
		s.idle()
		return ROM{}, errNoPresence
	}
	return s.ROM, nil
}
