// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds18b20

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/owrmt/owmaster"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/onewire"
	"periph.io/x/conn/v3/physic"
)

// Family code of the specific device type
type Family byte

func (f Family) String() string {
	switch f {
	case DS18S20:
		return "DS18S20"
	case DS18B20:
		return "DS18B20"
	default:
		return "unknown"
	}
}

const (
	DS18B20 Family = 0x28
	DS18S20 Family = 0x10
)

// Function commands, datasheet p.11.
const (
	cmdConvert         = 0x44
	cmdWriteScratchpad = 0x4e
	cmdReadScratchpad  = 0xbe
	cmdCopyScratchpad  = 0x48
	cmdReadPower       = 0xb4
)

// Opts contains options to pass to the constructor.
type Opts struct {
	// Resolution must be in the range 9..12 and determines how many bits of
	// precision the readings have. The resolution affects the conversion
	// time: 9bits:94ms, 10bits:188ms, 11bits:375ms, 12bits:750ms.
	Resolution int
	// Persist copies the configuration to EEPROM when it had to be changed.
	Persist bool
}

// DefaultOpts is the recommended default options.
//
// A resolution of 10 bits corresponds to 0.25C and tends to be a good
// compromise between conversion time and the device's inherent accuracy of
// +/-0.5C.
var DefaultOpts = Opts{
	Resolution: 10,
	Persist:    true,
}

// Discover enumerates the thermometers of the given family on the bus.
//
// The search is targeted at the family so the devices of other families are
// not walked. Addresses failing their CRC are skipped and reported in the
// returned error along with the valid ones.
func Discover(m *owmaster.Dev, f Family) ([]onewire.Address, error) {
	m.Lock()
	defer m.Unlock()
	var out []onewire.Address
	skipped := 0
	m.TargetSearch(byte(f))
	for {
		rom, ok := m.SearchNext(owmaster.SearchAll)
		if !ok || rom.Family() != byte(f) {
			break
		}
		if !onewire.CheckCRC(rom[:]) {
			skipped++
			continue
		}
		out = append(out, rom.Address())
	}
	if skipped != 0 {
		return out, busError(fmt.Sprintf("ds18b20: skipped %d address(es) with an invalid CRC", skipped))
	}
	return out, nil
}

// ConvertAll performs a conversion on all DS18B20 devices on the bus.
//
// During the conversion it places the bus in strong pull-up mode to power
// parasitic devices and returns when the conversions have completed. This time
// period is determined by the maximum resolution of all devices on the bus and
// must be provided.
//
// ConvertAll uses time.Sleep to wait for the conversion to finish, which takes
// from 94ms to 752ms.
func ConvertAll(o onewire.Bus, maxResolutionBits int) error {
	if maxResolutionBits < 9 || maxResolutionBits > 12 {
		return errors.New("ds18b20: invalid maxResolutionBits")
	}
	if err := StartAll(o); err != nil {
		return err
	}
	conversionSleep(maxResolutionBits)
	return nil
}

// StartAll starts a conversion on all DS18B20 devices on the bus.
// Similar to ConvertAll but returns without waiting for conversion to finish.
// To be used in conjunction with LastTemp() function. Conversion timing must be
// handled by other means.
func StartAll(o onewire.Bus) error {
	return o.Tx([]byte{0xcc, cmdConvert}, nil, onewire.StrongPullup)
}

// New returns an object that communicates over 1-wire to the DS18B20 sensor
// with the specified 64-bit address.
//
// The address CRC and family are verified before the device is accessed.
func New(o onewire.Bus, addr onewire.Address, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.Resolution < 9 || opts.Resolution > 12 {
		return nil, errors.New("ds18b20: invalid resolution")
	}
	rom := owmaster.ROMFromAddress(addr)
	if !onewire.CheckCRC(rom[:]) {
		return nil, fmt.Errorf("ds18b20: invalid address %s", rom)
	}
	if f := Family(rom.Family()); f != DS18B20 && f != DS18S20 {
		return nil, fmt.Errorf("ds18b20: unsupported family %#02x", byte(f))
	}

	d := &Dev{onewire: onewire.Dev{Bus: o, Addr: addr}, resolution: opts.Resolution}

	// Start by reading the scratchpad memory, this will tell us whether we can
	// talk to the device correctly and also how it's configured.
	spad, err := d.readScratchpad()
	if err != nil {
		return nil, err
	}
	// The DS18S20 has a fixed resolution.
	if d.Family() == DS18B20 && int(spad[4]>>5&3) != opts.Resolution-9 {
		if err := d.configure(spad[2], spad[3], opts.Persist); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Dev is a handle to a Dallas Semi / Maxim DS18B20 temperature sensor on a
// 1-wire bus.
type Dev struct {
	onewire    onewire.Dev // device on 1-wire bus
	resolution int         // resolution in bits (9..12)

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// Family returns the family of the device, from its address.
func (d *Dev) Family() Family {
	return Family(d.onewire.Addr & 0xFF)
}

func (d *Dev) String() string {
	return d.Family().String() + "{" + d.onewire.String() + "}"
}

// Halt implements conn.Resource.
//
// It stops a SenseContinuous loop.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	d.wg.Wait()
	d.stop = nil
	return nil
}

// Sense implements physic.SenseEnv.
func (d *Dev) Sense(e *physic.Env) error {
	if err := d.onewire.TxPower([]byte{cmdConvert}, nil); err != nil {
		return err
	}
	conversionSleep(d.resolution)
	t, err := d.LastTemp()
	if err != nil {
		return err
	}
	e.Temperature = t
	return nil
}

// SenseContinuous implements physic.SenseEnv.
//
// The interval must be longer than a conversion. Call Halt to stop.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if interval < conversionTime(d.resolution) {
		return nil, fmt.Errorf("ds18b20: interval shorter than a %d bits conversion", d.resolution)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return nil, errors.New("ds18b20: already sensing continuously")
	}
	sensing := make(chan physic.Env)
	stop := make(chan struct{})
	d.stop = stop
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(sensing)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				var e physic.Env
				if err := d.Sense(&e); err != nil {
					continue
				}
				select {
				case sensing <- e:
				case <-stop:
					return
				}
			}
		}
	}()
	return sensing, nil
}

// Precision implements physic.SenseEnv.
func (d *Dev) Precision(e *physic.Env) {
	e.Temperature = physic.Kelvin / 16 << uint(12-d.resolution)
}

// LastTemp reads the temperature resulting from the last conversion from the
// device.
//
// It is useful in combination with ConvertAll.
func (d *Dev) LastTemp() (physic.Temperature, error) {
	spad, err := d.readScratchpad()
	if err != nil {
		return 0, err
	}

	c := d.parseTemperature(spad)

	// The device powers up with a value of 85°C, so if we read that odds are
	// very high that either no conversion was performed or that the conversion
	// failed due to lack of power. This prevents reading a temp of exactly 85°C,
	// but that seems like the right tradeoff.
	if c == 85*physic.Celsius+physic.ZeroCelsius {
		return 0, busError("ds18b20: has not performed a temperature conversion (insufficient pull-up?)")
	}

	return c, nil
}

// SetAlarm programs the alarm thresholds, in whole degrees Celsius.
//
// After a conversion the device answers alarm searches while the temperature
// is at or above high, or at or below low.
func (d *Dev) SetAlarm(low, high int8, persist bool) error {
	if low > high {
		return errors.New("ds18b20: low alarm above high alarm")
	}
	return d.configure(byte(high), byte(low), persist)
}

// Parasitic reports whether the device draws its power from the data line,
// in which case conversions need a strong pull-up.
func (d *Dev) Parasitic() (bool, error) {
	var b [1]byte
	if err := d.onewire.Tx([]byte{cmdReadPower}, b[:]); err != nil {
		return false, err
	}
	// Parasitic devices pull the line low.
	return b[0]&1 == 0, nil
}

// configure writes TH, TL and the resolution, optionally copying them to
// EEPROM (datasheet p.6).
func (d *Dev) configure(th, tl byte, persist bool) error {
	w := []byte{cmdWriteScratchpad, th, tl}
	if d.Family() == DS18B20 {
		w = append(w, byte((d.resolution-9)<<5)|0x1f)
	}
	if err := d.onewire.Tx(w, nil); err != nil {
		return err
	}
	if !persist {
		return nil
	}
	if err := d.onewire.TxPower([]byte{cmdCopyScratchpad}, nil); err != nil {
		return err
	}
	// Wait for the write to complete.
	sleep(10 * time.Millisecond)
	return nil
}

// parseTemperature from scratchpad and handle special calculation for DS18S20
func (d *Dev) parseTemperature(spad []byte) physic.Temperature {
	// spad[1] is MSB and spad[0] is LSB of the raw temperature value
	rawTemp := int16(spad[1])<<8 | int16(spad[0])

	if d.Family() == DS18S20 && spad[7] != 0 {
		// TEMPERATURE = TEMP_READ - 0.25 + (COUNT_PER_C - COUNT_REMAIN) / COUNT_PER_C
		// with TEMP_READ the raw value truncated to whole degrees,
		// COUNT_REMAIN = spad[6] and COUNT_PER_C = spad[7] = 16.
		rawTemp = (rawTemp&^1)<<3 + 12 - int16(spad[6])
	}
	// rawTemp has 4 fractional bits. Need to do sign extension multiply by
	// 1000 to get Millis, divide by 16 due to 4 fractional bits. Datasheet p.4.
	v := physic.Temperature(rawTemp)
	return v*physic.Kelvin/16 + physic.ZeroCelsius
}

// busError implements error and onewire.BusError.
type busError string

func (e busError) Error() string  { return string(e) }
func (e busError) BusError() bool { return true }

// conversionTime is the time a conversion takes, which depends on the
// resolution: 9bits:94ms, 10bits:188ms, 11bits:376ms, 12bits:752ms,
// datasheet p.6.
func conversionTime(bits int) time.Duration {
	return (94 << uint(bits-9)) * time.Millisecond
}

func conversionSleep(bits int) {
	sleep(conversionTime(bits))
}

// readScratchpad reads the 9 bytes of scratchpad and checks the CRC.
// It returns the 8 bytes of scratchpad data (excluding the CRC byte).
func (d *Dev) readScratchpad() ([]byte, error) {
	var spad [9]byte
	if err := d.onewire.Tx([]byte{cmdReadScratchpad}, spad[:]); err != nil {
		return nil, err
	}
	if !onewire.CheckCRC(spad[:]) {
		for _, s := range spad {
			if s != 0xff {
				return nil, busError("ds18b20: incorrect scratchpad CRC")
			}
		}
		return nil, busError("ds18b20: device did not respond")
	}
	return spad[:8], nil
}

var sleep = time.Sleep

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
