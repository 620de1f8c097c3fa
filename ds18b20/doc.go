// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ds18b20 interfaces to Dallas Semi / Maxim DS18B20 and MAX31820
// 1-wire temperature sensors.
//
// Note that both DS18B20 and MAX31820 use family code 0x28.
//
// Both powered sensors and parasitically powered sensors are supported
// as long as the bus driver can provide sufficient power using an active
// pull-up.
//
// The DS18S20 (family 0x10) is read as well, at its fixed 9 bits resolution.
//
// # Datasheet
//
// https://datasheets.maximintegrated.com/en/ds/DS18B20-PAR.pdf
//
// https://datasheets.maximintegrated.com/en/ds/MAX31820.pdf
package ds18b20
