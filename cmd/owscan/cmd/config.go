// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/GermanBionicSystems/owrmt/ds18b20"
	"github.com/GermanBionicSystems/owrmt/owsim"
	"gopkg.in/yaml.v3"
)

// Config is the content of the configuration file.
type Config struct {
	// Adapter is either "sim" or "gpio".
	Adapter string `yaml:"adapter"`
	// Pin is the name of the bus pin, as known to gpioreg.
	Pin          string        `yaml:"pin"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	// Resolution of the thermometers, 9 to 12 bits.
	Resolution int `yaml:"resolution"`
	// Devices populate the simulated bus.
	Devices []SimDevice `yaml:"devices"`
}

// SimDevice is a device on the simulated bus.
//
// A device with a temperature is a DS18B20 thermometer; any other is a device
// that only has an address.
type SimDevice struct {
	Family  uint8    `yaml:"family"`
	Serial  uint64   `yaml:"serial"`
	Celsius *float64 `yaml:"celsius"`
	Alarm   bool     `yaml:"alarm"`
}

// DefaultConfig returns the configuration used without a configuration file.
func DefaultConfig() *Config {
	c1, c2 := 21.5, 23.25
	return &Config{
		Adapter:    "sim",
		Pin:        "GPIO4",
		Resolution: ds18b20.DefaultOpts.Resolution,
		Devices: []SimDevice{
			{Family: uint8(ds18b20.DS18B20), Serial: 1, Celsius: &c1},
			{Family: uint8(ds18b20.DS18B20), Serial: 2, Celsius: &c2},
			{Family: 0x01, Serial: 0x1234},
		},
	}
}

// ParseConfig decodes a YAML configuration on top of the defaults.
func ParseConfig(data []byte) (*Config, error) {
	c := DefaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadConfig reads the configuration file at path. An empty path returns the
// defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	c, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.Adapter {
	case "sim", "gpio":
	default:
		return fmt.Errorf("unknown adapter %q (supported: sim, gpio)", c.Adapter)
	}
	if c.Pin == "" {
		return errors.New("pin is required")
	}
	if c.ResetTimeout < 0 || c.ReadTimeout < 0 {
		return errors.New("timeouts must be positive")
	}
	if c.Resolution < 9 || c.Resolution > 12 {
		return fmt.Errorf("invalid resolution %d (9 to 12 bits)", c.Resolution)
	}
	for i, d := range c.Devices {
		if d.Celsius != nil && ds18b20.Family(d.Family) != ds18b20.DS18B20 {
			return fmt.Errorf("device %d: only family %#02x simulates a temperature", i, byte(ds18b20.DS18B20))
		}
	}
	return nil
}

// simDevices returns the simulated devices described by the configuration.
func (c *Config) simDevices() []owsim.Device {
	out := make([]owsim.Device, 0, len(c.Devices))
	for _, d := range c.Devices {
		if d.Celsius != nil {
			t := owsim.NewThermometer(d.Serial, *d.Celsius)
			t.Alarmed = d.Alarm
			out = append(out, t)
			continue
		}
		out = append(out, &owsim.Plain{Addr: owsim.NewROM(d.Family, d.Serial), Alarmed: d.Alarm})
	}
	return out
}
