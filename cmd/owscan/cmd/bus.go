// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/GermanBionicSystems/owrmt/gpiopulse"
	"github.com/GermanBionicSystems/owrmt/owmaster"
	"github.com/GermanBionicSystems/owrmt/owsim"
	"github.com/GermanBionicSystems/owrmt/pulse"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/host/v3"
)

// openChannel returns the pulse channel selected by the configuration and the
// pin of the bus.
func openChannel(c *Config) (pulse.Channel, gpio.PinIO, error) {
	switch c.Adapter {
	case "sim":
		logger.Debug("simulated bus", "devices", len(c.Devices))
		return owsim.New(c.simDevices()...), &gpiotest.Pin{N: c.Pin}, nil
	case "gpio":
		if _, err := host.Init(); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize host drivers: %w", err)
		}
		p := gpioreg.ByName(c.Pin)
		if p == nil {
			return nil, nil, fmt.Errorf("failed to find pin %s", c.Pin)
		}
		logger.Debug("gpio bus", "pin", p)
		return gpiopulse.New(nil), p, nil
	default:
		return nil, nil, fmt.Errorf("unknown adapter %q", c.Adapter)
	}
}

// openMaster returns a 1-Wire master on the configured channel. wrap, if not
// nil, is applied to the channel first.
func openMaster(c *Config, wrap func(pulse.Channel) pulse.Channel) (*owmaster.Dev, error) {
	ch, pin, err := openChannel(c)
	if err != nil {
		return nil, err
	}
	if wrap != nil {
		ch = wrap(ch)
	}
	m, err := owmaster.New(ch, pin, &owmaster.Opts{
		ResetTimeout: c.ResetTimeout,
		ReadTimeout:  c.ReadTimeout,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bus: %w", err)
	}
	return m, nil
}
