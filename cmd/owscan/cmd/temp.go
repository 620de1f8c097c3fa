// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/GermanBionicSystems/owrmt/ds18b20"
	"github.com/GermanBionicSystems/owrmt/owmaster"
	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/physic"
)

var tempPersist bool

var tempCmd = &cobra.Command{
	Use:   "temp",
	Short: "Read the DS18B20 thermometers",
	Long: `Discover the DS18B20 thermometers on the bus and read each of them in
turn at the configured resolution.`,
	Args: cobra.NoArgs,
	RunE: runTemp,
}

func init() {
	rootCmd.AddCommand(tempCmd)

	tempCmd.Flags().BoolVar(&tempPersist, "persist", false, "store a changed resolution in EEPROM")
}

func runTemp(cmd *cobra.Command, args []string) error {
	m, err := openMaster(cfg, nil)
	if err != nil {
		return err
	}
	defer m.Halt()

	addrs, err := ds18b20.Discover(m, ds18b20.DS18B20)
	if err != nil {
		// Keep going with the valid addresses.
		logger.Warn("discovery", "err", err)
	}
	w := cmd.OutOrStdout()
	opts := ds18b20.Opts{Resolution: cfg.Resolution, Persist: tempPersist}
	for _, a := range addrs {
		d, err := ds18b20.New(m, a, &opts)
		if err != nil {
			return fmt.Errorf("%s: %w", owmaster.ROMFromAddress(a), err)
		}
		var e physic.Env
		if err := d.Sense(&e); err != nil {
			return fmt.Errorf("%s: %w", d, err)
		}
		fmt.Fprintf(w, "%s  %s\n", owmaster.ROMFromAddress(a), e.Temperature)
	}
	fmt.Fprintf(w, "%d thermometer(s)\n", len(addrs))
	return nil
}
