// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"io"

	"github.com/GermanBionicSystems/owrmt/ds18b20"
	"github.com/GermanBionicSystems/owrmt/owmaster"
	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/onewire"
)

var (
	scanAlarm  bool
	scanFamily int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Enumerate the devices on the bus",
	Long: `Enumerate the devices on the bus with the ROM search and print their
addresses in search order.

Examples:
  owscan scan                  # All devices
  owscan scan --alarm          # Devices with an alarm condition
  owscan scan --family 0x28    # DS18B20 thermometers only`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVarP(&scanAlarm, "alarm", "a", false, "only devices in alarm state")
	scanCmd.Flags().IntVarP(&scanFamily, "family", "f", -1, "only devices of this family code")
}

func runScan(cmd *cobra.Command, args []string) error {
	m, err := openMaster(cfg, nil)
	if err != nil {
		return err
	}
	defer m.Halt()

	var addrs []onewire.Address
	switch {
	case scanFamily >= 0:
		if scanFamily > 0xff {
			return fmt.Errorf("invalid family %#x", scanFamily)
		}
		addrs, err = searchFamily(m, byte(scanFamily), scanAlarm)
	default:
		addrs, err = m.Search(scanAlarm)
	}
	printAddresses(cmd.OutOrStdout(), addrs)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return nil
}

// searchFamily walks the devices of a single family with a targeted search.
func searchFamily(m *owmaster.Dev, family byte, alarm bool) ([]onewire.Address, error) {
	mode := owmaster.SearchAll
	if alarm {
		mode = owmaster.SearchAlarm
	}
	m.Lock()
	defer m.Unlock()
	var out []onewire.Address
	m.TargetSearch(family)
	for {
		rom, ok := m.SearchNext(mode)
		if !ok || rom.Family() != family {
			return out, nil
		}
		out = append(out, rom.Address())
	}
}

func printAddresses(w io.Writer, addrs []onewire.Address) {
	for _, a := range addrs {
		rom := owmaster.ROMFromAddress(a)
		status := "ok"
		if !onewire.CheckCRC(rom[:]) {
			status = "bad crc"
		}
		fmt.Fprintf(w, "%s  %-8s %s\n", rom, familyName(rom.Family()), status)
	}
	fmt.Fprintf(w, "%d device(s)\n", len(addrs))
}

func familyName(f byte) string {
	switch ds18b20.Family(f) {
	case ds18b20.DS18B20, ds18b20.DS18S20:
		return ds18b20.Family(f).String()
	}
	if f == 0x01 {
		return "DS2401"
	}
	return fmt.Sprintf("%#02x", f)
}
